package intake

import (
	"time"

	"github.com/openclinic/intake-client/conversation"
)

type ControllerBuilder struct {
	backend         Backend
	store           SessionStore
	sink            EventSink
	userName        string
	completionDelay time.Duration
	healthInterval  time.Duration
	reportTimeout   time.Duration
}

func NewControllerBuilder() *ControllerBuilder {
	return &ControllerBuilder{
		sink:            NoOpSink{},
		completionDelay: 1200 * time.Millisecond,
		healthInterval:  4 * time.Minute,
		reportTimeout:   15 * time.Second,
	}
}

func (b *ControllerBuilder) WithBackend(backend Backend) *ControllerBuilder {
	b.backend = backend
	return b
}

func (b *ControllerBuilder) WithStore(store SessionStore) *ControllerBuilder {
	b.store = store
	return b
}

func (b *ControllerBuilder) WithSink(sink EventSink) *ControllerBuilder {
	b.sink = sink
	return b
}

func (b *ControllerBuilder) WithUserName(name string) *ControllerBuilder {
	b.userName = name
	return b
}

// WithCompletionDelay sets the pause between completion detection and the
// hand-off to the completion screen.
func (b *ControllerBuilder) WithCompletionDelay(d time.Duration) *ControllerBuilder {
	b.completionDelay = d
	return b
}

func (b *ControllerBuilder) WithHealthInterval(d time.Duration) *ControllerBuilder {
	b.healthInterval = d
	return b
}

// WithReportTimeout bounds the fallback report fetch made during the
// completion hand-off.
func (b *ControllerBuilder) WithReportTimeout(d time.Duration) *ControllerBuilder {
	b.reportTimeout = d
	return b
}

func (b *ControllerBuilder) Build() *Controller {
	return &Controller{
		backend:         b.backend,
		store:           b.store,
		sink:            b.sink,
		userName:        b.userName,
		completionDelay: b.completionDelay,
		healthInterval:  b.healthInterval,
		reportTimeout:   b.reportTimeout,
		state:           StateUninitialized,
		log:             conversation.NewLog(),
	}
}
