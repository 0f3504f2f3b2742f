package intake

import (
	"github.com/openclinic/intake-client/api"
	"github.com/openclinic/intake-client/conversation"
	"github.com/openclinic/intake-client/stream"
)

type ViewEventKind int

const (
	// KindFragment is a streamed content delta for the open assistant message.
	KindFragment ViewEventKind = iota
	// KindMessage is a message appended wholesale (user echo, recovered
	// history, local notices).
	KindMessage
	// KindOptions carries choices attached to the open assistant message.
	KindOptions
	// KindNotice is a transient hint that is not part of the transcript.
	KindNotice
	// KindCompleted is the hand-off to the completion screen.
	KindCompleted
)

// Completion is the payload handed to the completion screen.
type Completion struct {
	SessionID string
	Reports   api.ReportBundle
}

// ViewEvent is one update pushed from the controller to the active view.
type ViewEvent struct {
	Kind       ViewEventKind
	Fragment   string
	Message    conversation.Message
	Options    []stream.Option
	Notice     string
	Completion *Completion
}

// EventSink receives view events as the session progresses.
type EventSink interface {
	Send(ev *ViewEvent) error
}

// NoOpSink implements EventSink with no-op operations.
type NoOpSink struct{}

func (NoOpSink) Send(*ViewEvent) error { return nil }

func newFragmentEvent(fragment string) *ViewEvent {
	return &ViewEvent{Kind: KindFragment, Fragment: fragment}
}

func newMessageEvent(msg conversation.Message) *ViewEvent {
	return &ViewEvent{Kind: KindMessage, Message: msg}
}

func newOptionsEvent(options []stream.Option) *ViewEvent {
	return &ViewEvent{Kind: KindOptions, Options: options}
}

func newNoticeEvent(text string) *ViewEvent {
	return &ViewEvent{Kind: KindNotice, Notice: text}
}

func newCompletedEvent(sessionID string, reports api.ReportBundle) *ViewEvent {
	return &ViewEvent{Kind: KindCompleted, Completion: &Completion{
		SessionID: sessionID,
		Reports:   reports,
	}}
}
