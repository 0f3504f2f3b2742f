// Package intake drives one assessment session against the backend: session
// creation and recovery, the greeting turn, message submission, completion
// detection, and the hand-off to the completion screen.
package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/openclinic/intake-client/api"
	"github.com/openclinic/intake-client/conversation"
	"github.com/openclinic/intake-client/stream"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

type State int

const (
	StateUninitialized State = iota
	StateStarting
	StateGreeting
	StateIdle
	StateSending
	StateCompleted
)

var (
	// ErrBusy rejects a submission while a previous chat call's stream is
	// still being read. At most one in-flight chat call per session.
	ErrBusy = errors.New("a message is already in flight")
	// ErrCompleted rejects submissions after the session has completed.
	ErrCompleted = errors.New("session already completed")
	// ErrNotStarted rejects submissions before Start has run.
	ErrNotStarted = errors.New("session not started")
)

const (
	recoveryGuidance = "Something went wrong sending that message. You can retype and resend it, " +
		"answer a different follow-up question instead, or restart the app to resume this session."
	rateLimitNotice   = "You're sending messages a little too quickly. Give it a moment and try again."
	reportRetryNotice = "Report generation ran into a problem. You can retry it without losing your answers."
)

// Backend is the slice of the intake API the controller drives. *api.Client
// satisfies it.
type Backend interface {
	Start(ctx context.Context, patientID, userName string) (string, error)
	Recover(ctx context.Context, sessionID string) ([]api.HistoryMessage, error)
	Chat(ctx context.Context, sessionToken, prompt string, emit stream.Handler) error
	Reports(ctx context.Context, sessionID string, email bool) (*api.ReportBundle, error)
	Health(ctx context.Context) error
}

// SessionStore persists the session id across runs. *store.Store satisfies it.
type SessionStore interface {
	Load() (string, bool)
	Save(id string) error
}

// Controller is the session state machine. All network calls it makes are
// safe to repeat except Start, which mints a new identifier.
type Controller struct {
	backend Backend
	store   SessionStore
	sink    EventSink

	userName        string
	completionDelay time.Duration
	healthInterval  time.Duration
	reportTimeout   time.Duration

	mu              sync.Mutex
	state           State
	busy            bool
	sessionID       string
	log             *conversation.Log
	reports         api.ReportBundle
	reportRetryable bool
	completed       bool
	stopHealth      context.CancelFunc
}

// Start resolves the session: recover against a stored id when one exists,
// otherwise mint a fresh session under an anonymous participant id, persist
// it, and elicit the greeting with an empty prompt. A stored id the backend
// rejects falls back to the fresh-start path; that is not an error.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	c.state = StateStarting
	c.mu.Unlock()

	if id, ok := c.store.Load(); ok {
		err := c.recover(ctx, id)
		if err == nil {
			return nil
		}
		logger.Info("Stored session not recoverable, starting fresh",
			zap.String("session", ShortID(id)), zap.Error(err))
	}

	patientID := "anon-" + xid.New().String()
	token, err := c.backend.Start(ctx, patientID, c.userName)
	if err != nil {
		c.setState(StateUninitialized)
		return fmt.Errorf("error starting session: %w", err)
	}

	c.mu.Lock()
	c.sessionID = token
	c.state = StateGreeting
	c.busy = true
	c.mu.Unlock()

	if err := c.store.Save(token); err != nil {
		logger.Error("Failed to persist session id", zap.Error(err))
	}

	c.runTurn(ctx, "")

	c.mu.Lock()
	c.busy = false
	if c.state == StateGreeting {
		c.state = StateIdle
	}
	c.mu.Unlock()
	return nil
}

func (c *Controller) recover(ctx context.Context, id string) error {
	history, err := c.backend.Recover(ctx, id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sessionID = id
	for _, m := range history {
		switch m.Role {
		case string(conversation.RoleUser):
			c.log.AddUserMessage(m.Content)
		case string(conversation.RoleAssistant):
			c.log.AddAssistantMessage(m.Content)
		default:
			// Unknown roles in recovered history are skipped.
			continue
		}
	}
	msgs := c.log.Messages()
	c.state = StateIdle
	c.mu.Unlock()

	for _, m := range msgs {
		c.sink.Send(newMessageEvent(m))
	}
	return nil
}

// Send submits one user turn. The early-finish control token is submitted
// verbatim as the prompt but rendered as a human-readable label; all other
// text is echoed into the transcript before the network call. Transport
// failures append exactly one recovery-guidance message; a rate limit
// appends exactly one lighter notice. Neither is fatal to the session.
func (c *Controller) Send(ctx context.Context, text string) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	if text == EarlyFinishToken {
		c.appendUser(EarlyFinishLabel)
	} else {
		c.appendUser(text)
	}

	c.runTurn(ctx, text)
	return nil
}

// FinishEarly submits the early-completion control token.
func (c *Controller) FinishEarly(ctx context.Context) error {
	return c.Send(ctx, EarlyFinishToken)
}

// RetryReport re-issues the finish call after a report-generation failure,
// without appending another prompter message.
func (c *Controller) RetryReport(ctx context.Context) error {
	c.mu.Lock()
	if !c.reportRetryable {
		c.mu.Unlock()
		return fmt.Errorf("no failed report to retry")
	}
	c.mu.Unlock()

	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	c.reportRetryable = false
	c.mu.Unlock()

	c.runTurn(ctx, EarlyFinishToken)
	return nil
}

func (c *Controller) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.sessionID == "":
		return ErrNotStarted
	case c.completed:
		return ErrCompleted
	case c.busy:
		return ErrBusy
	}
	c.busy = true
	c.state = StateSending
	return nil
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = false
	if c.state == StateSending {
		c.state = StateIdle
	}
	c.mu.Unlock()
}

// runTurn streams one chat call and folds its events onto the transcript.
// Events are applied strictly in arrival order; the loop ends when the
// transport closes.
func (c *Controller) runTurn(ctx context.Context, prompt string) {
	c.mu.Lock()
	token := c.sessionID
	c.mu.Unlock()

	err := c.backend.Chat(ctx, token, prompt, func(ev stream.Event) error {
		c.applyEvent(ev)
		return nil
	})

	c.mu.Lock()
	c.log.CloseTurn()
	c.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Shutdown, not a backend failure; nothing to guide the
			// user through.
			return
		}
		if errors.Is(err, api.ErrRateLimited) {
			c.appendSystem(rateLimitNotice)
			return
		}
		logger.Error("Chat call failed", zap.Error(err))
		c.appendSystem(recoveryGuidance)
		return
	}

	c.inspectFinalMessage()
}

func (c *Controller) applyEvent(ev stream.Event) {
	c.mu.Lock()
	c.log.Reduce(ev)
	if ev.PatientPDF != "" {
		c.reports.PatientPDF = ev.PatientPDF
	} else if ev.LegacyPDF != "" {
		c.reports.PatientPDF = ev.LegacyPDF
	}
	if ev.ClinicianPDF != "" {
		c.reports.ClinicianPDF = ev.ClinicianPDF
	}
	c.mu.Unlock()

	if ev.Content != "" {
		c.sink.Send(newFragmentEvent(ev.Content))
	}
	if len(ev.Options) > 0 {
		c.sink.Send(newOptionsEvent(ev.Options))
	}
}

// inspectFinalMessage applies the marker predicates to the turn's frozen
// assistant text once the transport has closed. Failure markers win over
// completion markers so a broken report step stays retryable.
func (c *Controller) inspectFinalMessage() {
	c.mu.Lock()
	last, ok := c.log.Last()
	c.mu.Unlock()

	if !ok || last.Role != conversation.RoleAssistant {
		return
	}

	if hasReportFailureMarker(last.Content) {
		c.mu.Lock()
		c.reportRetryable = true
		c.mu.Unlock()
		c.sink.Send(newNoticeEvent(reportRetryNotice))
		return
	}

	if hasCompletionMarker(last.Content) {
		c.complete()
	}
}

// complete transitions to Completed exactly once per session and schedules
// the hand-off after a short delay, so the final message gets rendered
// before the view changes.
func (c *Controller) complete() {
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		return
	}
	c.completed = true
	c.state = StateCompleted
	delay := c.completionDelay
	c.mu.Unlock()

	time.AfterFunc(delay, c.handOff)
}

func (c *Controller) handOff() {
	c.mu.Lock()
	id := c.sessionID
	reports := c.reports
	timeout := c.reportTimeout
	c.mu.Unlock()

	// Fallback fetch for sessions whose stream carried no documents.
	if reports.Empty() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		bundle, err := c.backend.Reports(ctx, id, true)
		if err != nil {
			logger.Error("Fallback report fetch failed", zap.Error(err))
		} else {
			if bundle.PatientPDF == "" && bundle.LegacyPDF != "" {
				bundle.PatientPDF = bundle.LegacyPDF
				bundle.LegacyPDF = ""
			}
			c.mu.Lock()
			c.reports = *bundle
			reports = *bundle
			c.mu.Unlock()
		}
	}

	c.sink.Send(newCompletedEvent(id, reports))
}

func (c *Controller) appendUser(text string) {
	c.mu.Lock()
	c.log.AddUserMessage(text)
	msg, _ := c.log.Last()
	c.mu.Unlock()
	c.sink.Send(newMessageEvent(msg))
}

func (c *Controller) appendSystem(text string) {
	c.mu.Lock()
	c.log.AddSystemMessage(text)
	msg, _ := c.log.Last()
	c.mu.Unlock()
	c.sink.Send(newMessageEvent(msg))
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// StartHealthLoop fires a periodic no-op liveness probe for the lifetime of
// the mounted session, independent of conversation state, to discourage idle
// backend shutdown. Failures are logged only. Close cancels the loop.
func (c *Controller) StartHealthLoop(ctx context.Context) {
	hctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.stopHealth != nil {
		c.mu.Unlock()
		cancel()
		return
	}
	c.stopHealth = cancel
	interval := c.healthInterval
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-hctx.Done():
				return
			case <-ticker.C:
				if err := c.backend.Health(hctx); err != nil {
					logger.Info("Backend health check failed", zap.Error(err))
				}
			}
		}
	}()
}

// Close cancels the health loop. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	cancel := c.stopHealth
	c.stopHealth = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Controller) ReportRetryable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reportRetryable
}

// Messages returns a snapshot of the transcript.
func (c *Controller) Messages() []conversation.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.Messages()
}

// ShortID is the truncated session id prefix shown to the user. The full
// value is used for API calls only.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
