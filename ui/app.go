// Package ui renders the three client views (landing, chat, completion) on
// a terminal and shuttles user input into the session controller.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/openclinic/intake-client/api"
	"github.com/openclinic/intake-client/conversation"
	"github.com/openclinic/intake-client/intake"
	"github.com/openclinic/intake-client/stream"
	"github.com/rs/xid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// FeedbackSubmitter posts the end-of-session feedback record. *api.Client
// satisfies it.
type FeedbackSubmitter interface {
	SubmitFeedback(ctx context.Context, feedback api.Feedback) error
}

// App owns the terminal front end. It implements intake.EventSink so the
// controller can push transcript updates while a turn streams.
type App struct {
	ctrl       *intake.Controller
	feedback   FeedbackSubmitter
	in         *bufio.Scanner
	out        io.Writer
	reportsDir string

	mu        sync.Mutex
	options   []stream.Option
	streaming bool
	completed chan *intake.Completion
}

func New(in io.Reader, out io.Writer, feedback FeedbackSubmitter, reportsDir string) *App {
	return &App{
		feedback:   feedback,
		in:         bufio.NewScanner(in),
		out:        out,
		reportsDir: reportsDir,
		completed:  make(chan *intake.Completion, 1),
	}
}

// Bind attaches the controller. Separate from New because the controller is
// built with the app as its sink.
func (a *App) Bind(ctrl *intake.Controller) {
	a.ctrl = ctrl
}

// Send receives view events from the controller.
func (a *App) Send(ev *intake.ViewEvent) error {
	switch ev.Kind {
	case intake.KindFragment:
		a.printFragment(ev.Fragment)
	case intake.KindMessage:
		a.printMessage(ev.Message)
	case intake.KindOptions:
		a.printOptions(ev.Options)
	case intake.KindNotice:
		a.endStreamingLine()
		fmt.Fprintf(a.out, "[notice] %s\n", ev.Notice)
	case intake.KindCompleted:
		select {
		case a.completed <- ev.Completion:
		default:
			// Hand-off already delivered.
		}
	}
	return nil
}

// Run walks the three views in order: landing, chat, completion.
func (a *App) Run(ctx context.Context) error {
	if err := a.landing(ctx); err != nil {
		return err
	}

	a.ctrl.StartHealthLoop(ctx)
	defer a.ctrl.Close()

	completion, quit := a.chat(ctx)
	if quit {
		return nil
	}

	a.completion(ctx, completion)
	return nil
}

// landing shows the intro, waits for Enter, and resolves the session.
func (a *App) landing(ctx context.Context) error {
	intro, err := renderTemplate("landing.md", landingData{})
	if err != nil {
		return fmt.Errorf("error rendering landing view: %w", err)
	}
	fmt.Fprintln(a.out, intro)

	if !a.in.Scan() {
		return a.in.Err()
	}

	if err := a.ctrl.Start(ctx); err != nil {
		return err
	}
	a.endStreamingLine()

	fmt.Fprintf(a.out, "\nSession %s ready.\n", intake.ShortID(a.ctrl.SessionID()))
	return nil
}

// chat is the read-submit loop. Returns the completion payload, or quit=true
// when the user left without finishing.
func (a *App) chat(ctx context.Context) (*intake.Completion, bool) {
	for {
		if a.ctrl.State() == intake.StateCompleted {
			return <-a.completed, false
		}

		fmt.Fprint(a.out, "\nyou> ")
		if !a.in.Scan() {
			return nil, true
		}
		text := strings.TrimSpace(a.in.Text())
		if text == "" {
			continue
		}

		switch {
		case text == "/quit":
			return nil, true
		case text == "/finish":
			a.submit(ctx, func() error { return a.ctrl.FinishEarly(ctx) })
		case text == "/retry":
			if !a.ctrl.ReportRetryable() {
				fmt.Fprintln(a.out, "[notice] Nothing to retry right now.")
				continue
			}
			a.submit(ctx, func() error { return a.ctrl.RetryReport(ctx) })
		default:
			if value, ok := a.resolveOption(text); ok {
				text = value
			}
			prompt := text
			a.submit(ctx, func() error { return a.ctrl.Send(ctx, prompt) })
		}
	}
}

func (a *App) submit(ctx context.Context, send func() error) {
	a.mu.Lock()
	a.options = nil
	a.mu.Unlock()

	if err := send(); err != nil {
		fmt.Fprintf(a.out, "[notice] %v\n", err)
	}
	a.endStreamingLine()
}

// resolveOption maps a typed number onto the currently offered choice set.
func (a *App) resolveOption(text string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > len(a.options) {
		return "", false
	}
	return a.options[n-1].Value, true
}

// completion shows the final view, saves report documents, and collects
// feedback. Feedback failure is surfaced inline and never blocks leaving.
func (a *App) completion(ctx context.Context, completion *intake.Completion) {
	saved := a.saveReports(completion)

	view, err := renderTemplate("completion.md", completionData{
		ShortID:    intake.ShortID(completion.SessionID),
		SavedFiles: saved,
	})
	if err != nil {
		logger.Error("Error rendering completion view", zap.Error(err))
		fmt.Fprintln(a.out, "\nAssessment complete. Thank you.")
	} else {
		fmt.Fprintln(a.out, view)
	}

	record := a.collectFeedback(completion.SessionID)
	if record == nil {
		fmt.Fprintln(a.out, "Take care.")
		return
	}

	if err := a.feedback.SubmitFeedback(ctx, *record); err != nil {
		logger.Error("Feedback submission failed", zap.Error(err))
		fmt.Fprintln(a.out, "We couldn't submit your feedback just now. "+
			"If you'd like, email it to the team that gave you this link.")
	} else {
		fmt.Fprintln(a.out, "Feedback received, thank you.")
	}
	fmt.Fprintln(a.out, "Take care.")
}

func (a *App) printFragment(fragment string) {
	a.mu.Lock()
	if !a.streaming {
		fmt.Fprint(a.out, "\nintake> ")
		a.streaming = true
	}
	a.mu.Unlock()
	fmt.Fprint(a.out, fragment)
}

func (a *App) printMessage(msg conversation.Message) {
	a.endStreamingLine()
	switch msg.Role {
	case conversation.RoleSystem:
		fmt.Fprintf(a.out, "[notice] %s\n", msg.Content)
	case conversation.RoleUser:
		fmt.Fprintf(a.out, "you: %s\n", msg.Content)
	default:
		fmt.Fprintf(a.out, "intake: %s\n", msg.Content)
	}
}

func (a *App) printOptions(options []stream.Option) {
	a.endStreamingLine()

	a.mu.Lock()
	a.options = append([]stream.Option(nil), options...)
	a.mu.Unlock()

	lines := lo.Map(options, func(o stream.Option, i int) string {
		return fmt.Sprintf("  %d) %s", i+1, o.Label)
	})
	fmt.Fprintf(a.out, "%s\n(type a number to choose)\n", strings.Join(lines, "\n"))
}

func (a *App) endStreamingLine() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.streaming {
		fmt.Fprintln(a.out)
		a.streaming = false
	}
}

func (a *App) collectFeedback(sessionID string) *api.Feedback {
	fmt.Fprint(a.out, "How was the overall experience, 1-5? (Enter to skip) ")
	overall, ok := a.readRating()
	if !ok {
		return nil
	}

	fmt.Fprint(a.out, "How easy was it to use, 1-5? ")
	ease, _ := a.readRating()

	fmt.Fprint(a.out, "Anything you'd like to tell us? ")
	comments := a.readLine()

	fmt.Fprint(a.out, "Email, if you'd like a follow-up (optional): ")
	email := a.readLine()

	return &api.Feedback{
		SessionToken:  sessionID,
		ClientID:      xid.New().String(),
		OverallRating: overall,
		EaseRating:    ease,
		Comments:      comments,
		Email:         email,
	}
}

func (a *App) readRating() (int, bool) {
	text := a.readLine()
	if text == "" {
		return 0, false
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > 5 {
		return 0, false
	}
	return n, true
}

func (a *App) readLine() string {
	if !a.in.Scan() {
		return ""
	}
	return strings.TrimSpace(a.in.Text())
}
