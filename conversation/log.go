package conversation

import (
	"time"

	"github.com/openclinic/intake-client/stream"
)

// Log is the ordered transcript of one session. At most one message is open
// for appending at any time: the most recent assistant message while its
// originating stream is still active. All earlier messages are frozen.
//
// Updates never mutate a stored message in place; the tail element is
// replaced with an updated copy, so slices handed out by Messages stay
// consistent snapshots.
type Log struct {
	messages []Message
	open     bool
	now      func() time.Time
}

func NewLog() *Log {
	return &Log{now: time.Now}
}

// Messages returns a snapshot copy of the transcript.
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *Log) Len() int {
	return len(l.messages)
}

// Last returns the most recent message, if any.
func (l *Log) Last() (Message, bool) {
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// AddUserMessage appends a frozen user message, closing any open turn.
func (l *Log) AddUserMessage(content string) {
	l.open = false
	l.messages = append(l.messages, Message{
		Role:      RoleUser,
		Content:   content,
		Timestamp: l.now(),
	})
}

// AddAssistantMessage appends a frozen assistant message (used when
// replaying recovered history).
func (l *Log) AddAssistantMessage(content string) {
	l.open = false
	l.messages = append(l.messages, Message{
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: l.now(),
	})
}

// AddSystemMessage appends a locally generated notice.
func (l *Log) AddSystemMessage(content string) {
	l.open = false
	l.messages = append(l.messages, Message{
		Role:      RoleSystem,
		Content:   content,
		Timestamp: l.now(),
	})
}

// CloseTurn freezes the open assistant message. The next content fragment
// will start a new message.
func (l *Log) CloseTurn() {
	l.open = false
}

// Reduce folds one decoded stream event onto the transcript. Fields that
// co-occur in a single event are applied in fixed order:
// content, options, documents, completion.
func (l *Log) Reduce(ev stream.Event) {
	if ev.Content != "" {
		l.appendContent(ev.Content)
	}
	if len(ev.Options) > 0 {
		l.setOptions(ev.Options)
	}
	if ev.HasDocuments() {
		l.setDocuments(ev)
	}
	if ev.Done {
		l.CloseTurn()
	}
}

func (l *Log) appendContent(fragment string) {
	if l.open {
		last := l.messages[len(l.messages)-1]
		last.Content += fragment
		l.messages[len(l.messages)-1] = last
		return
	}
	l.messages = append(l.messages, Message{
		Role:      RoleAssistant,
		Content:   fragment,
		Timestamp: l.now(),
	})
	l.open = true
}

// setOptions attaches choices to the last assistant message, replacing any
// previous set. Options never attach to a user message; if the tail is not
// an assistant message, an empty one is opened to hold them.
func (l *Log) setOptions(options []stream.Option) {
	i := l.ensureAssistantTail()
	last := l.messages[i]
	last.Options = append([]stream.Option(nil), options...)
	l.messages[i] = last
}

// setDocuments attaches report payloads to the last assistant message. The
// legacy single-document field maps onto the patient slot only when the same
// event carries no patient-facing field.
func (l *Log) setDocuments(ev stream.Event) {
	i := l.ensureAssistantTail()
	last := l.messages[i]
	if ev.PatientPDF != "" {
		last.PatientPDF = ev.PatientPDF
	} else if ev.LegacyPDF != "" {
		last.PatientPDF = ev.LegacyPDF
	}
	if ev.ClinicianPDF != "" {
		last.ClinicianPDF = ev.ClinicianPDF
	}
	l.messages[i] = last
}

func (l *Log) ensureAssistantTail() int {
	if n := len(l.messages); n > 0 && l.messages[n-1].Role == RoleAssistant {
		return n - 1
	}
	l.messages = append(l.messages, Message{
		Role:      RoleAssistant,
		Timestamp: l.now(),
	})
	l.open = true
	return len(l.messages) - 1
}
