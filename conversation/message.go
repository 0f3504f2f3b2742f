package conversation

import (
	"time"

	"github.com/openclinic/intake-client/stream"
)

type Role string

const (
	// RoleUser is the human side of the conversation.
	RoleUser Role = "user"
	// RoleAssistant is the remote assessment agent.
	RoleAssistant Role = "assistant"
	// RoleSystem marks locally generated notices (recovery guidance,
	// rate-limit hints). System messages are never sent to the backend.
	RoleSystem Role = "system"
)

// Message is one turn in the transcript. Content accumulates while the
// owning stream is open and is frozen once the turn closes. Timestamp is set
// on creation and never mutated.
type Message struct {
	Role         Role            `json:"role"`
	Content      string          `json:"content"`
	Options      []stream.Option `json:"options,omitempty"`
	PatientPDF   string          `json:"patient_pdf,omitempty"`
	ClinicianPDF string          `json:"clinician_pdf,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}
