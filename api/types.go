package api

// Wire types for the intake backend contract.

type startRequest struct {
	PatientID string  `json:"patient_id"`
	UserName  *string `json:"user_name"`
}

type startResponse struct {
	SessionToken string `json:"session_token"`
}

// HistoryMessage is one transcript entry returned by the recover endpoint.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type recoverResponse struct {
	ConversationHistory []HistoryMessage `json:"conversation_history"`
}

type chatRequest struct {
	SessionToken string `json:"session_token"`
	Prompt       string `json:"prompt"`
}

// ReportBundle carries base64-encoded report documents, either captured from
// the stream or fetched after the fact from the reports endpoint.
type ReportBundle struct {
	PatientPDF   string `json:"patient_pdf,omitempty"`
	ClinicianPDF string `json:"clinician_pdf,omitempty"`
	LegacyPDF    string `json:"pdf_report,omitempty"`
}

// Empty reports whether no document payload is present.
func (b ReportBundle) Empty() bool {
	return b.PatientPDF == "" && b.ClinicianPDF == "" && b.LegacyPDF == ""
}

// Feedback is the flat record submitted once at the end of a session.
// Fire-and-forget; it relates to the session only through the token.
type Feedback struct {
	SessionToken  string `json:"session_token"`
	ClientID      string `json:"client_id"`
	OverallRating int    `json:"overall_rating"`
	EaseRating    int    `json:"ease_rating"`
	Comments      string `json:"comments"`
	Email         string `json:"email,omitempty"`
}
