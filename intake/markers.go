package intake

import "strings"

// EarlyFinishToken is the literal control token the backend recognizes as a
// request to wrap up the assessment ahead of schedule. It is submitted as
// the prompt but never rendered verbatim in the transcript.
const EarlyFinishToken = "FINISH_ASSESSMENT_NOW"

// EarlyFinishLabel is shown in the transcript in place of the raw token.
const EarlyFinishLabel = "Requested to wrap up the assessment early."

// Marker matching couples this client to the backend's literal phrasing.
// The lists live here, behind the two predicates, so they stay isolated and
// swappable if the contract ever grows an explicit status field.

var completionMarkers = []string{
	"this concludes your assessment",
	"your assessment is now complete",
	"thank you for completing your assessment",
	"we have reached the end of your assessment",
}

var reportFailureMarkers = []string{
	"report generation failed",
	"unable to generate your report",
	"error generating your report",
	"problem generating your report",
}

// hasCompletionMarker reports whether the finalized assistant text signals
// that the assessment narrative has concluded.
func hasCompletionMarker(text string) bool {
	return containsAny(text, completionMarkers)
}

// hasReportFailureMarker reports whether the finalized assistant text
// signals that the report step itself failed.
func hasReportFailureMarker(text string) bool {
	return containsAny(text, reportFailureMarkers)
}

func containsAny(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, marker := range markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
