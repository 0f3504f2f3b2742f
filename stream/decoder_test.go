package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader yields its chunks one Read at a time, simulating arbitrary
// transport chunk boundaries.
type chunkedReader struct {
	chunks []string
	index  int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.index >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.index])
	r.index++
	return n, nil
}

func collect(t *testing.T, r io.Reader) []Event {
	t.Helper()

	var events []Event
	err := Decode(r, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	return events
}

func TestDecodeSingleRecord(t *testing.T) {
	body := "data: {\"content\": \"Hello\"}\n"

	events := collect(t, strings.NewReader(body))

	require.Len(t, events, 1)
	assert.Equal(t, "Hello", events[0].Content)
}

func TestDecodeRecordSplitAcrossChunks(t *testing.T) {
	// One record arriving in three fragments, none aligned to the line.
	r := &chunkedReader{chunks: []string{
		"data: {\"cont",
		"ent\": \"Hi the",
		"re\"}\ndata: {\"done\": true}\n",
	}}

	events := collect(t, r)

	require.Len(t, events, 2)
	assert.Equal(t, "Hi there", events[0].Content)
	assert.True(t, events[1].Done)
}

func TestDecodeMultipleRecordsInOneChunk(t *testing.T) {
	body := "data: {\"content\": \"a\"}\ndata: {\"content\": \"b\"}\ndata: {\"content\": \"c\"}\n"

	events := collect(t, strings.NewReader(body))

	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].Content)
	assert.Equal(t, "b", events[1].Content)
	assert.Equal(t, "c", events[2].Content)
}

func TestDecodeDropsMalformedRecords(t *testing.T) {
	body := "data: {\"content\": \"ok\"}\ndata: {not json at all\ndata: {\"content\": \"still ok\"}\n"

	events := collect(t, strings.NewReader(body))

	require.Len(t, events, 2)
	assert.Equal(t, "ok", events[0].Content)
	assert.Equal(t, "still ok", events[1].Content)
}

func TestDecodeSkipsBlankAndUnprefixedLines(t *testing.T) {
	body := "\n: keep-alive\nevent: ping\ndata: {\"content\": \"x\"}\ndata:\n\n"

	events := collect(t, strings.NewReader(body))

	require.Len(t, events, 1)
	assert.Equal(t, "x", events[0].Content)
}

func TestDecodeCoOccurringFields(t *testing.T) {
	body := `data: {"content": "Pick one", "options": [{"label": "Yes", "value": "yes"}, {"label": "No", "value": "no"}], "done": true}` + "\n"

	events := collect(t, strings.NewReader(body))

	require.Len(t, events, 1)
	assert.Equal(t, "Pick one", events[0].Content)
	require.Len(t, events[0].Options, 2)
	assert.Equal(t, "Yes", events[0].Options[0].Label)
	assert.Equal(t, "no", events[0].Options[1].Value)
	assert.True(t, events[0].Done)
}

func TestDecodeDoneDoesNotEndLoop(t *testing.T) {
	// The done flag is a payload-level signal; the transport close is what
	// terminates decoding. Records after done must still be emitted.
	body := "data: {\"done\": true}\ndata: {\"content\": \"tail\"}\n"

	events := collect(t, strings.NewReader(body))

	require.Len(t, events, 2)
	assert.Equal(t, "tail", events[1].Content)
}

func TestDecodeHandlerErrorAborts(t *testing.T) {
	body := "data: {\"content\": \"a\"}\ndata: {\"content\": \"b\"}\n"
	boom := errors.New("boom")

	count := 0
	err := Decode(strings.NewReader(body), func(ev Event) error {
		count++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count)
}

func TestDecodeOversizedRecordSurvives(t *testing.T) {
	// Inline report documents make a single record line run to megabytes.
	// The decoder must assemble it whole and keep consuming: the completion
	// record after it still has to arrive.
	document := strings.Repeat("QUJDRA==", 200*1024) // ~1.6MB of payload

	var body strings.Builder
	body.WriteString("data: {\"content\": \"Here is your report.\"}\n")
	body.WriteString("data: {\"patient_pdf\": \"" + document + "\"}\n")
	body.WriteString("data: {\"content\": \"This concludes your assessment.\", \"done\": true}\n")

	events := collect(t, strings.NewReader(body.String()))

	require.Len(t, events, 3)
	assert.Equal(t, document, events[1].PatientPDF)
	assert.Equal(t, "This concludes your assessment.", events[2].Content)
	assert.True(t, events[2].Done)
}

func TestDecodeFinalLineWithoutNewline(t *testing.T) {
	body := "data: {\"content\": \"a\"}\ndata: {\"done\": true}"

	events := collect(t, strings.NewReader(body))

	require.Len(t, events, 2)
	assert.True(t, events[1].Done)
}

func TestEventHasDocuments(t *testing.T) {
	assert.False(t, Event{Content: "x"}.HasDocuments())
	assert.True(t, Event{PatientPDF: "aGk="}.HasDocuments())
	assert.True(t, Event{ClinicianPDF: "aGk="}.HasDocuments())
	assert.True(t, Event{LegacyPDF: "aGk="}.HasDocuments())
}
