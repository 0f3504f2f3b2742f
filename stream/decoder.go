package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"go.uber.org/zap"
)

// recordPrefix marks a payload-bearing line in the chat stream.
// Lines without it (blank keep-alives, comments) are skipped.
const recordPrefix = "data:"

// Option is one selectable choice offered alongside an assistant message.
// Picking it submits Value verbatim as the next prompt.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Event is one decoded record from the chat stream. All fields are optional
// and may co-occur within a single record.
type Event struct {
	Content      string   `json:"content,omitempty"`
	Options      []Option `json:"options,omitempty"`
	PatientPDF   string   `json:"patient_pdf,omitempty"`
	ClinicianPDF string   `json:"clinician_pdf,omitempty"`
	LegacyPDF    string   `json:"pdf_report,omitempty"`
	Done         bool     `json:"done,omitempty"`
}

// HasDocuments reports whether the event carries any report payload.
func (e Event) HasDocuments() bool {
	return e.PatientPDF != "" || e.ClinicianPDF != "" || e.LegacyPDF != ""
}

// Handler consumes decoded events in arrival order. Returning an error
// aborts the decode loop.
type Handler func(Event) error

// Decode reads the chunked chat response until the transport closes,
// emitting one Event per complete well-formed record line. Records may be
// split across arbitrary chunk boundaries; partial lines are buffered until
// their terminating newline arrives, with no cap on line length — inline
// report documents make single records megabytes long. Malformed payloads
// are logged and dropped, never fatal. A record with Done set does not end
// the loop; only the transport close does.
func Decode(r io.Reader, emit Handler) error {
	reader := bufio.NewReaderSize(r, 64*1024)

	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if emitErr := decodeLine(line, emit); emitErr != nil {
				return emitErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func decodeLine(line string, emit Handler) error {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, recordPrefix) {
		return nil
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, recordPrefix))
	if payload == "" {
		return nil
	}

	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		logger.Error("Dropping malformed stream record", zap.Error(err))
		return nil
	}

	return emit(ev)
}
