package ui

import (
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/openclinic/intake-client/intake"
	"go.uber.org/zap"
)

// saveReports decodes the captured report documents and writes them next to
// the session state. Decode or write failures are logged and skipped; the
// completion view still renders.
func (a *App) saveReports(completion *intake.Completion) []string {
	documents := []struct {
		payload  string
		filename string
	}{
		{completion.Reports.PatientPDF, "patient_report.pdf"},
		{completion.Reports.ClinicianPDF, "clinician_report.pdf"},
	}

	var saved []string
	for _, doc := range documents {
		if doc.payload == "" {
			continue
		}

		raw, err := base64.StdEncoding.DecodeString(doc.payload)
		if err != nil {
			logger.Error("Skipping undecodable report document",
				zap.String("file", doc.filename), zap.Error(err))
			continue
		}

		path := filepath.Join(a.reportsDir, doc.filename)
		if err := os.MkdirAll(a.reportsDir, 0o755); err != nil {
			logger.Error("Failed to create reports directory", zap.Error(err))
			continue
		}
		if err := os.WriteFile(path, raw, 0o600); err != nil {
			logger.Error("Failed to write report document",
				zap.String("file", path), zap.Error(err))
			continue
		}
		saved = append(saved, path)
	}
	return saved
}
