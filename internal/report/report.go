package report

import (
	"time"

	"example.com/segyfix/internal/validate"
)

// FileReport aggregates one file's outcome for the Excel and PDF renderers.
type FileReport struct {
	File     string
	Status   string // PASS | WARNING | FAIL | FAILURE
	Message  string
	Findings []validate.Finding
	Changes  int64
	Duration time.Duration
}

// StatusOf derives a report status from a finding list.
func StatusOf(findings []validate.Finding) string {
	status := "PASS"
	for _, f := range findings {
		switch f.Severity {
		case validate.SeverityError:
			return "FAIL"
		case validate.SeverityWarning:
			status = "WARNING"
		}
	}
	return status
}
