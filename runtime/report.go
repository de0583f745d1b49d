package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pithecene-io/lifi/metrics"
)

// Exit codes for a receive run.
const (
	ExitCodeComplete   = 0 // a file was saved, or the session is complete
	ExitCodeIncomplete = 1 // the stream ended before a file was complete
	ExitCodeSaveFailed = 2 // the last save attempt failed
)

// Outcome summarizes how a receive run ended.
type Outcome string

// Run outcomes.
const (
	OutcomeSaved      Outcome = "saved"
	OutcomeComplete   Outcome = "complete"
	OutcomeIncomplete Outcome = "incomplete"
	OutcomeIdle       Outcome = "idle"
	OutcomeSaveFailed Outcome = "save_failed"
)

// ExitCode maps an outcome to the process exit code.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeSaved, OutcomeComplete:
		return ExitCodeComplete
	case OutcomeSaveFailed:
		return ExitCodeSaveFailed
	default:
		return ExitCodeIncomplete
	}
}

// Report is the structured summary of a receive run.
type Report struct {
	ReceiverID string            `json:"receiver_id" yaml:"receiver_id"`
	Outcome    Outcome           `json:"outcome" yaml:"outcome"`
	Message    string            `json:"message,omitempty" yaml:"message,omitempty"`
	ExitCode   int               `json:"exit_code" yaml:"exit_code"`
	DurationMs int64             `json:"duration_ms" yaml:"duration_ms"`
	Status     Status            `json:"status" yaml:"status"`
	Missing    []int             `json:"missing,omitempty" yaml:"missing,omitempty"`
	Saved      []SavedFile       `json:"saved,omitempty" yaml:"saved,omitempty"`
	Metrics    *metrics.Snapshot `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// BuildReport summarizes the station's state at the end of a run.
func BuildReport(s *Station, duration time.Duration) *Report {
	report := &Report{
		ReceiverID: s.ReceiverID(),
		DurationMs: duration.Milliseconds(),
		Status:     s.Status(),
		Saved:      s.Saved(),
	}
	if session := s.ctrl.Session(); session != nil && !session.IsComplete() {
		report.Missing = session.Missing()
	}
	if s.config.Metrics != nil {
		snap := s.config.Metrics.Snapshot()
		report.Metrics = &snap
	}

	switch {
	case s.LastSaveError() != nil:
		report.Outcome = OutcomeSaveFailed
		report.Message = s.LastSaveError().Error()
	case len(report.Saved) > 0:
		report.Outcome = OutcomeSaved
	case report.Status.Ready:
		report.Outcome = OutcomeComplete
	case report.Status.Live():
		report.Outcome = OutcomeIncomplete
		report.Message = fmt.Sprintf("%d of %d chunks missing", len(report.Missing), report.Status.Total)
	default:
		report.Outcome = OutcomeIdle
		report.Message = "no packets received"
	}
	report.ExitCode = report.Outcome.ExitCode()
	return report
}

// WriteReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteReport(report *Report, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}
	if path == "-" {
		if err := writeReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

func writeReportTo(report *Report, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
