package worker

import (
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sandrun/internal/common"
	"github.com/ternarybob/sandrun/internal/jobdir"
	"github.com/ternarybob/sandrun/internal/models"
)

// EventLog writes the shared NDJSON event streams: runner.ndjson for
// worker lifecycle events and worker.ndjson for captured child output.
type EventLog struct {
	runnerPath string
	workerPath string
	logger     arbor.ILogger
}

// NewEventLog creates an event log rooted at the configured log directory
func NewEventLog(logDir string, logger arbor.ILogger) *EventLog {
	return &EventLog{
		runnerPath: filepath.Join(logDir, "runner.ndjson"),
		workerPath: filepath.Join(logDir, "worker.ndjson"),
		logger:     logger,
	}
}

// Event appends one lifecycle event to runner.ndjson. Write failures are
// logged and swallowed; event logging never interrupts the loop.
func (e *EventLog) Event(event string, fields map[string]any) {
	payload := map[string]any{"ts": common.NowUTC(), "event": event}
	for k, v := range fields {
		payload[k] = v
	}
	if err := jobdir.AppendNDJSON(e.runnerPath, payload); err != nil {
		e.logger.Warn().Err(err).Str("event", event).Msg("Failed to write runner event")
	}
}

// WriteOutput fans captured process output out line by line to the given
// attempt log file and the shared worker.ndjson, tagged by stream.
func (e *EventLog) WriteOutput(attemptLogPath, jobID, attemptID, stream, content string) {
	for _, line := range splitLines(content) {
		record := models.LogRecord{
			TS:        common.NowUTC(),
			JobID:     jobID,
			AttemptID: &attemptID,
			Stream:    stream,
			Line:      line,
		}
		if err := jobdir.AppendNDJSON(e.workerPath, record); err != nil {
			e.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to write worker log")
		}
		if err := jobdir.AppendNDJSON(attemptLogPath, record); err != nil {
			e.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to write attempt log")
		}
	}
}

// splitLines splits captured output into lines, dropping only the
// trailing empty segment a final newline produces. Interior blank lines
// are preserved in write order.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
