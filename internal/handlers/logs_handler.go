package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sandrun/internal/common"
	"github.com/ternarybob/sandrun/internal/jobdir"
	"github.com/ternarybob/sandrun/internal/models"
	"github.com/ternarybob/sandrun/internal/store"
)

const (
	defaultLogTail = 200
	maxLogTail     = 10000
)

// LogsHandler serves the per-attempt log endpoint, as a JSON snapshot or
// a server-sent-events stream of the same lines.
type LogsHandler struct {
	store  store.Store
	dir    *jobdir.Dir
	logger arbor.ILogger
}

// NewLogsHandler creates a new logs handler
func NewLogsHandler(st store.Store, dir *jobdir.Dir, logger arbor.ILogger) *LogsHandler {
	return &LogsHandler{
		store:  st,
		dir:    dir,
		logger: logger,
	}
}

// LogsHandler handles GET /api/jobs/{job_id}/logs. The attempt defaults
// to the most recent one; logs exist only once an attempt has started,
// so a job with no attempts (or a missing log file) is a conflict, not
// a not-found.
func (h *LogsHandler) LogsHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	requestID := common.NewRequestID()
	query := r.URL.Query()

	tail := defaultLogTail
	if raw := query.Get("tail"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxLogTail {
			WriteAPIError(w, requestID, CodeValidationError,
				fmt.Sprintf("tail must be between 1 and %d", maxLogTail),
				map[string]any{"field": "tail"})
			return
		}
		tail = parsed
	}

	streamMode := false
	if raw := query.Get("stream"); raw != "" {
		switch raw {
		case "0":
		case "1":
			streamMode = true
		default:
			WriteAPIError(w, requestID, CodeValidationError, "stream must be 0 or 1",
				map[string]any{"field": "stream"})
			return
		}
	}

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to read job")
		WriteAPIError(w, requestID, CodeInternal, "failed to read job", nil)
		return
	}
	if job == nil {
		WriteAPIError(w, requestID, CodeNotFound, "job not found", nil)
		return
	}

	doc, err := h.dir.ReadDocument(jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to read job document")
		WriteAPIError(w, requestID, CodeInternal, "failed to read job", nil)
		return
	}
	if doc == nil {
		WriteAPIError(w, requestID, CodeNotFound, "job not found", nil)
		return
	}
	if len(doc.Attempts) == 0 {
		WriteAPIError(w, requestID, CodeLogsUnavailable, "job has no attempts yet", nil)
		return
	}

	attemptID := query.Get("attempt_id")
	if attemptID == "" {
		attemptID = doc.LastAttempt().AttemptID
	}

	logPath := h.dir.AttemptLogPath(jobID, attemptID)
	if _, err := os.Stat(logPath); err != nil {
		WriteAPIError(w, requestID, CodeLogsUnavailable, "logs not available for this attempt", nil)
		return
	}

	records, err := jobdir.ReadLogRecords(logPath)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to read attempt log")
		WriteAPIError(w, requestID, CodeInternal, "failed to read logs", nil)
		return
	}

	if len(records) > tail {
		records = records[len(records)-tail:]
	}
	lines := make([]LogLine, 0, len(records))
	for _, record := range records {
		level := "info"
		if record.Stream == models.StreamStderr {
			level = "error"
		}
		lines = append(lines, LogLine{TS: record.TS, Level: level, Message: record.Line})
	}

	if streamMode {
		h.streamLines(w, lines)
		return
	}

	WriteJSON(w, http.StatusOK, LogsResponse{
		Lines:         lines,
		Cursor:        "logcur_" + strconv.Itoa(len(lines)),
		RequestID:     requestID,
		ServerTimeUTC: common.NowUTC(),
	})
}

// streamLines replays the snapshot as server-sent events, one line per
// event, then closes the stream.
func (h *LogsHandler) streamLines(w http.ResponseWriter, lines []LogLine) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	for _, line := range lines {
		data, err := json.Marshal(line)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}
