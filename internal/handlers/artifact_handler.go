package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sandrun/internal/common"
	"github.com/ternarybob/sandrun/internal/jobdir"
	"github.com/ternarybob/sandrun/internal/store"
)

// ArtifactHandler serves the artifact listing and download endpoints
type ArtifactHandler struct {
	store  store.Store
	dir    *jobdir.Dir
	logger arbor.ILogger
}

// NewArtifactHandler creates a new artifact handler
func NewArtifactHandler(st store.Store, dir *jobdir.Dir, logger arbor.ILogger) *ArtifactHandler {
	return &ArtifactHandler{
		store:  st,
		dir:    dir,
		logger: logger,
	}
}

// ListArtifactsHandler handles GET /api/jobs/{job_id}/artifacts,
// returning the manifest recorded in the job document.
func (h *ArtifactHandler) ListArtifactsHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	requestID := common.NewRequestID()

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

	WriteJSON(w, http.StatusOK, ArtifactListResponse{
		ArtifactsManifest: artifactViews(doc.ArtifactsManifest),
		Links:             ArtifactLinks{DownloadBase: "/api/jobs/" + jobID + "/artifacts"},
		RequestID:         requestID,
		ServerTimeUTC:     common.NowUTC(),
	})
}

// DownloadArtifactHandler handles GET /api/jobs/{job_id}/artifacts/{name}.
// The name may contain slashes; anything that resolves outside the job's
// artifacts directory is treated as not found.
func (h *ArtifactHandler) DownloadArtifactHandler(w http.ResponseWriter, r *http.Request, jobID, name string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	requestID := common.NewRequestID()

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

	target, err := h.dir.ResolveArtifact(jobID, name)
	if err != nil {
		WriteAPIError(w, requestID, CodeNotFound, "artifact not found", nil)
		return
	}

	contentType := h.manifestContentType(jobID, name)
	if contentType == "" {
		contentType = jobdir.ContentTypeByName(name)
	}

	file, err := os.Open(target)
	if err != nil {
		WriteAPIError(w, requestID, CodeNotFound, "artifact not found", nil)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		WriteAPIError(w, requestID, CodeInternal, "failed to read artifact", nil)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(target)+`"`)
	http.ServeContent(w, r, filepath.Base(target), info.ModTime(), file)
}

// manifestContentType returns the content type the manifest recorded for
// the artifact, or "" when the manifest has no entry.
func (h *ArtifactHandler) manifestContentType(jobID, name string) string {
	doc, err := h.dir.ReadDocument(jobID)
	if err != nil || doc == nil {
		return ""
	}
	for _, entry := range doc.ArtifactsManifest {
		if entry.Name == name {
			return entry.ContentType
		}
	}
	return ""
}
