package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sandrun/internal/common"
	"github.com/ternarybob/sandrun/internal/store"
)

// APIHandler serves the service-level endpoints: health, version and the
// JSON 404 for unknown API paths.
type APIHandler struct {
	store  store.Store
	logger arbor.ILogger
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(st store.Store, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		store:  st,
		logger: logger,
	}
}

// HealthResponse reports process liveness and store reachability
type HealthResponse struct {
	Status        string `json:"status"`
	DB            string `json:"db"`
	ServerTimeUTC string `json:"server_time_utc"`
}

// HealthHandler handles GET /api/health. The endpoint returns 200 even
// when the store is unreachable; "degraded" is the signal.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	response := HealthResponse{
		Status:        "ok",
		DB:            "ok",
		ServerTimeUTC: common.NowUTC(),
	}
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Health check database ping failed")
		response.Status = "degraded"
		response.DB = "fail"
	}
	WriteJSON(w, http.StatusOK, response)
}

// VersionHandler handles GET /api/version
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// NotFoundHandler returns the JSON error envelope for unknown API paths
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteAPIError(w, common.NewRequestID(), CodeNotFound, "resource not found", nil)
}
