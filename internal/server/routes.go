package server

import (
	"net/http"
	"strings"
)

// registerRoutes builds the API routing table. Job sub-resources are
// dispatched manually so artifact names may contain slashes.
func (s *Server) registerRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.app.API.HealthHandler)
	mux.HandleFunc("/api/version", s.app.API.VersionHandler)
	mux.HandleFunc("/api/jobs", s.handleJobsCollection)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)
	mux.HandleFunc("/api/", s.app.API.NotFoundHandler)

	return mux
}

// handleJobsCollection dispatches /api/jobs by method
func (s *Server) handleJobsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.app.Jobs.CreateJobHandler(w, r)
	case http.MethodGet:
		s.app.Jobs.ListJobsHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes dispatches /api/jobs/{job_id}[/logs|/artifacts[/{name}]]
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	jobID, rest, _ := strings.Cut(path, "/")
	if jobID == "" {
		s.app.API.NotFoundHandler(w, r)
		return
	}

	switch {
	case rest == "":
		s.app.Jobs.GetJobHandler(w, r, jobID)
	case rest == "logs":
		s.app.Logs.LogsHandler(w, r, jobID)
	case rest == "artifacts":
		s.app.Artifacts.ListArtifactsHandler(w, r, jobID)
	case strings.HasPrefix(rest, "artifacts/"):
		name := strings.TrimPrefix(rest, "artifacts/")
		s.app.Artifacts.DownloadArtifactHandler(w, r, jobID, name)
	default:
		s.app.API.NotFoundHandler(w, r)
	}
}
