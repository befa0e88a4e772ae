// Package app wires the shared dependencies: configuration, logger,
// store and the job state directory, plus the handler set built on them.
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sandrun/internal/common"
	"github.com/ternarybob/sandrun/internal/handlers"
	"github.com/ternarybob/sandrun/internal/jobdir"
	"github.com/ternarybob/sandrun/internal/store"
)

// App holds the assembled service dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger
	Store  store.Store
	JobDir *jobdir.Dir

	API       *handlers.APIHandler
	Jobs      *handlers.JobHandler
	Logs      *handlers.LogsHandler
	Artifacts *handlers.ArtifactHandler
}

// New opens the store, ensures the schema exists and builds the handlers
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	st, err := store.Open(ctx, logger, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := st.InitSchema(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	dir := jobdir.New(cfg.Runner.JobsDir)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     st,
		JobDir:    dir,
		API:       handlers.NewAPIHandler(st, logger),
		Jobs:      handlers.NewJobHandler(st, dir, logger),
		Logs:      handlers.NewLogsHandler(st, dir, logger),
		Artifacts: handlers.NewArtifactHandler(st, dir, logger),
	}, nil
}

// Close releases the store connection
func (a *App) Close() error {
	return a.Store.Close()
}
