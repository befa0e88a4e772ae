package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sandrun/internal/common"
	"github.com/ternarybob/sandrun/internal/jobdir"
	"github.com/ternarybob/sandrun/internal/store"
	"github.com/ternarybob/sandrun/internal/worker"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Sandrun worker version %s\n", common.GetVersion())
		os.Exit(0)
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("sandrun.toml"); err == nil {
			configFiles = append(configFiles, "sandrun.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	openCtx, openCancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := store.Open(openCtx, logger, config.Database.URL)
	if err != nil {
		openCancel()
		logger.Fatal().Err(err).Msg("Failed to open store")
		os.Exit(1)
	}
	if err := st.InitSchema(openCtx); err != nil {
		openCancel()
		logger.Fatal().Err(err).Msg("Failed to initialize schema")
		os.Exit(1)
	}
	openCancel()
	defer st.Close()

	dir := jobdir.New(config.Runner.JobsDir)
	events := worker.NewEventLog(config.Runner.LogDir, logger)
	w := worker.New(st, dir, events, logger, &config.Runner)

	stats, err := worker.NewStatsReporter(st, logger, config.Runner.StatsCron)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to schedule stats reporter")
		os.Exit(1)
	}
	stats.Start()
	defer stats.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("Interrupt signal received")
		cancel()
	}()

	if err := w.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Worker failed")
		os.Exit(1)
	}

	logger.Info().Msg("Worker stopped")
}
