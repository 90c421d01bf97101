package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/specialistvlad/graphmut/internal/config"
	"github.com/specialistvlad/graphmut/internal/coordinator"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/httpapi"
	"github.com/specialistvlad/graphmut/internal/inmemorygraph"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *config.Model
	mode   Mode

	store  *inmemorygraph.Store
	coord  *coordinator.Coordinator
	server *httpapi.Server
	clock  func() time.Time
}

// NewApp loads configuration through loader, applies the command-line
// overrides in appConfig and wires the graph components. Nothing is read
// from or written to the snapshot yet.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader) (*App, error) {
	bootstrap := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), bootstrap)

	model, err := loader.Load(ctx, appConfig.ConfigPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	applyOverrides(model, appConfig)
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(model.Log.Level, model.Log.Format, outW)
	logger.Debug("Configuration loaded.",
		"listen", model.Server.Listen,
		"snapshot_path", model.Snapshot.Path,
		"seed_nodes", len(model.Seed.Nodes),
		"seed_relationships", len(model.Seed.Relationships),
	)

	store := inmemorygraph.New()
	coord := coordinator.New(store, coordinator.Options{
		MaxHistory:         model.History.MaxCommands,
		TransactionHistory: model.History.MaxTransactions,
	})

	return &App{
		outW:   outW,
		logger: logger,
		config: model,
		mode:   appConfig.Mode,
		store:  store,
		coord:  coord,
		server: httpapi.New(coord, logger),
		clock:  time.Now,
	}, nil
}

func applyOverrides(model *config.Model, appConfig *Config) {
	if appConfig.Listen != "" {
		model.Server.Listen = appConfig.Listen
	}
	if appConfig.LogLevel != "" {
		model.Log.Level = appConfig.LogLevel
	}
	if appConfig.LogFormat != "" {
		model.Log.Format = appConfig.LogFormat
	}
	if appConfig.SnapshotPath != "" {
		model.Snapshot.Path = appConfig.SnapshotPath
	}
}

// Coordinator returns the application's coordinator. This is primarily for testing.
func (a *App) Coordinator() *coordinator.Coordinator {
	return a.coord
}

// Config returns the effective configuration model.
func (a *App) Config() *config.Model {
	return a.config
}
