// Package bootstrap builds the application from its configuration: the flow
// store, the agent catalog, the settings file, the message registry and the
// services on top of them.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/stn/agent-stream-app/internal/adapters/catalog"
	"github.com/stn/agent-stream-app/internal/adapters/importer"
	"github.com/stn/agent-stream-app/internal/adapters/repository/file"
	"github.com/stn/agent-stream-app/internal/adapters/repository/memory"
	"github.com/stn/agent-stream-app/internal/adapters/repository/postgres"
	"github.com/stn/agent-stream-app/internal/adapters/repository/sqlite"
	"github.com/stn/agent-stream-app/internal/adapters/settings"
	"github.com/stn/agent-stream-app/internal/app/services"
	"github.com/stn/agent-stream-app/internal/app/usecases"
	"github.com/stn/agent-stream-app/internal/config"
	"github.com/stn/agent-stream-app/internal/core/events"
	"github.com/stn/agent-stream-app/internal/infrastructure/logging"
	"github.com/stn/agent-stream-app/pkg/serialization"
)

// App holds the wired services. Close releases the flow store.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Catalog  *catalog.Dir
	Store    usecases.FlowRepository
	Settings *settings.Store
	Registry *events.Registry
	Flows    *services.FlowService
	Configs  *services.ConfigService

	closers []func()
}

// New wires the application. The main flow is created when missing.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	for _, dir := range []string{cfg.DataDir, cfg.CatalogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	app := &App{Config: cfg, Logger: logger}
	store, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}
	app.Store = store

	st, err := settings.Open(cfg.SettingsPath(), logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Settings = st

	app.Catalog = catalog.NewDir(cfg.CatalogDir)
	app.Registry = events.NewRegistry(events.Config{BufferSize: cfg.Events.BufferSize})
	app.closers = append(app.closers, app.Registry.Close)

	app.Flows = services.NewFlowService(app.Catalog, store, importer.New(), logger)
	app.Configs = services.NewConfigService(app.Catalog, st, st, logger)

	if err := app.Flows.EnsureMain(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create main flow: %w", err)
	}
	return app, nil
}

func (a *App) openStore(ctx context.Context) (usecases.FlowRepository, error) {
	cfg := a.Config
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewFlowStore(), nil
	case config.StoreFile:
		store, err := file.NewFlowStore(cfg.FlowsDir)
		if err != nil {
			return nil, err
		}
		a.Logger.Info("flow store", zap.String("dir", store.Root()))
		return store, nil
	}

	ser, err := NewSerializer(cfg.Serialization)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("flow blob encoding", zap.String("serializer", ser.Name()))

	switch cfg.Store {
	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		store, err := sqlite.Open(ctx, cfg.SQLitePath, ser)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.Logger.Warn("closing sqlite store", zap.Error(err))
			}
		})
		return store, nil
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		store := postgres.NewFlowStore(pool, ser)
		a.closers = append(a.closers, store.Close)
		if err := store.CreateTables(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidStore, cfg.Store)
	}
}

// NewSerializer builds the flow blob serializer from its configuration.
func NewSerializer(cfg config.SerializationConfig) (*serialization.Serializer, error) {
	codec, err := serialization.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	compression, err := serialization.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return serialization.NewSerializer(serialization.Config{
		Codec:       codec,
		Compression: compression,
		EncryptKey:  cfg.EncryptionKey,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
