package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/config"
	"github.com/Veraticus/tariff/internal/engine"
	"github.com/Veraticus/tariff/internal/llm"
	"github.com/Veraticus/tariff/internal/storage"
)

// loadConfig decodes the configuration. Backend credentials are only
// checked when withLLM is set.
func loadConfig(withLLM bool) (*config.Config, error) {
	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return nil, err
	}

	if withLLM {
		err = cfg.Validate()
	} else {
		err = cfg.ValidateStorage()
	}
	if err != nil {
		return nil, common.NewUserError("Configuration is incomplete", err)
	}
	return cfg, nil
}

// openStorage opens the SQLite database and brings its schema up to date.
func openStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// openRegistry returns the commodity code registry selected by
// database.driver. The SQLite registry shares store.
func openRegistry(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage) (storage.Registry, func(), error) {
	if cfg.Database.Driver != config.DriverPostgres {
		return store, func() {}, nil
	}

	pg, err := storage.NewPostgresRegistry(ctx, storage.PostgresConfig{
		DSN:      cfg.Database.DSN,
		MaxConns: int32(cfg.Database.MaxConns), // #nosec G115
	})
	if err != nil {
		return nil, nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

// app holds everything a classifying command needs.
type app struct {
	config   *config.Config
	store    *storage.SQLiteStorage
	registry storage.Registry
	gateway  *llm.Gateway
	pipeline *engine.Pipeline
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires storage, backends and the pipeline. With dryRun the backends
// are replaced by offline mocks and no credentials are required.
func newApp(ctx context.Context, dryRun bool) (*app, error) {
	cfg, err := loadConfig(!dryRun)
	if err != nil {
		return nil, err
	}

	a := &app{config: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	a.store, err = openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = a.store.Close() })

	registry, closeRegistry, err := openRegistry(ctx, cfg, a.store)
	if err != nil {
		return nil, err
	}
	a.registry = registry
	a.closers = append(a.closers, closeRegistry)

	var clients *backendSet
	if dryRun {
		clients = dryRunBackends()
	} else {
		clients, err = buildBackends(&cfg.LLM)
		if err != nil {
			return nil, err
		}
	}

	a.gateway = llm.NewGateway(cfg.LLM.Gateway(), slog.Default())
	a.closers = append(a.closers, a.gateway.Close)
	a.pipeline = buildPipeline(a.gateway, clients, registry, a.store, slog.Default())

	if count, err := registry.CountCommodityCodes(ctx); err == nil && count == 0 {
		slog.Warn("commodity code registry is empty; run `tariff codes import` first")
	}

	ok = true
	return a, nil
}

func buildPipeline(
	gateway *llm.Gateway,
	clients *backendSet,
	matcher engine.CodeMatcher,
	store engine.ClassificationStore,
	logger *slog.Logger,
) *engine.Pipeline {
	consensus := engine.NewConsensusRequester(gateway, clients.roster, logger)
	analyzer := engine.NewAnalyzer(gateway, clients.primary, consensus, logger)
	ranker := engine.NewRanker(gateway, clients.ranker, logger)
	return engine.NewPipeline(analyzer, matcher, ranker, logger).WithStore(store)
}
