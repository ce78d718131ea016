package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"chunkchain/internal/chunkstore"
	"chunkchain/internal/config"
	"chunkchain/internal/corpus"
	"chunkchain/internal/database"
	"chunkchain/internal/datadir"
	"chunkchain/internal/generator"
	"chunkchain/internal/logger"
	"chunkchain/internal/ngram"
	"chunkchain/internal/registry"
	"chunkchain/internal/samples"
	"chunkchain/internal/settings"
	"chunkchain/internal/strategy"
)

// app is the wiring one command invocation works with.
type app struct {
	*environment
	db       *sql.DB
	samples  *samples.Store
	settings *settings.Store
	registry *registry.Registry
	strategy strategy.Name
	styles   styles
}

// environment is what a command knows before the database is opened.
type environment struct {
	cfg        *config.Config
	configPath string
	dataDir    *datadir.DataDir
	dbPath     string
	log        logger.Logger
}

// resolve finds the data directory, loads .env files and config, and builds
// the logger. Nothing is opened.
func (o *rootOptions) resolve(cmd *cobra.Command) (*environment, error) {
	dd, err := datadir.New(o.dataDir, "")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := datadir.LoadEnv(dd.Root()); err != nil {
		return nil, fmt.Errorf("failed to load .env files: %w", err)
	}

	cfgPath := o.configPath
	if cfgPath == "" {
		cfgPath = dd.ConfigFilePath(config.DefaultFileName)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve again: .env may have set the env var, and the config's
	// data_dir applies when neither flag nor env chose one.
	if dd, err = datadir.New(o.dataDir, cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := dd.EnsureDirs(); err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(level),
		Output:     cmd.ErrOrStderr(),
		JSON:       cfg.Log.JSON || o.logJSON,
		TimeFormat: "15:04:05",
	})

	log.Debug("resolved data directory", "path", dd.Root(), "source", dd.Source(), "config", cfgPath)

	return &environment{
		cfg:        cfg,
		configPath: cfgPath,
		dataDir:    dd,
		dbPath:     cfg.DatabasePath(dd.DatabaseDir()),
		log:        log,
	}, nil
}

// open resolves the environment and opens the database.
func (o *rootOptions) open(cmd *cobra.Command) (*app, error) {
	env, err := o.resolve(cmd)
	if err != nil {
		return nil, err
	}

	name := env.cfg.Generation.Strategy
	if o.strategy != "" {
		name = o.strategy
	}
	strat, err := strategy.Parse(name)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(env.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", env.dbPath, err)
	}
	env.log.Debug("opened database", "path", env.dbPath)

	return &app{
		environment: env,
		db:          db,
		samples:     samples.NewStore(db),
		settings:    settings.NewStore(db),
		registry:    registry.New(registry.NewSQLiteStore(db)),
		strategy:    strat,
		styles:      newStyles(cmd.OutOrStdout()),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// service builds the corpus service for the selected strategy. seed 0 uses
// the configured seed, which in turn may be 0 for a runtime seed.
func (a *app) service(seed uint64) (*corpus.Service, error) {
	strat, err := strategy.New(a.strategy, a.registry)
	if err != nil {
		return nil, err
	}

	chunks, err := a.chunkStore(strat.Table())
	if err != nil {
		return nil, err
	}

	saveStrategy, err := ngram.ParseSaveStrategy(a.cfg.Generation.SaveStrategy)
	if err != nil {
		return nil, err
	}

	if seed == 0 {
		seed = a.cfg.Generation.Seed
	}

	opts := corpus.Options{
		Sizes:               a.cfg.Generation.ChunkSizes,
		DefaultChunkSize:    a.cfg.Generation.DefaultChunkSize,
		DefaultOutputLength: a.cfg.Generation.DefaultOutputLength,
		SaveStrategy:        saveStrategy,
	}
	return corpus.NewService(a.samples, strat, chunks, generator.NewRand(seed), opts,
		corpus.WithOverrides(a.settings),
		corpus.WithLogger(a.log),
	)
}

// chunkStore returns the store for table, behind the lookup cache unless
// cache.prefix_entries is 0.
func (a *app) chunkStore(table chunkstore.Table) (chunkstore.Store, error) {
	store, err := chunkstore.NewSQLite(a.db, table)
	if err != nil {
		return nil, err
	}
	if a.cfg.Cache.PrefixEntries == 0 {
		return store, nil
	}
	return chunkstore.NewCached(store, a.cfg.Cache.PrefixEntries)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
