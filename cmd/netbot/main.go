package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hamster-Prime/Network-Test-Bot/core/buildinfo"
	"github.com/Hamster-Prime/Network-Test-Bot/core/config"
	"github.com/Hamster-Prime/Network-Test-Bot/core/database"
	"github.com/Hamster-Prime/Network-Test-Bot/core/logger"
	"github.com/Hamster-Prime/Network-Test-Bot/core/registry"
	"github.com/Hamster-Prime/Network-Test-Bot/core/remote"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/flow"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/jobs"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/lifecycle"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/sender"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/session"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config.yml"

func main() {
	if err := run(); err != nil {
		log.Fatalf("netbot: %v", err)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}

	cfg, dbCfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	if err := logger.InitLogger(cfg); err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Shutdown() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "app", "starting",
		slog.String("version", buildinfo.Version),
		slog.String("commit", buildinfo.Commit),
		slog.String("backend", cfg.Registry.Backend),
	)

	servers, err := openRegistry(cfg, dbCfg)
	if err != nil {
		return err
	}

	executor := remote.NewExecutor(time.Duration(cfg.SSH.DialTimeoutSeconds) * time.Second)
	sessions := session.NewMemoryStore()

	var runner *jobs.Runner
	build := func(tr sender.Transport) *flow.Router {
		cleanup := lifecycle.NewManager(tr)
		runner = jobs.NewRunner(tr, cleanup, executor)
		return flow.NewRouter(sessions, servers, runner, cleanup, tr)
	}

	if err := telegram.Run(ctx, cfg, build); err != nil {
		return err
	}

	// Let in-flight diagnostics post their results before exiting.
	if runner != nil {
		runner.Wait()
	}
	logger.Info(ctx, "app", "stopped")
	return nil
}

// loadConfig reads the core sections through config.Load and the database
// block, consumed only by the Postgres registry backend, separately.
func loadConfig(path string) (*config.Config, database.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, database.Config{}, err
	}
	dbCfg, err := loadDatabaseConfig(path)
	if err != nil {
		return nil, database.Config{}, err
	}
	return cfg, dbCfg, nil
}

func loadDatabaseConfig(path string) (database.Config, error) {
	var wrap struct {
		Database database.Config `yaml:"database"`
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return database.Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &wrap); err != nil {
		return database.Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := envconfig.Process("", &wrap.Database); err != nil {
		return database.Config{}, fmt.Errorf("process env: %w", err)
	}
	return wrap.Database, nil
}

func openRegistry(cfg *config.Config, dbCfg database.Config) (registry.Store, error) {
	switch cfg.Registry.Backend {
	case config.RegistryBackendPostgres:
		if err := database.RunMigrations(dbCfg); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		db, err := database.Connect(dbCfg)
		if err != nil {
			return nil, err
		}
		return registry.OpenSQL(db)
	default:
		return registry.OpenFile(cfg.Registry.Path)
	}
}
