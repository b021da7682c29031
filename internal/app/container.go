package app

import (
	"context"
	"fmt"
	"os"

	"github.com/kernhell/kernhell-go/internal/application/doctor"
	"github.com/kernhell/kernhell-go/internal/application/failover"
	"github.com/kernhell/kernhell-go/internal/application/heal"
	"github.com/kernhell/kernhell-go/internal/application/keys"
	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/infrastructure/ai"
	"github.com/kernhell/kernhell-go/internal/infrastructure/browser"
	"github.com/kernhell/kernhell-go/internal/infrastructure/config"
	"github.com/kernhell/kernhell-go/internal/infrastructure/credentials"
	"github.com/kernhell/kernhell-go/internal/infrastructure/history"
	"github.com/kernhell/kernhell-go/internal/infrastructure/memory"
	"github.com/kernhell/kernhell-go/internal/infrastructure/patch"
	"github.com/kernhell/kernhell-go/internal/infrastructure/quota"
	"github.com/kernhell/kernhell-go/internal/infrastructure/runner"
	"github.com/kernhell/kernhell-go/internal/infrastructure/security"
	"github.com/kernhell/kernhell-go/internal/infrastructure/selectors"
	"github.com/kernhell/kernhell-go/internal/pkg/logger"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// Options controls how the container is built.
type Options struct {
	ConfigPath string
	Verbose    bool
}

// Container wires up application services with infrastructure adapters.
// It is built once per process and passed down explicitly; nothing here is global.
type Container struct {
	Config         domain.Config
	ConfigProvider ports.ConfigProvider
	ConfigLoader   *config.FileLoader
	Logger         *logger.Logger

	Pool      *credentials.Pool
	Quota     *quota.Tracker
	Memory    *memory.Store
	History   *history.SQLiteStore
	Registry  *ai.Registry
	Guardrail *security.Guardrail

	Orchestrator  *failover.Orchestrator
	HealService   *heal.Service
	KeysService   *keys.Service
	DoctorService *doctor.Service
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Level:      cfg.Logging.Level,
		Verbose:    opts.Verbose,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	if err := os.MkdirAll(cfg.Paths.StateDir, domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	pool, err := credentials.Open(cfg.StatePath(domain.KeysFileName))
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	tracker := quota.Open(cfg.StatePath(domain.QuotaFileName), cfg, quota.WithLogger(log))
	mem := memory.Open(cfg.StatePath(domain.MemoryFileName),
		memory.WithLogger(log),
		memory.WithMaxRecords(cfg.Memory.MaxRecords),
	)
	runs := history.NewSQLiteStore(
		cfg.StatePath(domain.RunsDBFileName),
		cfg.StatePath(domain.RunsLogFileName),
		log,
	)
	registry := ai.NewRegistry(cfg)

	orchestrator := &failover.Orchestrator{
		Pool:            pool,
		Quota:           tracker,
		Registry:        registry,
		Memory:          mem,
		Selectors:       selectors.NewLookup(log),
		Logger:          log,
		MemoryEnabled:   cfg.Memory.Enabled,
		RecallThreshold: cfg.Memory.Threshold,
	}

	healService := &heal.Service{
		Config:      cfg,
		Runner:      runner.New(cfg.Healing.Interpreter, cfg.TestTimeout(), log),
		Fixer:       orchestrator,
		Patcher:     patch.NewEngine(log),
		Pool:        pool,
		Screenshots: browser.NewCapturer(cfg.Screenshot, cfg.ScreenshotTimeout(), log),
		Recorder:    runs,
		Logger:      log,
	}

	var guard *security.Guardrail
	if cfg.Guardrail.Enabled {
		guard, err = security.NewGuardrail(cfg.Guardrail.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("load guardrail: %w", err)
		}
		healService.Guard = guard
	}

	keysService := &keys.Service{
		Pool:      pool,
		Verifiers: registry,
		Logger:    log,
	}

	doctorService := &doctor.Service{
		ConfigProvider: cfgLoader,
		Pool:           pool,
		Quota:          tracker,
		History:        runs,
		BrowserPath:    browser.LookPath,
	}
	if guard != nil {
		doctorService.Guardrail = guard
	}

	return &Container{
		Config:         cfg,
		ConfigProvider: cfgLoader,
		ConfigLoader:   cfgLoader,
		Logger:         log,
		Pool:           pool,
		Quota:          tracker,
		Memory:         mem,
		History:        runs,
		Registry:       registry,
		Guardrail:      guard,
		Orchestrator:   orchestrator,
		HealService:    healService,
		KeysService:    keysService,
		DoctorService:  doctorService,
	}, nil
}

// Close releases the run log database and the log file.
func (c *Container) Close() error {
	var firstErr error
	if c.History != nil {
		firstErr = c.History.Close()
	}
	if c.Logger != nil {
		if err := c.Logger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
