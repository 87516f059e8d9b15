package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/jortvara/caesync/internal/config"
	"github.com/jortvara/caesync/internal/core/ports"
	"github.com/jortvara/caesync/internal/core/usecase"
	"github.com/jortvara/caesync/internal/infrastructure/docmeta/pdfdate"
	"github.com/jortvara/caesync/internal/infrastructure/portal"
	"github.com/jortvara/caesync/internal/infrastructure/queue/nats"
	"github.com/jortvara/caesync/internal/infrastructure/repository/jsonfile"
	"github.com/jortvara/caesync/internal/infrastructure/repository/postgres"
	"github.com/jortvara/caesync/internal/infrastructure/resilience"
	"github.com/jortvara/caesync/internal/infrastructure/storage/localfs"
)

// catalogAndHints pairs the two stores every backend provides together.
type catalogAndHints struct {
	catalog ports.CatalogStore
	hints   ports.HintStore
	close   func()
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Catalog   ports.CatalogStore
	Hints     ports.HintStore
	Artifacts ports.ArtifactStore
	Queue     ports.RequirementSource

	Matcher  ports.RequirementMatcher
	Planner  *usecase.Planner
	Executor *portal.Executor
	Hinter   ports.HintRecorder
	Periods  *usecase.PeriodPlanner
	Intake   *usecase.Intake

	closeFn func()
}

// New wires the whole dependency graph. The uploader collaborator is injected
// because it lives outside this process (browser automation); everything else
// is constructed from config.
func New(ctx context.Context, cfg config.Config, uploader ports.PortalUploader, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	artifacts, err := localfs.New(cfg.ArtifactsDir)
	if err != nil {
		return nil, fmt.Errorf("init artifact storage: %w", err)
	}

	exec := resilience.NewExecutor(resilience.DefaultPolicy(), logger)
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: exec,
	})
	if err != nil {
		return nil, fmt.Errorf("init requirement queue: %w", err)
	}

	meta := pdfdate.New(artifacts.BasePath())
	periods := usecase.NewPeriodPlanner(stores.catalog, meta)
	matcher := usecase.NewMatcher(stores.catalog, stores.hints, expectedLocation(cfg))
	engine := usecase.NewDecisionEngine(artifacts)
	planner := usecase.NewPlanner(stores.catalog, matcher, engine, periods, logger)
	hinter := usecase.NewHintService(stores.catalog, stores.hints, logger)
	intake := usecase.NewIntake(stores.catalog, artifacts, periods, logger)

	limiter := rate.NewLimiter(rate.Limit(float64(cfg.UploadRatePerMinute)/60.0), cfg.UploadBurst)
	executor := portal.NewExecutor(stores.catalog, uploader, exec, limiter, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Catalog:   stores.catalog,
		Hints:     stores.hints,
		Artifacts: artifacts,
		Queue:     queue,

		Matcher:  matcher,
		Planner:  planner,
		Executor: executor,
		Hinter:   hinter,
		Periods:  periods,
		Intake:   intake,

		closeFn: func() {
			queue.Close()
			if stores.close != nil {
				stores.close()
			}
		},
	}, nil
}

// expectedLocation is the storage location the operator configured. The
// matcher compares it against the store's resolved location so a catalog
// pointed at the wrong directory is reported as a mismatch, not as empty.
func expectedLocation(cfg config.Config) string {
	if cfg.CatalogBackend == "postgres" {
		return cfg.PostgresDSN
	}
	abs, err := filepath.Abs(cfg.CatalogDir)
	if err != nil {
		return cfg.CatalogDir
	}
	return abs
}

func openStores(ctx context.Context, cfg config.Config) (catalogAndHints, error) {
	switch cfg.CatalogBackend {
	case "", "jsonfile":
		store, err := jsonfile.New(cfg.CatalogDir)
		if err != nil {
			return catalogAndHints{}, fmt.Errorf("open jsonfile catalog: %w", err)
		}
		if cfg.SeedFile != "" {
			if _, err := store.SeedTypes(ctx, cfg.SeedFile); err != nil {
				return catalogAndHints{}, fmt.Errorf("seed document types: %w", err)
			}
		}
		return catalogAndHints{catalog: store, hints: store}, nil

	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return catalogAndHints{}, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewCatalogRepository(db, cfg.PostgresDSN)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return catalogAndHints{}, fmt.Errorf("ensure schema: %w", err)
		}
		return catalogAndHints{
			catalog: repo,
			hints:   postgres.NewHintRepository(db),
			close:   func() { _ = db.Close() },
		}, nil

	default:
		return catalogAndHints{}, fmt.Errorf("unknown catalog backend %q", cfg.CatalogBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
