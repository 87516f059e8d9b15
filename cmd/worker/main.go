package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jortvara/caesync/internal/bootstrap"
	"github.com/jortvara/caesync/internal/config"
	"github.com/jortvara/caesync/internal/core/domain"
	"github.com/jortvara/caesync/internal/infrastructure/export/xlsx"
	"github.com/jortvara/caesync/internal/observability/logging"
	"github.com/jortvara/caesync/internal/observability/metrics"
)

// noUploader guards the worker path: the worker only builds and exports plans,
// it never pushes files to a portal.
type noUploader struct{}

func (noUploader) PerformUpload(context.Context, *domain.DocumentInstance, domain.PendingRequirement) (domain.UploadReceipt, error) {
	return domain.UploadReceipt{}, errors.New("worker has no upload collaborator attached")
}

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("caesync-worker", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, noUploader{}, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	m := metrics.NewPlannerMetrics("caesync-worker")
	app.Planner.SetMatchObserver(m.ObserveMatch)
	app.Executor.SetObserver(m.ObserveUpload)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: m.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	plansDir := filepath.Join(cfg.CatalogDir, "plans")
	if err := os.MkdirAll(plansDir, 0o755); err != nil {
		log.Fatalf("create plans dir: %v", err)
	}

	logger.Info("worker subscribed", "subject", cfg.NATSSubject, "platform", cfg.Platform)
	err = app.Queue.SubscribeBatches(ctx, func(handlerCtx context.Context, batch domain.RequirementBatch) error {
		planCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		err := handleBatch(planCtx, app, m, batch, plansDir)
		m.ObserveBatch(batch.Platform, err)
		return err
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

// handleBatch builds one frozen plan per incoming batch. The scope is explicit:
// every active type in the catalog, named one by one.
func handleBatch(ctx context.Context, app *bootstrap.App, m *metrics.PlannerMetrics, batch domain.RequirementBatch, plansDir string) error {
	types, err := app.Catalog.ListTypes(ctx, false)
	if err != nil {
		return fmt.Errorf("list active types: %w", err)
	}
	typeIDs := make([]string, 0, len(types))
	for _, t := range types {
		typeIDs = append(typeIDs, t.TypeID)
	}

	finish := m.StartPlanBuild()
	plan, err := app.Planner.BuildPlan(ctx, domain.PlanRequest{
		Scope: domain.PlanScope{
			Platform: batch.Platform,
			TypeIDs:  typeIDs,
		},
		Requirements: batch.Requirements,
	})
	finish(plan, err)
	if err != nil {
		return fmt.Errorf("build plan for batch %s: %w", batch.BatchID, err)
	}

	workbook := filepath.Join(plansDir, plan.PlanID+".xlsx")
	if err := xlsx.WritePlan(plan, workbook); err != nil {
		return fmt.Errorf("export plan %s: %w", plan.PlanID, err)
	}

	app.Logger.Info("plan built",
		"batch_id", batch.BatchID,
		"plan_id", plan.PlanID,
		"verdict", plan.Verdict,
		"items", len(plan.Items),
		"workbook", workbook,
	)
	return nil
}
