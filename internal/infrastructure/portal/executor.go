package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/jortvara/caesync/internal/core/domain"
	"github.com/jortvara/caesync/internal/core/ports"
	"github.com/jortvara/caesync/internal/core/usecase"
	"github.com/jortvara/caesync/internal/infrastructure/resilience"
)

// Executor pushes single frozen-plan items through the upload collaborator.
// It is the only component allowed to act on a plan, and it refuses anything
// the plan does not explicitly carry: a tampered plan id, an unknown item key,
// or an item the planner did not clear for automatic upload.
type Executor struct {
	catalog  ports.CatalogStore
	uploader ports.PortalUploader
	exec     *resilience.Executor
	limiter  *rate.Limiter
	logger   *slog.Logger
	observer func(domain.UploadReceipt, error)
}

var _ ports.PlanExecutor = (*Executor)(nil)

func NewExecutor(
	catalog ports.CatalogStore,
	uploader ports.PortalUploader,
	exec *resilience.Executor,
	limiter *rate.Limiter,
	logger *slog.Logger,
) *Executor {
	if limiter == nil {
		// portals throttle aggressively; default to one upload per 2s
		limiter = rate.NewLimiter(rate.Limit(0.5), 1)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		catalog:  catalog,
		uploader: uploader,
		exec:     exec,
		limiter:  limiter,
		logger:   logger,
	}
}

// SetObserver registers a callback invoked with the outcome of every upload
// attempt, successful or not. Used to feed upload counters.
func (e *Executor) SetObserver(fn func(domain.UploadReceipt, error)) {
	e.observer = fn
}

func (e *Executor) ExecuteItem(ctx context.Context, plan *domain.Plan, itemKey string) (domain.UploadReceipt, error) {
	if plan == nil {
		return domain.UploadReceipt{}, domain.WrapError(domain.ErrInvalidInput, "portal.ExecuteItem", fmt.Errorf("nil plan"))
	}

	ok, err := usecase.VerifyPlanID(plan)
	if err != nil {
		return domain.UploadReceipt{}, fmt.Errorf("verify plan id: %w", err)
	}
	if !ok {
		return domain.UploadReceipt{}, domain.WrapError(domain.ErrStalePlan, "portal.ExecuteItem",
			fmt.Errorf("plan %s does not match its content", plan.PlanID))
	}

	item, found := plan.Item(itemKey)
	if !found {
		return domain.UploadReceipt{}, domain.WrapError(domain.ErrItemNotInPlan, "portal.ExecuteItem",
			fmt.Errorf("item %q not in plan %s", itemKey, plan.PlanID))
	}
	if item.Decision.Kind != domain.DecisionAutoUpload {
		return domain.UploadReceipt{}, domain.WrapError(domain.ErrInvalidInput, "portal.ExecuteItem",
			fmt.Errorf("item %q is %s, not cleared for upload", itemKey, item.Decision.Kind))
	}

	doc, err := e.catalog.GetDocument(ctx, item.Decision.MatchedDocID)
	if err != nil {
		return domain.UploadReceipt{}, fmt.Errorf("load matched document: %w", err)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return domain.UploadReceipt{}, fmt.Errorf("rate limit wait: %w", err)
	}

	var receipt domain.UploadReceipt
	call := func(ctx context.Context) error {
		var uploadErr error
		receipt, uploadErr = e.uploader.PerformUpload(ctx, doc, item.Requirement)
		return uploadErr
	}

	if e.exec != nil {
		err = e.exec.Execute(ctx, "portal.upload", call, classifyUploadError)
	} else {
		err = call(ctx)
	}
	if e.observer != nil {
		e.observer(receipt, err)
	}
	if err != nil {
		return domain.UploadReceipt{}, fmt.Errorf("perform upload: %w", err)
	}

	if receipt.Success {
		doc.Status = domain.StatusSubmitted
		if err := e.catalog.SaveDocument(ctx, doc); err != nil {
			// the portal has the file; surface the bookkeeping failure loudly
			e.logger.Error("upload succeeded but status update failed",
				"plan_id", plan.PlanID, "item_key", itemKey, "doc_id", doc.DocID, "error", err)
			return receipt, fmt.Errorf("mark document submitted: %w", err)
		}
	}

	e.logger.Info("plan item executed",
		"plan_id", plan.PlanID,
		"item_key", itemKey,
		"doc_id", doc.DocID,
		"success", receipt.Success,
		"upload_id", receipt.UploadID,
	)
	return receipt, nil
}

func classifyUploadError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if domain.IsKind(err, domain.ErrTemporary) || resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
