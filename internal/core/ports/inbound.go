package ports

import (
	"context"

	"github.com/jortvara/caesync/internal/core/domain"
)

// RequirementMatcher scores catalog documents against one pending requirement.
// The debug report is non-nil only for inconclusive outcomes.
type RequirementMatcher interface {
	Match(ctx context.Context, req domain.PendingRequirement) (*domain.MatchResult, *domain.MatchDebugReport, error)
}

// SubmissionPlanner aggregates per-item decisions into one frozen plan.
type SubmissionPlanner interface {
	BuildPlan(ctx context.Context, req domain.PlanRequest) (*domain.Plan, error)
}

// PlanExecutor runs a single frozen plan item through the upload collaborator.
// It must reject stale plans and items outside the given plan.
type PlanExecutor interface {
	ExecuteItem(ctx context.Context, plan *domain.Plan, itemKey string) (domain.UploadReceipt, error)
}

// HintRecorder persists explicit human match confirmations.
type HintRecorder interface {
	ConfirmMatch(ctx context.Context, req domain.PendingRequirement, typeID, docID string, strength domain.HintStrength) (*domain.LearnedHint, error)
	DisableHint(ctx context.Context, hintID string) error
}
