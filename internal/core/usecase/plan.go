package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/jortvara/caesync/internal/core/domain"
	"github.com/jortvara/caesync/internal/core/ports"
)

// Plan-level guardrail threshold: below this an otherwise automatic item still
// needs operator confirmation.
const planConfidenceFloor = 0.75

// Planner aggregates per-item decisions across a requirement batch into one
// frozen, content-addressed submission plan. One item's failure degrades only
// that item; the rest of the run always proceeds.
type Planner struct {
	catalog ports.CatalogStore
	matcher ports.RequirementMatcher
	engine  *DecisionEngine
	periods *PeriodPlanner
	logger  *slog.Logger
	now     func() time.Time

	observeMatch func(*domain.MatchDebugReport)
}

var _ ports.SubmissionPlanner = (*Planner)(nil)

// SetMatchObserver registers a callback invoked with the debug report of every
// match attempt, nil when the match was conclusive. Used to feed outcome
// counters.
func (p *Planner) SetMatchObserver(fn func(*domain.MatchDebugReport)) {
	p.observeMatch = fn
}

func NewPlanner(catalog ports.CatalogStore, matcher ports.RequirementMatcher, engine *DecisionEngine, periods *PeriodPlanner, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		catalog: catalog,
		matcher: matcher,
		engine:  engine,
		periods: periods,
		logger:  logger,
		now:     time.Now,
	}
}

func (p *Planner) BuildPlan(ctx context.Context, request domain.PlanRequest) (*domain.Plan, error) {
	scope := request.Scope
	plan := &domain.Plan{
		Snapshot:  domain.PlanSnapshot{Platform: scope.Platform, Scope: scope},
		CreatedAt: p.now().UTC(),
	}

	types, diags := p.resolveScope(ctx, scope)
	plan.Diagnostics = diags
	if len(types) == 0 {
		plan.Verdict = domain.PlanBlocked
		return p.freeze(plan)
	}

	included := p.filterToScope(scope, request.Requirements, plan)
	plan.Snapshot.Requirements = included

	for _, req := range included {
		item := p.planItem(ctx, req, types, request.Overrides, plan)
		plan.Items = append(plan.Items, item)
	}
	sort.SliceStable(plan.Items, func(i, j int) bool { return plan.Items[i].ItemKey < plan.Items[j].ItemKey })

	plan.Summary = summarize(plan.Items)
	plan.Verdict = rollup(plan.Summary)
	return p.freeze(plan)
}

// resolveScope validates the explicit scope. Type ids are never inferred from
// an empty list; an empty or unresolvable scope blocks the whole plan.
func (p *Planner) resolveScope(ctx context.Context, scope domain.PlanScope) (map[string]domain.DocumentType, []string) {
	var diags []string
	if scope.Platform == "" {
		return nil, append(diags, "scope: platform is required")
	}
	if len(scope.TypeIDs) == 0 {
		return nil, append(diags, "scope: explicit type_ids are required, none given")
	}

	types := make(map[string]domain.DocumentType, len(scope.TypeIDs))
	for _, id := range scope.TypeIDs {
		t, err := p.catalog.GetType(ctx, id)
		if err != nil {
			diags = append(diags, fmt.Sprintf("scope: type %q unresolvable: %v", id, err))
			continue
		}
		if !t.Active {
			diags = append(diags, fmt.Sprintf("scope: type %q is inactive", id))
			continue
		}
		types[t.TypeID] = *t
	}
	if len(types) == 0 {
		diags = append(diags, "scope: zero resolvable types")
	}
	return types, diags
}

// filterToScope drops requirements outside the explicit scope, recording each
// exclusion as a diagnostic.
func (p *Planner) filterToScope(scope domain.PlanScope, reqs []domain.PendingRequirement, plan *domain.Plan) []domain.PendingRequirement {
	var included []domain.PendingRequirement
	for _, req := range reqs {
		key := req.NaturalKey()
		switch {
		case req.Platform != scope.Platform:
			plan.Diagnostics = append(plan.Diagnostics, fmt.Sprintf("excluded %s: platform %q outside scope", key, req.Platform))
		case len(scope.PeriodKeys) > 0 && req.PeriodKey != "" && !slices.Contains(scope.PeriodKeys, req.PeriodKey):
			plan.Diagnostics = append(plan.Diagnostics, fmt.Sprintf("excluded %s: period %q outside scope", key, req.PeriodKey))
		case len(scope.CompanyKeys) > 0 && req.Subject.CompanyKey != "" && !slices.Contains(scope.CompanyKeys, req.Subject.CompanyKey):
			plan.Diagnostics = append(plan.Diagnostics, fmt.Sprintf("excluded %s: company outside scope", key))
		case len(scope.PersonKeys) > 0 && req.Subject.PersonKey != "" && !slices.Contains(scope.PersonKeys, req.Subject.PersonKey):
			plan.Diagnostics = append(plan.Diagnostics, fmt.Sprintf("excluded %s: person outside scope", key))
		default:
			included = append(included, req)
		}
	}
	return included
}

func (p *Planner) planItem(ctx context.Context, req domain.PendingRequirement, types map[string]domain.DocumentType, overrides map[string]domain.ManualOverride, plan *domain.Plan) domain.PlanItem {
	key := req.NaturalKey()
	item := domain.PlanItem{ItemKey: key, Requirement: req}

	var override *domain.ManualOverride
	if o, ok := overrides[key]; ok {
		override = &o
	}

	match, report, err := p.matcher.Match(ctx, req)
	if err != nil {
		p.logger.Warn("plan item degraded", "item", key, "error", err)
		item.Decision = domain.Decision{
			Kind:           domain.DecisionReviewRequired,
			ReasonCode:     domain.ReasonItemFailed,
			HumanHint:      "item could not be evaluated; the rest of the plan is unaffected",
			BlockingIssues: []string{err.Error()},
		}
		return item
	}
	if p.observeMatch != nil {
		p.observeMatch(report)
	}
	if report != nil {
		plan.Diagnostics = append(plan.Diagnostics, fmt.Sprintf("item %s: %s", key, report.Outcome.PrimaryReasonCode))
	}

	decision := p.engine.Decide(ctx, req, match, override)
	item.Decision = p.applyPlanGuardrails(ctx, req, match, report, decision, types)
	return item
}

// applyPlanGuardrails refines an item decision with the plan-level guardrails,
// in fixed priority order: confidence floor, draft status, validity window,
// ambiguity where a single exact match was required. The first one that fires
// names the reason.
func (p *Planner) applyPlanGuardrails(ctx context.Context, req domain.PendingRequirement, match *domain.MatchResult, report *domain.MatchDebugReport, decision domain.Decision, types map[string]domain.DocumentType) domain.Decision {
	if decision.ReasonCode == domain.ReasonManualOverride {
		return decision
	}

	if decision.Kind == domain.DecisionNoMatch && req.PeriodKey != "" &&
		report != nil && report.Outcome.PrimaryReasonCode == domain.ReasonPeriodFilterZero {
		decision.Kind = domain.DecisionReviewRequired
		decision.ReasonCode = domain.ReasonMissingPeriod
		decision.HumanHint = fmt.Sprintf("no document for requested period %s", req.PeriodKey)
		return decision
	}

	if decision.Kind != domain.DecisionAutoUpload {
		return decision
	}

	if decision.Confidence < planConfidenceFloor {
		decision.Kind = domain.DecisionReviewRequired
		decision.ReasonCode = domain.ReasonConfidenceTooLow
		decision.HumanHint = fmt.Sprintf("match confidence %.2f below %.2f", decision.Confidence, planConfidenceFloor)
		return decision
	}

	doc := match.Best.Doc
	if doc.Status == domain.StatusDraft {
		decision.Kind = domain.DecisionReviewRequired
		decision.ReasonCode = domain.ReasonDraftDocument
		decision.HumanHint = "matched document is still a draft"
		return decision
	}

	if outside := p.outsideValidity(doc, types); outside {
		decision.Kind = domain.DecisionReviewRequired
		decision.ReasonCode = domain.ReasonOutsideValidity
		decision.HumanHint = "today is outside the document validity window"
		return decision
	}

	if boostedCount(match) > 1 {
		decision.Kind = domain.DecisionReviewRequired
		decision.ReasonCode = domain.ReasonExactRequired
		decision.HumanHint = "multiple learned hints apply; an explicit confirmation is required"
		decision.BlockingIssues = append(decision.BlockingIssues, "ambiguous hints, exact single match required")
		return decision
	}

	return decision
}

func (p *Planner) outsideValidity(doc domain.DocumentInstance, types map[string]domain.DocumentType) bool {
	if doc.Validity.ValidFrom == nil || doc.Validity.ValidTo == nil {
		return true
	}
	today := day(p.now().UTC())
	grace := 0
	if t, ok := types[doc.TypeID]; ok {
		grace = t.ValidityPolicy.GraceDays
	}
	end := doc.Validity.ValidTo.AddDate(0, 0, grace)
	return today.Before(*doc.Validity.ValidFrom) || today.After(end)
}

func boostedCount(match *domain.MatchResult) int {
	n := 0
	for _, a := range match.AppliedHints {
		if a.Effect == domain.HintBoosted {
			n++
		}
	}
	return n
}

func summarize(items []domain.PlanItem) domain.PlanSummary {
	var s domain.PlanSummary
	for _, it := range items {
		switch it.Decision.Kind {
		case domain.DecisionAutoUpload:
			s.AutoUpload++
		case domain.DecisionSkipped:
			s.Skipped++
		case domain.DecisionNoMatch:
			s.NoMatch++
		case domain.DecisionReviewRequired:
			if it.Decision.ReasonCode == domain.ReasonItemFailed {
				s.Failed++
			} else {
				s.ReviewRequired++
			}
		}
	}
	return s
}

func rollup(s domain.PlanSummary) domain.PlanVerdict {
	if s.ReviewRequired > 0 || s.NoMatch > 0 || s.Failed > 0 {
		return domain.PlanNeedsConfirmation
	}
	return domain.PlanReady
}

// freeze stamps the content-addressed id. After this the plan is immutable;
// re-running with changed inputs produces a different id.
func (p *Planner) freeze(plan *domain.Plan) (*domain.Plan, error) {
	id, err := PlanID(plan.Snapshot, plan.Items)
	if err != nil {
		return nil, fmt.Errorf("freeze plan: %w", err)
	}
	plan.PlanID = id
	p.logger.Info("plan frozen",
		"plan_id", plan.PlanID,
		"verdict", plan.Verdict,
		"items", len(plan.Items),
		"auto", plan.Summary.AutoUpload,
		"review", plan.Summary.ReviewRequired,
	)
	return plan, nil
}
