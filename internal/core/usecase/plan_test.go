package usecase

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jortvara/caesync/internal/core/domain"
	"github.com/jortvara/caesync/internal/core/ports"
)

func newTestPlanner(catalog *fakeCatalog, artifacts *fakeArtifacts, matcher ports.RequirementMatcher) *Planner {
	if matcher == nil {
		m := newTestMatcher(catalog, newFakeHints())
		matcher = m
	}
	engine := NewDecisionEngine(artifacts)
	periods := NewPeriodPlanner(catalog, nil)
	p := NewPlanner(catalog, matcher, engine, periods, slog.Default())
	p.now = fixedNow
	return p
}

func reciboScope() domain.PlanScope {
	return domain.PlanScope{Platform: "ecoordina", TypeIDs: []string{"t104"}}
}

func TestBuildPlanReadyWhenAllItemsResolve(t *testing.T) {
	catalog := &fakeCatalog{
		types: map[string]domain.DocumentType{"t104": reciboType()},
		docs:  []domain.DocumentInstance{reciboDoc("d1", domain.StatusReviewed)},
		loc:   "/data/catalog",
	}
	planner := newTestPlanner(catalog, &fakeArtifacts{present: map[string]bool{"d1.pdf": true}}, nil)

	plan, err := planner.BuildPlan(context.Background(), domain.PlanRequest{
		Scope:        reciboScope(),
		Requirements: []domain.PendingRequirement{reciboRequirement()},
	})
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if plan.Verdict != domain.PlanReady {
		t.Fatalf("verdict = %s, want READY; items=%+v", plan.Verdict, plan.Items)
	}
	if plan.Summary.AutoUpload != 1 {
		t.Fatalf("summary = %+v, want one auto upload", plan.Summary)
	}
	if plan.PlanID == "" {
		t.Fatalf("plan must be frozen with a content-addressed id")
	}
}

func TestBuildPlanNotifiesMatchObserver(t *testing.T) {
	catalog := &fakeCatalog{
		types: map[string]domain.DocumentType{"t104": reciboType()},
		docs:  []domain.DocumentInstance{reciboDoc("d1", domain.StatusReviewed)},
		loc:   "/data/catalog",
	}
	planner := newTestPlanner(catalog, &fakeArtifacts{present: map[string]bool{"d1.pdf": true}}, nil)

	var observed []*domain.MatchDebugReport
	planner.SetMatchObserver(func(report *domain.MatchDebugReport) {
		observed = append(observed, report)
	})

	missing := reciboRequirement()
	missing.PeriodKey = "2030-01"
	_, err := planner.BuildPlan(context.Background(), domain.PlanRequest{
		Scope:        reciboScope(),
		Requirements: []domain.PendingRequirement{reciboRequirement(), missing},
	})
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if len(observed) != 2 {
		t.Fatalf("observer saw %d match attempts, want 2", len(observed))
	}
	if observed[0] != nil {
		t.Fatalf("conclusive match must report nil, got %+v", observed[0])
	}
	if observed[1] == nil || observed[1].Outcome.PrimaryReasonCode != domain.ReasonPeriodFilterZero {
		t.Fatalf("inconclusive match must carry its report, got %+v", observed[1])
	}
}

func TestBuildPlanBlockedOnEmptyScope(t *testing.T) {
	catalog := &fakeCatalog{types: map[string]domain.DocumentType{"t104": reciboType()}, loc: "/data/catalog"}
	planner := newTestPlanner(catalog, &fakeArtifacts{present: map[string]bool{}}, nil)

	plan, err := planner.BuildPlan(context.Background(), domain.PlanRequest{
		Scope: domain.PlanScope{Platform: "ecoordina"},
	})
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if plan.Verdict != domain.PlanBlocked {
		t.Fatalf("verdict = %s, want BLOCKED for empty type_ids", plan.Verdict)
	}
	if len(plan.Diagnostics) == 0 {
		t.Fatalf("blocked plan must explain itself in diagnostics")
	}
}

func TestBuildPlanBlockedOnUnresolvableTypes(t *testing.T) {
	catalog := &fakeCatalog{types: map[string]domain.DocumentType{}, loc: "/data/catalog"}
	planner := newTestPlanner(catalog, &fakeArtifacts{present: map[string]bool{}}, nil)

	plan, err := planner.BuildPlan(context.Background(), domain.PlanRequest{Scope: reciboScope()})
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if plan.Verdict != domain.PlanBlocked {
		t.Fatalf("verdict = %s, want BLOCKED for zero resolvable types", plan.Verdict)
	}
}

func TestBuildPlanMissingPeriodNeedsConfirmation(t *testing.T) {
	doc := reciboDoc("d1", domain.StatusReviewed)
	doc.PeriodKey = "2023-01"
	catalog := &fakeCatalog{
		types: map[string]domain.DocumentType{"t104": reciboType()},
		docs:  []domain.DocumentInstance{doc},
		loc:   "/data/catalog",
	}
	planner := newTestPlanner(catalog, &fakeArtifacts{present: map[string]bool{"d1.pdf": true}}, nil)

	req := reciboRequirement()
	req.PeriodKey = "2024-01"
	plan, err := planner.BuildPlan(context.Background(), domain.PlanRequest{
		Scope:        reciboScope(),
		Requirements: []domain.PendingRequirement{req},
	})
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if plan.Verdict != domain.PlanNeedsConfirmation {
		t.Fatalf("verdict = %s, want NEEDS_CONFIRMATION", plan.Verdict)
	}
	item := plan.Items[0]
	if item.Decision.ReasonCode != domain.ReasonMissingPeriod {
		t.Fatalf("item reason = %s, want missing_period", item.Decision.ReasonCode)
	}
}

func TestBuildPlanGuardrailOrderConfidenceBeforeDraft(t *testing.T) {
	// A draft document scoring 0.6 trips both the confidence floor and the
	// draft rule; the fixed priority order must name confidence.
	catalog := &fakeCatalog{
		types: map[string]domain.DocumentType{"t104": reciboType()},
		docs:  []domain.DocumentInstance{reciboDoc("d1", domain.StatusDraft)},
		loc:   "/data/catalog",
	}
	planner := newTestPlanner(catalog, &fakeArtifacts{present: map[string]bool{"d1.pdf": true}}, nil)

	plan, err := planner.BuildPlan(context.Background(), domain.PlanRequest{
		Scope:        reciboScope(),
		Requirements: []domain.PendingRequirement{reciboRequirement()},
	})
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	item := plan.Items[0]
	if item.Decision.Kind != domain.DecisionReviewRequired {
		t.Fatalf("kind = %s, want REVIEW_REQUIRED", item.Decision.Kind)
	}
	if item.Decision.ReasonCode != domain.ReasonConfidenceTooLow {
		t.Fatalf("reason = %s, want confidence_too_low to outrank draft_document", item.Decision.ReasonCode)
	}
}

func TestBuildPlanDraftGuardrail(t *testing.T) {
	// A draft that still clears the confidence floor must be caught by the
	// draft rule. Boost a draft with an exact hint: 0.6 - 0.2 + 0.2 + 0.3 = 0.9.
	doc := reciboDoc("d1", domain.StatusDraft)
	catalog := &fakeCatalog{
		types: map[string]domain.DocumentType{"t104": reciboType()},
		docs:  []domain.DocumentInstance{doc},
		loc:   "/data/catalog",
	}
	hints := newFakeHints()
	req := reciboRequirement()
	hctx := requirementHintContext(req)
	_ = hints.Put(context.Background(), domain.LearnedHint{
		HintID:      domain.HintID(hctx, domain.HintExact, "d1"),
		Context:     hctx,
		Strength:    domain.HintExact,
		TargetDocID: "d1",
		Enabled:     true,
	})
	matcher := newTestMatcher(catalog, hints)
	planner := newTestPlanner(catalog, &fakeArtifacts{present: map[string]bool{"d1.pdf": true}}, matcher)

	plan, err := planner.BuildPlan(context.Background(), domain.PlanRequest{
		Scope:        reciboScope(),
		Requirements: []domain.PendingRequirement{req},
	})
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if got := plan.Items[0].Decision.ReasonCode; got != domain.ReasonDraftDocument {
		t.Fatalf("reason = %s, want draft_document", got)
	}
}

func TestBuildPlanOutsideValidityGuardrail(t *testing.T) {
	doc := reciboDoc("d1", domain.StatusReviewed)
	from := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2023, time.June, 30, 0, 0, 0, 0, time.UTC)
	doc.Validity = domain.ComputedValidity{ValidFrom: &from, ValidTo: &to, Confidence: 1.0}
	doc.PeriodKey = "2023-06"
	catalog := &fakeCatalog{
		types: map[string]domain.DocumentType{"t104": reciboType()},
		docs:  []domain.DocumentInstance{doc},
		loc:   "/data/catalog",
	}
	planner := newTestPlanner(catalog, &fakeArtifacts{present: map[string]bool{"d1.pdf": true}}, nil)

	req := reciboRequirement()
	req.PeriodKey = "2023-06"
	plan, err := planner.BuildPlan(context.Background(), domain.PlanRequest{
		Scope:        reciboScope(),
		Requirements: []domain.PendingRequirement{req},
	})
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if got := plan.Items[0].Decision.ReasonCode; got != domain.ReasonOutsideValidity {
		t.Fatalf("reason = %s, want outside_validity", got)
	}
	if plan.Verdict != domain.PlanNeedsConfirmation {
		t.Fatalf("verdict = %s, want NEEDS_CONFIRMATION", plan.Verdict)
	}
}

type flakyMatcher struct {
	inner   ports.RequirementMatcher
	failKey string
}

func (f *flakyMatcher) Match(ctx context.Context, req domain.PendingRequirement) (*domain.MatchResult, *domain.MatchDebugReport, error) {
	if req.NaturalKey() == f.failKey {
		return nil, nil, errors.New("store read exploded")
	}
	return f.inner.Match(ctx, req)
}

func TestBuildPlanIsolatesItemFailures(t *testing.T) {
	catalog := &fakeCatalog{
		types: map[string]domain.DocumentType{"t104": reciboType()},
		docs:  []domain.DocumentInstance{reciboDoc("d1", domain.StatusReviewed)},
		loc:   "/data/catalog",
	}
	good := reciboRequirement()
	bad := reciboRequirement()
	bad.Subject = domain.Subject{CompanyKey: "otra", Label: "OTRA SL"}

	matcher := &flakyMatcher{inner: newTestMatcher(catalog, newFakeHints()), failKey: bad.NaturalKey()}
	planner := newTestPlanner(catalog, &fakeArtifacts{present: map[string]bool{"d1.pdf": true}}, matcher)

	plan, err := planner.BuildPlan(context.Background(), domain.PlanRequest{
		Scope:        reciboScope(),
		Requirements: []domain.PendingRequirement{good, bad},
	})
	if err != nil {
		t.Fatalf("one bad item must never abort the run, got %v", err)
	}
	if len(plan.Items) != 2 {
		t.Fatalf("expected both items in the plan, got %d", len(plan.Items))
	}
	if plan.Summary.Failed != 1 || plan.Summary.AutoUpload != 1 {
		t.Fatalf("summary = %+v, want one failed and one auto", plan.Summary)
	}
	failed, ok := plan.Item(bad.NaturalKey())
	if !ok || failed.Decision.ReasonCode != domain.ReasonItemFailed {
		t.Fatalf("failed item = %+v, want item_failed entry", failed)
	}
	if plan.Verdict != domain.PlanNeedsConfirmation {
		t.Fatalf("verdict = %s, want NEEDS_CONFIRMATION", plan.Verdict)
	}
}

func TestBuildPlanManualOverrideSkips(t *testing.T) {
	catalog := &fakeCatalog{
		types: map[string]domain.DocumentType{"t104": reciboType()},
		docs:  []domain.DocumentInstance{reciboDoc("d1", domain.StatusReviewed)},
		loc:   "/data/catalog",
	}
	planner := newTestPlanner(catalog, &fakeArtifacts{present: map[string]bool{"d1.pdf": true}}, nil)

	req := reciboRequirement()
	plan, err := planner.BuildPlan(context.Background(), domain.PlanRequest{
		Scope:        reciboScope(),
		Requirements: []domain.PendingRequirement{req},
		Overrides: map[string]domain.ManualOverride{
			req.NaturalKey(): {Kind: domain.DecisionSkipped, Operator: "ana"},
		},
	})
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if plan.Items[0].Decision.Kind != domain.DecisionSkipped {
		t.Fatalf("decision = %+v, want SKIPPED", plan.Items[0].Decision)
	}
	if plan.Verdict != domain.PlanReady {
		t.Fatalf("verdict = %s, want READY (skips are fully resolved)", plan.Verdict)
	}
}

func TestBuildPlanIdentityIsReproducible(t *testing.T) {
	catalog := &fakeCatalog{
		types: map[string]domain.DocumentType{"t104": reciboType()},
		docs:  []domain.DocumentInstance{reciboDoc("d1", domain.StatusReviewed)},
		loc:   "/data/catalog",
	}
	request := domain.PlanRequest{
		Scope:        reciboScope(),
		Requirements: []domain.PendingRequirement{reciboRequirement()},
	}

	planner := newTestPlanner(catalog, &fakeArtifacts{present: map[string]bool{"d1.pdf": true}}, nil)
	first, err := planner.BuildPlan(context.Background(), request)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	second, err := planner.BuildPlan(context.Background(), request)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if first.PlanID != second.PlanID {
		t.Fatalf("identical inputs must freeze to the identical plan id: %s vs %s", first.PlanID, second.PlanID)
	}

	request.Requirements[0].PeriodKey = "2024-02"
	third, err := planner.BuildPlan(context.Background(), request)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if third.PlanID == first.PlanID {
		t.Fatalf("changed inputs must produce a new plan id")
	}
}
