package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jortvara/caesync/internal/core/domain"
	"github.com/jortvara/caesync/internal/core/normalize"
	"github.com/jortvara/caesync/internal/core/ports"
)

// Closed-form scoring table. Changing any of these changes match outcomes, so
// they are constants, not configuration.
const (
	aliasHitScore    = 0.6
	statusBonus      = 0.3
	draftPenalty     = 0.2
	fullCoverBonus   = 0.2
	overlapBonus     = 0.1
	hintBoost        = 0.15
	hintResolveBoost = 0.3
	matchFloor       = 0.7
	ambiguityGap     = 0.1
	maxAlternatives  = 3
)

// Matcher scores catalog documents against one externally reported pending
// requirement, consulting enabled learned hints. It is deterministic:
// identical catalog state, requirement and hints always produce the identical
// result.
type Matcher struct {
	catalog     ports.CatalogStore
	hints       ports.HintStore
	expectedDir string
	now         func() time.Time
}

func NewMatcher(catalog ports.CatalogStore, hints ports.HintStore, expectedDir string) *Matcher {
	return &Matcher{catalog: catalog, hints: hints, expectedDir: expectedDir, now: time.Now}
}

// Match runs the full pipeline. The debug report is non-nil only when the
// outcome is inconclusive (no match, or operator review needed); a clean
// automatic match never produces one.
func (m *Matcher) Match(ctx context.Context, req domain.PendingRequirement) (*domain.MatchResult, *domain.MatchDebugReport, error) {
	trace := newTrace()

	matchedTypes, err := m.scanAliases(ctx, req, trace)
	if err != nil {
		return nil, nil, fmt.Errorf("scan type aliases: %w", err)
	}

	docs, typesByID, err := m.loadDocuments(ctx, matchedTypes, trace)
	if err != nil {
		return nil, nil, fmt.Errorf("load candidate documents: %w", err)
	}

	docs = filterSubject(docs, typesByID, req, trace)
	docs = filterPeriod(docs, typesByID, req, trace)

	candidates := m.score(docs, req, trace)
	applied := m.applyHints(ctx, req, candidates, trace)

	result := rank(candidates, applied, trace)

	report, err := m.explain(ctx, req, trace, result)
	if err != nil {
		return nil, nil, err
	}
	return result, report, nil
}

func (m *Matcher) scanAliases(ctx context.Context, req domain.PendingRequirement, trace *pipelineTrace) ([]domain.DocumentType, error) {
	types, err := m.catalog.ListTypes(ctx, false)
	if err != nil {
		return nil, err
	}

	step := domain.PipelineStep{
		Name:    stepAliasScan,
		Rule:    "platform alias appears in normalized requirement label",
		InCount: len(types),
	}
	var matched []domain.DocumentType
	for _, t := range types {
		if aliasHit(t, req.TypeLabel) == "" {
			step.DroppedTop = appendSample(step.DroppedTop, t.TypeID, "no alias hit")
			continue
		}
		matched = append(matched, t)
	}
	step.OutCount = len(matched)
	trace.add(step)
	return matched, nil
}

func aliasHit(t domain.DocumentType, label string) string {
	for _, alias := range t.PlatformAliases {
		if normalize.Contains(label, alias) {
			return alias
		}
	}
	return ""
}

func (m *Matcher) loadDocuments(ctx context.Context, types []domain.DocumentType, trace *pipelineTrace) ([]domain.DocumentInstance, map[string]domain.DocumentType, error) {
	step := domain.PipelineStep{
		Name:    stepLoadDocuments,
		Rule:    "catalog documents of matched types",
		InCount: len(types),
	}
	typesByID := make(map[string]domain.DocumentType, len(types))
	var docs []domain.DocumentInstance
	for _, t := range types {
		typesByID[t.TypeID] = t
		list, err := m.catalog.ListDocuments(ctx, domain.DocumentFilter{TypeIDs: []string{t.TypeID}})
		if err != nil {
			return nil, nil, err
		}
		if len(list) == 0 {
			step.DroppedTop = appendSample(step.DroppedTop, t.TypeID, "type has no documents")
			continue
		}
		docs = append(docs, list...)
	}
	step.OutCount = len(docs)
	trace.add(step)
	return docs, typesByID, nil
}

func filterSubject(docs []domain.DocumentInstance, types map[string]domain.DocumentType, req domain.PendingRequirement, trace *pipelineTrace) []domain.DocumentInstance {
	step := domain.PipelineStep{
		Name:    stepSubjectFilter,
		Rule:    "document subject key equals requirement subject key",
		InCount: len(docs),
	}
	var kept []domain.DocumentInstance
	for _, d := range docs {
		want := req.Subject.CompanyKey
		if types[d.TypeID].Scope == domain.ScopeWorker {
			want = req.Subject.PersonKey
		}
		if want == "" || d.SubjectKey() != want {
			step.DroppedTop = appendSample(step.DroppedTop, d.DocID, fmt.Sprintf("subject %q does not match %q", d.SubjectKey(), want))
			continue
		}
		kept = append(kept, d)
	}
	step.OutCount = len(kept)
	trace.add(step)
	return kept
}

func filterPeriod(docs []domain.DocumentInstance, types map[string]domain.DocumentType, req domain.PendingRequirement, trace *pipelineTrace) []domain.DocumentInstance {
	if req.PeriodKey == "" {
		return docs
	}
	step := domain.PipelineStep{
		Name:    stepPeriodFilter,
		Rule:    fmt.Sprintf("document period equals requested period %q", req.PeriodKey),
		InCount: len(docs),
	}
	var kept []domain.DocumentInstance
	for _, d := range docs {
		if !types[d.TypeID].ValidityPolicy.IsPeriodic() {
			kept = append(kept, d)
			continue
		}
		if d.NeedsPeriod {
			step.DroppedTop = appendSample(step.DroppedTop, d.DocID, "document needs period assignment")
			continue
		}
		if d.PeriodKey != req.PeriodKey {
			step.DroppedTop = appendSample(step.DroppedTop, d.DocID, fmt.Sprintf("period %q != %q", d.PeriodKey, req.PeriodKey))
			continue
		}
		kept = append(kept, d)
	}
	step.OutCount = len(kept)
	trace.add(step)
	return kept
}

func (m *Matcher) score(docs []domain.DocumentInstance, req domain.PendingRequirement, trace *pipelineTrace) []domain.Candidate {
	step := domain.PipelineStep{
		Name:    stepScoring,
		Rule:    "closed-form score: alias 0.6, status +0.3/-0.2, validity +0.2/+0.1",
		InCount: len(docs),
	}
	from, to, haveRange := req.ImpliedRange(m.now().UTC())

	candidates := make([]domain.Candidate, 0, len(docs))
	for _, d := range docs {
		c := domain.Candidate{Doc: d, TypeID: d.TypeID, Score: aliasHitScore}
		c.Breakdown = append(c.Breakdown, "alias hit +0.6")

		switch d.Status {
		case domain.StatusReviewed, domain.StatusReadyToSubmit:
			c.Score += statusBonus
			c.Breakdown = append(c.Breakdown, fmt.Sprintf("status %s +0.3", d.Status))
		case domain.StatusDraft:
			c.Score -= draftPenalty
			c.Breakdown = append(c.Breakdown, "status draft -0.2")
		}

		if haveRange {
			switch {
			case d.Validity.Covers(from, to):
				c.Score += fullCoverBonus
				c.Breakdown = append(c.Breakdown, "validity covers requirement range +0.2")
			case d.Validity.Overlaps(from, to):
				c.Score += overlapBonus
				c.Breakdown = append(c.Breakdown, "validity overlaps requirement range +0.1")
			default:
				c.Breakdown = append(c.Breakdown, "validity outside requirement range +0.0")
			}
		}

		c.Score = clamp01(c.Score)
		candidates = append(candidates, c)
	}
	step.OutCount = len(candidates)
	trace.add(step)
	return candidates
}

// applyHints applies enabled learned hints. A single matching EXACT hint
// resolves the match outright; when multiple hints match, each only boosts its
// target, so learning never silently auto-resolves an ambiguous requirement.
// A lone SOFT hint boosts but never resolves.
func (m *Matcher) applyHints(ctx context.Context, req domain.PendingRequirement, candidates []domain.Candidate, trace *pipelineTrace) []domain.HintApplication {
	step := domain.PipelineStep{
		Name:    stepHints,
		Rule:    "single EXACT hint resolves; multiple hints only boost",
		InCount: len(candidates),
	}
	defer func() {
		step.OutCount = len(candidates)
		trace.add(step)
	}()

	if m.hints == nil {
		return nil
	}
	hctx := requirementHintContext(req)
	enabled, err := m.hints.ListEnabled(ctx, hctx)
	if err != nil {
		// Hints bias matching but are never required for it; a hint store
		// failure degrades to an unassisted match.
		trace.note(fmt.Sprintf("hint store unavailable: %v", err))
		return nil
	}

	var matching []domain.LearnedHint
	for _, h := range enabled {
		if h.Matches(hctx) {
			matching = append(matching, h)
		}
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].HintID < matching[j].HintID })

	byDoc := make(map[string]int, len(candidates))
	for i := range candidates {
		byDoc[candidates[i].Doc.DocID] = i
	}

	var applied []domain.HintApplication
	if len(matching) == 1 && matching[0].Strength == domain.HintExact {
		h := matching[0]
		if i, ok := byDoc[h.TargetDocID]; ok {
			candidates[i].Score = clamp01(candidates[i].Score + hintResolveBoost)
			candidates[i].Breakdown = append(candidates[i].Breakdown, "resolved by exact hint +0.3")
			applied = append(applied, domain.HintApplication{HintID: h.HintID, DocID: h.TargetDocID, Effect: domain.HintResolved})
		} else {
			applied = append(applied, domain.HintApplication{HintID: h.HintID, DocID: h.TargetDocID, Effect: domain.HintIgnored})
		}
		return applied
	}

	for _, h := range matching {
		if i, ok := byDoc[h.TargetDocID]; ok {
			candidates[i].Score = clamp01(candidates[i].Score + hintBoost)
			candidates[i].Breakdown = append(candidates[i].Breakdown, "hint boost +0.15")
			applied = append(applied, domain.HintApplication{HintID: h.HintID, DocID: h.TargetDocID, Effect: domain.HintBoosted})
		} else {
			applied = append(applied, domain.HintApplication{HintID: h.HintID, DocID: h.TargetDocID, Effect: domain.HintIgnored})
		}
	}
	return applied
}

func requirementHintContext(req domain.PendingRequirement) domain.HintContext {
	return domain.HintContext{
		Platform:        req.Platform,
		CompanyKey:      req.Subject.CompanyKey,
		PersonKey:       req.Subject.PersonKey,
		NormalizedLabel: normalize.Label(req.TypeLabel),
		PeriodKey:       req.PeriodKey,
	}
}

func rank(candidates []domain.Candidate, applied []domain.HintApplication, trace *pipelineTrace) *domain.MatchResult {
	step := domain.PipelineStep{
		Name:    stepRanking,
		Rule:    fmt.Sprintf("needs operator when top < %.2f or gap < %.2f", matchFloor, ambiguityGap),
		InCount: len(candidates),
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Doc.DocID < candidates[j].Doc.DocID
	})

	// A resolved hint names the best candidate outright, ahead of score order.
	for _, a := range applied {
		if a.Effect != domain.HintResolved {
			continue
		}
		for i := range candidates {
			if candidates[i].Doc.DocID == a.DocID && i > 0 {
				resolved := candidates[i]
				copy(candidates[1:i+1], candidates[:i])
				candidates[0] = resolved
			}
		}
	}

	result := &domain.MatchResult{AppliedHints: applied}
	if len(candidates) == 0 {
		step.OutCount = 0
		trace.add(step)
		result.Reasons = append(result.Reasons, "no candidate documents survived the pipeline")
		return result
	}

	best := candidates[0]
	result.Best = &best
	result.Confidence = best.Score
	result.Reasons = append(result.Reasons, best.Breakdown...)

	for i := 1; i < len(candidates) && i <= maxAlternatives; i++ {
		result.Alternatives = append(result.Alternatives, candidates[i])
	}

	resolved := false
	for _, a := range applied {
		if a.Effect == domain.HintResolved {
			resolved = true
		}
	}
	if !resolved {
		if best.Score < matchFloor {
			result.NeedsOperator = true
			result.Reasons = append(result.Reasons, fmt.Sprintf("top score %.2f below floor %.2f", best.Score, matchFloor))
		}
		if len(result.Alternatives) > 0 && best.Score-result.Alternatives[0].Score < ambiguityGap {
			result.NeedsOperator = true
			result.Reasons = append(result.Reasons, fmt.Sprintf("gap to runner-up %.2f below %.2f", best.Score-result.Alternatives[0].Score, ambiguityGap))
		}
	}

	step.OutCount = 1
	trace.add(step)
	return result
}

// explain builds the debug report for inconclusive outcomes.
func (m *Matcher) explain(ctx context.Context, req domain.PendingRequirement, trace *pipelineTrace, result *domain.MatchResult) (*domain.MatchDebugReport, error) {
	var outcome domain.DecisionKind
	switch {
	case result.Best == nil:
		outcome = domain.DecisionNoMatch
	case result.NeedsOperator:
		outcome = domain.DecisionReviewRequired
	default:
		return nil, nil
	}

	catalogEmpty := false
	if result.Best == nil {
		all, err := m.catalog.ListDocuments(ctx, domain.DocumentFilter{})
		if err != nil {
			return nil, fmt.Errorf("probe catalog for debug report: %w", err)
		}
		catalogEmpty = len(all) == 0
	}

	return buildDebugReport(req, trace, result, outcome, catalogEmpty, m.catalog.Location(), m.expectedDir), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
