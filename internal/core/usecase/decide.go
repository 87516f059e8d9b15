package usecase

import (
	"context"
	"fmt"

	"github.com/jortvara/caesync/internal/core/domain"
	"github.com/jortvara/caesync/internal/core/ports"
)

type artifactState int

const (
	artifactPresent artifactState = iota
	artifactMissing
	artifactUnverified
)

// decideInput is everything the guardrail cascade looks at.
type decideInput struct {
	req      domain.PendingRequirement
	match    *domain.MatchResult
	override *domain.ManualOverride
	artifact artifactState
}

type guardrail struct {
	name string
	eval func(in decideInput) (domain.Decision, bool)
}

// uploadGuardrails is the decision cascade as a single declarative table.
// Order is the contract: the first guardrail that fires wins.
var uploadGuardrails = []guardrail{
	{name: "manual_override", eval: evalManualOverride},
	{name: "no_candidate", eval: evalNoCandidate},
	{name: "missing_artifact", eval: evalMissingArtifact},
	{name: "ambiguous_match", eval: evalAmbiguousMatch},
}

// DecisionEngine converts a match result into one of the closed set of
// per-item decisions. It is a pure function over its inputs except for the
// artifact existence probe.
type DecisionEngine struct {
	artifacts ports.ArtifactStore
}

func NewDecisionEngine(artifacts ports.ArtifactStore) *DecisionEngine {
	return &DecisionEngine{artifacts: artifacts}
}

func (e *DecisionEngine) Decide(ctx context.Context, req domain.PendingRequirement, match *domain.MatchResult, override *domain.ManualOverride) domain.Decision {
	in := decideInput{
		req:      req,
		match:    match,
		override: override,
		artifact: e.probeArtifact(ctx, match),
	}

	for _, g := range uploadGuardrails {
		if decision, ok := g.eval(in); ok {
			return decision
		}
	}
	return evalAutoUpload(in)
}

func (e *DecisionEngine) probeArtifact(ctx context.Context, match *domain.MatchResult) artifactState {
	if match == nil || match.Best == nil {
		return artifactMissing
	}
	key := match.Best.Doc.StorageKey
	if key == "" {
		return artifactMissing
	}
	if e.artifacts == nil {
		return artifactUnverified
	}
	exists, err := e.artifacts.Exists(ctx, key)
	if err != nil {
		return artifactUnverified
	}
	if !exists {
		return artifactMissing
	}
	return artifactPresent
}

func evalManualOverride(in decideInput) (domain.Decision, bool) {
	if in.override == nil {
		return domain.Decision{}, false
	}
	confidence := 0.0
	if in.override.Kind == domain.DecisionSkipped {
		confidence = 1.0
	}
	d := domain.Decision{
		Kind:       in.override.Kind,
		Confidence: confidence,
		ReasonCode: domain.ReasonManualOverride,
		HumanHint:  fmt.Sprintf("operator override: %s", in.override.Kind),
	}
	if in.match != nil && in.match.Best != nil {
		d.MatchedDocID = in.match.Best.Doc.DocID
	}
	return d, true
}

func evalNoCandidate(in decideInput) (domain.Decision, bool) {
	if in.match != nil && in.match.Best != nil {
		return domain.Decision{}, false
	}
	return domain.Decision{
		Kind:       domain.DecisionNoMatch,
		Confidence: 0.0,
		ReasonCode: domain.ReasonNoMatch,
		HumanHint:  "no local document matched this requirement",
	}, true
}

func evalMissingArtifact(in decideInput) (domain.Decision, bool) {
	if in.artifact != artifactMissing {
		return domain.Decision{}, false
	}
	return domain.Decision{
		Kind:         domain.DecisionReviewRequired,
		Confidence:   in.match.Confidence,
		ReasonCode:   domain.ReasonMissingLocalFile,
		HumanHint:    "match found, file missing",
		MatchedDocID: in.match.Best.Doc.DocID,
	}, true
}

func evalAmbiguousMatch(in decideInput) (domain.Decision, bool) {
	if in.match.Gap() >= ambiguityGap {
		return domain.Decision{}, false
	}
	return domain.Decision{
		Kind:         domain.DecisionReviewRequired,
		Confidence:   in.match.Confidence,
		ReasonCode:   domain.ReasonAmbiguousMatch,
		HumanHint:    fmt.Sprintf("top candidates within %.2f of each other", ambiguityGap),
		MatchedDocID: in.match.Best.Doc.DocID,
	}, true
}

func evalAutoUpload(in decideInput) domain.Decision {
	d := domain.Decision{
		Kind:         domain.DecisionAutoUpload,
		Confidence:   in.match.Confidence,
		ReasonCode:   domain.ReasonAutoMatch,
		MatchedDocID: in.match.Best.Doc.DocID,
	}
	if in.artifact == artifactUnverified {
		// Existence could not be verified strongly; the decision stands but
		// with degraded confidence.
		d.Confidence = clamp01(d.Confidence * 0.9)
		d.BlockingIssues = append(d.BlockingIssues, string(domain.ReasonFileUnverified))
	}
	return d
}
