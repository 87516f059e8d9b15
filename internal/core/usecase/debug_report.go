package usecase

import (
	"time"

	"github.com/jortvara/caesync/internal/core/domain"
)

// Pipeline step names double as collapse-point markers for the primary
// reason taxonomy.
const (
	stepAliasScan     = "alias_scan"
	stepLoadDocuments = "load_documents"
	stepSubjectFilter = "subject_filter"
	stepPeriodFilter  = "period_filter"
	stepScoring       = "scoring"
	stepHints         = "hints"
	stepRanking       = "ranking"
)

const maxDroppedSamples = 5

type pipelineTrace struct {
	steps []domain.PipelineStep
	notes []string
}

func newTrace() *pipelineTrace {
	return &pipelineTrace{}
}

func (t *pipelineTrace) add(step domain.PipelineStep) {
	t.steps = append(t.steps, step)
}

func (t *pipelineTrace) note(s string) {
	t.notes = append(t.notes, s)
}

func appendSample(samples []domain.DroppedSample, id, reason string) []domain.DroppedSample {
	if len(samples) >= maxDroppedSamples {
		return samples
	}
	return append(samples, domain.DroppedSample{ID: id, Reason: reason})
}

// buildDebugReport explains an inconclusive match outcome. It is read-only:
// nothing here feeds back into the decision.
func buildDebugReport(
	req domain.PendingRequirement,
	trace *pipelineTrace,
	result *domain.MatchResult,
	outcome domain.DecisionKind,
	catalogEmpty bool,
	storeDir, expectedDir string,
) *domain.MatchDebugReport {
	report := &domain.MatchDebugReport{
		Meta: domain.DebugMeta{
			Platform:    req.Platform,
			TypeLabel:   req.TypeLabel,
			SubjectKey:  req.Subject.Key(),
			PeriodKey:   req.PeriodKey,
			GeneratedAt: time.Now().UTC(),
			StoreDir:    storeDir,
			ExpectedDir: expectedDir,
			Notes:       trace.notes,
		},
		Pipeline: trace.steps,
	}

	docsConsidered := 0
	for _, step := range trace.steps {
		if step.Name == stepLoadDocuments {
			docsConsidered = step.OutCount
		}
	}

	report.CandidatesTop = topCandidates(result)
	report.Outcome = domain.DebugOutcome{
		Decision:            outcome,
		LocalDocsConsidered: docsConsidered,
		PrimaryReasonCode:   primaryReason(trace, result, catalogEmpty, storeDir, expectedDir),
		AppliedHints:        result.AppliedHints,
	}
	report.Outcome.HumanHint = humanHint(report.Outcome.PrimaryReasonCode)
	return report
}

// primaryReason walks the pipeline to the point where the candidate count
// first collapsed to zero. A mismatched store location outranks an empty
// catalog, since pointing at the wrong data dir also looks empty.
func primaryReason(trace *pipelineTrace, result *domain.MatchResult, catalogEmpty bool, storeDir, expectedDir string) domain.PrimaryReason {
	if catalogEmpty {
		if expectedDir != "" && storeDir != expectedDir {
			return domain.ReasonDataDirMismatch
		}
		return domain.ReasonRepoEmpty
	}

	for _, step := range trace.steps {
		if step.OutCount > 0 {
			continue
		}
		switch step.Name {
		case stepAliasScan, stepLoadDocuments:
			return domain.ReasonTypeFilterZero
		case stepSubjectFilter:
			return domain.ReasonSubjectFilterZero
		case stepPeriodFilter:
			return domain.ReasonPeriodFilterZero
		}
	}

	if result.Best != nil && result.Best.Score < matchFloor {
		return domain.ReasonConfidenceLow
	}
	return domain.ReasonUnknown
}

func topCandidates(result *domain.MatchResult) []domain.Candidate {
	var top []domain.Candidate
	if result.Best != nil {
		top = append(top, *result.Best)
	}
	for _, alt := range result.Alternatives {
		if len(top) >= maxDroppedSamples {
			break
		}
		alt.Rejection = "outscored by best candidate"
		top = append(top, alt)
	}
	return top
}

func humanHint(reason domain.PrimaryReason) string {
	switch reason {
	case domain.ReasonRepoEmpty:
		return "the document catalog is empty; ingest documents before planning"
	case domain.ReasonDataDirMismatch:
		return "the catalog store location differs from the configured one; check the data directory"
	case domain.ReasonTypeFilterZero:
		return "no document type alias matched the portal label; add a platform alias"
	case domain.ReasonSubjectFilterZero:
		return "documents exist for the type but none for this subject"
	case domain.ReasonPeriodFilterZero:
		return "documents exist for the subject but none for the requested period"
	case domain.ReasonConfidenceLow:
		return "a candidate exists but its score is below the automatic threshold"
	default:
		return "no single pipeline stage explains the outcome; inspect the trace"
	}
}
