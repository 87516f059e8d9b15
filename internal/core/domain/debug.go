package domain

import "time"

// PrimaryReason is the closed taxonomy of causes a matching debug report may
// name for an inconclusive outcome.
type PrimaryReason string

const (
	ReasonRepoEmpty         PrimaryReason = "REPO_EMPTY"
	ReasonDataDirMismatch   PrimaryReason = "DATA_DIR_MISMATCH"
	ReasonTypeFilterZero    PrimaryReason = "TYPE_FILTER_ZERO"
	ReasonSubjectFilterZero PrimaryReason = "SUBJECT_FILTER_ZERO"
	ReasonPeriodFilterZero  PrimaryReason = "PERIOD_FILTER_ZERO"
	ReasonConfidenceLow     PrimaryReason = "CONFIDENCE_TOO_LOW"
	ReasonUnknown           PrimaryReason = "UNKNOWN"
)

// DroppedSample is one item a pipeline step filtered out, with the cause.
type DroppedSample struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// PipelineStep records one named stage of the match pipeline: how many
// candidates went in, how many survived, and a sample of what was dropped.
type PipelineStep struct {
	Name       string          `json:"name"`
	Rule       string          `json:"rule,omitempty"`
	InCount    int             `json:"in_count"`
	OutCount   int             `json:"out_count"`
	DroppedTop []DroppedSample `json:"dropped_top,omitempty"`
}

type DebugMeta struct {
	Platform    string    `json:"platform"`
	TypeLabel   string    `json:"type_label"`
	SubjectKey  string    `json:"subject_key,omitempty"`
	PeriodKey   string    `json:"period_key,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	StoreDir    string    `json:"store_dir,omitempty"`
	ExpectedDir string    `json:"expected_dir,omitempty"`
	Notes       []string  `json:"notes,omitempty"`
}

type DebugOutcome struct {
	Decision            DecisionKind      `json:"decision"`
	LocalDocsConsidered int               `json:"local_docs_considered"`
	PrimaryReasonCode   PrimaryReason     `json:"primary_reason_code"`
	HumanHint           string            `json:"human_hint,omitempty"`
	AppliedHints        []HintApplication `json:"applied_hints,omitempty"`
}

// MatchDebugReport explains deterministically why a match pipeline produced an
// inconclusive outcome. It is observability only: it never feeds back into the
// decision and is excluded from plan identity.
type MatchDebugReport struct {
	Meta          DebugMeta      `json:"meta"`
	Pipeline      []PipelineStep `json:"pipeline"`
	CandidatesTop []Candidate    `json:"candidates_top,omitempty"`
	Outcome       DebugOutcome   `json:"outcome"`
}
