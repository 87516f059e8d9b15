package domain

type DecisionKind string

const (
	DecisionAutoUpload     DecisionKind = "AUTO_UPLOAD"
	DecisionReviewRequired DecisionKind = "REVIEW_REQUIRED"
	DecisionNoMatch        DecisionKind = "NO_MATCH"
	DecisionSkipped        DecisionKind = "SKIPPED"
)

// ReasonCode is the machine-readable cause attached to every non-trivial
// decision. Business outcomes always carry one, paired with a human hint.
type ReasonCode string

const (
	ReasonManualOverride   ReasonCode = "manual_override"
	ReasonNoMatch          ReasonCode = "no_match"
	ReasonMissingLocalFile ReasonCode = "missing_local_file"
	ReasonAmbiguousMatch   ReasonCode = "ambiguous_match"
	ReasonAutoMatch        ReasonCode = "auto_match"
	ReasonFileUnverified   ReasonCode = "file_unverified"
	ReasonConfidenceTooLow ReasonCode = "confidence_too_low"
	ReasonDraftDocument    ReasonCode = "draft_document"
	ReasonOutsideValidity  ReasonCode = "outside_validity"
	ReasonExactRequired    ReasonCode = "ambiguous_requires_exact"
	ReasonMissingPeriod    ReasonCode = "missing_period"
	ReasonItemFailed       ReasonCode = "item_failed"
)

// ManualOverride is an operator's explicit per-item verdict. It bypasses every
// other rule in the decision cascade.
type ManualOverride struct {
	Kind     DecisionKind `json:"kind"`
	Operator string       `json:"operator,omitempty"`
	Note     string       `json:"note,omitempty"`
}

type Decision struct {
	Kind           DecisionKind `json:"kind"`
	Confidence     float64      `json:"confidence"`
	ReasonCode     ReasonCode   `json:"reason_code"`
	HumanHint      string       `json:"human_hint,omitempty"`
	BlockingIssues []string     `json:"blocking_issues,omitempty"`
	MatchedDocID   string       `json:"matched_doc_id,omitempty"`
}
