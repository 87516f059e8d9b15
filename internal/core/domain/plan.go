package domain

import "time"

type PlanVerdict string

const (
	PlanReady             PlanVerdict = "READY"
	PlanNeedsConfirmation PlanVerdict = "NEEDS_CONFIRMATION"
	PlanBlocked           PlanVerdict = "BLOCKED"
)

// PlanScope is the explicit input of one planning run. TypeIDs must be named
// by the caller; an empty list is an invalid scope, never "all types".
type PlanScope struct {
	Platform    string   `json:"platform"`
	TypeIDs     []string `json:"type_ids"`
	CompanyKeys []string `json:"company_keys,omitempty"`
	PersonKeys  []string `json:"person_keys,omitempty"`
	PeriodKeys  []string `json:"period_keys,omitempty"`
}

// PlanRequest is everything one planning run consumes: the explicit scope,
// the requirement batch, and any operator overrides keyed by item key.
type PlanRequest struct {
	Scope        PlanScope                 `json:"scope"`
	Requirements []PendingRequirement      `json:"requirements"`
	Overrides    map[string]ManualOverride `json:"overrides,omitempty"`
}

// PlanItem is one (requirement, decision) pair inside a frozen plan.
type PlanItem struct {
	ItemKey     string             `json:"item_key"`
	Requirement PendingRequirement `json:"requirement"`
	Decision    Decision           `json:"decision"`
}

type PlanSummary struct {
	AutoUpload     int `json:"auto_upload"`
	ReviewRequired int `json:"review_required"`
	NoMatch        int `json:"no_match"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`
}

// PlanSnapshot is the hashed half of a plan: the scope and requirement set the
// decisions were computed from, normalized and stable-ordered.
type PlanSnapshot struct {
	Platform     string               `json:"platform"`
	Scope        PlanScope            `json:"scope"`
	Requirements []PendingRequirement `json:"requirements"`
}

// Plan is an immutable submission plan. PlanID is a pure function of the
// (snapshot, items) content; Diagnostics sits outside the hashed envelope so
// observability data never changes plan identity. Execution must refuse any
// item that is not in the plan it was handed.
type Plan struct {
	PlanID      string       `json:"plan_id"`
	Verdict     PlanVerdict  `json:"decision"`
	Snapshot    PlanSnapshot `json:"snapshot"`
	Items       []PlanItem   `json:"items"`
	Summary     PlanSummary  `json:"summary"`
	CreatedAt   time.Time    `json:"created_at"`
	Diagnostics []string     `json:"diagnostics,omitempty"`
}

// Item returns the plan item with the given key, if present.
func (p *Plan) Item(key string) (PlanItem, bool) {
	for _, it := range p.Items {
		if it.ItemKey == key {
			return it, true
		}
	}
	return PlanItem{}, false
}
