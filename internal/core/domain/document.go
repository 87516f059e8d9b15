package domain

import "time"

type Scope string

const (
	ScopeCompany Scope = "company"
	ScopeWorker  Scope = "worker"
)

type DocumentStatus string

// Lifecycle is monotonic: draft -> reviewed -> ready_to_submit -> submitted.
// Status is advanced only by an explicit operator or submission action.
const (
	StatusDraft         DocumentStatus = "draft"
	StatusReviewed      DocumentStatus = "reviewed"
	StatusReadyToSubmit DocumentStatus = "ready_to_submit"
	StatusSubmitted     DocumentStatus = "submitted"
)

// statusRank orders the lifecycle for monotonicity checks.
var statusRank = map[DocumentStatus]int{
	StatusDraft:         0,
	StatusReviewed:      1,
	StatusReadyToSubmit: 2,
	StatusSubmitted:     3,
}

// CanTransition reports whether moving from to next never regresses the lifecycle.
func CanTransition(from, to DocumentStatus) bool {
	a, okA := statusRank[from]
	b, okB := statusRank[to]
	return okA && okB && b >= a
}

type ValidityBasis string

const (
	BasisIssueDate ValidityBasis = "issue_date"
	BasisNameDate  ValidityBasis = "name_date"
	BasisManual    ValidityBasis = "manual"
)

type ValidityMode string

const (
	ModeMonthly      ValidityMode = "monthly"
	ModeAnnual       ValidityMode = "annual"
	ModeFixedEndDate ValidityMode = "fixed_end_date"
)

// ValidityPolicy is the declarative recipe a document type uses to derive a
// concrete validity window from extracted metadata.
type ValidityPolicy struct {
	Basis        ValidityBasis `json:"basis"`
	Mode         ValidityMode  `json:"mode"`
	EveryNMonths int           `json:"every_n_months,omitempty"`
	ValidMonths  int           `json:"valid_months,omitempty"`
	GraceDays    int           `json:"grace_days,omitempty"`
}

// IsPeriodic reports whether the policy describes a true calendar cadence.
// An every-N-months override with N > 1 is a renewal, not a periodic submission,
// and generates no calendar.
func (p ValidityPolicy) IsPeriodic() bool {
	if p.EveryNMonths > 1 {
		return false
	}
	return p.Mode == ModeMonthly || p.Mode == ModeAnnual
}

type DocumentType struct {
	TypeID          string         `json:"type_id"`
	Name            string         `json:"name"`
	Scope           Scope          `json:"scope"`
	ValidityPolicy  ValidityPolicy `json:"validity_policy"`
	PlatformAliases []string       `json:"platform_aliases,omitempty"`
	Active          bool           `json:"active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Extracted holds metadata pulled out of the stored artifact, plus any
// operator-supplied dates. All dates are day precision in the catalog timezone.
type Extracted struct {
	IssueDate      *time.Time `json:"issue_date,omitempty"`
	NameDate       *time.Time `json:"name_date,omitempty"`
	ValidityStart  *time.Time `json:"validity_start,omitempty"`
	ManualEndDate  *time.Time `json:"manual_end_date,omitempty"`
	SourceFilename string     `json:"source_filename,omitempty"`
}

type ComputedValidity struct {
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidTo    *time.Time `json:"valid_to,omitempty"`
	Confidence float64    `json:"confidence"`
	Reasons    []string   `json:"reasons,omitempty"`
}

// Covers reports whether the window fully contains [from, to].
// An unset bound never covers anything.
func (v ComputedValidity) Covers(from, to time.Time) bool {
	if v.ValidFrom == nil || v.ValidTo == nil {
		return false
	}
	return !v.ValidFrom.After(from) && !v.ValidTo.Before(to)
}

// Overlaps reports whether the window intersects [from, to] at all.
func (v ComputedValidity) Overlaps(from, to time.Time) bool {
	if v.ValidFrom == nil || v.ValidTo == nil {
		return false
	}
	return !v.ValidFrom.After(to) && !v.ValidTo.Before(from)
}

type PeriodKind string

const (
	PeriodNone  PeriodKind = "none"
	PeriodMonth PeriodKind = "month"
	PeriodYear  PeriodKind = "year"
)

type DocumentInstance struct {
	DocID       string           `json:"doc_id"`
	TypeID      string           `json:"type_id"`
	Scope       Scope            `json:"scope"`
	CompanyKey  string           `json:"company_key,omitempty"`
	PersonKey   string           `json:"person_key,omitempty"`
	StorageKey  string           `json:"storage_key,omitempty"`
	Extracted   Extracted        `json:"extracted"`
	Validity    ComputedValidity `json:"computed_validity"`
	PeriodKind  PeriodKind       `json:"period_kind,omitempty"`
	PeriodKey   string           `json:"period_key,omitempty"`
	NeedsPeriod bool             `json:"needs_period,omitempty"`
	Status      DocumentStatus   `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// SubjectKey returns the identity key relevant for the document's scope.
func (d DocumentInstance) SubjectKey() string {
	if d.Scope == ScopeWorker {
		return d.PersonKey
	}
	return d.CompanyKey
}

// DocumentFilter narrows ListDocuments. Zero values mean "no constraint".
type DocumentFilter struct {
	TypeIDs    []string
	CompanyKey string
	PersonKey  string
	PeriodKey  string
	Statuses   []DocumentStatus
}
