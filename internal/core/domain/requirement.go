package domain

import (
	"strings"
	"time"
)

// Subject identifies who a requirement is about. For company-scoped types only
// CompanyKey is set; worker-scoped types carry both keys.
type Subject struct {
	CompanyKey string `json:"company_key,omitempty"`
	PersonKey  string `json:"person_key,omitempty"`
	Label      string `json:"label,omitempty"`
}

func (s Subject) Key() string {
	if s.PersonKey != "" {
		return s.PersonKey
	}
	return s.CompanyKey
}

// PendingRequirement is one obligation reported by an external portal, as
// delivered by the scraping collaborator. It is ephemeral: the core never
// persists it beyond the plan snapshot.
type PendingRequirement struct {
	Platform  string     `json:"platform"`
	TypeLabel string     `json:"type_label"`
	Subject   Subject    `json:"subject"`
	PeriodKey string     `json:"period_key,omitempty"`
	DueFrom   *time.Time `json:"due_from,omitempty"`
	DueTo     *time.Time `json:"due_to,omitempty"`

	// RawFields is the narrow passthrough bag for data owned by the
	// collaborator (portal row ids, deep links). The core never reads it.
	RawFields map[string]string `json:"raw_fields,omitempty"`
}

// NaturalKey is the stable identity of a requirement across scrape runs:
// type label + subject label(s) + optional period.
func (r PendingRequirement) NaturalKey() string {
	parts := []string{r.Platform, r.TypeLabel, r.Subject.CompanyKey, r.Subject.PersonKey, r.PeriodKey}
	return strings.Join(parts, "|")
}

// ImpliedRange returns the date range the requirement asks coverage for.
// Explicit due dates win over a period hint; with neither, ok is false.
func (r PendingRequirement) ImpliedRange(now time.Time) (from, to time.Time, ok bool) {
	if r.DueFrom != nil && r.DueTo != nil {
		return *r.DueFrom, *r.DueTo, true
	}
	if r.PeriodKey != "" {
		if from, to, err := PeriodBounds(r.PeriodKey); err == nil {
			return from, to, true
		}
	}
	if r.DueFrom != nil {
		return *r.DueFrom, *r.DueFrom, true
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return day, day, true
}

// RequirementBatch is what the scraping collaborator publishes after one
// portal sweep: every pending requirement it currently sees for a platform.
type RequirementBatch struct {
	BatchID      string               `json:"batch_id"`
	Platform     string               `json:"platform"`
	ScrapedAt    time.Time            `json:"scraped_at"`
	Requirements []PendingRequirement `json:"requirements"`
}

// UploadReceipt is the collaborator's final word on one upload attempt.
type UploadReceipt struct {
	Success  bool   `json:"success"`
	Reason   string `json:"reason,omitempty"`
	UploadID string `json:"upload_id,omitempty"`
}
