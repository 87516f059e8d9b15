package usecase

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jortvara/caesync/internal/core/domain"
	"github.com/jortvara/caesync/internal/core/ports"
)

// PeriodPlanner generates the calendar of expected periods for periodic
// document types and classifies each as AVAILABLE, LATE or MISSING. Types with
// an every-N-months renewal cadence (N > 1) are not periodic and generate no
// calendar.
type PeriodPlanner struct {
	catalog ports.CatalogStore
	meta    ports.MetadataExtractor
}

func NewPeriodPlanner(catalog ports.CatalogStore, meta ports.MetadataExtractor) *PeriodPlanner {
	return &PeriodPlanner{catalog: catalog, meta: meta}
}

func periodKindFor(policy domain.ValidityPolicy) domain.PeriodKind {
	if !policy.IsPeriodic() {
		return domain.PeriodNone
	}
	if policy.Mode == domain.ModeAnnual {
		return domain.PeriodYear
	}
	return domain.PeriodMonth
}

// Calendar returns the lookback window of candidate periods for one type and
// subject, oldest first. A nil slice means the type is not periodic.
func (p *PeriodPlanner) Calendar(ctx context.Context, docType domain.DocumentType, subject domain.Subject, now time.Time, lookback int) ([]domain.PeriodSlot, error) {
	kind := periodKindFor(docType.ValidityPolicy)
	if kind == domain.PeriodNone {
		return nil, nil
	}
	if lookback <= 0 {
		lookback = 1
	}

	filter := domain.DocumentFilter{TypeIDs: []string{docType.TypeID}}
	if docType.Scope == domain.ScopeWorker {
		filter.PersonKey = subject.PersonKey
	} else {
		filter.CompanyKey = subject.CompanyKey
	}
	docs, err := p.catalog.ListDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list documents for period calendar: %w", err)
	}

	byPeriod := make(map[string]string, len(docs))
	for _, d := range docs {
		if d.PeriodKey != "" {
			byPeriod[d.PeriodKey] = d.DocID
		}
	}

	grace := time.Duration(docType.ValidityPolicy.GraceDays) * 24 * time.Hour
	// Anchor at the first of the month so subtracting months from an
	// end-of-month now (Mar 31 - 1 month would normalize to Mar 2) cannot
	// land in the wrong period.
	base := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	slots := make([]domain.PeriodSlot, 0, lookback)
	for i := lookback - 1; i >= 0; i-- {
		var anchor time.Time
		if kind == domain.PeriodYear {
			anchor = base.AddDate(-i, 0, 0)
		} else {
			anchor = base.AddDate(0, -i, 0)
		}
		key, err := domain.PeriodKeyFor(kind, anchor)
		if err != nil {
			return nil, err
		}
		start, end, err := domain.PeriodBounds(key)
		if err != nil {
			return nil, err
		}

		slot := domain.PeriodSlot{Key: key, Kind: kind, Start: start, End: end}
		if docID, ok := byPeriod[key]; ok {
			slot.Status = domain.PeriodAvailable
			slot.DocID = docID
		} else if now.After(end.Add(grace)) {
			slot.Status = domain.PeriodLate
		} else {
			slot.Status = domain.PeriodMissing
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

var (
	filenameYearMonth = regexp.MustCompile(`(20\d{2})[-_. ]?(0[1-9]|1[0-2])`)
	filenameMonthYear = regexp.MustCompile(`(0[1-9]|1[0-2])[-_. ](20\d{2})`)
	filenameYear      = regexp.MustCompile(`(20\d{2})`)
)

// InferPeriodKey derives a period key for a document that predates period
// tracking. Precedence: explicit extracted date, then a filename-embedded
// date pattern, then dates pulled from the stored artifact. Failure returns
// ok=false; callers mark the document needs_period instead of guessing.
func (p *PeriodPlanner) InferPeriodKey(ctx context.Context, doc domain.DocumentInstance, kind domain.PeriodKind) (string, bool) {
	if kind == domain.PeriodNone {
		return "", false
	}
	if doc.Extracted.IssueDate != nil {
		key, err := domain.PeriodKeyFor(kind, *doc.Extracted.IssueDate)
		return key, err == nil
	}
	if doc.Extracted.ValidityStart != nil {
		key, err := domain.PeriodKeyFor(kind, *doc.Extracted.ValidityStart)
		return key, err == nil
	}
	if key, ok := periodKeyFromFilename(doc.Extracted.SourceFilename, kind); ok {
		return key, true
	}
	if p.meta != nil && doc.StorageKey != "" {
		if dates, err := p.meta.ExtractDates(ctx, doc.StorageKey); err == nil && len(dates) > 0 {
			key, err := domain.PeriodKeyFor(kind, dates[0])
			return key, err == nil
		}
	}
	return "", false
}

func periodKeyFromFilename(name string, kind domain.PeriodKind) (string, bool) {
	if name == "" {
		return "", false
	}
	if kind == domain.PeriodYear {
		if m := filenameYear.FindStringSubmatch(name); m != nil {
			return m[1], true
		}
		return "", false
	}
	if m := filenameYearMonth.FindStringSubmatch(name); m != nil {
		return m[1] + "-" + m[2], true
	}
	if m := filenameMonthYear.FindStringSubmatch(name); m != nil {
		return m[2] + "-" + m[1], true
	}
	return "", false
}

// Backfill fills PeriodKind/PeriodKey on a document that predates period
// tracking, or flags it needs_period when inference fails. Returns true when
// the document changed.
func (p *PeriodPlanner) Backfill(ctx context.Context, doc *domain.DocumentInstance, policy domain.ValidityPolicy) bool {
	kind := periodKindFor(policy)
	if kind == domain.PeriodNone || doc.PeriodKey != "" {
		return false
	}
	if key, ok := p.InferPeriodKey(ctx, *doc, kind); ok {
		doc.PeriodKind = kind
		doc.PeriodKey = key
		doc.NeedsPeriod = false
		return true
	}
	if !doc.NeedsPeriod {
		doc.PeriodKind = kind
		doc.NeedsPeriod = true
		return true
	}
	return false
}
