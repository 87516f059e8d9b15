package usecase

import (
	"fmt"
	"time"

	"github.com/jortvara/caesync/internal/core/domain"
)

// Confidence accumulates additively from each resolved sub-step and is capped
// at 1.0. Missing required inputs force 0.0 rather than guessing.
const (
	confBaseResolved   = 0.4
	confPeriodResolved = 0.3
	confDatesApplied   = 0.3
)

// ValidityCalculator turns a type's declarative policy plus extracted
// metadata into a concrete validity window.
type ValidityCalculator struct{}

func NewValidityCalculator() *ValidityCalculator {
	return &ValidityCalculator{}
}

func (c *ValidityCalculator) Compute(policy domain.ValidityPolicy, ext domain.Extracted) domain.ComputedValidity {
	var v domain.ComputedValidity

	base, ok := c.resolveBase(policy.Basis, ext, &v)
	if !ok {
		v.Confidence = 0.0
		return v
	}
	v.Confidence += confBaseResolved

	switch policy.Mode {
	case domain.ModeMonthly:
		c.applyMonthly(base, policy, ext, &v)
	case domain.ModeAnnual:
		c.applyAnnual(base, policy, ext, &v)
	case domain.ModeFixedEndDate:
		c.applyFixedEnd(base, ext, &v)
	default:
		v.Confidence = 0.0
		v.Reasons = append(v.Reasons, fmt.Sprintf("unknown validity mode %q", policy.Mode))
		return v
	}

	if v.Confidence > 1.0 {
		v.Confidence = 1.0
	}
	return v
}

func (c *ValidityCalculator) resolveBase(basis domain.ValidityBasis, ext domain.Extracted, v *domain.ComputedValidity) (time.Time, bool) {
	switch basis {
	case domain.BasisIssueDate:
		if ext.IssueDate == nil {
			v.Reasons = append(v.Reasons, "basis issue_date: issue date missing")
			return time.Time{}, false
		}
		base := day(*ext.IssueDate)
		v.Reasons = append(v.Reasons, fmt.Sprintf("base date %s resolved from issue date", base.Format("2006-01-02")))
		return base, true
	case domain.BasisNameDate:
		if ext.NameDate == nil {
			v.Reasons = append(v.Reasons, "basis name_date: name-derived date missing")
			return time.Time{}, false
		}
		base := day(*ext.NameDate)
		v.Reasons = append(v.Reasons, fmt.Sprintf("base date %s resolved from document name", base.Format("2006-01-02")))
		return base, true
	case domain.BasisManual:
		v.Reasons = append(v.Reasons, "manual basis: validity dates require operator input")
		return time.Time{}, false
	default:
		v.Reasons = append(v.Reasons, fmt.Sprintf("unknown validity basis %q", basis))
		return time.Time{}, false
	}
}

func (c *ValidityCalculator) applyMonthly(base time.Time, policy domain.ValidityPolicy, ext domain.Extracted, v *domain.ComputedValidity) {
	from := time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	v.Confidence += confPeriodResolved
	v.Reasons = append(v.Reasons, fmt.Sprintf("monthly period %s resolved", from.Format("2006-01")))

	if policy.GraceDays > 0 {
		to = to.AddDate(0, 0, policy.GraceDays)
		v.Reasons = append(v.Reasons, fmt.Sprintf("grace of %d days applied to valid_to", policy.GraceDays))
	}
	if ext.ValidityStart != nil {
		from = day(*ext.ValidityStart)
		v.Reasons = append(v.Reasons, "explicit validity start overrides period start")
	}

	v.ValidFrom = &from
	v.ValidTo = &to
	v.Confidence += confDatesApplied
	v.Reasons = append(v.Reasons, fmt.Sprintf("validity window %s..%s applied", from.Format("2006-01-02"), to.Format("2006-01-02")))
}

func (c *ValidityCalculator) applyAnnual(base time.Time, policy domain.ValidityPolicy, ext domain.Extracted, v *domain.ComputedValidity) {
	months := policy.ValidMonths
	if months <= 0 {
		months = 12
	}
	from := base
	if ext.ValidityStart != nil {
		from = day(*ext.ValidityStart)
		v.Reasons = append(v.Reasons, "explicit validity start overrides base date")
	}
	to := base.AddDate(0, months, 0)
	v.Confidence += confPeriodResolved
	v.Reasons = append(v.Reasons, fmt.Sprintf("annual validity of %d months resolved", months))

	v.ValidFrom = &from
	v.ValidTo = &to
	v.Confidence += confDatesApplied
	v.Reasons = append(v.Reasons, fmt.Sprintf("validity window %s..%s applied", from.Format("2006-01-02"), to.Format("2006-01-02")))
}

func (c *ValidityCalculator) applyFixedEnd(base time.Time, ext domain.Extracted, v *domain.ComputedValidity) {
	from := base
	if ext.ValidityStart != nil {
		from = day(*ext.ValidityStart)
		v.Reasons = append(v.Reasons, "explicit validity start overrides base date")
	}
	v.ValidFrom = &from

	if ext.ManualEndDate == nil {
		// Partial result: the window cannot close without an operator-supplied
		// end date, so valid_to stays unset.
		v.Reasons = append(v.Reasons, "fixed_end_date: manual end date missing, valid_to unset")
		return
	}
	to := day(*ext.ManualEndDate)
	v.ValidTo = &to
	v.Confidence += confPeriodResolved + confDatesApplied
	v.Reasons = append(v.Reasons, fmt.Sprintf("validity window %s..%s applied from manual end date", from.Format("2006-01-02"), to.Format("2006-01-02")))
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
