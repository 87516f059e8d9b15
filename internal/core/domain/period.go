package domain

import (
	"fmt"
	"time"
)

// Period keys are "2006-01" for month granularity and "2006" for year
// granularity. Keys sort lexicographically in chronological order.

func MonthKey(t time.Time) string { return t.Format("2006-01") }
func YearKey(t time.Time) string  { return t.Format("2006") }

// PeriodKeyFor formats t according to kind.
func PeriodKeyFor(kind PeriodKind, t time.Time) (string, error) {
	switch kind {
	case PeriodMonth:
		return MonthKey(t), nil
	case PeriodYear:
		return YearKey(t), nil
	default:
		return "", fmt.Errorf("%w: period kind %q has no key format", ErrInvalidPeriod, kind)
	}
}

// PeriodBounds returns the inclusive [start, end] day range of a period key.
func PeriodBounds(key string) (start, end time.Time, err error) {
	if t, perr := time.ParseInLocation("2006-01", key, time.UTC); perr == nil {
		start = t
		end = t.AddDate(0, 1, -1)
		return start, end, nil
	}
	if t, perr := time.ParseInLocation("2006", key, time.UTC); perr == nil {
		start = t
		end = t.AddDate(1, 0, -1)
		return start, end, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, key)
}

// PeriodKindOf reports the granularity a key encodes.
func PeriodKindOf(key string) PeriodKind {
	if _, err := time.ParseInLocation("2006-01", key, time.UTC); err == nil {
		return PeriodMonth
	}
	if _, err := time.ParseInLocation("2006", key, time.UTC); err == nil {
		return PeriodYear
	}
	return PeriodNone
}

type PeriodStatus string

const (
	PeriodAvailable PeriodStatus = "AVAILABLE"
	PeriodLate      PeriodStatus = "LATE"
	PeriodMissing   PeriodStatus = "MISSING"
)

// PeriodSlot is one expected calendar period for a periodic type and subject.
type PeriodSlot struct {
	Key    string       `json:"key"`
	Kind   PeriodKind   `json:"kind"`
	Start  time.Time    `json:"start"`
	End    time.Time    `json:"end"`
	Status PeriodStatus `json:"status"`
	DocID  string       `json:"doc_id,omitempty"`
}
