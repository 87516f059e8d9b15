package usecase

import (
	"testing"
	"time"

	"github.com/jortvara/caesync/internal/core/domain"
)

func TestComputeMonthlyWindowWithGrace(t *testing.T) {
	calc := NewValidityCalculator()
	policy := domain.ValidityPolicy{Basis: domain.BasisIssueDate, Mode: domain.ModeMonthly, GraceDays: 5}
	ext := domain.Extracted{IssueDate: datePtr(2024, time.January, 15)}

	v := calc.Compute(policy, ext)

	if v.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", v.Confidence)
	}
	if v.ValidFrom == nil || !v.ValidFrom.Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("valid_from = %v, want 2024-01-01", v.ValidFrom)
	}
	if v.ValidTo == nil || !v.ValidTo.Equal(time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("valid_to = %v, want 2024-02-05 (month end plus 5 grace days)", v.ValidTo)
	}
	if len(v.Reasons) == 0 {
		t.Fatalf("expected reason strings for each resolved step")
	}
}

func TestComputeAnnualDefaultsToTwelveMonths(t *testing.T) {
	calc := NewValidityCalculator()
	policy := domain.ValidityPolicy{Basis: domain.BasisNameDate, Mode: domain.ModeAnnual}
	ext := domain.Extracted{NameDate: datePtr(2023, time.March, 10)}

	v := calc.Compute(policy, ext)

	if v.ValidTo == nil || !v.ValidTo.Equal(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("valid_to = %v, want base plus 12 months", v.ValidTo)
	}
	if v.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", v.Confidence)
	}
}

func TestComputeManualBasisYieldsZeroConfidence(t *testing.T) {
	calc := NewValidityCalculator()
	policy := domain.ValidityPolicy{Basis: domain.BasisManual, Mode: domain.ModeFixedEndDate}

	v := calc.Compute(policy, domain.Extracted{IssueDate: datePtr(2024, time.January, 1)})

	if v.Confidence != 0.0 {
		t.Fatalf("confidence = %v, want 0.0 for manual basis", v.Confidence)
	}
	if v.ValidFrom != nil || v.ValidTo != nil {
		t.Fatalf("manual basis must not produce dates")
	}
}

func TestComputeMissingBaseDateForcesZeroNotGuess(t *testing.T) {
	calc := NewValidityCalculator()
	policy := domain.ValidityPolicy{Basis: domain.BasisIssueDate, Mode: domain.ModeMonthly}

	v := calc.Compute(policy, domain.Extracted{})

	if v.Confidence != 0.0 {
		t.Fatalf("confidence = %v, want 0.0 when the issue date is missing", v.Confidence)
	}
	if v.ValidFrom != nil {
		t.Fatalf("missing input must not be guessed into a window")
	}
}

func TestComputeFixedEndDateWithoutManualEndIsPartial(t *testing.T) {
	calc := NewValidityCalculator()
	policy := domain.ValidityPolicy{Basis: domain.BasisIssueDate, Mode: domain.ModeFixedEndDate}
	ext := domain.Extracted{IssueDate: datePtr(2024, time.February, 1)}

	v := calc.Compute(policy, ext)

	if v.ValidTo != nil {
		t.Fatalf("valid_to must stay unset without a manual end date")
	}
	if v.Confidence <= 0.0 || v.Confidence >= 1.0 {
		t.Fatalf("confidence = %v, want partial (between 0 and 1)", v.Confidence)
	}
}

func TestComputeFixedEndDateWithManualEnd(t *testing.T) {
	calc := NewValidityCalculator()
	policy := domain.ValidityPolicy{Basis: domain.BasisIssueDate, Mode: domain.ModeFixedEndDate}
	ext := domain.Extracted{
		IssueDate:     datePtr(2024, time.February, 1),
		ManualEndDate: datePtr(2025, time.January, 31),
	}

	v := calc.Compute(policy, ext)

	if v.ValidTo == nil || !v.ValidTo.Equal(time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("valid_to = %v, want the manual end date", v.ValidTo)
	}
	if v.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", v.Confidence)
	}
}

func TestComputeConfidenceIsCapped(t *testing.T) {
	calc := NewValidityCalculator()
	policy := domain.ValidityPolicy{Basis: domain.BasisIssueDate, Mode: domain.ModeMonthly, GraceDays: 1}
	ext := domain.Extracted{
		IssueDate:     datePtr(2024, time.January, 2),
		ValidityStart: datePtr(2024, time.January, 3),
	}

	if v := calc.Compute(policy, ext); v.Confidence > 1.0 {
		t.Fatalf("confidence %v exceeds cap", v.Confidence)
	}
}
