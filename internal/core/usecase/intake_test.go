package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/jortvara/caesync/internal/core/domain"
)

func newTestIntake(catalog *fakeCatalog, artifacts *fakeArtifacts) *Intake {
	in := NewIntake(catalog, artifacts, NewPeriodPlanner(catalog, nil), nil)
	in.newID = func() string { return "doc-fixed" }
	return in
}

func intakeType() domain.DocumentType {
	return domain.DocumentType{
		TypeID: "recibo_autonomos",
		Name:   "Recibo autónomos",
		Scope:  domain.ScopeCompany,
		ValidityPolicy: domain.ValidityPolicy{
			Basis:     domain.BasisIssueDate,
			Mode:      domain.ModeMonthly,
			GraceDays: 5,
		},
		Active: true,
	}
}

func TestRegisterStoresArtifactAndComputesValidity(t *testing.T) {
	catalog := &fakeCatalog{types: map[string]domain.DocumentType{"recibo_autonomos": intakeType()}}
	artifacts := &fakeArtifacts{}
	in := newTestIntake(catalog, artifacts)

	doc, err := in.Register(context.Background(), IntakeRequest{
		TypeID:     "recibo_autonomos",
		CompanyKey: "acme",
		Filename:   "recibo_2024-01.pdf",
		Extracted:  domain.Extracted{IssueDate: datePtr(2024, 1, 10)},
		Data:       strings.NewReader("%PDF-1.4 fake"),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if doc.DocID != "doc-fixed" || doc.Status != domain.StatusDraft {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if len(artifacts.saved) != 1 || artifacts.saved[0] != doc.StorageKey {
		t.Fatalf("artifact not stored under the doc key: %+v", artifacts.saved)
	}
	if doc.Validity.Confidence != 1.0 {
		t.Fatalf("want full validity confidence, got %v", doc.Validity.Confidence)
	}
	if doc.PeriodKey != "2024-01" || doc.NeedsPeriod {
		t.Fatalf("period not inferred: key=%q needs=%v", doc.PeriodKey, doc.NeedsPeriod)
	}
	if len(catalog.docs) != 1 {
		t.Fatalf("document not saved")
	}
}

func TestRegisterFlagsNeedsPeriodWhenInferenceFails(t *testing.T) {
	catalog := &fakeCatalog{types: map[string]domain.DocumentType{"recibo_autonomos": intakeType()}}
	in := newTestIntake(catalog, &fakeArtifacts{})

	doc, err := in.Register(context.Background(), IntakeRequest{
		TypeID:     "recibo_autonomos",
		CompanyKey: "acme",
		Filename:   "scan.pdf",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !doc.NeedsPeriod {
		t.Fatalf("expected needs_period flag without any date signal")
	}
	if doc.Validity.Confidence != 0.0 {
		t.Fatalf("missing issue date must force zero confidence, got %v", doc.Validity.Confidence)
	}
}

func TestRegisterEnforcesScopeKeys(t *testing.T) {
	workerType := intakeType()
	workerType.TypeID = "curso_prl"
	workerType.Scope = domain.ScopeWorker
	catalog := &fakeCatalog{types: map[string]domain.DocumentType{
		"recibo_autonomos": intakeType(),
		"curso_prl":        workerType,
	}}
	in := newTestIntake(catalog, &fakeArtifacts{})

	_, err := in.Register(context.Background(), IntakeRequest{TypeID: "curso_prl", CompanyKey: "acme"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("worker type without person key: want ErrInvalidInput, got %v", err)
	}

	_, err = in.Register(context.Background(), IntakeRequest{TypeID: "recibo_autonomos", PersonKey: "p1"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("company type without company key: want ErrInvalidInput, got %v", err)
	}

	_, err = in.Register(context.Background(), IntakeRequest{TypeID: "unknown", CompanyKey: "acme"})
	if !domain.IsKind(err, domain.ErrTypeNotFound) {
		t.Fatalf("unknown type: want ErrTypeNotFound, got %v", err)
	}
}

func TestAdvanceStatusRejectsRegression(t *testing.T) {
	catalog := &fakeCatalog{
		types: map[string]domain.DocumentType{"recibo_autonomos": intakeType()},
		docs: []domain.DocumentInstance{
			{DocID: "d1", TypeID: "recibo_autonomos", Status: domain.StatusReviewed},
		},
	}
	in := newTestIntake(catalog, &fakeArtifacts{})

	doc, err := in.AdvanceStatus(context.Background(), "d1", domain.StatusReadyToSubmit)
	if err != nil {
		t.Fatalf("AdvanceStatus: %v", err)
	}
	if doc.Status != domain.StatusReadyToSubmit {
		t.Fatalf("status not advanced: %s", doc.Status)
	}

	if _, err := in.AdvanceStatus(context.Background(), "d1", domain.StatusDraft); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("regression: want ErrInvalidInput, got %v", err)
	}
}
