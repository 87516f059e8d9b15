package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jortvara/caesync/internal/core/domain"
	"github.com/jortvara/caesync/internal/core/ports"
)

// Intake registers new artifacts into the catalog: store the file, compute the
// validity window from the type's policy, infer the period, and save the
// document as a draft awaiting operator review.
type Intake struct {
	catalog   ports.CatalogStore
	artifacts ports.ArtifactStore
	validity  *ValidityCalculator
	periods   *PeriodPlanner
	logger    *slog.Logger
	newID     func() string
}

func NewIntake(catalog ports.CatalogStore, artifacts ports.ArtifactStore, periods *PeriodPlanner, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{
		catalog:   catalog,
		artifacts: artifacts,
		validity:  NewValidityCalculator(),
		periods:   periods,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// IntakeRequest carries one artifact plus whatever the operator already knows
// about it. Dates left nil stay open for later extraction or manual entry.
type IntakeRequest struct {
	TypeID     string
	CompanyKey string
	PersonKey  string
	Filename   string
	Extracted  domain.Extracted
	Data       io.Reader
}

func (in *Intake) Register(ctx context.Context, req IntakeRequest) (*domain.DocumentInstance, error) {
	if req.TypeID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "intake.Register", fmt.Errorf("missing type id"))
	}
	docType, err := in.catalog.GetType(ctx, req.TypeID)
	if err != nil {
		return nil, err
	}
	if docType.Scope == domain.ScopeWorker && req.PersonKey == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "intake.Register",
			fmt.Errorf("type %s is worker-scoped and needs a person key", req.TypeID))
	}
	if docType.Scope == domain.ScopeCompany && req.CompanyKey == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "intake.Register",
			fmt.Errorf("type %s is company-scoped and needs a company key", req.TypeID))
	}

	docID := in.newID()
	ext := req.Extracted
	if ext.SourceFilename == "" {
		ext.SourceFilename = filepath.Base(req.Filename)
	}

	var storageKey string
	if req.Data != nil {
		storageKey = filepath.Join(req.TypeID, docID+filepath.Ext(req.Filename))
		if err := in.artifacts.Save(ctx, storageKey, req.Data); err != nil {
			return nil, fmt.Errorf("store artifact: %w", err)
		}
	}

	doc := &domain.DocumentInstance{
		DocID:      docID,
		TypeID:     docType.TypeID,
		Scope:      docType.Scope,
		CompanyKey: req.CompanyKey,
		PersonKey:  req.PersonKey,
		StorageKey: storageKey,
		Extracted:  ext,
		Status:     domain.StatusDraft,
		CreatedAt:  time.Now().UTC(),
	}
	doc.Validity = in.validity.Compute(docType.ValidityPolicy, ext)
	in.periods.Backfill(ctx, doc, docType.ValidityPolicy)

	if err := in.catalog.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	in.logger.Info("document registered",
		"doc_id", doc.DocID,
		"type_id", doc.TypeID,
		"period_key", doc.PeriodKey,
		"needs_period", doc.NeedsPeriod,
		"validity_confidence", doc.Validity.Confidence,
	)
	return doc, nil
}

// AdvanceStatus moves a document along the lifecycle after operator review.
func (in *Intake) AdvanceStatus(ctx context.Context, docID string, to domain.DocumentStatus) (*domain.DocumentInstance, error) {
	doc, err := in.catalog.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(doc.Status, to) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "intake.AdvanceStatus",
			fmt.Errorf("status %s cannot regress to %s", doc.Status, to))
	}
	doc.Status = to
	if err := in.catalog.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
