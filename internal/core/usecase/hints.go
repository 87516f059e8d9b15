package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jortvara/caesync/internal/core/domain"
	"github.com/jortvara/caesync/internal/core/ports"
)

// HintService records explicit human match confirmations as learned hints.
// Adding the same confirmation twice is a no-op: the hint id is derived from
// the content, and the store keeps one record per id.
type HintService struct {
	catalog ports.CatalogStore
	hints   ports.HintStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewHintService(catalog ports.CatalogStore, hints ports.HintStore, logger *slog.Logger) *HintService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HintService{catalog: catalog, hints: hints, logger: logger, now: time.Now}
}

func (s *HintService) ConfirmMatch(ctx context.Context, req domain.PendingRequirement, typeID, docID string, strength domain.HintStrength) (*domain.LearnedHint, error) {
	if strength != domain.HintExact && strength != domain.HintSoft {
		return nil, domain.WrapError(domain.ErrInvalidInput, "confirm match", fmt.Errorf("unknown hint strength %q", strength))
	}

	doc, err := s.catalog.GetDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("load confirmed document: %w", err)
	}
	if typeID != "" && doc.TypeID != typeID {
		return nil, domain.WrapError(domain.ErrInvalidInput, "confirm match",
			fmt.Errorf("document %s is of type %s, not %s", docID, doc.TypeID, typeID))
	}

	hctx := requirementHintContext(req)
	hctx.TypeID = doc.TypeID

	hint := domain.LearnedHint{
		HintID:      domain.HintID(hctx, strength, docID),
		Context:     hctx,
		Strength:    strength,
		TargetDocID: docID,
		Enabled:     true,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.hints.Put(ctx, hint); err != nil {
		return nil, fmt.Errorf("persist hint: %w", err)
	}

	s.logger.Info("hint recorded", "hint_id", hint.HintID, "strength", strength, "doc_id", docID)
	return &hint, nil
}

func (s *HintService) DisableHint(ctx context.Context, hintID string) error {
	if err := s.hints.Disable(ctx, hintID); err != nil {
		if errors.Is(err, domain.ErrHintNotFound) {
			return err
		}
		return fmt.Errorf("disable hint %s: %w", hintID, err)
	}
	s.logger.Info("hint disabled", "hint_id", hintID)
	return nil
}
