package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jortvara/caesync/internal/core/domain"
)

type HintRepository struct {
	db *sql.DB
}

func NewHintRepository(db *sql.DB) *HintRepository {
	return &HintRepository{db: db}
}

// Put is idempotent on the content-addressed hint id. A conflicting insert is
// the same correction recorded twice and is silently ignored, so a disabled
// hint is never resurrected by a repeat confirmation.
func (r *HintRepository) Put(ctx context.Context, hint domain.LearnedHint) error {
	if hint.HintID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "postgres.Put", fmt.Errorf("missing hint id"))
	}
	if hint.CreatedAt.IsZero() {
		hint.CreatedAt = time.Now().UTC()
	}
	hctx, err := json.Marshal(hint.Context)
	if err != nil {
		return fmt.Errorf("encode hint context: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO learned_hints (hint_id, context, normalized_label, strength, target_doc_id, enabled, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (hint_id) DO NOTHING
`, hint.HintID, hctx, hint.Context.NormalizedLabel, hint.Strength, hint.TargetDocID, hint.Enabled, hint.CreatedAt)
	if err != nil {
		return fmt.Errorf("put hint: %w", err)
	}
	return nil
}

func (r *HintRepository) Disable(ctx context.Context, hintID string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE learned_hints
SET enabled = FALSE, disabled_at = COALESCE(disabled_at, $2)
WHERE hint_id = $1
`, hintID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("disable hint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("disable hint rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrHintNotFound, "postgres.Disable", fmt.Errorf("hint %q", hintID))
	}
	return nil
}

// ListEnabled narrows by label in SQL and applies the wildcard context match
// in memory, mirroring the in-file store's semantics.
func (r *HintRepository) ListEnabled(ctx context.Context, hctx domain.HintContext) ([]domain.LearnedHint, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT hint_id, context, strength, target_doc_id, enabled, created_at, disabled_at
FROM learned_hints
WHERE enabled AND normalized_label = $1
ORDER BY hint_id
`, hctx.NormalizedLabel)
	if err != nil {
		return nil, fmt.Errorf("list enabled hints: %w", err)
	}
	defer rows.Close()

	hints, err := scanHints(rows)
	if err != nil {
		return nil, err
	}

	var out []domain.LearnedHint
	for _, h := range hints {
		if h.Matches(hctx) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *HintRepository) ListHints(ctx context.Context, includeDisabled bool) ([]domain.LearnedHint, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT hint_id, context, strength, target_doc_id, enabled, created_at, disabled_at
FROM learned_hints
WHERE enabled OR $1
ORDER BY hint_id
`, includeDisabled)
	if err != nil {
		return nil, fmt.Errorf("list hints: %w", err)
	}
	defer rows.Close()

	return scanHints(rows)
}

func scanHints(rows *sql.Rows) ([]domain.LearnedHint, error) {
	var out []domain.LearnedHint
	for rows.Next() {
		var (
			h          domain.LearnedHint
			hctx       []byte
			disabledAt sql.NullTime
		)
		if err := rows.Scan(&h.HintID, &hctx, &h.Strength, &h.TargetDocID, &h.Enabled, &h.CreatedAt, &disabledAt); err != nil {
			return nil, fmt.Errorf("scan hint: %w", err)
		}
		if err := json.Unmarshal(hctx, &h.Context); err != nil {
			return nil, fmt.Errorf("decode hint context: %w", err)
		}
		if disabledAt.Valid {
			t := disabledAt.Time
			h.DisabledAt = &t
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hints: %w", err)
	}
	return out, nil
}
