package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

type HintStrength string

const (
	HintExact HintStrength = "EXACT"
	HintSoft  HintStrength = "SOFT"
)

// HintContext is the requirement shape a hint applies to. Label must already
// be normalized (see normalize package) so recurring requirements with cosmetic
// label differences share hints.
type HintContext struct {
	Platform        string `json:"platform"`
	CompanyKey      string `json:"company_key,omitempty"`
	PersonKey       string `json:"person_key,omitempty"`
	TypeID          string `json:"type_id,omitempty"`
	NormalizedLabel string `json:"normalized_label"`
	PeriodKey       string `json:"period_key,omitempty"`
}

// LearnedHint is a persisted human correction. Hints are append-mostly:
// disabling is the only mutation allowed after creation, so the audit trail
// of past corrections is never lost.
type LearnedHint struct {
	HintID      string       `json:"hint_id"`
	Context     HintContext  `json:"context"`
	Strength    HintStrength `json:"strength"`
	TargetDocID string       `json:"target_doc_id"`
	Enabled     bool         `json:"enabled"`
	CreatedAt   time.Time    `json:"created_at"`
	DisabledAt  *time.Time   `json:"disabled_at,omitempty"`
}

// HintID derives the content-addressed id of a hint. The same correction
// always hashes to the same id, which makes hint creation idempotent.
func HintID(ctx HintContext, strength HintStrength, targetDocID string) string {
	fields := []string{
		ctx.Platform,
		ctx.CompanyKey,
		ctx.PersonKey,
		ctx.TypeID,
		ctx.NormalizedLabel,
		ctx.PeriodKey,
		string(strength),
		targetDocID,
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Matches reports whether the hint applies to the given requirement context.
// Empty hint fields are wildcards except the normalized label, which must
// always agree.
func (h LearnedHint) Matches(ctx HintContext) bool {
	if h.Context.NormalizedLabel != ctx.NormalizedLabel {
		return false
	}
	if h.Context.Platform != "" && h.Context.Platform != ctx.Platform {
		return false
	}
	if h.Context.CompanyKey != "" && h.Context.CompanyKey != ctx.CompanyKey {
		return false
	}
	if h.Context.PersonKey != "" && h.Context.PersonKey != ctx.PersonKey {
		return false
	}
	if h.Context.TypeID != "" && ctx.TypeID != "" && h.Context.TypeID != ctx.TypeID {
		return false
	}
	if h.Context.PeriodKey != "" && ctx.PeriodKey != "" && h.Context.PeriodKey != ctx.PeriodKey {
		return false
	}
	return true
}
