package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jortvara/caesync/internal/core/domain"
)

// hashEnvelope is the exact content plan identity is computed over. Anything
// outside this pair (diagnostics, debug reports, timestamps) must never
// influence the id.
type hashEnvelope struct {
	Snapshot domain.PlanSnapshot `json:"snapshot"`
	Items    []domain.PlanItem   `json:"items"`
}

// PlanID computes the content-addressed identity of a plan: sha256 over the
// canonical JSON of the normalized (snapshot, items) pair. Canonical means
// items and requirements sorted by their natural keys; JSON struct fields
// already serialize in stable declaration order and map keys sort.
func PlanID(snapshot domain.PlanSnapshot, items []domain.PlanItem) (string, error) {
	envelope := hashEnvelope{
		Snapshot: normalizeSnapshot(snapshot),
		Items:    normalizeItems(items),
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("marshal plan envelope: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func normalizeSnapshot(s domain.PlanSnapshot) domain.PlanSnapshot {
	out := s
	out.Requirements = append([]domain.PendingRequirement(nil), s.Requirements...)
	sort.SliceStable(out.Requirements, func(i, j int) bool {
		return out.Requirements[i].NaturalKey() < out.Requirements[j].NaturalKey()
	})
	out.Scope = normalizeScope(s.Scope)
	return out
}

func normalizeScope(s domain.PlanScope) domain.PlanScope {
	out := s
	out.TypeIDs = sortedCopy(s.TypeIDs)
	out.CompanyKeys = sortedCopy(s.CompanyKeys)
	out.PersonKeys = sortedCopy(s.PersonKeys)
	out.PeriodKeys = sortedCopy(s.PeriodKeys)
	return out
}

func normalizeItems(items []domain.PlanItem) []domain.PlanItem {
	out := append([]domain.PlanItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ItemKey < out[j].ItemKey })
	return out
}

func sortedCopy(in []string) []string {
	if in == nil {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// VerifyPlanID recomputes a plan's identity from its content. Execution uses
// this to reject plans whose id no longer matches what they carry.
func VerifyPlanID(plan *domain.Plan) (bool, error) {
	id, err := PlanID(plan.Snapshot, plan.Items)
	if err != nil {
		return false, err
	}
	return id == plan.PlanID, nil
}
