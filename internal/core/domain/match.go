package domain

// HintEffect records what a learned hint did during one match run.
type HintEffect string

const (
	HintResolved HintEffect = "resolved"
	HintBoosted  HintEffect = "boosted"
	HintIgnored  HintEffect = "ignored"
)

type HintApplication struct {
	HintID string     `json:"hint_id"`
	DocID  string     `json:"doc_id"`
	Effect HintEffect `json:"effect"`
}

// Candidate is one scored catalog document inside a match run.
type Candidate struct {
	Doc       DocumentInstance `json:"doc"`
	TypeID    string           `json:"type_id"`
	Score     float64          `json:"score"`
	Breakdown []string         `json:"breakdown,omitempty"`
	Rejection string           `json:"rejection,omitempty"`
}

// MatchResult is the matcher's verdict for a single pending requirement.
// Reasons explain the winning score even when no operator flag is set.
type MatchResult struct {
	Best          *Candidate        `json:"best,omitempty"`
	Alternatives  []Candidate       `json:"alternatives,omitempty"`
	Confidence    float64           `json:"confidence"`
	Reasons       []string          `json:"reasons,omitempty"`
	NeedsOperator bool              `json:"needs_operator"`
	AppliedHints  []HintApplication `json:"applied_hints,omitempty"`
}

// Gap returns the score distance between the best candidate and the runner-up.
// With fewer than two candidates the gap is effectively infinite.
func (m MatchResult) Gap() float64 {
	if m.Best == nil || len(m.Alternatives) == 0 {
		return 1.0
	}
	return m.Best.Score - m.Alternatives[0].Score
}
