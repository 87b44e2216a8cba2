package logging

import "time"

// #region entry
// Entry is one row of decision_log: the audit record of why a turn got the
// next step it did. It is not conversation state and is never read back
// into a turn.
type Entry struct {
	TurnID              string    `json:"turn_id"`
	Intent              string    `json:"intent"`
	Confidence          float64   `json:"confidence"`
	NextStep            string    `json:"next_step"`
	Rule                string    `json:"rule"`
	Reason              string    `json:"reason"`
	Missing             []string  `json:"missing,omitempty"`
	RetrievalConfidence float64   `json:"retrieval_confidence"`
	EvidencePages       []int     `json:"evidence_pages,omitempty"`
	Degraded            bool      `json:"degraded"`
	CreatedAt           time.Time `json:"created_at"`
}

// #endregion entry
