package policy

import "github.com/danielpatrickdp/grounded-assistant/internal/nlu"

// #region next-step
// NextStep is the single outcome of a policy decision.
type NextStep string

const (
	StepAnswer   NextStep = "answer"
	StepAction   NextStep = "action"
	StepClarify  NextStep = "clarify"
	StepEscalate NextStep = "escalate"
)

// #endregion next-step

// #region thresholds
// Thresholds holds the confidence cut-offs the rules compare against.
type Thresholds struct {
	HighAnswer float64 `json:"high_answer" mapstructure:"high_answer"` // retrieval confidence that answers before any other check
	Safety     float64 `json:"safety" mapstructure:"safety"`           // intent confidence below which urgent/negative input escalates
	Action     float64 `json:"action" mapstructure:"action"`           // intent confidence required to act
	Answer     float64 `json:"answer" mapstructure:"answer"`           // retrieval confidence required to answer
}

// DefaultThresholds returns the tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighAnswer: 0.75,
		Safety:     0.55,
		Action:     0.55,
		Answer:     0.45,
	}
}

// #endregion thresholds

// #region input
// Input is everything a decision depends on. Decide reads it and never
// mutates it.
type Input struct {
	Intent              string
	Confidence          float64
	Sentiment           nlu.Sentiment
	Urgent              bool
	Entities            nlu.EntitySet
	RetrievalConfidence float64
}

// #endregion input

// #region decision
// Decision is the policy output. Rule names the rule that fired.
type Decision struct {
	NextStep NextStep `json:"next_step"`
	Missing  []string `json:"missing_entities,omitempty"`
	Reason   string   `json:"reason"`
	Rule     string   `json:"rule"`
}

// #endregion decision
