package carryover

import "github.com/danielpatrickdp/grounded-assistant/internal/nlu"

// #region turn
// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of caller-owned history. The resolver only reads it.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// #endregion turn

// #region config
// Config tunes continuation detection.
type Config struct {
	Window            int     `mapstructure:"window"`             // prior turns considered
	ShortWords        int     `mapstructure:"short_words"`        // max words of a continuation turn
	LowConfidence     float64 `mapstructure:"low_confidence"`     // classifier confidence treated as unsure
	AdoptedConfidence float64 `mapstructure:"adopted_confidence"` // confidence given to an adopted intent
	RoutedConfidence  float64 `mapstructure:"routed_confidence"`  // confidence given to a keyword-routed informational intent
}

// DefaultConfig returns the standard windows and confidences.
func DefaultConfig() Config {
	return Config{
		Window:            5,
		ShortWords:        8,
		LowConfidence:     0.4,
		AdoptedConfidence: 0.85,
		RoutedConfidence:  0.8,
	}
}

// #endregion config

// #region resolution
// Resolution is the adjusted view of the current turn.
type Resolution struct {
	Intent   nlu.IntentSignal `json:"intent"`
	Entities nlu.EntitySet    `json:"entities"`

	// Informational is the keyword verdict, independent of the classifier.
	Informational bool `json:"informational"`
	// Adopted is set when the intent was taken from an earlier turn.
	Adopted bool `json:"adopted"`
	// Rerouted is set when an informational query was routed by keyword.
	Rerouted bool `json:"rerouted"`
	// PreviousAction is the most recent action intent found in history.
	PreviousAction string `json:"previous_action,omitempty"`
	// Inherited lists slots filled from history.
	Inherited []nlu.Slot `json:"inherited,omitempty"`
	// Reason explains any adjustment in one line.
	Reason string `json:"reason"`
}

// #endregion resolution
