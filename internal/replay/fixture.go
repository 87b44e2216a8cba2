package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/grounded-assistant/internal/nlu"
	"github.com/danielpatrickdp/grounded-assistant/internal/policy"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: one scripted
// conversation with the classifier outputs each turn would have produced.
type Fixture struct {
	Description string             `json:"description"`
	Thresholds  *policy.Thresholds `json:"thresholds,omitempty"`
	Turns       []FixtureTurn      `json:"turns"`
}

// FixtureTurn is one user message with its recorded signals.
type FixtureTurn struct {
	TurnID              string              `json:"turn_id"`
	Text                string              `json:"text"`
	Intent              nlu.IntentSignal    `json:"intent"`
	Sentiment           nlu.SentimentSignal `json:"sentiment"`
	Entities            nlu.EntitySet       `json:"entities"`
	RetrievalConfidence float64             `json:"retrieval_confidence"`
	Expect              Expectation         `json:"expect"`
}

// Expectation lists what the turn must resolve to. Empty fields are not
// checked; a nil Missing is not checked, an empty one must match exactly.
type Expectation struct {
	NextStep string   `json:"next_step"`
	Intent   string   `json:"intent,omitempty"`
	Rule     string   `json:"rule,omitempty"`
	Missing  []string `json:"missing,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Turns) == 0 {
		return nil, fmt.Errorf("fixture %s has no turns", path)
	}
	for i, t := range f.Turns {
		if t.TurnID == "" {
			f.Turns[i].TurnID = fmt.Sprintf("t%d", i+1)
		}
	}
	return &f, nil
}

// Signals returns the recorded classifier output for the turn.
func (t FixtureTurn) Signals() nlu.Signals {
	return nlu.Signals{Intent: t.Intent, Sentiment: t.Sentiment, Entities: t.Entities.Clone()}
}

// #endregion fixture-loader
