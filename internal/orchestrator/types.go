package orchestrator

import (
	"context"
	"time"

	"github.com/danielpatrickdp/grounded-assistant/internal/carryover"
	"github.com/danielpatrickdp/grounded-assistant/internal/logging"
	"github.com/danielpatrickdp/grounded-assistant/internal/retrieval"
)

// #region turn

// Turn is one message of caller-owned history.
type Turn = carryover.Turn

// #endregion

// #region fixed-text

const (
	// EmptyInputPrompt answers blank input without calling any collaborator.
	EmptyInputPrompt = "I'm sorry, I didn't catch that. Could you please rephrase your request?"

	escalationNotice  = "I am escalating this request to a human agent. Reason: %s"
	unavailableReason = "the knowledge base is currently unavailable."
)

// #endregion

// #region options

// Timeouts bound each external stage. A zero value disables the bound.
type Timeouts struct {
	Classify  time.Duration `mapstructure:"classify"`
	Retrieval time.Duration `mapstructure:"retrieval"`
	Synthesis time.Duration `mapstructure:"synthesis"`
}

// DefaultTimeouts returns conservative per-stage deadlines.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Classify:  5 * time.Second,
		Retrieval: 10 * time.Second,
		Synthesis: 20 * time.Second,
	}
}

// Options tunes the pipeline.
type Options struct {
	TopK     int
	Timeouts Timeouts
}

// DefaultOptions returns the standard top-k and timeouts.
func DefaultOptions() Options {
	return Options{TopK: 5, Timeouts: DefaultTimeouts()}
}

// #endregion

// #region interfaces

// Retriever finds evidence for informational queries.
type Retriever interface {
	RetrieveClauses(ctx context.Context, query string, k int, boostTerms []string, sectionHint string) ([]retrieval.Evidence, error)
}

// Synthesizer drafts an answer from evidence texts.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, evidence []string) (string, error)
}

// DecisionLog records why each turn got its next step.
type DecisionLog interface {
	LogDecision(ctx context.Context, e logging.Entry) error
}

// #endregion
