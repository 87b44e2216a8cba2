package retrieval

import (
	"context"

	"github.com/danielpatrickdp/grounded-assistant/internal/index"
)

// #region config
// Config holds the candidate sizes and score weights of the hybrid pipeline.
// Boost magnitudes are tuned empirically; only their relative order matters.
type Config struct {
	CandidateN   int     `mapstructure:"candidate_n"`   // nearest neighbours fetched from the index
	RerankPool   int     `mapstructure:"rerank_pool"`   // candidates sent to the relevance scorer
	RRFOffset    float64 `mapstructure:"rrf_offset"`    // k in 1/(k+rank)
	TokenWeight  float64 `mapstructure:"token_weight"`  // per shared query token
	BigramWeight float64 `mapstructure:"bigram_weight"` // per shared bigram
	MaxExpansion int     `mapstructure:"max_expansion"` // synonym terms appended to the vector query
	ClauseK      int     `mapstructure:"clause_k"`      // k for each sub-query of a multi-clause ask
	MinClauseLen int     `mapstructure:"min_clause_len"`

	Boosts Boosts `mapstructure:"boosts"`
}

// Boosts are additive score adjustments applied after relevance scoring.
// Penalties are stored as positive magnitudes.
type Boosts struct {
	Keyword     float64 `mapstructure:"keyword"`
	Entity      float64 `mapstructure:"entity"`
	Numeric     float64 `mapstructure:"numeric"`
	Section     float64 `mapstructure:"section"`
	Verbatim    float64 `mapstructure:"verbatim"`
	Boilerplate float64 `mapstructure:"boilerplate"`
	Short       float64 `mapstructure:"short"`
	ShortWords  int     `mapstructure:"short_words"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		CandidateN:   1000,
		RerankPool:   300,
		RRFOffset:    60,
		TokenWeight:  0.0005,
		BigramWeight: 0.001,
		MaxExpansion: 4,
		ClauseK:      10,
		MinClauseLen: 5,
		Boosts: Boosts{
			Keyword:     3,
			Entity:      12,
			Numeric:     10,
			Section:     4,
			Verbatim:    25,
			Boilerplate: 10,
			Short:       5,
			ShortWords:  40,
		},
	}
}

// #endregion config

// #region evidence
// Evidence is one ranked passage. Rank is zero-based.
type Evidence struct {
	Passage *index.Passage `json:"passage"`
	Score   float64        `json:"score"`
	Rank    int            `json:"rank"`
}

// Pages returns the distinct page numbers in evidence order, skipping zero.
func Pages(evidence []Evidence) []int {
	seen := make(map[int]bool)
	var out []int
	for _, e := range evidence {
		if p := e.Passage.Page; p > 0 && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// #endregion evidence

// #region collaborators
// Embedder turns text into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Scorer scores (query, passage) pairs. The result is aligned with passages.
type Scorer interface {
	ScoreRelevance(ctx context.Context, query string, passages []string) ([]float64, error)
}

// #endregion collaborators
