package index

import (
	"context"
	"errors"

	"github.com/danielpatrickdp/grounded-assistant/internal/lexical"
)

// #region errors
// ErrUnavailable means the index could not be reached or loaded. It is an
// internal failure, never the same thing as "no matches".
var ErrUnavailable = errors.New("evidence index unavailable")

// #endregion errors

// #region passage
// Passage is an immutable chunk of source text with its page metadata.
// Passages are shared between requests and must not be modified.
type Passage struct {
	ID        string      `json:"id"`
	DocTitle  string      `json:"doc_title"`
	Page      int         `json:"page"`
	Section   string      `json:"section"`
	Text      string      `json:"content"`
	Bigrams   lexical.Set `json:"-"`
	WordCount int         `json:"word_count"`
}

// #endregion passage

// #region hit
// Hit is one nearest-neighbour result. Rank is zero-based in similarity order.
type Hit struct {
	Passage    *Passage
	Similarity float32
	Rank       int
}

// #endregion hit

// #region interfaces
// Index answers nearest-neighbour queries over passages.
type Index interface {
	Search(ctx context.Context, vector []float32, n int) ([]Hit, error)
}

// Provider hands out the index to use for one request. The returned Index
// stays consistent for the life of the request even if a reload happens.
type Provider interface {
	Acquire(ctx context.Context) (Index, error)
}

// #endregion interfaces
