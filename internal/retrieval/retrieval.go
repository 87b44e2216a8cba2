package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/danielpatrickdp/grounded-assistant/internal/index"
	"github.com/danielpatrickdp/grounded-assistant/internal/lexical"
	"github.com/danielpatrickdp/grounded-assistant/internal/vocab"
)

// #region retriever
// Retriever runs hybrid retrieval: vector search, rank fusion with lexical
// overlap, cross-encoder rescoring and deterministic boosts.
type Retriever struct {
	provider  index.Provider
	embedder  Embedder
	scorer    Scorer
	vocab     *vocab.Vocabulary
	cfg       Config
	artifacts []*regexp.Regexp
	logger    *slog.Logger
}

// NewRetriever wires the retriever. The vocabulary supplies synonyms,
// entity names, boilerplate phrases and artifact patterns.
func NewRetriever(provider index.Provider, embedder Embedder, scorer Scorer, v *vocab.Vocabulary, cfg Config, logger *slog.Logger) (*Retriever, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retriever{provider: provider, embedder: embedder, scorer: scorer, vocab: v, cfg: cfg, logger: logger}
	for _, p := range v.Artifacts {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("artifact pattern %q: %w", p, err)
		}
		r.artifacts = append(r.artifacts, re)
	}
	return r, nil
}

// Config returns the active tunables.
func (r *Retriever) Config() Config { return r.cfg }

// #endregion retriever

// #region retrieve
type candidate struct {
	passage  *index.Passage
	prescore float64
	score    float64
	order    int
}

// Retrieve returns at most k passages for query in non-increasing score
// order. An empty normalized query returns no evidence without calling any
// collaborator. A missing index surfaces as an error wrapping
// index.ErrUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, boostTerms []string, sectionHint string) ([]Evidence, error) {
	clean := r.Normalize(query)
	if clean == "" || k <= 0 {
		return nil, nil
	}
	expanded := r.Expand(clean)

	idx, err := r.provider.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	vec, err := r.embedder.Embed(ctx, expanded)
	if err != nil {
		return nil, fmt.Errorf("retrieve embed: %w", err)
	}
	hits, err := idx.Search(ctx, vec, r.cfg.CandidateN)
	if err != nil {
		return nil, fmt.Errorf("retrieve search: %w", err)
	}

	pool := r.fuse(clean, hits)
	if len(pool) == 0 {
		return nil, nil
	}

	texts := make([]string, len(pool))
	for i, c := range pool {
		texts[i] = c.passage.Text
	}
	scores, err := r.scorer.ScoreRelevance(ctx, clean, texts)
	if err != nil {
		return nil, fmt.Errorf("retrieve rerank: %w", err)
	}
	if len(scores) != len(pool) {
		return nil, fmt.Errorf("retrieve rerank: %d scores for %d candidates", len(scores), len(pool))
	}

	q := newQueryInfo(r.vocab, clean)
	for i := range pool {
		pool[i].score = scores[i] + r.boost(q, pool[i].passage, boostTerms, sectionHint)
	}
	sort.SliceStable(pool, func(a, b int) bool {
		if pool[a].score != pool[b].score {
			return pool[a].score > pool[b].score
		}
		return pool[a].order < pool[b].order
	})
	if len(pool) > k {
		pool = pool[:k]
	}

	out := make([]Evidence, len(pool))
	for i, c := range pool {
		out[i] = Evidence{Passage: c.passage, Score: c.score, Rank: i}
	}
	r.logger.Debug("retrieved", "query", clean, "expanded", expanded, "candidates", len(hits), "returned", len(out))
	return out, nil
}

// fuse computes the rank-plus-lexical pre-score, drops empty and duplicate
// passages, and truncates to the rerank pool.
func (r *Retriever) fuse(query string, hits []index.Hit) []candidate {
	lq := lexical.NewQuery(query)
	seen := make(map[string]bool, len(hits))
	pool := make([]candidate, 0, len(hits))
	for _, h := range hits {
		p := h.Passage
		if p == nil || strings.TrimSpace(p.Text) == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		tok, bi := lq.Overlap(p.Text, p.Bigrams)
		pre := 1/(r.cfg.RRFOffset+float64(h.Rank)) +
			float64(tok)*r.cfg.TokenWeight + float64(bi)*r.cfg.BigramWeight
		pool = append(pool, candidate{passage: p, prescore: pre, order: len(pool)})
	}
	sort.SliceStable(pool, func(a, b int) bool { return pool[a].prescore > pool[b].prescore })
	if r.cfg.RerankPool > 0 && len(pool) > r.cfg.RerankPool {
		pool = pool[:r.cfg.RerankPool]
	}
	for i := range pool {
		pool[i].order = i
	}
	return pool
}

// #endregion retrieve

// #region boosts
type queryInfo struct {
	lower       string
	numbers     []string
	entities    []string
	substantive bool
}

func newQueryInfo(v *vocab.Vocabulary, query string) queryInfo {
	lower := strings.ToLower(query)
	q := queryInfo{lower: lower, numbers: lexical.Numbers(query)}
	for _, name := range v.EntityNames {
		if strings.Contains(lower, strings.ToLower(name)) {
			q.entities = append(q.entities, strings.ToLower(name))
		}
	}
	q.substantive = vocab.ContainsAny(query, v.Substantive)
	return q
}

func (r *Retriever) boost(q queryInfo, p *index.Passage, boostTerms []string, section string) float64 {
	b := r.cfg.Boosts
	content := strings.ToLower(p.Text)
	var total float64

	for _, t := range boostTerms {
		if vocab.ContainsPhrase(content, t) {
			total += b.Keyword
		}
	}
	for _, name := range q.entities {
		if strings.Contains(content, name) {
			total += b.Entity
		}
	}
	for _, n := range q.numbers {
		if strings.Contains(p.Text, n) {
			total += b.Numeric
		}
	}
	if section != "" && strings.Contains(strings.ToLower(p.Section), strings.ToLower(section)) {
		total += b.Section
	}
	if q.substantive {
		for _, bp := range r.vocab.Boilerplate {
			if strings.Contains(content, strings.ToLower(bp)) {
				total -= b.Boilerplate
				break
			}
		}
		if p.WordCount < b.ShortWords {
			total -= b.Short
		}
	}
	if q.lower != "" && strings.Contains(content, q.lower) {
		total += b.Verbatim
	}
	return total
}

// #endregion boosts

// #region clauses
// RetrieveClauses splits a multi-clause query and retrieves each clause on
// its own with Config.ClauseK, then merges by passage id keeping the better
// score. Every clause's best passage is kept in the result so one clause
// cannot crowd out another; the rest of the k slots go by score. Single
// clause queries fall through to Retrieve.
func (r *Retriever) RetrieveClauses(ctx context.Context, query string, k int, boostTerms []string, sectionHint string) ([]Evidence, error) {
	parts := r.Split(r.Normalize(query))
	if len(parts) == 0 {
		return r.Retrieve(ctx, query, k, boostTerms, sectionHint)
	}

	best := make(map[string]Evidence)
	var reserved []string
	for _, part := range parts {
		ev, err := r.Retrieve(ctx, part, r.cfg.ClauseK, boostTerms, sectionHint)
		if err != nil {
			return nil, fmt.Errorf("clause %q: %w", part, err)
		}
		for i, e := range ev {
			id := e.Passage.ID
			if cur, ok := best[id]; !ok || e.Score > cur.Score {
				best[id] = e
			}
			if i == 0 && !contains(reserved, id) {
				reserved = append(reserved, id)
			}
		}
	}
	r.logger.Debug("multi-clause retrieval", "clauses", len(parts), "merged", len(best))
	return mergeReserved(best, reserved, k), nil
}

func mergeReserved(best map[string]Evidence, reserved []string, k int) []Evidence {
	all := make([]Evidence, 0, len(best))
	for _, e := range best {
		all = append(all, e)
	}
	byScore := func(list []Evidence) {
		sort.Slice(list, func(a, b int) bool {
			if list[a].Score != list[b].Score {
				return list[a].Score > list[b].Score
			}
			return list[a].Passage.ID < list[b].Passage.ID
		})
	}
	byScore(all)

	picked := make(map[string]bool, k)
	out := make([]Evidence, 0, k)
	res := make([]Evidence, 0, len(reserved))
	for _, id := range reserved {
		res = append(res, best[id])
	}
	byScore(res)
	for _, e := range res {
		if len(out) == k {
			break
		}
		picked[e.Passage.ID] = true
		out = append(out, e)
	}
	for _, e := range all {
		if len(out) == k {
			break
		}
		if !picked[e.Passage.ID] {
			picked[e.Passage.ID] = true
			out = append(out, e)
		}
	}
	byScore(out)
	for i := range out {
		out[i].Rank = i
	}
	return out
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// #endregion clauses

// #region confidence
// Confidence maps the top evidence score through a logistic centred at -2.
// When check terms are given and none of them appears in any evidence text,
// the result is damped by 0.6.
func Confidence(evidence []Evidence, checkTerms []string) float64 {
	if len(evidence) == 0 {
		return 0
	}
	top := evidence[0].Score
	for _, e := range evidence[1:] {
		top = math.Max(top, e.Score)
	}
	conf := 1 / (1 + math.Exp(-(top + 2)))
	if len(checkTerms) == 0 {
		return conf
	}
	var b strings.Builder
	for _, e := range evidence {
		b.WriteString(strings.ToLower(e.Passage.Text))
		b.WriteByte(' ')
	}
	combined := b.String()
	for _, t := range checkTerms {
		if strings.Contains(combined, strings.ToLower(t)) {
			return conf
		}
	}
	return conf * 0.6
}

// #endregion confidence
