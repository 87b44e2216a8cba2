package retrieval

import (
	"regexp"
	"strings"

	"github.com/danielpatrickdp/grounded-assistant/internal/vocab"
)

// #region normalize
var (
	spaceRun    = regexp.MustCompile(`\s+`)
	clauseSplit = regexp.MustCompile(` and |,`)
)

// Normalize strips extraction artifacts, question and exclamation marks,
// trailing punctuation and redundant whitespace.
func (r *Retriever) Normalize(query string) string {
	s := query
	for _, re := range r.artifacts {
		s = re.ReplaceAllString(s, "")
	}
	s = strings.NewReplacer("?", "", "!", "").Replace(s)
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimRight(strings.TrimSpace(s), ".,;: ")
}

// #endregion normalize

// #region expand
// Expand appends alias and synonym terms for vocabulary words present in
// the query, at most MaxExpansion of them.
func (r *Retriever) Expand(query string) string {
	var terms []string
	seen := make(map[string]bool)
	add := func(t string) {
		key := strings.ToLower(t)
		if seen[key] || vocab.ContainsPhrase(query, t) {
			return
		}
		seen[key] = true
		terms = append(terms, t)
	}
	for _, a := range r.vocab.Aliases {
		if vocab.ContainsAny(query, a.Triggers) {
			add(a.Term)
		}
	}
	for _, syn := range r.vocab.Synonyms {
		if vocab.ContainsPhrase(query, syn.Term) {
			for _, e := range syn.Expansions {
				add(e)
			}
		}
	}
	if len(terms) > r.cfg.MaxExpansion {
		terms = terms[:r.cfg.MaxExpansion]
	}
	if len(terms) == 0 {
		return query
	}
	return query + " " + strings.Join(terms, " ")
}

// #endregion expand

// #region split
// Split breaks a multi-clause ask ("X and Y", "X, Y") into lowercase
// sub-queries. It returns nil unless at least two clauses survive the
// minimum length filter.
func (r *Retriever) Split(query string) []string {
	lower := strings.ToLower(query)
	if !strings.Contains(lower, " and ") && !strings.Contains(lower, ",") {
		return nil
	}
	var parts []string
	for _, p := range clauseSplit.Split(lower, -1) {
		p = strings.TrimSpace(p)
		if len(p) > r.cfg.MinClauseLen {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return nil
	}
	return parts
}

// #endregion split

// #region plan
// Plan is the per-intent retrieval setup: caller boost terms and section hint.
type Plan struct {
	BoostTerms []string
	Section    string
}

// PlanFor picks boost terms from the first matching boost profile, lets an
// intent's own boost terms override them, and looks up the section hint.
func PlanFor(v *vocab.Vocabulary, query, intent string) Plan {
	var p Plan
	for _, prof := range v.BoostProfiles {
		if vocab.ContainsAny(query, prof.Triggers) {
			p.BoostTerms = prof.Terms
			break
		}
	}
	if in, ok := v.Intent(intent); ok {
		if len(in.BoostTerms) > 0 {
			p.BoostTerms = in.BoostTerms
		}
		p.Section = in.Section
	}
	return p
}

// CheckTerms lists the words whose presence in evidence confirms it is on
// topic: concrete entity values plus vocabulary cue words found in the query.
func CheckTerms(v *vocab.Vocabulary, query string, entityValues []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range entityValues {
		if k := strings.ToLower(strings.TrimSpace(t)); k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, cue := range v.QueryCues {
		if k := strings.ToLower(cue); !seen[k] && vocab.ContainsPhrase(query, cue) {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// #endregion plan
