// Package lexical scores token and bigram overlap between a query and a
// passage. Everything here is pure.
package lexical

import (
	"regexp"
	"strings"
)

// #region set
// Set is an unordered string set.
type Set map[string]struct{}

// NewSet builds a set from items.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Intersect counts the items present in both sets.
func (s Set) Intersect(other Set) int {
	small, big := s, other
	if len(big) < len(small) {
		small, big = big, small
	}
	n := 0
	for k := range small {
		if _, ok := big[k]; ok {
			n++
		}
	}
	return n
}

// Slice returns the items in unspecified order.
func (s Set) Slice() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}

// #endregion set

// #region tokenize
var (
	wordPattern   = regexp.MustCompile(`\w{3,}`)
	numberPattern = regexp.MustCompile(`\b\d{2,}\b`)
)

// Words returns the lowercase words of at least three characters, in order.
func Words(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// Tokens returns the query token set: words of three or more characters
// minus question words and function words.
func Tokens(text string) Set {
	s := make(Set)
	for _, w := range Words(text) {
		if !queryStopwords[w] {
			s[w] = struct{}{}
		}
	}
	return s
}

// PassageTokens returns every word of three or more characters.
func PassageTokens(text string) Set {
	return NewSet(Words(text)...)
}

// Bigrams returns adjacent word pairs joined by a space, after dropping
// short words and a small stop list.
func Bigrams(text string) Set {
	var words []string
	for _, w := range Words(text) {
		if !bigramStopwords[w] {
			words = append(words, w)
		}
	}
	s := make(Set)
	for i := 0; i+1 < len(words); i++ {
		s[words[i]+" "+words[i+1]] = struct{}{}
	}
	return s
}

// Numbers returns the multi-digit numeric tokens in text.
func Numbers(text string) []string {
	return numberPattern.FindAllString(text, -1)
}

// #endregion tokenize

// #region overlap
// Query caches the token and bigram sets of one query so they are not
// recomputed for every candidate.
type Query struct {
	Text    string
	Tokens  Set
	Bigrams Set
}

// NewQuery tokenizes text once.
func NewQuery(text string) Query {
	return Query{Text: text, Tokens: Tokens(text), Bigrams: Bigrams(text)}
}

// Overlap counts shared tokens and shared bigrams between the query and a
// passage. passageBigrams may be nil, in which case they are computed.
func (q Query) Overlap(passageText string, passageBigrams Set) (tokens, bigrams int) {
	if passageBigrams == nil {
		passageBigrams = Bigrams(passageText)
	}
	return q.Tokens.Intersect(PassageTokens(passageText)), q.Bigrams.Intersect(passageBigrams)
}

// Overlap is the one-shot form of Query.Overlap.
func Overlap(query, passage string) (tokens, bigrams int) {
	return NewQuery(query).Overlap(passage, nil)
}

// #endregion overlap
