// Package vocab holds the data-driven business vocabulary: intent catalogue,
// synonym and boost tables, keyword cues and slot rules. Everything a deployment
// would want to swap without touching the retrieval or policy algorithms.
package vocab

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"
)

//go:embed default.yaml
var defaultYAML []byte

// #region load

// Default returns the embedded vocabulary.
func Default() *Vocabulary {
	v, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("vocab: embedded default is invalid: %v", err))
	}
	return v
}

// Load reads a vocabulary YAML file. An empty path returns the embedded default.
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary %s: %w", path, err)
	}
	v, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	return v, nil
}

// Parse decodes and validates a vocabulary document.
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// Validate checks internal references and that every pattern compiles.
func (v *Vocabulary) Validate() error {
	if v.FallbackIntent == "" {
		return fmt.Errorf("fallback_intent is required")
	}
	seen := make(map[string]bool, len(v.Intents))
	for _, in := range v.Intents {
		if in.Name == "" {
			return fmt.Errorf("intent with empty name")
		}
		if seen[in.Name] {
			return fmt.Errorf("duplicate intent %q", in.Name)
		}
		seen[in.Name] = true
		switch in.Kind {
		case KindInformational, KindAction, KindOther:
		default:
			return fmt.Errorf("intent %q: unknown kind %q", in.Name, in.Kind)
		}
		if in.Kind == KindAction && in.Action == "" {
			return fmt.Errorf("intent %q: action intents need an action name", in.Name)
		}
	}
	if v.DefaultInformationalIntent != "" && !seen[v.DefaultInformationalIntent] {
		return fmt.Errorf("default_informational_intent %q is not in intents", v.DefaultInformationalIntent)
	}
	for _, r := range v.InformationalRoutes {
		if !seen[r.Intent] {
			return fmt.Errorf("informational route to unknown intent %q", r.Intent)
		}
	}
	var patterns []string
	patterns = append(patterns, v.Artifacts...)
	patterns = append(patterns, v.Heuristics.UrgencyPatterns...)
	patterns = append(patterns, v.Heuristics.DatePatterns...)
	patterns = append(patterns, v.Heuristics.IdentifierPattern, v.Heuristics.TopicPattern)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("pattern %q: %w", p, err)
		}
	}
	return nil
}

// #endregion

// #region lookups

// Intent returns the catalogue entry for a label.
func (v *Vocabulary) Intent(name string) (IntentSpec, bool) {
	for _, in := range v.Intents {
		if in.Name == name {
			return in, true
		}
	}
	return IntentSpec{}, false
}

// KindOf returns the kind of an intent label. Labels missing from the
// catalogue fall back to their ask_/action_ prefix.
func (v *Vocabulary) KindOf(label string) IntentKind {
	if in, ok := v.Intent(label); ok {
		return in.Kind
	}
	switch {
	case strings.HasPrefix(label, "ask_"):
		return KindInformational
	case strings.HasPrefix(label, "action_"):
		return KindAction
	}
	return KindOther
}

// IsInformational reports whether label is an informational intent.
func (v *Vocabulary) IsInformational(label string) bool {
	return v.KindOf(label) == KindInformational
}

// IsAction reports whether label is an action intent.
func (v *Vocabulary) IsAction(label string) bool {
	return v.KindOf(label) == KindAction
}

// IsGlobalSlot reports whether a slot may carry across unrelated topics.
func (v *Vocabulary) IsGlobalSlot(slot string) bool {
	for _, s := range v.GlobalSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// SectionFor returns the preferred passage section for an intent, if any.
func (v *Vocabulary) SectionFor(intent string) string {
	in, _ := v.Intent(intent)
	return in.Section
}

// #endregion

// #region phrase-matching

// ContainsPhrase reports whether phrase occurs in text on word boundaries,
// case-insensitively. "ok" matches "ok, go" but not "book".
func ContainsPhrase(text, phrase string) bool {
	p := normalizeWords(phrase)
	if p == "" {
		return false
	}
	return strings.Contains(" "+normalizeWords(text)+" ", " "+p+" ")
}

// ContainsAny reports whether any phrase occurs in text.
func ContainsAny(text string, phrases []string) bool {
	return FirstPhrase(text, phrases) != ""
}

// FirstPhrase returns the first phrase (in list order) that occurs in text.
func FirstPhrase(text string, phrases []string) string {
	norm := " " + normalizeWords(text) + " "
	for _, ph := range phrases {
		p := normalizeWords(ph)
		if p != "" && strings.Contains(norm, " "+p+" ") {
			return ph
		}
	}
	return ""
}

// normalizeWords lowercases and collapses every run of non-word characters
// to one space. Hyphens and the pipe are kept so "year-on-year" stays whole.
func normalizeWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if isWordRune(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func isWordRune(r rune) bool {
	return r == '-' || r == '|' || r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127
}

// #endregion
