package nlu

// #region imports
import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/danielpatrickdp/grounded-assistant/internal/vocab"
)

// #endregion

// #region heuristic

// keywordConfidence is assigned when a keyword table decides the intent.
const keywordConfidence = 0.85

// Heuristic is the in-process keyword classifier. No model call; it is the
// deterministic path used when the inference service is down or slow.
type Heuristic struct {
	vocab      *vocab.Vocabulary
	urgency    []*regexp.Regexp
	dates      []*regexp.Regexp
	identifier *regexp.Regexp
	topic      *regexp.Regexp
	priority   []priorityRule
}

type priorityRule struct {
	re    *regexp.Regexp
	label string
}

// NewHeuristic compiles the vocabulary's heuristic tables.
func NewHeuristic(v *vocab.Vocabulary) (*Heuristic, error) {
	h := &Heuristic{vocab: v}
	for _, p := range v.Heuristics.UrgencyPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("urgency pattern %q: %w", p, err)
		}
		h.urgency = append(h.urgency, re)
	}
	for _, p := range v.Heuristics.DatePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("date pattern %q: %w", p, err)
		}
		h.dates = append(h.dates, re)
	}
	var err error
	if p := v.Heuristics.IdentifierPattern; p != "" {
		if h.identifier, err = regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("identifier pattern: %w", err)
		}
	}
	if p := v.Heuristics.TopicPattern; p != "" {
		if h.topic, err = regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("topic pattern: %w", err)
		}
	}
	h.priority = []priorityRule{
		{regexp.MustCompile(`(?i)\bhigh\b`), "High"},
		{regexp.MustCompile(`(?i)\bmedium\b`), "Medium"},
		{regexp.MustCompile(`(?i)\blow\b`), "Low"},
	}
	return h, nil
}

// #endregion

// #region classify-intent

// ClassifyIntent picks the first intent whose keyword list matches.
func (h *Heuristic) ClassifyIntent(_ context.Context, text string) (IntentSignal, error) {
	if strings.TrimSpace(text) == "" {
		return IntentSignal{Label: h.vocab.FallbackIntent, Confidence: 0, Rationale: "Empty query."}, nil
	}
	for _, route := range h.vocab.Heuristics.IntentKeywords {
		if kw := vocab.FirstPhrase(text, route.Keywords); kw != "" {
			return IntentSignal{
				Label:      route.Intent,
				Confidence: keywordConfidence,
				Rationale:  fmt.Sprintf("Keyword match %q for '%s'.", kw, route.Intent),
			}, nil
		}
	}
	return IntentSignal{
		Label:      h.vocab.FallbackIntent,
		Confidence: 0.3,
		Rationale:  "No keyword match.",
	}, nil
}

// #endregion

// #region sentiment

// AnalyzeSentiment flags urgency from the pattern table and polarity from cue words.
func (h *Heuristic) AnalyzeSentiment(_ context.Context, text string) (SentimentSignal, error) {
	var signals []string
	for _, re := range h.urgency {
		if re.MatchString(text) {
			signals = append(signals, signalName(re.String()))
		}
	}
	sentiment := SentimentNeutral
	switch {
	case vocab.ContainsAny(text, h.vocab.Heuristics.NegativeCues):
		sentiment = SentimentNegative
	case vocab.ContainsAny(text, h.vocab.Heuristics.PositiveCues):
		sentiment = SentimentPositive
	}
	return SentimentSignal{
		Sentiment: sentiment,
		Urgent:    len(signals) > 0,
		Signals:   signals,
	}, nil
}

var signalCleaner = strings.NewReplacer(`(?i)`, "", `\b`, "", `\(`, "", `\)`, "")

func signalName(pattern string) string {
	return signalCleaner.Replace(pattern)
}

// #endregion

// #region extract-slots

// ExtractSlots fills slots with regex and closed-label matching.
func (h *Heuristic) ExtractSlots(_ context.Context, text string) (EntitySet, error) {
	var e EntitySet
	if strings.TrimSpace(text) == "" {
		return e, nil
	}
	lower := strings.ToLower(text)
	hv := h.vocab.Heuristics

	if h.identifier != nil {
		if m := h.identifier.FindString(text); m != "" {
			e.Set(SlotEmployeeID, strings.ToUpper(m))
		}
	}

	for _, pr := range h.priority {
		if pr.re.MatchString(text) {
			e.Set(SlotPriority, pr.label)
			break
		}
	}

	for _, so := range hv.SlotOptions {
		if len(so.Cues) > 0 && !vocab.ContainsAny(text, so.Cues) {
			continue
		}
		if opt := matchOption(text, so); opt != "" {
			e.Set(Slot(so.Slot), opt)
		}
	}

	for _, re := range h.dates {
		if m := re.FindString(text); m != "" {
			e.Set(SlotDate, m)
			break
		}
	}

	if vocab.ContainsAny(text, hv.MeetingCues) {
		if h.topic != nil {
			if m := h.topic.FindStringSubmatch(text); len(m) > 1 {
				e.Set(SlotTopic, m[1])
			}
		}
		if !e.Has(SlotTopic) && strings.Contains(lower, "meeting") {
			if len(strings.Fields(text)) > 3 {
				e.Set(SlotTopic, text)
			} else {
				e.Set(SlotTopic, hv.DefaultMeetingName)
			}
		}
	}

	if vocab.ContainsAny(text, hv.DescriptionCues) && len(strings.Fields(text)) >= 3 {
		e.Set(SlotDescription, strings.TrimSpace(text))
	}
	return e, nil
}

func matchOption(text string, so vocab.SlotOptions) string {
	for _, opt := range so.Options {
		if !vocab.ContainsPhrase(text, opt) {
			continue
		}
		exact := false
		for _, x := range so.Exact {
			if x == opt {
				exact = true
				break
			}
		}
		if !exact || containsExact(text, opt) {
			return opt
		}
	}
	return ""
}

func containsExact(text, word string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return r != '-' && r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if f == word {
			return true
		}
	}
	return false
}

// #endregion
