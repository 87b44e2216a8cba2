// Package replay runs scripted conversations through carryover and policy
// in memory, so routing regressions show up without any model or index.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielpatrickdp/grounded-assistant/internal/carryover"
	"github.com/danielpatrickdp/grounded-assistant/internal/nlu"
	"github.com/danielpatrickdp/grounded-assistant/internal/policy"
	"github.com/danielpatrickdp/grounded-assistant/internal/vocab"
)

// #region types

// Result is the outcome of replaying one turn.
type Result struct {
	TurnID   string          `json:"turn_id"`
	Intent   string          `json:"intent"`
	Adopted  bool            `json:"adopted"`
	Entities nlu.EntitySet   `json:"entities"`
	Decision policy.Decision `json:"decision"`

	// Mismatches lists every expectation the turn failed.
	Mismatches []string `json:"mismatches,omitempty"`
}

// OK reports whether the turn met its expectation.
func (r Result) OK() bool { return len(r.Mismatches) == 0 }

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalTurns  int `json:"total_turns"`
	Answers     int `json:"answers"`
	Actions     int `json:"actions"`
	Clarifies   int `json:"clarifies"`
	Escalations int `json:"escalations"`
	Mismatches  int `json:"mismatches"`
}

// #endregion types

// #region extractor

// scripted answers history replay from the fixture's own recorded signals,
// falling back to heuristics for text the fixture never scripted.
type scripted struct {
	turns    map[string]FixtureTurn
	fallback carryover.Extractor
}

func (s scripted) ClassifyIntent(ctx context.Context, text string) (nlu.IntentSignal, error) {
	if t, ok := s.turns[text]; ok {
		return t.Intent, nil
	}
	return s.fallback.ClassifyIntent(ctx, text)
}

func (s scripted) ExtractSlots(ctx context.Context, text string) (nlu.EntitySet, error) {
	if t, ok := s.turns[text]; ok {
		return t.Entities.Clone(), nil
	}
	return s.fallback.ExtractSlots(ctx, text)
}

// #endregion extractor

// #region replay

// Run replays every turn of f in order. Each turn sees the previous turns as
// history, with the assistant side recorded as the decided next step.
func Run(ctx context.Context, f *Fixture, v *vocab.Vocabulary, logger *slog.Logger) ([]Result, error) {
	if v == nil {
		v = vocab.Default()
	}
	rules, err := nlu.NewHeuristic(v)
	if err != nil {
		return nil, fmt.Errorf("replay heuristics: %w", err)
	}
	thresholds := policy.DefaultThresholds()
	if f.Thresholds != nil {
		thresholds = *f.Thresholds
	}

	ex := scripted{turns: make(map[string]FixtureTurn, len(f.Turns)), fallback: rules}
	for _, t := range f.Turns {
		ex.turns[t.Text] = t
	}
	resolver := carryover.NewResolver(v, ex, carryover.DefaultConfig(), logger)
	engine := policy.NewEngine(v, thresholds)

	var history []carryover.Turn
	results := make([]Result, 0, len(f.Turns))
	for _, t := range f.Turns {
		res := resolver.Resolve(ctx, t.Text, t.Signals(), history)

		var retrievalConf float64
		if v.IsInformational(res.Intent.Label) {
			retrievalConf = t.RetrievalConfidence
		}
		d := engine.Decide(policy.Input{
			Intent:              res.Intent.Label,
			Confidence:          res.Intent.Confidence,
			Sentiment:           t.Sentiment.Sentiment,
			Urgent:              t.Sentiment.Urgent,
			Entities:            res.Entities,
			RetrievalConfidence: retrievalConf,
		})

		r := Result{
			TurnID:   t.TurnID,
			Intent:   res.Intent.Label,
			Adopted:  res.Adopted,
			Entities: res.Entities,
			Decision: d,
		}
		r.Mismatches = compare(t.Expect, r)
		results = append(results, r)

		history = append(history,
			carryover.Turn{Role: carryover.RoleUser, Text: t.Text},
			carryover.Turn{Role: carryover.RoleAssistant, Text: string(d.NextStep)},
		)
	}
	return results, nil
}

func compare(want Expectation, got Result) []string {
	var out []string
	if want.NextStep != "" && want.NextStep != string(got.Decision.NextStep) {
		out = append(out, fmt.Sprintf("next_step: want %s, got %s (%s)", want.NextStep, got.Decision.NextStep, got.Decision.Reason))
	}
	if want.Intent != "" && want.Intent != got.Intent {
		out = append(out, fmt.Sprintf("intent: want %s, got %s", want.Intent, got.Intent))
	}
	if want.Rule != "" && want.Rule != got.Decision.Rule {
		out = append(out, fmt.Sprintf("rule: want %s, got %s", want.Rule, got.Decision.Rule))
	}
	if want.Missing != nil && strings.Join(want.Missing, ",") != strings.Join(got.Decision.Missing, ",") {
		out = append(out, fmt.Sprintf("missing: want %v, got %v", want.Missing, got.Decision.Missing))
	}
	return out
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{TotalTurns: len(results)}
	for _, r := range results {
		switch r.Decision.NextStep {
		case policy.StepAnswer:
			s.Answers++
		case policy.StepAction:
			s.Actions++
		case policy.StepClarify:
			s.Clarifies++
		case policy.StepEscalate:
			s.Escalations++
		}
		if !r.OK() {
			s.Mismatches++
		}
	}
	return s
}

// #endregion replay
