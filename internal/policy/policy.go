// Package policy turns classifier and retrieval signals into exactly one next
// step. Rules are evaluated in a fixed order and the first match wins.
package policy

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/grounded-assistant/internal/nlu"
	"github.com/danielpatrickdp/grounded-assistant/internal/vocab"
)

// Rule names, in evaluation order.
const (
	RuleConfidentAnswer = "confident_answer"
	RuleSafety          = "safety_escalation"
	RuleUncertainAction = "uncertain_action"
	RuleGroundedAnswer  = "grounded_answer"
	RuleAction          = "action_requirements"
	RuleUngrounded      = "ungrounded_escalation"
	RuleDefault         = "default_clarify"
)

// #region rule
// Rule is one entry of the ordered rule list. When must be side-effect free.
type Rule struct {
	Name string
	When func(Input) bool
	Then func(Input) Decision
}

// #endregion rule

// #region engine
// Engine evaluates the rule list. It holds no per-call state, so one engine
// is safe to share across concurrent turns.
type Engine struct {
	vocab      *vocab.Vocabulary
	thresholds Thresholds
	rules      []Rule
}

// NewEngine builds an engine over the given vocabulary. A nil vocabulary uses
// the embedded default.
func NewEngine(v *vocab.Vocabulary, t Thresholds) *Engine {
	if v == nil {
		v = vocab.Default()
	}
	e := &Engine{vocab: v, thresholds: t}
	e.rules = e.buildRules()
	return e
}

// Thresholds returns the engine's cut-offs.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Rules returns a copy of the ordered rule list.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Decide returns the decision of the first rule whose condition holds.
func (e *Engine) Decide(in Input) Decision {
	for _, r := range e.rules {
		if r.When(in) {
			d := r.Then(in)
			d.Rule = r.Name
			return d
		}
	}
	// unreachable: the default rule always matches
	return Decision{NextStep: StepClarify, Reason: "no rule matched", Rule: RuleDefault}
}

// #endregion engine

// #region rules
func (e *Engine) buildRules() []Rule {
	t := e.thresholds
	return []Rule{
		{
			Name: RuleConfidentAnswer,
			When: func(in Input) bool {
				return e.vocab.IsInformational(in.Intent) && in.RetrievalConfidence > t.HighAnswer
			},
			Then: func(in Input) Decision {
				return Decision{
					NextStep: StepAnswer,
					Reason:   fmt.Sprintf("Retrieval confidence %.2f is high for '%s'.", in.RetrievalConfidence, in.Intent),
				}
			},
		},
		{
			Name: RuleSafety,
			When: func(in Input) bool {
				return (in.Urgent || in.Sentiment == nlu.SentimentNegative) && in.Confidence < t.Safety
			},
			Then: func(in Input) Decision {
				return Decision{
					NextStep: StepEscalate,
					Reason:   fmt.Sprintf("Low confidence (%.2f) on urgent/negative request. Escalating for safety.", in.Confidence),
				}
			},
		},
		{
			Name: RuleUncertainAction,
			When: func(in Input) bool {
				return e.vocab.IsAction(in.Intent) && in.Confidence < t.Action
			},
			Then: func(in Input) Decision {
				return Decision{
					NextStep: StepClarify,
					Reason:   fmt.Sprintf("Action intent confidence (%.2f) too low.", in.Confidence),
				}
			},
		},
		{
			Name: RuleGroundedAnswer,
			When: func(in Input) bool {
				return e.vocab.IsInformational(in.Intent) && in.RetrievalConfidence >= t.Answer
			},
			Then: func(in Input) Decision {
				return Decision{
					NextStep: StepAnswer,
					Reason:   fmt.Sprintf("Retrieval confidence %.2f is sufficient for '%s'.", in.RetrievalConfidence, in.Intent),
				}
			},
		},
		{
			Name: RuleAction,
			When: func(in Input) bool { return e.vocab.IsAction(in.Intent) },
			Then: e.decideAction,
		},
		{
			Name: RuleUngrounded,
			When: func(in Input) bool { return e.vocab.IsInformational(in.Intent) },
			Then: func(in Input) Decision {
				return Decision{
					NextStep: StepEscalate,
					Reason:   fmt.Sprintf("Retrieval confidence (%.2f) too low for reliable grounding.", in.RetrievalConfidence),
				}
			},
		},
		{
			Name: RuleDefault,
			When: func(Input) bool { return true },
			Then: func(Input) Decision {
				return Decision{
					NextStep: StepClarify,
					Reason:   "Intent ambiguous or no specific rule triggered.",
				}
			},
		},
	}
}

// decideAction checks required slots first, then the quality gates for the
// intent. A gate reports its own detail name even when the slot is filled.
func (e *Engine) decideAction(in Input) Decision {
	spec, _ := e.vocab.Intent(in.Intent)

	var missing []string
	for _, slot := range spec.Required {
		if !in.Entities.Has(nlu.Slot(slot)) {
			missing = append(missing, slot)
		}
	}
	if len(missing) > 0 {
		return Decision{
			NextStep: StepClarify,
			Missing:  missing,
			Reason:   fmt.Sprintf("Missing required fields for %s: %s.", in.Intent, strings.Join(missing, ", ")),
		}
	}

	for _, g := range e.vocab.QualityGates {
		if g.Intent != in.Intent || waived(g, in.Entities) {
			continue
		}
		if reason, ok := checkGate(g, in.Entities.Value(nlu.Slot(g.Slot))); !ok {
			return Decision{
				NextStep: StepClarify,
				Missing:  []string{g.Missing},
				Reason:   reason,
			}
		}
	}

	return Decision{
		NextStep: StepAction,
		Reason:   fmt.Sprintf("Required entities for %s are present: %s", in.Intent, in.Entities.String()),
	}
}

func waived(g vocab.QualityGate, entities nlu.EntitySet) bool {
	for _, s := range g.WaivedBy {
		if entities.Has(nlu.Slot(s)) {
			return true
		}
	}
	return false
}

func checkGate(g vocab.QualityGate, value string) (string, bool) {
	v := strings.TrimSpace(value)
	if len(v) < g.MinLength {
		if v == "" {
			return fmt.Sprintf("%s is missing.", g.Slot), false
		}
		return fmt.Sprintf("%s '%s' is too short. Need %s.", g.Slot, v, g.Missing), false
	}
	lower := strings.ToLower(v)
	for _, p := range g.GenericPhrases {
		if strings.Contains(lower, strings.ToLower(p)) {
			return fmt.Sprintf("%s '%s' is too generic. Need %s.", g.Slot, v, g.Missing), false
		}
	}
	return "", true
}

// #endregion rules
