package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/grounded-assistant/internal/nlu"
	"github.com/danielpatrickdp/grounded-assistant/internal/vocab"
)

func newEngine() *Engine {
	return NewEngine(vocab.Default(), DefaultThresholds())
}

func entities(kv ...string) nlu.EntitySet {
	var e nlu.EntitySet
	for i := 0; i+1 < len(kv); i += 2 {
		e.Set(nlu.Slot(kv[i]), kv[i+1])
	}
	return e
}

func TestRuleOrder(t *testing.T) {
	var names []string
	for _, r := range newEngine().Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		RuleConfidentAnswer,
		RuleSafety,
		RuleUncertainAction,
		RuleGroundedAnswer,
		RuleAction,
		RuleUngrounded,
		RuleDefault,
	}, names)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		step    NextStep
		rule    string
		missing []string
	}{
		{
			name: "confident answer beats safety",
			in:   Input{Intent: "ask_finance", Confidence: 0.2, Urgent: true, RetrievalConfidence: 0.9},
			step: StepAnswer, rule: RuleConfidentAnswer,
		},
		{
			name: "urgent low confidence escalates",
			in:   Input{Intent: "action_ticket", Confidence: 0.3, Urgent: true, Entities: entities("description", "My laptop screen flickers when docked")},
			step: StepEscalate, rule: RuleSafety,
		},
		{
			name: "negative low confidence escalates before grounded answer",
			in:   Input{Intent: "ask_finance", Confidence: 0.5, Sentiment: nlu.SentimentNegative, RetrievalConfidence: 0.6},
			step: StepEscalate, rule: RuleSafety,
		},
		{
			name: "uncertain action clarifies with nothing missing",
			in:   Input{Intent: "action_access", Confidence: 0.5, Entities: entities("application_name", "SAP")},
			step: StepClarify, rule: RuleUncertainAction,
		},
		{
			name: "grounded answer at threshold",
			in:   Input{Intent: "ask_hr", Confidence: 0.9, RetrievalConfidence: 0.45},
			step: StepAnswer, rule: RuleGroundedAnswer,
		},
		{
			name: "high threshold is exclusive",
			in:   Input{Intent: "ask_hr", Confidence: 0.9, RetrievalConfidence: 0.75},
			step: StepAnswer, rule: RuleGroundedAnswer,
		},
		{
			name: "ungrounded informational escalates",
			in:   Input{Intent: "ask_hr", Confidence: 0.9, RetrievalConfidence: 0.3},
			step: StepEscalate, rule: RuleUngrounded,
		},
		{
			name: "missing required slot",
			in:   Input{Intent: "action_ticket", Confidence: 0.9},
			step: StepClarify, rule: RuleAction, missing: []string{"description"},
		},
		{
			name: "placeholder counts as missing",
			in:   Input{Intent: "action_schedule", Confidence: 0.9, Entities: entities("date", "TBD", "topic", "budget review")},
			step: StepClarify, rule: RuleAction, missing: []string{"date"},
		},
		{
			name: "short ticket description fails the gate",
			in:   Input{Intent: "action_ticket", Confidence: 0.9, Entities: entities("description", "laptop broken")},
			step: StepClarify, rule: RuleAction, missing: []string{"issue_details"},
		},
		{
			name: "generic ticket description fails the gate",
			in:   Input{Intent: "action_ticket", Confidence: 0.9, Entities: entities("description", "I need a ticket raised for my problem here please")},
			step: StepClarify, rule: RuleAction, missing: []string{"issue_details"},
		},
		{
			name: "named application waives the ticket gate",
			in:   Input{Intent: "action_ticket", Confidence: 0.9, Entities: entities("description", "please raise a ticket", "application_name", "SAP")},
			step: StepAction, rule: RuleAction,
		},
		{
			name: "specific ticket description acts",
			in:   Input{Intent: "action_ticket", Confidence: 0.9, Entities: entities("description", "My laptop screen flickers whenever I connect the dock")},
			step: StepAction, rule: RuleAction,
		},
		{
			name: "meeting without topic",
			in:   Input{Intent: "action_schedule", Confidence: 0.9, Entities: entities("date", "tomorrow")},
			step: StepClarify, rule: RuleAction, missing: []string{"meeting_topic"},
		},
		{
			name: "generic meeting topic",
			in:   Input{Intent: "action_schedule", Confidence: 0.9, Entities: entities("date", "tomorrow", "topic", "Can you schedule a meeting")},
			step: StepClarify, rule: RuleAction, missing: []string{"meeting_topic"},
		},
		{
			name: "meeting with topic acts",
			in:   Input{Intent: "action_schedule", Confidence: 0.9, Entities: entities("date", "tomorrow", "topic", "budget review")},
			step: StepAction, rule: RuleAction,
		},
		{
			name: "access with application acts",
			in:   Input{Intent: "action_access", Confidence: 0.8, Entities: entities("application_name", "Workday")},
			step: StepAction, rule: RuleAction,
		},
		{
			name: "other falls through to default",
			in:   Input{Intent: "other", Confidence: 0.9},
			step: StepClarify, rule: RuleDefault,
		},
	}

	e := newEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Decide(tt.in)
			assert.Equal(t, tt.step, d.NextStep, d.Reason)
			assert.Equal(t, tt.rule, d.Rule)
			assert.Equal(t, tt.missing, d.Missing)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestDecideIsPure(t *testing.T) {
	e := newEngine()
	in := Input{
		Intent:     "action_schedule",
		Confidence: 0.9,
		Entities:   entities("date", "tomorrow", "topic", "budget review"),
	}
	before := in.Entities.Map()

	first := e.Decide(in)
	second := e.Decide(in)
	assert.Equal(t, first, second)
	assert.Equal(t, before, in.Entities.Map())
}

func TestSafetyPrecedence(t *testing.T) {
	e := newEngine()
	intents := []string{"ask_finance", "ask_hr", "action_ticket", "action_access", "action_schedule", "other", "unknown_label"}
	slotSets := []nlu.EntitySet{
		{},
		entities("application_name", "SAP"),
		entities("date", "tomorrow", "topic", "budget review"),
		entities("description", "My laptop screen flickers whenever I connect the dock"),
	}

	for _, intent := range intents {
		for _, ents := range slotSets {
			for _, conf := range []float64{0, 0.3, 0.54} {
				for _, in := range []Input{
					{Intent: intent, Confidence: conf, Urgent: true, Entities: ents},
					{Intent: intent, Confidence: conf, Sentiment: nlu.SentimentNegative, Entities: ents, RetrievalConfidence: 0.6},
				} {
					d := e.Decide(in)
					require.Equal(t, StepEscalate, d.NextStep, "%s conf=%.2f %s", intent, conf, ents)
					assert.Equal(t, RuleSafety, d.Rule)
				}
			}
		}
	}
}

func TestCustomThresholds(t *testing.T) {
	e := NewEngine(nil, Thresholds{HighAnswer: 0.9, Safety: 0.2, Action: 0.3, Answer: 0.6})
	assert.Equal(t, 0.6, e.Thresholds().Answer)

	d := e.Decide(Input{Intent: "ask_finance", Confidence: 0.4, Urgent: true, RetrievalConfidence: 0.5})
	assert.Equal(t, StepEscalate, d.NextStep)
	assert.Equal(t, RuleUngrounded, d.Rule)

	d = e.Decide(Input{Intent: "action_access", Confidence: 0.35, Entities: entities("application_name", "SAP")})
	assert.Equal(t, StepAction, d.NextStep)
}

func TestRulesReturnsCopy(t *testing.T) {
	e := newEngine()
	rules := e.Rules()
	rules[0] = Rule{Name: "tampered", When: func(Input) bool { return true }, Then: func(Input) Decision { return Decision{} }}

	d := e.Decide(Input{Intent: "other", Confidence: 0.9})
	assert.Equal(t, RuleDefault, d.Rule)
}
