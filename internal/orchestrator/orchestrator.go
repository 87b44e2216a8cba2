// Package orchestrator runs one conversational turn end to end: classify,
// resolve carryover, retrieve, decide, compose. Every collaborator failure
// has a fallback, so ProcessTurn always returns a response.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielpatrickdp/grounded-assistant/internal/action"
	"github.com/danielpatrickdp/grounded-assistant/internal/carryover"
	"github.com/danielpatrickdp/grounded-assistant/internal/citation"
	"github.com/danielpatrickdp/grounded-assistant/internal/logging"
	"github.com/danielpatrickdp/grounded-assistant/internal/nlu"
	"github.com/danielpatrickdp/grounded-assistant/internal/policy"
	"github.com/danielpatrickdp/grounded-assistant/internal/respond"
	"github.com/danielpatrickdp/grounded-assistant/internal/retrieval"
	"github.com/danielpatrickdp/grounded-assistant/internal/vocab"
)

var tracer = otel.Tracer("orchestrator")

// ruleUnavailable marks decisions short-circuited by a broken retrieval path.
const ruleUnavailable = "retrieval_unavailable"

// #region pipeline

// Deps are the collaborators of a Pipeline. Synthesizer and Log are optional.
type Deps struct {
	Vocab       *vocab.Vocabulary
	Classifier  *nlu.Fallback
	Resolver    *carryover.Resolver
	Retriever   Retriever
	Synthesizer Synthesizer
	Policy      *policy.Engine
	Citations   *citation.Enforcer
	Actions     *action.Builder
	Log         DecisionLog
	Logger      *slog.Logger
	Now         func() time.Time
}

// Pipeline processes turns. It keeps no per-turn state and is safe for
// concurrent use when its collaborators are.
type Pipeline struct {
	d    Deps
	opts Options
}

// NewPipeline validates deps and fills defaults.
func NewPipeline(d Deps, opts Options) (*Pipeline, error) {
	switch {
	case d.Vocab == nil:
		return nil, errors.New("pipeline: vocabulary is required")
	case d.Classifier == nil:
		return nil, errors.New("pipeline: classifier is required")
	case d.Resolver == nil:
		return nil, errors.New("pipeline: carryover resolver is required")
	case d.Retriever == nil:
		return nil, errors.New("pipeline: retriever is required")
	case d.Policy == nil:
		return nil, errors.New("pipeline: policy engine is required")
	}
	if d.Citations == nil {
		d.Citations = citation.NewEnforcer(d.Vocab.DocumentLabel)
	}
	if d.Actions == nil {
		d.Actions = action.NewBuilder(d.Vocab)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	return &Pipeline{d: d, opts: opts}, nil
}

// #endregion

// #region process-turn

// turn carries the intermediate results of one ProcessTurn call.
type turn struct {
	id         string
	text       string
	resolution carryover.Resolution
	degraded   bool
	evidence   []retrieval.Evidence
	confidence float64
	decision   policy.Decision
}

// ProcessTurn answers one user message given the prior conversation.
// history is read, never modified.
func (p *Pipeline) ProcessTurn(ctx context.Context, text string, history []Turn) respond.Response {
	t := &turn{id: uuid.NewString(), text: text}
	ctx, span := tracer.Start(ctx, "orchestrator.process_turn",
		trace.WithAttributes(attribute.String("turn_id", t.id)))
	defer span.End()
	log := p.d.Logger.With("turn_id", t.id)

	if strings.TrimSpace(text) == "" {
		log.Debug("empty input")
		return respond.Response{TurnID: t.id, Kind: respond.KindClarify, Text: EmptyInputPrompt, Reason: "empty input"}
	}

	sig := p.classify(ctx, t)
	p.resolve(ctx, t, sig, history)
	intent := t.resolution.Intent
	log.Info("classified",
		"intent", intent.Label,
		"confidence", intent.Confidence,
		"sentiment", sig.Sentiment.Sentiment,
		"urgent", sig.Sentiment.Urgent,
		"degraded", t.degraded,
		"adopted", t.resolution.Adopted,
		"rerouted", t.resolution.Rerouted,
	)

	if p.d.Vocab.IsInformational(intent.Label) {
		if err := p.retrieve(ctx, t, history); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "retrieval failed")
			log.Error("retrieval failed", "err", err)
			t.decision = policy.Decision{NextStep: policy.StepEscalate, Rule: ruleUnavailable, Reason: err.Error()}
			p.record(ctx, log, t)
			return respond.Response{
				TurnID:        t.id,
				Kind:          respond.KindEscalate,
				Text:          fmt.Sprintf(escalationNotice, unavailableReason),
				Reason:        t.decision.Reason,
				InternalError: true,
				Degraded:      t.degraded,
			}
		}
	}

	_, pspan := tracer.Start(ctx, "orchestrator.policy")
	t.decision = p.d.Policy.Decide(policy.Input{
		Intent:              intent.Label,
		Confidence:          intent.Confidence,
		Sentiment:           sig.Sentiment.Sentiment,
		Urgent:              sig.Sentiment.Urgent,
		Entities:            t.resolution.Entities,
		RetrievalConfidence: t.confidence,
	})
	pspan.SetAttributes(attribute.String("next_step", string(t.decision.NextStep)), attribute.String("rule", t.decision.Rule))
	pspan.End()
	log.Info("decided", "next_step", t.decision.NextStep, "rule", t.decision.Rule, "reason", t.decision.Reason)

	resp := p.compose(ctx, log, t)
	p.record(ctx, log, t)
	return resp
}

// #endregion

// #region stages

func (p *Pipeline) classify(ctx context.Context, t *turn) nlu.Signals {
	ctx, span := tracer.Start(ctx, "orchestrator.classify")
	defer span.End()
	ctx, cancel := withTimeout(ctx, p.opts.Timeouts.Classify)
	defer cancel()

	sig, degraded := p.d.Classifier.Classify(ctx, t.text)
	t.degraded = degraded
	span.SetAttributes(attribute.String("intent", sig.Intent.Label), attribute.Bool("degraded", degraded))
	return sig
}

// resolve applies carryover. History replay calls the classifier again, so
// it gets its own classify deadline; past it the replay runs on heuristics.
func (p *Pipeline) resolve(ctx context.Context, t *turn, sig nlu.Signals, history []Turn) {
	ctx, span := tracer.Start(ctx, "orchestrator.carryover")
	defer span.End()
	ctx, cancel := withTimeout(ctx, p.opts.Timeouts.Classify)
	defer cancel()

	t.resolution = p.d.Resolver.Resolve(ctx, t.text, sig, history)
	if ctx.Err() != nil {
		t.degraded = true
	}
	span.SetAttributes(attribute.Bool("adopted", t.resolution.Adopted), attribute.Bool("degraded", t.degraded))
}

// retrieve fills evidence and retrieval confidence. Any error means the
// retrieval path is broken, which is distinct from finding nothing.
func (p *Pipeline) retrieve(ctx context.Context, t *turn, history []Turn) error {
	ctx, span := tracer.Start(ctx, "orchestrator.retrieve")
	defer span.End()
	ctx, cancel := withTimeout(ctx, p.opts.Timeouts.Retrieval)
	defer cancel()

	query := t.text
	if t.resolution.Adopted {
		// a bare follow-up ("tell me more") searches with the question it follows
		if prev := lastUserText(history); prev != "" {
			query = prev + " " + t.text
		}
	}
	plan := retrieval.PlanFor(p.d.Vocab, query, t.resolution.Intent.Label)

	ev, err := p.d.Retriever.RetrieveClauses(ctx, query, p.opts.TopK, plan.BoostTerms, plan.Section)
	if err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}
	t.evidence = ev
	t.confidence = retrieval.Confidence(ev, retrieval.CheckTerms(p.d.Vocab, query, t.resolution.Entities.Values()))
	span.SetAttributes(attribute.Int("evidence", len(ev)), attribute.Float64("confidence", t.confidence))
	return nil
}

func (p *Pipeline) compose(ctx context.Context, log *slog.Logger, t *turn) respond.Response {
	resp := respond.Response{
		TurnID:   t.id,
		Missing:  t.decision.Missing,
		Reason:   t.decision.Reason,
		Degraded: t.degraded,
	}

	switch t.decision.NextStep {
	case policy.StepAnswer:
		draft := p.draft(ctx, log, t)
		resp.Kind = respond.KindAnswer
		resp.Text = p.d.Citations.Enforce(draft, t.evidence)
		resp.Pages = citation.Pages(resp.Text)
	case policy.StepAction:
		rec := p.d.Actions.Build(t.resolution.Intent.Label, t.resolution.Entities, p.d.Now())
		resp.Kind = respond.KindAction
		resp.Action = &rec
		resp.Text = action.Title(rec.Action)
	case policy.StepClarify:
		resp.Kind = respond.KindClarify
		resp.Text = action.Clarification(t.decision.Missing)
	default:
		resp.Kind = respond.KindEscalate
		if t.decision.Rule == policy.RuleUngrounded {
			resp.Text = citation.NotFound
		} else {
			resp.Text = fmt.Sprintf(escalationNotice, t.decision.Reason)
		}
	}
	return resp
}

// draft asks the synthesizer for an answer and falls back to an extractive
// draft from the top passage when it is missing, fails or returns nothing.
func (p *Pipeline) draft(ctx context.Context, log *slog.Logger, t *turn) string {
	if len(t.evidence) == 0 {
		return citation.NotFound
	}
	if p.d.Synthesizer != nil {
		ctx, span := tracer.Start(ctx, "orchestrator.synthesize")
		ctx, cancel := withTimeout(ctx, p.opts.Timeouts.Synthesis)
		text, err := p.d.Synthesizer.Synthesize(ctx, t.text, evidenceTexts(t.evidence))
		cancel()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "synthesis failed")
		}
		span.End()
		if err == nil && strings.TrimSpace(text) != "" {
			return text
		}
		if err != nil {
			log.Warn("synthesis failed, using extractive draft", "err", err)
		}
	}
	return extractive(t.evidence[0].Passage.Text)
}

func (p *Pipeline) record(ctx context.Context, log *slog.Logger, t *turn) {
	if p.d.Log == nil {
		return
	}
	err := p.d.Log.LogDecision(ctx, logging.Entry{
		TurnID:              t.id,
		Intent:              t.resolution.Intent.Label,
		Confidence:          t.resolution.Intent.Confidence,
		NextStep:            string(t.decision.NextStep),
		Rule:                t.decision.Rule,
		Reason:              t.decision.Reason,
		Missing:             t.decision.Missing,
		RetrievalConfidence: t.confidence,
		EvidencePages:       retrieval.Pages(t.evidence),
		Degraded:            t.degraded,
		CreatedAt:           p.d.Now().UTC(),
	})
	if err != nil {
		log.Warn("decision log write failed", "err", err)
	}
}

// #endregion

// #region helpers

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func lastUserText(history []Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == carryover.RoleUser && strings.TrimSpace(history[i].Text) != "" {
			return history[i].Text
		}
	}
	return ""
}

func evidenceTexts(evidence []retrieval.Evidence) []string {
	out := make([]string, len(evidence))
	for i, e := range evidence {
		out[i] = fmt.Sprintf("Page %d: %s", e.Passage.Page, e.Passage.Text)
	}
	return out
}

const maxExtractive = 300

// extractive returns the leading sentences of text, at most maxExtractive
// bytes, cut on a sentence or word boundary.
func extractive(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if len(s) <= maxExtractive {
		return s
	}
	cut := s[:maxExtractive]
	if i := strings.LastIndex(cut, ". "); i > 0 {
		return cut[:i+1]
	}
	if i := strings.LastIndex(cut, " "); i > 0 {
		return cut[:i] + "."
	}
	return strings.ToValidUTF8(cut, "")
}

// #endregion
