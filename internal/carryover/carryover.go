// Package carryover adjusts a turn's intent and entities using recent
// history: it rebuilds slots from earlier user turns, detects continuations
// of an unfinished action, and keeps entities from leaking across topics.
package carryover

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/danielpatrickdp/grounded-assistant/internal/nlu"
	"github.com/danielpatrickdp/grounded-assistant/internal/vocab"
)

// #region resolver
// Extractor is what the resolver needs to replay earlier turns.
type Extractor interface {
	ClassifyIntent(ctx context.Context, text string) (nlu.IntentSignal, error)
	ExtractSlots(ctx context.Context, text string) (nlu.EntitySet, error)
}

// Resolver applies the carryover rules. It holds no per-conversation state.
type Resolver struct {
	vocab     *vocab.Vocabulary
	extractor Extractor
	cfg       Config
	logger    *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(v *vocab.Vocabulary, extractor Extractor, cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{vocab: v, extractor: extractor, cfg: cfg, logger: logger}
}

// #endregion resolver

// #region history
type replay struct {
	entities       nlu.EntitySet
	turns          []statedTurn // most recent first
	previousAction string
	lastIntent     string
}

// statedTurn is one earlier user turn with the intent its slots belong to.
type statedTurn struct {
	intent string
	slots  nlu.EntitySet
}

// replayHistory re-extracts every user turn in the window. A turn the
// classifier cannot place answers whatever request was pending before it,
// so its slots are attributed to that request. entities is the flattened
// view; a slot is only taken from an older turn when no newer turn filled it.
func (r *Resolver) replayHistory(ctx context.Context, history []Turn) replay {
	var out replay
	window := history
	if r.cfg.Window > 0 && len(window) > r.cfg.Window {
		window = window[len(window)-r.cfg.Window:]
	}
	var pending string
	for _, t := range window {
		if t.Role != RoleUser || strings.TrimSpace(t.Text) == "" {
			continue
		}
		var label string
		intent, err := r.extractor.ClassifyIntent(ctx, t.Text)
		if err != nil {
			r.logger.Warn("history intent replay failed", "err", err)
		} else {
			label = intent.Label
			out.lastIntent = label
			if r.vocab.IsAction(label) {
				out.previousAction = label
			}
		}
		if label == "" || r.vocab.KindOf(label) == vocab.KindOther {
			label = pending
		} else {
			pending = label
		}

		slots, err := r.extractor.ExtractSlots(ctx, t.Text)
		if err != nil {
			r.logger.Warn("history slot replay failed", "err", err)
			continue
		}
		out.turns = append(out.turns, statedTurn{intent: label, slots: slots})
	}
	slices.Reverse(out.turns)
	for _, st := range out.turns {
		for _, s := range st.slots.Slots() {
			if !out.entities.Has(s) {
				out.entities.Set(s, st.slots.Value(s))
			}
		}
	}
	return out
}

// #endregion history

// #region resolve
// Resolve adjusts the current turn's signals. current is not modified.
func (r *Resolver) Resolve(ctx context.Context, text string, current nlu.Signals, history []Turn) Resolution {
	hist := r.replayHistory(ctx, history)
	res := Resolution{
		Intent:         current.Intent,
		Entities:       current.Entities.Clone(),
		Informational:  vocab.ContainsAny(text, r.vocab.InformationalKeywords),
		PreviousAction: hist.previousAction,
	}

	r.adopt(text, &res, hist)
	if !res.Adopted {
		r.route(text, &res)
	}
	r.merge(&res, hist)
	return res
}

// adopt treats a short, otherwise unclassifiable turn as the continuation of
// an earlier request. An informational query never adopts an action.
func (r *Resolver) adopt(text string, res *Resolution, hist replay) {
	if res.Informational || r.vocab.KindOf(res.Intent.Label) != vocab.KindOther {
		return
	}
	words := len(strings.Fields(text))
	if words == 0 || words > r.cfg.ShortWords {
		return
	}
	continuation := vocab.FirstPhrase(text, r.vocab.ContinuationPhrases)
	lowConf := res.Intent.Confidence < r.cfg.LowConfidence

	if hist.previousAction != "" && r.hasConcreteSlot(res.Entities, hist.entities) && (continuation != "" || lowConf) {
		why := fmt.Sprintf("continuation phrase %q", continuation)
		if continuation == "" {
			why = fmt.Sprintf("low classifier confidence %.2f", res.Intent.Confidence)
		}
		r.setAdopted(res, hist.previousAction, why)
		return
	}

	// "tell me more" after a question continues that question.
	if continuation != "" && r.vocab.IsInformational(hist.lastIntent) {
		r.setAdopted(res, hist.lastIntent, fmt.Sprintf("continuation phrase %q", continuation))
	}
}

func (r *Resolver) setAdopted(res *Resolution, intent, why string) {
	prev := res.Intent.Label
	res.Adopted = true
	res.Intent = nlu.IntentSignal{
		Label:      intent,
		Confidence: r.cfg.AdoptedConfidence,
		Rationale:  fmt.Sprintf("Adopted %s from history (%s).", intent, why),
	}
	res.Reason = fmt.Sprintf("adopted %s over %s: %s", intent, prev, why)
}

// route sends an informational query the classifier did not recognise to
// the first informational intent whose keywords match.
func (r *Resolver) route(text string, res *Resolution) {
	if !res.Informational || r.vocab.KindOf(res.Intent.Label) != vocab.KindOther {
		return
	}
	target := r.vocab.DefaultInformationalIntent
	for _, rt := range r.vocab.InformationalRoutes {
		if vocab.ContainsAny(text, rt.Keywords) {
			target = rt.Intent
			break
		}
	}
	if target == "" {
		return
	}
	prev := res.Intent.Label
	res.Rerouted = true
	res.Intent = nlu.IntentSignal{
		Label:      target,
		Confidence: r.cfg.RoutedConfidence,
		Rationale:  fmt.Sprintf("Informational query routed to %s.", target),
	}
	res.Reason = fmt.Sprintf("routed informational query from %s to %s", prev, target)
}

func (r *Resolver) hasConcreteSlot(sets ...nlu.EntitySet) bool {
	for _, e := range sets {
		for _, s := range r.vocab.ConcreteSlots {
			if e.Has(nlu.Slot(s)) {
				return true
			}
		}
	}
	return false
}

// merge fills unset slots from history, most recent turn first. Global
// slots always carry; the rest only carry from turns of the action being
// continued.
func (r *Resolver) merge(res *Resolution, hist replay) {
	label := res.Intent.Label
	continuing := r.vocab.IsAction(label) && (res.Adopted || label == hist.previousAction)
	for _, st := range hist.turns {
		sameAction := continuing && st.intent == label
		for _, s := range st.slots.Slots() {
			if res.Entities.Has(s) {
				continue
			}
			if !sameAction && !r.vocab.IsGlobalSlot(string(s)) {
				continue
			}
			if res.Entities.Set(s, st.slots.Value(s)) {
				res.Inherited = append(res.Inherited, s)
			}
		}
	}
}

// #endregion resolve
