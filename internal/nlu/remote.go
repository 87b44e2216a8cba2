package nlu

import (
	"context"
	"strings"

	"github.com/danielpatrickdp/grounded-assistant/internal/codec"
)

// #region remote

// Service is the slice of the inference client the remote classifier needs.
type Service interface {
	ClassifyIntent(ctx context.Context, text string) (codec.Label, error)
	ClassifySentiment(ctx context.Context, text string) (codec.Label, error)
	ClassifyUrgency(ctx context.Context, text string) (codec.Label, error)
	ExtractSlots(ctx context.Context, text string) (map[string]string, error)
}

// Sentiment thresholds applied to the model scores.
const (
	polarityThreshold = 0.6
	urgentThreshold   = 0.85
	// negativeOverride is the score below which a negative verdict on a
	// non-urgent query is treated as neutral business language.
	negativeOverride = 0.9
	urgentLabel      = "urgent assistance required"
)

// Remote classifies through the inference service. Keyword urgency signals
// from the heuristic tables are merged into the model verdict.
type Remote struct {
	svc   Service
	rules *Heuristic
}

// NewRemote wraps svc. rules supplies the urgency patterns and slot
// heuristics used to complement model output.
func NewRemote(svc Service, rules *Heuristic) *Remote {
	return &Remote{svc: svc, rules: rules}
}

// ClassifyIntent implements Classifier.
func (r *Remote) ClassifyIntent(ctx context.Context, text string) (IntentSignal, error) {
	if strings.TrimSpace(text) == "" {
		return r.rules.ClassifyIntent(ctx, text)
	}
	l, err := r.svc.ClassifyIntent(ctx, text)
	if err != nil {
		return IntentSignal{}, err
	}
	return IntentSignal{Label: l.Label, Confidence: clamp01(l.Confidence), Rationale: l.Rationale}, nil
}

// AnalyzeSentiment implements Classifier.
func (r *Remote) AnalyzeSentiment(ctx context.Context, text string) (SentimentSignal, error) {
	pol, err := r.svc.ClassifySentiment(ctx, text)
	if err != nil {
		return SentimentSignal{}, err
	}
	urg, err := r.svc.ClassifyUrgency(ctx, text)
	if err != nil {
		return SentimentSignal{}, err
	}
	local, _ := r.rules.AnalyzeSentiment(ctx, text)

	label := strings.ToLower(pol.Label)
	sentiment := SentimentNeutral
	switch {
	case label == "positive" && pol.Confidence > polarityThreshold:
		sentiment = SentimentPositive
	case label == "negative" && pol.Confidence > polarityThreshold:
		sentiment = SentimentNegative
	}

	urgent := (urg.Label == urgentLabel && urg.Confidence > urgentThreshold) || local.Urgent
	if !urgent && label == "negative" && pol.Confidence < negativeOverride {
		sentiment = SentimentNeutral
	}
	return SentimentSignal{Sentiment: sentiment, Urgent: urgent, Signals: local.Signals}, nil
}

// ExtractSlots implements Classifier. Model values win; heuristic values fill gaps.
func (r *Remote) ExtractSlots(ctx context.Context, text string) (EntitySet, error) {
	raw, err := r.svc.ExtractSlots(ctx, text)
	if err != nil {
		return EntitySet{}, err
	}
	e, _ := r.rules.ExtractSlots(ctx, text)
	for k, v := range raw {
		e.Set(Slot(k), v)
	}
	return e, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// #endregion
