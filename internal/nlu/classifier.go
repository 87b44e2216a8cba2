package nlu

import (
	"context"
	"log/slog"
)

// #region classifier

// Classifier is the consumer-side view of the external classifiers.
type Classifier interface {
	ClassifyIntent(ctx context.Context, text string) (IntentSignal, error)
	AnalyzeSentiment(ctx context.Context, text string) (SentimentSignal, error)
	ExtractSlots(ctx context.Context, text string) (EntitySet, error)
}

// #endregion

// #region fallback

// Fallback routes every call to Primary and answers from Secondary when the
// primary call fails. Secondary must not fail.
type Fallback struct {
	Primary   Classifier
	Secondary Classifier
	Logger    *slog.Logger
}

// NewFallback wires a primary classifier with a deterministic secondary.
func NewFallback(primary, secondary Classifier, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{Primary: primary, Secondary: secondary, Logger: logger}
}

// ClassifyIntent implements Classifier.
func (f *Fallback) ClassifyIntent(ctx context.Context, text string) (IntentSignal, error) {
	s, _ := f.intent(ctx, text)
	return s, nil
}

// AnalyzeSentiment implements Classifier.
func (f *Fallback) AnalyzeSentiment(ctx context.Context, text string) (SentimentSignal, error) {
	s, _ := f.sentiment(ctx, text)
	return s, nil
}

// ExtractSlots implements Classifier.
func (f *Fallback) ExtractSlots(ctx context.Context, text string) (EntitySet, error) {
	s, _ := f.slots(ctx, text)
	return s, nil
}

// Classify runs all three classifiers and reports whether any of them had to
// fall back.
func (f *Fallback) Classify(ctx context.Context, text string) (Signals, bool) {
	intent, d1 := f.intent(ctx, text)
	sentiment, d2 := f.sentiment(ctx, text)
	entities, d3 := f.slots(ctx, text)
	return Signals{Intent: intent, Sentiment: sentiment, Entities: entities}, d1 || d2 || d3
}

func (f *Fallback) intent(ctx context.Context, text string) (IntentSignal, bool) {
	if f.Primary != nil {
		s, err := f.Primary.ClassifyIntent(ctx, text)
		if err == nil {
			return s, false
		}
		f.Logger.Warn("intent classifier failed, using heuristics", "err", err)
	}
	s, _ := f.Secondary.ClassifyIntent(ctx, text)
	return s, f.Primary != nil
}

func (f *Fallback) sentiment(ctx context.Context, text string) (SentimentSignal, bool) {
	if f.Primary != nil {
		s, err := f.Primary.AnalyzeSentiment(ctx, text)
		if err == nil {
			return s, false
		}
		f.Logger.Warn("sentiment classifier failed, using heuristics", "err", err)
	}
	s, _ := f.Secondary.AnalyzeSentiment(ctx, text)
	return s, f.Primary != nil
}

func (f *Fallback) slots(ctx context.Context, text string) (EntitySet, bool) {
	if f.Primary != nil {
		s, err := f.Primary.ExtractSlots(ctx, text)
		if err == nil {
			return s, false
		}
		f.Logger.Warn("slot extractor failed, using heuristics", "err", err)
	}
	s, _ := f.Secondary.ExtractSlots(ctx, text)
	return s, f.Primary != nil
}

// #endregion
