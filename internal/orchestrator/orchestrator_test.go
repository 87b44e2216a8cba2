package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/grounded-assistant/internal/carryover"
	"github.com/danielpatrickdp/grounded-assistant/internal/citation"
	"github.com/danielpatrickdp/grounded-assistant/internal/index"
	"github.com/danielpatrickdp/grounded-assistant/internal/logging"
	"github.com/danielpatrickdp/grounded-assistant/internal/nlu"
	"github.com/danielpatrickdp/grounded-assistant/internal/policy"
	"github.com/danielpatrickdp/grounded-assistant/internal/respond"
	"github.com/danielpatrickdp/grounded-assistant/internal/retrieval"
	"github.com/danielpatrickdp/grounded-assistant/internal/vocab"
)

// #region fakes

// scriptedClassifier answers from a table and fails for anything else.
// Texts in slow block until the caller's deadline.
type scriptedClassifier struct {
	mu      sync.Mutex
	signals map[string]nlu.Signals
	slow    map[string]bool
	calls   int
}

func (s *scriptedClassifier) lookup(ctx context.Context, text string) (nlu.Signals, error) {
	if s.slow[text] {
		<-ctx.Done()
		return nlu.Signals{}, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	sig, ok := s.signals[text]
	if !ok {
		return nlu.Signals{}, errors.New("model unavailable")
	}
	return sig, nil
}

func (s *scriptedClassifier) ClassifyIntent(ctx context.Context, text string) (nlu.IntentSignal, error) {
	sig, err := s.lookup(ctx, text)
	return sig.Intent, err
}

func (s *scriptedClassifier) AnalyzeSentiment(ctx context.Context, text string) (nlu.SentimentSignal, error) {
	sig, err := s.lookup(ctx, text)
	return sig.Sentiment, err
}

func (s *scriptedClassifier) ExtractSlots(ctx context.Context, text string) (nlu.EntitySet, error) {
	sig, err := s.lookup(ctx, text)
	return sig.Entities, err
}

type fakeRetriever struct {
	evidence []retrieval.Evidence
	err      error
	block    bool
	queries  []string
}

func (f *fakeRetriever) RetrieveClauses(ctx context.Context, query string, k int, _ []string, _ string) ([]retrieval.Evidence, error) {
	f.queries = append(f.queries, query)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.evidence) > k {
		return f.evidence[:k], nil
	}
	return f.evidence, nil
}

type fakeSynth struct {
	text string
	err  error
}

func (f fakeSynth) Synthesize(context.Context, string, []string) (string, error) {
	return f.text, f.err
}

type memLog struct {
	entries []logging.Entry
	err     error
}

func (m *memLog) LogDecision(_ context.Context, e logging.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

// #endregion

// #region helpers

var revenueEvidence = []retrieval.Evidence{
	{Passage: &index.Passage{ID: "p11", Page: 11, Text: "Revenue grew 6.5% year on year to $13.8 billion. Services led the growth."}, Score: 3, Rank: 0},
	{Passage: &index.Passage{ID: "p12", Page: 12, Text: "Constant currency revenue growth was 4.7%."}, Score: 1, Rank: 1},
}

func intentSig(label string, conf float64) nlu.Signals {
	return nlu.Signals{
		Intent:    nlu.IntentSignal{Label: label, Confidence: conf},
		Sentiment: nlu.SentimentSignal{Sentiment: nlu.SentimentNeutral},
	}
}

type harness struct {
	pipeline   *Pipeline
	classifier *scriptedClassifier
	retriever  *fakeRetriever
	log        *memLog
}

func newHarness(t *testing.T, signals map[string]nlu.Signals, r *fakeRetriever, synth Synthesizer, opts Options) *harness {
	t.Helper()
	v := vocab.Default()
	rules, err := nlu.NewHeuristic(v)
	require.NoError(t, err)

	cls := &scriptedClassifier{signals: signals}
	fb := nlu.NewFallback(cls, rules, nil)
	mlog := &memLog{}
	p, err := NewPipeline(Deps{
		Vocab:       v,
		Classifier:  fb,
		Resolver:    carryover.NewResolver(v, fb, carryover.DefaultConfig(), nil),
		Retriever:   r,
		Synthesizer: synth,
		Policy:      policy.NewEngine(v, policy.DefaultThresholds()),
		Log:         mlog,
		Now:         func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) },
	}, opts)
	require.NoError(t, err)
	return &harness{pipeline: p, classifier: cls, retriever: r, log: mlog}
}

func userTurns(texts ...string) []Turn {
	var out []Turn
	for _, t := range texts {
		out = append(out, Turn{Role: carryover.RoleUser, Text: t}, Turn{Role: carryover.RoleAssistant, Text: "ok"})
	}
	return out
}

// #endregion

func TestProcessTurn_EmptyInput(t *testing.T) {
	r := &fakeRetriever{}
	h := newHarness(t, nil, r, nil, DefaultOptions())

	for _, in := range []string{"", "   ", "\n\t"} {
		resp := h.pipeline.ProcessTurn(context.Background(), in, nil)
		assert.Equal(t, respond.KindClarify, resp.Kind)
		assert.Equal(t, EmptyInputPrompt, resp.Text)
	}
	assert.Zero(t, h.classifier.calls)
	assert.Empty(t, r.queries)
	assert.Empty(t, h.log.entries)
}

func TestProcessTurn_GroundedAnswer(t *testing.T) {
	q := "What is the revenue growth?"
	r := &fakeRetriever{evidence: revenueEvidence}
	h := newHarness(t, map[string]nlu.Signals{q: intentSig("ask_finance", 0.9)}, r,
		fakeSynth{text: "Revenue grew 6.5% [Page 999]."}, DefaultOptions())

	resp := h.pipeline.ProcessTurn(context.Background(), q, nil)

	assert.Equal(t, respond.KindAnswer, resp.Kind)
	assert.Equal(t, "Revenue grew 6.5% [Annual Report 2024–25, Page 11].", resp.Text)
	assert.Equal(t, []int{11}, resp.Pages)
	assert.False(t, resp.Degraded)
	assert.False(t, resp.InternalError)
	assert.Equal(t, []string{q}, r.queries)

	require.Len(t, h.log.entries, 1)
	e := h.log.entries[0]
	assert.Equal(t, resp.TurnID, e.TurnID)
	assert.Equal(t, "answer", e.NextStep)
	assert.Equal(t, policy.RuleConfidentAnswer, e.Rule)
	assert.Equal(t, []int{11, 12}, e.EvidencePages)
	assert.Greater(t, e.RetrievalConfidence, 0.75)
}

func TestProcessTurn_SynthesisFailureUsesExtractiveDraft(t *testing.T) {
	q := "What is the revenue growth?"
	h := newHarness(t, map[string]nlu.Signals{q: intentSig("ask_finance", 0.9)},
		&fakeRetriever{evidence: revenueEvidence}, fakeSynth{err: errors.New("llm down")}, DefaultOptions())

	resp := h.pipeline.ProcessTurn(context.Background(), q, nil)

	assert.Equal(t, respond.KindAnswer, resp.Kind)
	assert.Equal(t, "Revenue grew 6.5% year on year to $13.8 billion. Services led the growth [Annual Report 2024–25, Page 11].", resp.Text)
}

func TestProcessTurn_NoSynthesizer(t *testing.T) {
	q := "What is the revenue growth?"
	h := newHarness(t, map[string]nlu.Signals{q: intentSig("ask_finance", 0.9)},
		&fakeRetriever{evidence: revenueEvidence}, nil, DefaultOptions())

	resp := h.pipeline.ProcessTurn(context.Background(), q, nil)
	assert.True(t, strings.HasPrefix(resp.Text, "Revenue grew 6.5% year on year"))
	assert.Equal(t, []int{11}, citation.Pages(resp.Text))
}

func TestProcessTurn_UnavailableIsNotNoMatch(t *testing.T) {
	q := "What is the revenue growth?"
	signals := map[string]nlu.Signals{q: intentSig("ask_finance", 0.9)}

	broken := newHarness(t, signals, &fakeRetriever{err: fmt.Errorf("acquire: %w", index.ErrUnavailable)}, nil, DefaultOptions())
	resp := broken.pipeline.ProcessTurn(context.Background(), q, nil)
	assert.Equal(t, respond.KindEscalate, resp.Kind)
	assert.True(t, resp.InternalError)
	assert.Contains(t, resp.Text, "unavailable")
	require.Len(t, broken.log.entries, 1)
	assert.Equal(t, ruleUnavailable, broken.log.entries[0].Rule)

	empty := newHarness(t, signals, &fakeRetriever{}, nil, DefaultOptions())
	resp = empty.pipeline.ProcessTurn(context.Background(), q, nil)
	assert.Equal(t, respond.KindEscalate, resp.Kind)
	assert.False(t, resp.InternalError)
	assert.Equal(t, citation.NotFound, resp.Text)
}

func TestProcessTurn_RetrievalTimeout(t *testing.T) {
	q := "What is the revenue growth?"
	opts := DefaultOptions()
	opts.Timeouts.Retrieval = 20 * time.Millisecond
	h := newHarness(t, map[string]nlu.Signals{q: intentSig("ask_finance", 0.9)}, &fakeRetriever{block: true}, nil, opts)

	resp := h.pipeline.ProcessTurn(context.Background(), q, nil)
	assert.Equal(t, respond.KindEscalate, resp.Kind)
	assert.True(t, resp.InternalError)
}

func TestProcessTurn_ClassifierFailureDegrades(t *testing.T) {
	h := newHarness(t, nil, &fakeRetriever{}, nil, DefaultOptions())

	resp := h.pipeline.ProcessTurn(context.Background(), "I need SAP access", nil)

	assert.True(t, resp.Degraded)
	assert.Equal(t, respond.KindAction, resp.Kind)
	require.NotNil(t, resp.Action)
	assert.Equal(t, "request_access", resp.Action.Action)
	assert.Equal(t, "SAP", resp.Action.ApplicationName)
	assert.Equal(t, "2025-03-14T09:00:00Z", resp.Action.Timestamp)
	require.Len(t, h.log.entries, 1)
	assert.True(t, h.log.entries[0].Degraded)
}

func TestProcessTurn_HistoryReplayHonoursClassifyDeadline(t *testing.T) {
	q := "Schedule a meeting tomorrow about hiring"
	sig := intentSig("action_schedule", 0.9)
	sig.Entities = nlu.NewEntitySet(map[nlu.Slot]string{nlu.SlotDate: "tomorrow", nlu.SlotTopic: "hiring"})
	opts := DefaultOptions()
	opts.Timeouts.Classify = 50 * time.Millisecond
	h := newHarness(t, map[string]nlu.Signals{q: sig}, &fakeRetriever{}, nil, opts)
	history := userTurns("I need SAP access", "What is the revenue growth?", "Book a meeting with HR")
	h.classifier.slow = map[string]bool{}
	for _, turn := range history {
		h.classifier.slow[turn.Text] = true
	}

	start := time.Now()
	resp := h.pipeline.ProcessTurn(context.Background(), q, history)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, resp.Degraded)
	assert.Equal(t, respond.KindAction, resp.Kind, resp.Reason)
	require.Len(t, h.log.entries, 1)
	assert.True(t, h.log.entries[0].Degraded)
}

func TestProcessTurn_ClarifiesMissingSlot(t *testing.T) {
	q := "raise a ticket"
	h := newHarness(t, map[string]nlu.Signals{q: intentSig("action_ticket", 0.9)}, &fakeRetriever{}, nil, DefaultOptions())

	resp := h.pipeline.ProcessTurn(context.Background(), q, nil)

	assert.Equal(t, respond.KindClarify, resp.Kind)
	assert.Equal(t, []string{"description"}, resp.Missing)
	assert.Contains(t, resp.Text, "Please provide description to continue.")
	assert.Empty(t, h.retriever.queries)
}

func TestProcessTurn_SafetyEscalation(t *testing.T) {
	q := "this is urgent, nothing works"
	sig := intentSig("other", 0.3)
	sig.Sentiment = nlu.SentimentSignal{Sentiment: nlu.SentimentNegative, Urgent: true}
	h := newHarness(t, map[string]nlu.Signals{q: sig}, &fakeRetriever{}, nil, DefaultOptions())

	resp := h.pipeline.ProcessTurn(context.Background(), q, nil)

	assert.Equal(t, respond.KindEscalate, resp.Kind)
	assert.False(t, resp.InternalError)
	assert.True(t, strings.HasPrefix(resp.Text, "I am escalating this request to a human agent. Reason: Low confidence (0.30)"))
}

func TestProcessTurn_TopicSwitchDoesNotInheritAction(t *testing.T) {
	q := "What is the revenue growth?"
	h := newHarness(t, map[string]nlu.Signals{q: intentSig("ask_finance", 0.9)},
		&fakeRetriever{evidence: revenueEvidence}, nil, DefaultOptions())
	history := userTurns("My laptop is broken, please raise a ticket")
	snapshot := append([]Turn(nil), history...)

	resp := h.pipeline.ProcessTurn(context.Background(), q, history)

	assert.Equal(t, respond.KindAnswer, resp.Kind)
	assert.Nil(t, resp.Action)
	assert.Equal(t, snapshot, history)
}

func TestProcessTurn_FollowUpSearchesWithPriorQuestion(t *testing.T) {
	prior := "What is the revenue growth?"
	q := "tell me more"
	r := &fakeRetriever{evidence: revenueEvidence}
	h := newHarness(t, map[string]nlu.Signals{
		prior: intentSig("ask_finance", 0.9),
		q:     intentSig("other", 0.3),
	}, r, nil, DefaultOptions())

	resp := h.pipeline.ProcessTurn(context.Background(), q, userTurns(prior))

	assert.Equal(t, respond.KindAnswer, resp.Kind)
	assert.Equal(t, []string{prior + " " + q}, r.queries)
}

func TestProcessTurn_DecisionLogFailureIsSwallowed(t *testing.T) {
	q := "raise a ticket"
	h := newHarness(t, map[string]nlu.Signals{q: intentSig("action_ticket", 0.9)}, &fakeRetriever{}, nil, DefaultOptions())
	h.log.err = errors.New("disk full")

	resp := h.pipeline.ProcessTurn(context.Background(), q, nil)
	assert.Equal(t, respond.KindClarify, resp.Kind)
}

func TestNewPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(Deps{}, DefaultOptions())
	assert.Error(t, err)

	v := vocab.Default()
	rules, err := nlu.NewHeuristic(v)
	require.NoError(t, err)
	fb := nlu.NewFallback(nil, rules, nil)
	_, err = NewPipeline(Deps{Vocab: v, Classifier: fb, Resolver: carryover.NewResolver(v, fb, carryover.DefaultConfig(), nil)}, DefaultOptions())
	assert.ErrorContains(t, err, "retriever")
}

func TestExtractive(t *testing.T) {
	assert.Equal(t, "Short text.", extractive("  Short   text. "))

	long := strings.Repeat("Alpha beta gamma delta. ", 20)
	out := extractive(long)
	assert.LessOrEqual(t, len(out), maxExtractive)
	assert.True(t, strings.HasSuffix(out, "delta."))

	words := strings.Repeat("word ", 100)
	out = extractive(words)
	assert.True(t, strings.HasSuffix(out, "word."))
}

func TestProcessTurn_UrgentAccessRequestActs(t *testing.T) {
	q := "Reset my SAP password, it's urgent"
	sig := intentSig("action_access", 0.8)
	sig.Sentiment = nlu.SentimentSignal{Sentiment: nlu.SentimentNegative, Urgent: true}
	sig.Entities = nlu.NewEntitySet(map[nlu.Slot]string{nlu.SlotApplication: "SAP"})

	for name, signals := range map[string]map[string]nlu.Signals{
		"model":     {q: sig},
		"heuristic": nil,
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, signals, &fakeRetriever{}, nil, DefaultOptions())

			resp := h.pipeline.ProcessTurn(context.Background(), q, nil)

			require.Equal(t, respond.KindAction, resp.Kind, resp.Reason)
			require.NotNil(t, resp.Action)
			assert.Equal(t, "request_access", resp.Action.Action)
			assert.Equal(t, "SAP", resp.Action.ApplicationName)
			require.Len(t, h.log.entries, 1)
			assert.Equal(t, policy.RuleAction, h.log.entries[0].Rule)
		})
	}
}
