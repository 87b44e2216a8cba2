package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielpatrickdp/grounded-assistant/internal/carryover"
	"github.com/danielpatrickdp/grounded-assistant/internal/codec"
	"github.com/danielpatrickdp/grounded-assistant/internal/config"
	"github.com/danielpatrickdp/grounded-assistant/internal/index"
	"github.com/danielpatrickdp/grounded-assistant/internal/logging"
	"github.com/danielpatrickdp/grounded-assistant/internal/nlu"
	"github.com/danielpatrickdp/grounded-assistant/internal/orchestrator"
	"github.com/danielpatrickdp/grounded-assistant/internal/policy"
	"github.com/danielpatrickdp/grounded-assistant/internal/retrieval"
	"github.com/danielpatrickdp/grounded-assistant/internal/vocab"
)

// #region app

// app owns every long-lived collaborator of the pipeline.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	vocab     *vocab.Vocabulary
	client    *codec.Client
	provider  index.Provider
	cache     *index.Cache
	watcher   *index.Watcher
	qdrant    *index.QdrantIndex
	retriever *retrieval.Retriever
	audit     *logging.Store
	pipeline  *orchestrator.Pipeline
	closers   []func() error
}

// newApp wires the pipeline from cfg. Whatever was opened before a failure
// is released again.
func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	cfg, logger := a.cfg, a.logger
	var err error

	if cfg.Vocabulary != "" {
		if a.vocab, err = vocab.Load(cfg.Vocabulary); err != nil {
			return err
		}
	} else {
		a.vocab = vocab.Default()
	}

	heuristic, err := nlu.NewHeuristic(a.vocab)
	if err != nil {
		return fmt.Errorf("heuristics: %w", err)
	}

	if cfg.Codec.Addr != "" {
		a.client, err = codec.NewClient(cfg.Codec.Addr, codec.Options{
			RateLimit: cfg.Codec.RateLimit,
			Burst:     cfg.Codec.Burst,
		})
		if err != nil {
			return fmt.Errorf("inference client: %w", err)
		}
		a.closers = append(a.closers, a.client.Close)
	}

	var primary nlu.Classifier = heuristic
	if a.client != nil {
		primary = nlu.NewRemote(a.client, heuristic)
	}
	classifier := nlu.NewFallback(primary, heuristic, logger)
	resolver := carryover.NewResolver(a.vocab, classifier, cfg.Carryover, logger)

	if err := a.openIndex(); err != nil {
		return err
	}

	var (
		embedder retrieval.Embedder = offline{}
		scorer   retrieval.Scorer   = offline{}
	)
	if a.client != nil {
		embedder, scorer = a.client, a.client
	}
	a.retriever, err = retrieval.NewRetriever(a.provider, embedder, scorer, a.vocab, cfg.Retrieval, logger)
	if err != nil {
		return err
	}

	deps := orchestrator.Deps{
		Vocab:      a.vocab,
		Classifier: classifier,
		Resolver:   resolver,
		Retriever:  a.retriever,
		Policy:     policy.NewEngine(a.vocab, cfg.Policy),
		Logger:     logger,
	}
	if a.client != nil {
		deps.Synthesizer = a.client
	}
	if cfg.Audit.DB != "" {
		if a.audit, err = logging.Open(cfg.Audit.DB); err != nil {
			return err
		}
		a.closers = append(a.closers, a.audit.Close)
		deps.Log = a.audit
	}

	a.pipeline, err = orchestrator.NewPipeline(deps, orchestrator.Options{
		TopK:     cfg.TopK,
		Timeouts: cfg.Timeouts,
	})
	return err
}

func (a *app) openIndex() error {
	switch a.cfg.Index.Backend {
	case config.BackendQdrant:
		q, err := index.NewQdrant(a.cfg.Qdrant.Addr, a.cfg.Qdrant.Collection)
		if err != nil {
			return fmt.Errorf("qdrant: %w", err)
		}
		a.qdrant = q
		a.provider = q
		a.closers = append(a.closers, q.Close)
	default:
		a.cache = index.NewCache(index.Paths{
			Vectors: a.cfg.Index.Vectors,
			Mapping: a.cfg.Index.Mapping,
		}, a.logger)
		a.provider = a.cache
	}
	return nil
}

// watch starts invalidating the file cache on index rewrites. It is a no-op
// for the qdrant backend or when watching is disabled.
func (a *app) watch(ctx context.Context) error {
	if a.cache == nil || !a.cfg.Index.Watch {
		return nil
	}
	w, err := index.NewWatcher(a.cache, a.logger)
	if err != nil {
		return err
	}
	a.watcher = w
	a.closers = append(a.closers, w.Close)
	go w.Run(ctx, nil)
	return nil
}

// ready reports whether the evidence index can be acquired.
func (a *app) ready(ctx context.Context) error {
	_, err := a.provider.Acquire(ctx)
	return err
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// #endregion app

// #region offline

var errNoInference = errors.New("inference service not configured")

// offline stands in for the embedder and scorer when no inference address is
// configured. Every call reports the index as unavailable, so informational
// turns escalate instead of answering ungrounded.
type offline struct{}

func (offline) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: %w", index.ErrUnavailable, errNoInference)
}

func (offline) ScoreRelevance(context.Context, string, []string) ([]float64, error) {
	return nil, fmt.Errorf("%w: %w", index.ErrUnavailable, errNoInference)
}

// #endregion offline
