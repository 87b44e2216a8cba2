// Package config loads runtime configuration through viper: defaults, then
// the config file, then GROUNDED_ASSISTANT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/danielpatrickdp/grounded-assistant/internal/carryover"
	"github.com/danielpatrickdp/grounded-assistant/internal/orchestrator"
	"github.com/danielpatrickdp/grounded-assistant/internal/policy"
	"github.com/danielpatrickdp/grounded-assistant/internal/retrieval"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "GROUNDED_ASSISTANT"

// #region defaults

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:       Log{Level: "info", Format: "text"},
		Codec:     Codec{RateLimit: 20, Burst: 5},
		Index:     Index{Backend: BackendFile, Vectors: "data/index.gavi", Mapping: "data/mapping.json"},
		Qdrant:    Qdrant{Addr: "localhost:6334", Collection: "passages"},
		Timeouts:  orchestrator.DefaultTimeouts(),
		Retrieval: retrieval.DefaultConfig(),
		Policy:    policy.DefaultThresholds(),
		Carryover: carryover.DefaultConfig(),
		Server:    Server{Addr: ":8080", MaxHistory: 50},
		TopK:      orchestrator.DefaultOptions().TopK,
	}
}

// SetDefaults registers every key so file and environment values can
// override them individually.
func SetDefaults(v *viper.Viper) {
	d := Default()
	defaults := map[string]any{
		"log.level":  d.Log.Level,
		"log.format": d.Log.Format,

		"codec.addr":       d.Codec.Addr,
		"codec.rate_limit": d.Codec.RateLimit,
		"codec.burst":      d.Codec.Burst,

		"index.backend": d.Index.Backend,
		"index.vectors": d.Index.Vectors,
		"index.mapping": d.Index.Mapping,
		"index.watch":   d.Index.Watch,

		"qdrant.addr":       d.Qdrant.Addr,
		"qdrant.collection": d.Qdrant.Collection,

		"timeouts.classify":  d.Timeouts.Classify,
		"timeouts.retrieval": d.Timeouts.Retrieval,
		"timeouts.synthesis": d.Timeouts.Synthesis,

		"retrieval.candidate_n":        d.Retrieval.CandidateN,
		"retrieval.rerank_pool":        d.Retrieval.RerankPool,
		"retrieval.rrf_offset":         d.Retrieval.RRFOffset,
		"retrieval.token_weight":       d.Retrieval.TokenWeight,
		"retrieval.bigram_weight":      d.Retrieval.BigramWeight,
		"retrieval.max_expansion":      d.Retrieval.MaxExpansion,
		"retrieval.clause_k":           d.Retrieval.ClauseK,
		"retrieval.min_clause_len":     d.Retrieval.MinClauseLen,
		"retrieval.boosts.keyword":     d.Retrieval.Boosts.Keyword,
		"retrieval.boosts.entity":      d.Retrieval.Boosts.Entity,
		"retrieval.boosts.numeric":     d.Retrieval.Boosts.Numeric,
		"retrieval.boosts.section":     d.Retrieval.Boosts.Section,
		"retrieval.boosts.verbatim":    d.Retrieval.Boosts.Verbatim,
		"retrieval.boosts.boilerplate": d.Retrieval.Boosts.Boilerplate,
		"retrieval.boosts.short":       d.Retrieval.Boosts.Short,
		"retrieval.boosts.short_words": d.Retrieval.Boosts.ShortWords,

		"policy.high_answer": d.Policy.HighAnswer,
		"policy.safety":      d.Policy.Safety,
		"policy.action":      d.Policy.Action,
		"policy.answer":      d.Policy.Answer,

		"carryover.window":             d.Carryover.Window,
		"carryover.short_words":        d.Carryover.ShortWords,
		"carryover.low_confidence":     d.Carryover.LowConfidence,
		"carryover.adopted_confidence": d.Carryover.AdoptedConfidence,
		"carryover.routed_confidence":  d.Carryover.RoutedConfidence,

		"audit.db": d.Audit.DB,

		"server.addr":        d.Server.Addr,
		"server.max_history": d.Server.MaxHistory,

		"top_k":      d.TopK,
		"vocabulary": d.Vocabulary,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// #endregion

// #region load

// Init points v at the config file and environment. An empty cfgFile
// searches ./grounded-assistant.yaml and ~/.config/grounded-assistant/.
// It returns the file used, or "" when none was found.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("grounded-assistant")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "grounded-assistant"))
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	switch c.Index.Backend {
	case BackendFile:
		if c.Index.Vectors == "" || c.Index.Mapping == "" {
			return fmt.Errorf("config: index.vectors and index.mapping are required for the file backend")
		}
	case BackendQdrant:
		if c.Qdrant.Addr == "" || c.Qdrant.Collection == "" {
			return fmt.Errorf("config: qdrant.addr and qdrant.collection are required for the qdrant backend")
		}
	default:
		return fmt.Errorf("config: unknown index.backend %q", c.Index.Backend)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("config: top_k must be positive, got %d", c.TopK)
	}
	for name, t := range map[string]float64{
		"policy.high_answer": c.Policy.HighAnswer,
		"policy.safety":      c.Policy.Safety,
		"policy.action":      c.Policy.Action,
		"policy.answer":      c.Policy.Answer,
	} {
		if t < 0 || t > 1 {
			return fmt.Errorf("config: %s must be within [0,1], got %g", name, t)
		}
	}
	if c.Policy.Answer > c.Policy.HighAnswer {
		return fmt.Errorf("config: policy.answer (%g) exceeds policy.high_answer (%g)", c.Policy.Answer, c.Policy.HighAnswer)
	}
	if c.Carryover.Window < 0 {
		return fmt.Errorf("config: carryover.window must not be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// #endregion

// #region logger

// NewLogger builds the process logger from the log section.
func NewLogger(c Log, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("config: unknown log.format %q", c.Format)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("config: unknown log.level %q", s)
	}
	return l, nil
}

// #endregion
