package config

import (
	"github.com/danielpatrickdp/grounded-assistant/internal/carryover"
	"github.com/danielpatrickdp/grounded-assistant/internal/orchestrator"
	"github.com/danielpatrickdp/grounded-assistant/internal/policy"
	"github.com/danielpatrickdp/grounded-assistant/internal/retrieval"
)

// #region config

// Config is the full runtime configuration.
type Config struct {
	Log       Log                   `mapstructure:"log"`
	Codec     Codec                 `mapstructure:"codec"`
	Index     Index                 `mapstructure:"index"`
	Qdrant    Qdrant                `mapstructure:"qdrant"`
	Timeouts  orchestrator.Timeouts `mapstructure:"timeouts"`
	Retrieval retrieval.Config      `mapstructure:"retrieval"`
	Policy    policy.Thresholds     `mapstructure:"policy"`
	Carryover carryover.Config      `mapstructure:"carryover"`
	Audit     Audit                 `mapstructure:"audit"`
	Server    Server                `mapstructure:"server"`

	// TopK is the number of evidence passages kept per answer.
	TopK int `mapstructure:"top_k"`
	// Vocabulary is a YAML vocabulary file; empty uses the embedded default.
	Vocabulary string `mapstructure:"vocabulary"`
}

// Log selects level and handler format.
type Log struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // text | json
}

// Codec addresses the inference service. An empty Addr runs on heuristics
// only, without retrieval or synthesis.
type Codec struct {
	Addr      string  `mapstructure:"addr"`
	RateLimit float64 `mapstructure:"rate_limit"` // calls per second, 0 = unlimited
	Burst     int     `mapstructure:"burst"`
}

// Index selects the evidence backend.
type Index struct {
	Backend string `mapstructure:"backend"` // file | qdrant
	Vectors string `mapstructure:"vectors"`
	Mapping string `mapstructure:"mapping"`
	Watch   bool   `mapstructure:"watch"`
}

// Qdrant addresses the optional vector database backend.
type Qdrant struct {
	Addr       string `mapstructure:"addr"`
	Collection string `mapstructure:"collection"`
}

// Audit configures the decision provenance log. An empty DB disables it.
type Audit struct {
	DB string `mapstructure:"db"`
}

// Server configures the HTTP transport.
type Server struct {
	Addr       string `mapstructure:"addr"`
	MaxHistory int    `mapstructure:"max_history"`
}

// #endregion

// Index backends.
const (
	BackendFile   = "file"
	BackendQdrant = "qdrant"
)
