// Package config loads the toolkit configuration: built-in defaults, then an
// optional TOML file, then GALLEY_* environment overrides. Flags applied by
// the commands sit on top of all three.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/stovetop/galley/pkg/vector"
)

// Duration is a time.Duration that unmarshals from TOML strings like "90s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Completion configures the chat completion client.
type Completion struct {
	BaseURL string   `toml:"base_url"`
	Token   string   `toml:"token"`
	Model   string   `toml:"model"`
	Timeout Duration `toml:"timeout"`
}

// Embedding configures the embedding client and its cache.
type Embedding struct {
	BaseURL string   `toml:"base_url"`
	Token   string   `toml:"token"`
	Model   string   `toml:"model"`
	Timeout Duration `toml:"timeout"`

	// Cache is the sqlite file backing the embedding cache. Empty picks a
	// file under the working directory; "off" disables persistence.
	Cache string `toml:"cache"`
}

// Gateway configures the action gateway client.
type Gateway struct {
	URL     string   `toml:"url"`
	Token   string   `toml:"token"`
	Timeout Duration `toml:"timeout"`
}

// Vector configures the similarity index.
type Vector struct {
	// Backend is one of "inmemory", "sqlitevec" or "redisearch".
	Backend string `toml:"backend"`

	// Index names the index in the backing store.
	Index string `toml:"index"`

	Metric vector.Metric `toml:"metric"`

	// Path is the sqlite file for the sqlitevec backend. Empty picks a
	// file under the working directory.
	Path string `toml:"path"`

	// URL is the redis connection string for the redisearch backend.
	URL string `toml:"url"`
}

// Artifacts configures where generated files land.
type Artifacts struct {
	Dir string `toml:"dir"`
}

// Config is the full toolkit configuration.
type Config struct {
	Debug      bool       `toml:"debug"`
	Completion Completion `toml:"completion"`
	Embedding  Embedding  `toml:"embedding"`
	Gateway    Gateway    `toml:"gateway"`
	Vector     Vector     `toml:"vector"`
	Artifacts  Artifacts  `toml:"artifacts"`
}

// Default returns the configuration used when no file and no environment
// overrides are present. The completion and embedding endpoints point at a
// local model server speaking the same dialect.
func Default() Config {
	return Config{
		Completion: Completion{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
			Timeout: Duration{120 * time.Second},
		},
		Embedding: Embedding{
			BaseURL: "http://localhost:11434",
			Model:   "nomic-embed-text",
			Timeout: Duration{60 * time.Second},
		},
		Gateway: Gateway{
			URL:     "http://localhost:8787",
			Timeout: Duration{30 * time.Second},
		},
		Vector: Vector{
			Backend: "sqlitevec",
			Index:   "galley",
			Metric:  vector.MetricCosine,
			URL:     "redis://localhost:6379",
		},
		Artifacts: Artifacts{
			Dir: "artifacts",
		},
	}
}

// Load builds the configuration: defaults, the TOML file at path when path
// is non-empty, then environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %q: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv lays GALLEY_* variables over the loaded values. Environment wins
// over the file so deployments can override without editing it.
func applyEnv(cfg *Config) {
	if v := os.Getenv("GALLEY_DEBUG"); v != "" {
		cfg.Debug = v == "1" || strings.EqualFold(v, "true")
	}

	overrideString(&cfg.Completion.BaseURL, "GALLEY_COMPLETION_URL")
	overrideString(&cfg.Completion.Token, "GALLEY_COMPLETION_TOKEN")
	overrideString(&cfg.Completion.Model, "GALLEY_COMPLETION_MODEL")

	overrideString(&cfg.Embedding.BaseURL, "GALLEY_EMBEDDING_URL")
	overrideString(&cfg.Embedding.Token, "GALLEY_EMBEDDING_TOKEN")
	overrideString(&cfg.Embedding.Model, "GALLEY_EMBEDDING_MODEL")

	overrideString(&cfg.Gateway.URL, "GALLEY_GATEWAY_URL")
	overrideString(&cfg.Gateway.Token, "GALLEY_GATEWAY_TOKEN")

	overrideString(&cfg.Vector.Backend, "GALLEY_VECTOR_BACKEND")
	overrideString(&cfg.Vector.URL, "GALLEY_REDIS_URL")

	overrideString(&cfg.Artifacts.Dir, "GALLEY_ARTIFACTS_DIR")
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate rejects configurations no command could run with.
func (c Config) Validate() error {
	if c.Completion.BaseURL == "" {
		return fmt.Errorf("completion.base_url is empty")
	}
	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url is empty")
	}

	switch c.Vector.Backend {
	case "inmemory", "sqlitevec":
	case "redisearch":
		if c.Vector.URL == "" {
			return fmt.Errorf("vector.url is required for the redisearch backend")
		}
	default:
		return fmt.Errorf("unknown vector backend %q (want inmemory, sqlitevec or redisearch)", c.Vector.Backend)
	}

	if !c.Vector.Metric.Valid() {
		return fmt.Errorf("unknown vector metric %q (want l2, cosine or ip)", c.Vector.Metric)
	}

	if c.Completion.Timeout.Duration <= 0 {
		return fmt.Errorf("completion.timeout must be positive")
	}
	if c.Embedding.Timeout.Duration <= 0 {
		return fmt.Errorf("embedding.timeout must be positive")
	}
	if c.Gateway.Timeout.Duration <= 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}

	return nil
}
