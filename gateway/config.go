package gateway

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// Config is the gateway server configuration.
type Config struct {
	// Address to listen on (e.g., ":8787")
	ListenAddr string `toml:"listen"`

	// DBPath is the sqlite database queries run against.
	// Use ":memory:" for an in-memory database, or empty for in-memory.
	DBPath string `toml:"db"`

	// Token, when set, is required as a bearer credential on every query.
	Token string `toml:"token"`

	// AllowedTables, when non-empty, restricts queries to these tables.
	AllowedTables []string `toml:"allowed_tables"`

	// MaxRows caps the number of rows returned per query.
	MaxRows int `toml:"max_rows"`
}

// DefaultConfig returns the configuration the gateway starts with when no
// file and no flags are given.
func DefaultConfig() Config {
	return Config{
		ListenAddr: ":8787",
		MaxRows:    1000,
	}
}

// LoadConfig lays the TOML file at path over the defaults. An empty path
// returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load gateway config %q: %w", path, err)
		}
	}

	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultConfig().MaxRows
	}

	return cfg, nil
}

// settings holds the request-path configuration the config watcher may swap
// while the server is running. Everything else requires a restart.
type settings struct {
	mu      sync.RWMutex
	token   string
	allowed map[string]bool
	maxRows int
}

func newSettings(cfg Config) *settings {
	s := &settings{}
	s.apply(cfg)
	return s
}

// apply replaces the mutable settings with the ones from cfg.
func (s *settings) apply(cfg Config) {
	allowed := make(map[string]bool, len(cfg.AllowedTables))
	for _, table := range cfg.AllowedTables {
		allowed[strings.ToLower(table)] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = cfg.Token
	s.allowed = allowed
	s.maxRows = cfg.MaxRows
}

// snapshot returns a consistent view of the mutable settings. The allowed
// map is shared read-only; apply always swaps in a fresh one.
func (s *settings) snapshot() (token string, allowed map[string]bool, maxRows int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.allowed, s.maxRows
}
