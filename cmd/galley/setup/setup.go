// Package setup builds the pieces the galley commands share: the resolved
// configuration, the logger, the stage clients and the vector index.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stovetop/galley/cmd/galley/workdir"
	"github.com/stovetop/galley/pkg/actions"
	"github.com/stovetop/galley/pkg/cache"
	"github.com/stovetop/galley/pkg/chat"
	"github.com/stovetop/galley/pkg/config"
	"github.com/stovetop/galley/pkg/embedding"
	"github.com/stovetop/galley/pkg/logger"
	"github.com/stovetop/galley/pkg/vector"
	"github.com/stovetop/galley/pkg/vector/inmemory"
	"github.com/stovetop/galley/pkg/vector/redisearch"
	"github.com/stovetop/galley/pkg/vector/sqlitevec"
)

// Env carries what every command needs once the flags are resolved.
type Env struct {
	Config  config.Config
	WorkDir string
	Logger  *zap.Logger
}

// FromCommand resolves the environment from the --config, --workdir and
// --debug flags. The flags are looked up leniently, so a subcommand mounted
// without the root command still runs on defaults and environment.
func FromCommand(cmd *cobra.Command) (*Env, error) {
	dir, err := workdir.Resolve(stringFlag(cmd, "workdir"))
	if err != nil {
		return nil, err
	}

	configPath := stringFlag(cmd, "config")
	if configPath == "" {
		configPath = workdir.ConfigPath(dir)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if boolFlag(cmd, "debug") {
		cfg.Debug = true
	}

	return &Env{
		Config:  cfg,
		WorkDir: dir,
		Logger:  logger.NewLogger(cfg.Debug),
	}, nil
}

func stringFlag(cmd *cobra.Command, name string) string {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Value.String()
	}
	if f := cmd.InheritedFlags().Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}

func boolFlag(cmd *cobra.Command, name string) bool {
	return stringFlag(cmd, name) == "true"
}

// ChatClient builds the completion client.
func (e *Env) ChatClient() *chat.Client {
	return chat.NewClient(chat.Config{
		BaseURL: e.Config.Completion.BaseURL,
		Token:   e.Config.Completion.Token,
		Model:   e.Config.Completion.Model,
		Timeout: e.Config.Completion.Timeout.Duration,
	}, e.Logger)
}

// ActionsClient builds the action gateway client.
func (e *Env) ActionsClient() *actions.Client {
	return actions.NewClient(actions.Config{
		BaseURL: e.Config.Gateway.URL,
		Token:   e.Config.Gateway.Token,
		Timeout: e.Config.Gateway.Timeout.Duration,
	}, e.Logger)
}

// Embedder builds the embedding client behind its content-addressed cache.
// The returned closer releases the cache store.
func (e *Env) Embedder() (embedding.Embedder, func() error, error) {
	client := embedding.NewClient(embedding.Config{
		BaseURL: e.Config.Embedding.BaseURL,
		Token:   e.Config.Embedding.Token,
		Model:   e.Config.Embedding.Model,
		Timeout: e.Config.Embedding.Timeout.Duration,
	}, e.Logger)

	path := e.Config.Embedding.Cache
	switch path {
	case "off":
		return client, func() error { return nil }, nil
	case "":
		path = filepath.Join(e.WorkDir, "embeddings.db")
	}

	store, err := cache.NewSQLiteStore(path)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open embedding cache %s: %w", path, err)
	}
	return embedding.WithCache(client, store, e.Logger), store.Close, nil
}

// OpenIndex opens the configured vector backend over the given schema.
func (e *Env) OpenIndex(schema vector.Schema) (vector.Index, error) {
	switch e.Config.Vector.Backend {
	case "inmemory":
		return inmemory.New(schema)
	case "sqlitevec":
		path := e.Config.Vector.Path
		if path == "" {
			path = filepath.Join(e.WorkDir, "vectors.db")
		}
		return sqlitevec.New(path, schema, e.Logger)
	case "redisearch":
		return redisearch.New(redisearch.Config{URL: e.Config.Vector.URL}, schema, e.Logger)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", e.Config.Vector.Backend)
	}
}

// SchemaPath returns where the descriptor of the named index lives.
func (e *Env) SchemaPath(name string) string {
	return filepath.Join(e.WorkDir, "index-"+name+".json")
}

// SaveSchema persists an index descriptor, so later searches reopen the
// index with the same dimension, metric and fields.
func (e *Env) SaveSchema(schema vector.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal schema: %w", err)
	}
	path := e.SchemaPath(schema.Name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("could not write schema %s: %w", path, err)
	}
	return nil
}

// LoadSchema reads the descriptor written by a previous index run.
func (e *Env) LoadSchema(name string) (vector.Schema, error) {
	data, err := os.ReadFile(e.SchemaPath(name))
	if err != nil {
		return vector.Schema{}, fmt.Errorf("no schema for index %q, run galley index first: %w", name, err)
	}

	var schema vector.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return vector.Schema{}, fmt.Errorf("could not parse schema for index %q: %w", name, err)
	}
	return schema, nil
}
