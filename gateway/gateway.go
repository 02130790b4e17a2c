// Package gateway provides a local action gateway: the SQL-forwarding
// endpoint a chat assistant calls to query a database. It accepts one
// read-only statement per request and answers with ordered JSON rows or a
// CSV file envelope, so the tutorials run end to end without a hosted
// middleware.
package gateway

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/stovetop/galley/pkg/actions"
	"github.com/stovetop/galley/pkg/envelope"
	"github.com/stovetop/galley/pkg/tabular"
)

const version = "0.1.0"

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// Gateway is the action gateway server. It is stateless between requests:
// every query runs against the one configured database under the settings
// current at that moment.
type Gateway struct {
	config   Config
	settings *settings
	db       *sql.DB
	logger   *zap.Logger
	server   *fiber.App
	watcher  *fsnotify.Watcher
}

// New creates a new Gateway.
func New(config Config, logger *zap.Logger) (*Gateway, error) {
	path := config.DBPath
	if path == "" {
		path = ":memory:"
		logger.Info("using in-memory database")
	} else {
		logger.Info("using sqlite database", zap.String("path", path))
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across queries.
	db.SetMaxOpenConns(1)

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	g := &Gateway{
		config:   config,
		settings: newSettings(config),
		db:       db,
		logger:   logger,
		server:   app,
	}

	// Register routes
	app.Post("/v1/query", g.handleQuery)
	app.Get("/.well-known/manifest.json", g.handleManifest)
	app.All("/mcp", adaptor.HTTPHandler(g.mcpHandler()))

	// Health check
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	return g, nil
}

// Run starts the gateway server on the configured listening address.
func (g *Gateway) Run() error {
	g.logger.Info("starting action gateway",
		zap.String("listen", g.config.ListenAddr),
		zap.Int("max_rows", g.config.MaxRows),
	)

	return g.server.Listen(g.config.ListenAddr)
}

// RunWithListener serves on a caller-provided listener, so tests can bind
// port zero.
func (g *Gateway) RunWithListener(listener net.Listener) error {
	return g.server.Listener(listener)
}

// Shutdown stops the server gracefully.
func (g *Gateway) Shutdown() error {
	return g.server.Shutdown()
}

// Close shuts down the gateway and releases resources.
func (g *Gateway) Close() error {
	if g.watcher != nil {
		g.watcher.Close()
	}
	return g.db.Close()
}

// WatchConfig reloads the mutable settings (token, table allowlist, row cap)
// whenever the config file at path changes. Listen address and database
// changes still require a restart. The parent directory is watched so
// rename-and-replace saves are seen too.
func (g *Gateway) WatchConfig(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %q: %w", path, err)
	}
	g.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				cfg, err := LoadConfig(path)
				if err != nil {
					g.logger.Warn("config reload failed", zap.Error(err))
					continue
				}

				g.settings.apply(cfg)
				g.logger.Info("config reloaded",
					zap.Int("allowed_tables", len(cfg.AllowedTables)),
					zap.Int("max_rows", cfg.MaxRows),
				)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				g.logger.Warn("config watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

// handleQuery runs one read-only statement and answers with JSON rows in
// column order, or with a CSV envelope when the request asks for a file.
func (g *Gateway) handleQuery(c *fiber.Ctx) error {
	startTime := time.Now()
	requestID := uuid.NewString()
	c.Set(fiber.HeaderXRequestID, requestID)

	token, allowed, maxRows := g.settings.snapshot()

	if token != "" && bearerToken(c.Get(fiber.HeaderAuthorization)) != token {
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: "missing or invalid bearer token"})
	}

	var req actions.QueryRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		g.logger.Error("failed to parse request",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}

	if err := checkStatement(req.Query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	}
	if err := checkTables(req.Query, allowed); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(errorResponse{Error: err.Error()})
	}

	rows, err := g.runQuery(c.Context(), req.Query, maxRows)
	if err != nil {
		g.logger.Error("query failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	}

	g.logger.Debug("query served",
		zap.String("request_id", requestID),
		zap.Int("rows", rows.Len()),
		zap.String("format", req.Format),
		zap.Duration("duration", time.Since(startTime)),
	)

	if req.Format == actions.FormatFile {
		var buf bytes.Buffer
		if err := rows.WriteCSV(&buf); err != nil {
			g.logger.Error("failed to build csv", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal error"})
		}
		file := envelope.New("results.csv", "text/csv", buf.Bytes())
		return c.JSON(actions.QueryResponse{File: &file})
	}

	data, err := json.Marshal(rows)
	if err != nil {
		g.logger.Error("failed to marshal rows", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal error"})
	}
	return c.JSON(actions.QueryResponse{Rows: data})
}

// handleManifest returns a small descriptor so assistants can discover the
// action.
func (g *Gateway) handleManifest(c *fiber.Ctx) error {
	return c.JSON(map[string]any{
		"name":        "galley-gateway",
		"version":     version,
		"description": "read-only SQL queries over the configured database",
		"endpoints": map[string]string{
			"query":  "/v1/query",
			"mcp":    "/mcp",
			"health": "/healthz",
		},
	})
}

// runQuery executes the statement and collects up to maxRows records with
// the column order of the SELECT preserved.
func (g *Gateway) runQuery(ctx context.Context, query string, maxRows int) (*tabular.Rows, error) {
	rs, err := g.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rs.Close()

	cols, err := rs.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	rows := tabular.New(cols...)
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rs.Next() {
		if rows.Len() >= maxRows {
			// Cap reached; the rest of the result is dropped.
			break
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rec := make([]string, len(cols))
		for i, v := range values {
			rec[i] = formatValue(v)
		}
		rows.Records = append(rows.Records, rec)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	return rows, nil
}

// formatValue reduces a driver value to the textual form carried in rows.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// bearerToken extracts the credential from an Authorization header.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
