package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// queryArgs is the input of the MCP query tool.
type queryArgs struct {
	Query string `json:"query" jsonschema:"a single read-only SELECT statement"`
}

// mcpHandler exposes the query operation as an MCP tool over streamable
// HTTP, so MCP-speaking assistants reach the same database under the same
// statement and allowlist rules as the JSON endpoint.
func (g *Gateway) mcpHandler() http.Handler {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "galley-gateway",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query",
		Description: "Run a read-only SQL query against the gateway database and return the matching rows as JSON.",
	}, g.handleQueryTool)

	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

// handleQueryTool is the MCP-shaped twin of handleQuery. Validation
// failures come back as tool errors, not protocol errors, so the assistant
// can read them and correct the query.
func (g *Gateway) handleQueryTool(ctx context.Context, req *mcp.CallToolRequest, args queryArgs) (*mcp.CallToolResult, any, error) {
	_, allowed, maxRows := g.settings.snapshot()

	if err := checkStatement(args.Query); err != nil {
		return toolError(err), nil, nil
	}
	if err := checkTables(args.Query, allowed); err != nil {
		return toolError(err), nil, nil
	}

	rows, err := g.runQuery(ctx, args.Query, maxRows)
	if err != nil {
		return toolError(err), nil, nil
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return toolError(err), nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
