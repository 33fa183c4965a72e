package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPTools exposes the read tools to MCP clients with the schemas given to the reasoning
// service. Every call runs on a fresh snapshot.
func MCPTools(snapshot func(ctx context.Context) (*folio.Snapshot, error), today func() date.Date) ([]server.ServerTool, error) {
	if today == nil {
		today = date.Today
	}
	lib := NewLibrary(ReadTools)
	tools := make([]server.ServerTool, 0, len(ReadTools))
	for _, f := range ReadTools {
		decl := f.Declaration()
		schema, err := json.Marshal(decl.Parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s schema: %w", decl.Name, err)
		}
		tools = append(tools, server.ServerTool{
			Tool: mcp.NewToolWithRawSchema(decl.Name, decl.Description, schema),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				snap, err := snapshot(ctx)
				if err != nil {
					return mcp.NewToolResultError("could not load the portfolio: " + err.Error()), nil
				}
				res := lib(ctx, Env{Snapshot: snap, Today: today()}, ToolUse{Name: decl.Name, Input: req.GetArguments()})
				body, err := json.Marshal(res.Content)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				if res.IsError {
					return mcp.NewToolResultError(string(body)), nil
				}
				return mcp.NewToolResultText(string(body)), nil
			},
		})
	}
	return tools, nil
}

// NewMCPServer returns an MCP server offering MCPTools.
func NewMCPServer(version string, snapshot func(ctx context.Context) (*folio.Snapshot, error), today func() date.Date) (*server.MCPServer, error) {
	tools, err := MCPTools(snapshot, today)
	if err != nil {
		return nil, err
	}
	s := server.NewMCPServer("folio", version, server.WithToolCapabilities(false))
	s.AddTools(tools...)
	return s, nil
}
