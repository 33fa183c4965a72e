package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mcpText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "%T", res.Content[0])
	return text.Text
}

func TestMCPTools(t *testing.T) {
	snapshot := func(context.Context) (*folio.Snapshot, error) { return fixture(), nil }
	tools, err := MCPTools(snapshot, func() date.Date { return today })
	require.NoError(t, err)
	require.Len(t, tools, len(ReadTools))

	byName := map[string]int{}
	for i, st := range tools {
		byName[st.Tool.Name] = i
	}
	st := tools[byName["get_positions"]]
	var schema Schema
	require.NoError(t, json.Unmarshal(st.Tool.RawInputSchema, &schema))
	assert.Equal(t, *GetPositions.Declaration().Parameters, schema)

	req := mcp.CallToolRequest{}
	req.Params.Name = "get_positions"
	req.Params.Arguments = map[string]any{"assetTypes": []any{"cash"}}
	res, err := st.Handler(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(mcpText(t, res)), &out))
	assert.Equal(t, 1, out.Count)

	st = tools[byName["get_exposure_breakdown"]]
	req.Params.Arguments = map[string]any{"dimension": "color"}
	res, err = st.Handler(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, mcpText(t, res), "error")
}

func TestMCPToolsSnapshotFailure(t *testing.T) {
	snapshot := func(context.Context) (*folio.Snapshot, error) { return nil, errors.New("disk full") }
	tools, err := MCPTools(snapshot, nil)
	require.NoError(t, err)
	res, err := tools[0].Handler(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, mcpText(t, res), "disk full")

	s, err := NewMCPServer("test", snapshot, nil)
	require.NoError(t, err)
	assert.NotNil(t, s)
}
