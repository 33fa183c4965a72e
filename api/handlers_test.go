package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/etnz/folio"
	"github.com/etnz/folio/agent"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/mutation"
	"github.com/etnz/folio/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = date.New(2025, 6, 1)

// scripted answers a tool call when the command mentions savings, text otherwise.
var scripted = agent.ReasonerFunc(func(_ context.Context, req agent.Request) (*agent.Response, error) {
	last := req.Messages[len(req.Messages)-1].Content
	switch {
	case strings.Contains(last, "savings"):
		return &agent.Response{Content: []agent.Block{{ToolUse: &agent.ToolUse{
			Name:  "add_cash_asset",
			Input: map[string]any{"name": "Savings", "location": "Ally", "value": 500.0},
		}}}}, nil
	case strings.Contains(last, "offline"):
		return nil, folio.ServiceError{Service: "reasoning", Err: errors.New("connection reset")}
	}
	return &agent.Response{Content: []agent.Block{{Text: "Your net worth is $0.00."}}}, nil
})

type fixture struct {
	store  *store.Store
	server *httptest.Server
	reg    *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.SQLite, ":memory:", store.WithToday(func() date.Date { return today }))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))

	reg := prometheus.NewRegistry()
	a := agent.New(scripted, &mutation.Applier{Store: st})
	a.Today = func() date.Date { return today }
	a.Metrics = agent.NewMetrics(reg)

	srv := httptest.NewServer(SetupRoutes(NewHandler(a, st, nil), reg))
	t.Cleanup(srv.Close)
	return &fixture{store: st, server: srv, reg: reg}
}

func (f *fixture) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func command(text string) CommandRequest {
	return CommandRequest{Messages: []agent.Turn{{Role: agent.User, Content: text}}}
}

func TestCommandText(t *testing.T) {
	f := newFixture(t)
	var res CommandResponse
	status := f.do(t, "POST", "/api/v1/commands", command("what is my net worth?"), &res)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, agent.Text, res.Type)
	assert.Equal(t, "Your net worth is $0.00.", res.Message)
	assert.Nil(t, res.Trace)

	status = f.do(t, "POST", "/api/v1/commands?trace=1", command("what is my net worth?"), &res)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, res.Trace)
	assert.Equal(t, "start", res.Trace.Entries[0].Label)
}

func TestConfirmationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var res CommandResponse
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/api/v1/commands", command("add a savings account"), &res))
	require.Equal(t, agent.WriteConfirm, res.Type)
	require.NotNil(t, res.Confirmation)

	snap, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Assets, "nothing is written before confirmation")

	path := "/api/v1/confirmations/" + res.Confirmation.ID
	var out mutation.Outcome
	require.Equal(t, http.StatusOK, f.do(t, "POST", path, nil, &out))
	assert.Equal(t, `Created "Savings" worth $500.00.`, out.Message)

	var failure map[string]string
	assert.Equal(t, http.StatusNotFound, f.do(t, "POST", path, nil, &failure), "a confirmation runs once")
	assert.Contains(t, failure["error"], res.Confirmation.ID)

	snap, err = f.store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Assets, 1)
	assert.Equal(t, "Savings", snap.Assets[0].Name)
}

func TestDiscard(t *testing.T) {
	f := newFixture(t)
	var res CommandResponse
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/api/v1/commands", command("add a savings account"), &res))
	path := "/api/v1/confirmations/" + res.Confirmation.ID

	assert.Equal(t, http.StatusNoContent, f.do(t, "DELETE", path, nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, "DELETE", path, nil, &map[string]string{}))
	assert.Equal(t, http.StatusNotFound, f.do(t, "POST", path, nil, &map[string]string{}))
}

func TestCommandErrors(t *testing.T) {
	f := newFixture(t)
	var failure map[string]string

	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed", "not an object", http.StatusBadRequest},
		{"no user turn", CommandRequest{}, http.StatusBadRequest},
		{"bad role", CommandRequest{Messages: []agent.Turn{{Role: "system", Content: "hi"}}}, http.StatusBadRequest},
		{"reasoning down", command("are you offline?"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.do(t, "POST", "/api/v1/commands", tt.body, &failure))
			assert.NotEmpty(t, failure["error"])
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	var health map[string]string
	require.Equal(t, http.StatusOK, f.do(t, "GET", "/health", nil, &health))
	assert.Equal(t, "healthy", health["status"])

	f.do(t, "POST", "/api/v1/commands", command("hello"), &CommandResponse{})
	resp, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), `folio_agent_commands_total{result="text"} 1`)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{folio.ValidationError{Field: "x"}, http.StatusBadRequest},
		{fmt.Errorf("sell_shares: %w", folio.NotFoundError{Kind: "ticker"}), http.StatusNotFound},
		{folio.AmbiguityError{Kind: "account"}, http.StatusConflict},
		{folio.InsufficientSharesError{Symbol: "AAPL"}, http.StatusConflict},
		{folio.ServiceError{Service: "store", Err: errors.New("down")}, http.StatusBadGateway},
		{fmt.Errorf("reasoning failed: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), "%v", tt.err)
	}
}
