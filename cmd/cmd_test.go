package cmd

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/etnz/folio/date"
	"github.com/etnz/folio/mutation"
	"github.com/etnz/folio/store"
	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRegister(t *testing.T) {
	c := subcommands.NewCommander(flag.NewFlagSet("folio", flag.ContinueOnError), "folio")
	Register(c)

	names := map[string]bool{}
	c.VisitCommands(func(_ *subcommands.CommandGroup, cmd subcommands.Command) {
		names[cmd.Name()] = true
	})
	for _, want := range []string{"assist", "serve", "mcp", "summary", "taxlots", "sell", "migrate", "topic"} {
		assert.True(t, names[want], "%s is not registered", want)
	}
}

func TestSummaryMarkdown(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, store.SQLite, ":memory:", store.WithToday(func() date.Date { return date.New(2025, 6, 1) }))
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(ctx))

	w, err := mutation.Prepare("add_cash_asset", map[string]any{"name": "Savings", "location": "Ally", "value": 500})
	require.NoError(t, err)
	_, err = mutation.Apply(ctx, st, w)
	require.NoError(t, err)

	snap, err := st.Snapshot(ctx)
	require.NoError(t, err)

	md, summary := summaryMarkdown(snap, false)
	assert.Equal(t, 500.0, summary.NetWorth)
	assert.Contains(t, md, "# Portfolio Summary")
	assert.Contains(t, md, "$500.00")
	assert.NotContains(t, md, "# Positions")

	md, _ = summaryMarkdown(snap, true)
	assert.Contains(t, md, "# Positions")
	assert.Contains(t, md, "Savings")
	assert.NotContains(t, md, "# RSU Grants")

	writes := []struct {
		kind string
		args map[string]any
	}{
		{"add_stock_transaction", map[string]any{"ticker": "GOOG", "account": "Schwab", "purchaseDate": "2024-01-01", "count": 2, "costPrice": 80}},
		{"add_rsu_grant", map[string]any{"ticker": "GOOG", "account": "Schwab", "grantDate": "2024-01-01", "totalShares": 40,
			"vestStart": "2024-01-01", "vestEnd": "2028-01-01"}},
	}
	for _, tc := range writes {
		w, err := mutation.Prepare(tc.kind, tc.args)
		require.NoError(t, err)
		_, err = mutation.Apply(ctx, st, w)
		require.NoError(t, err, tc.kind)
	}
	snap, err = st.Snapshot(ctx)
	require.NoError(t, err)
	md, _ = summaryMarkdown(snap, false)
	assert.Contains(t, md, "# RSU Grants")
	assert.Contains(t, md, "| GOOG | 2024-01-01 | 2024-01-01 to 2028-01-01 | 40 | 0 | 40 |")
}

func TestSellArgs(t *testing.T) {
	c := &sellCmd{ticker: "aapl", account: "Fidelity", date: "2024-01-01", count: "4", price: "190.5", to: "Brokerage Cash"}
	args := c.args()
	assert.Equal(t, "4", args["count"])
	assert.NotContains(t, args, "transferAmount")

	w, err := mutation.Prepare(string(mutation.SellShares), args)
	require.NoError(t, err)
	require.NotNil(t, w.Sale)
	assert.Equal(t, "AAPL", w.Sale.Ticker)
	assert.Equal(t, "Brokerage Cash", w.Sale.TransferTo)
	assert.Equal(t, "762", w.Sale.Transfer().String())

	_, err = mutation.Prepare(string(mutation.SellShares), (&sellCmd{ticker: "AAPL"}).args())
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	testCases := []struct {
		answer string
		want   bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" y ", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tc := range testCases {
		var out bytes.Buffer
		assert.Equal(t, tc.want, confirm(strings.NewReader(tc.answer), &out, "Sell 4 AAPL shares"), "answer %q", tc.answer)
		assert.Equal(t, "Sell 4 AAPL shares\nConfirm? [y/N] ", out.String())
	}
}

func TestRunExtension(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("extensions are shell scripts in this test")
	}
	dir := t.TempDir()
	script := "#!/bin/sh\necho \"$FOLIO_STORE_DRIVER $FOLIO_STORE_DSN $*\"\nexit 3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "folio-hello"), []byte(script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	oldDriver, oldDSN := *storeDriver, *storeDSN
	*storeDriver, *storeDSN = "postgres", "postgres://localhost/folio"
	defer func() { *storeDriver, *storeDSN = oldDriver, oldDSN }()

	var stdout, stderr bytes.Buffer
	found, code := runExtension("hello", []string{"a", "b"}, strings.NewReader(""), &stdout, &stderr)
	assert.True(t, found)
	assert.Equal(t, 3, code)
	assert.Equal(t, "postgres postgres://localhost/folio a b\n", stdout.String())

	found, _ = runExtension("missing", nil, strings.NewReader(""), &stdout, &stderr)
	assert.False(t, found)
}

func TestTopic(t *testing.T) {
	var out bytes.Buffer
	old := stdout
	stdout = &out
	defer func() { stdout = old }()

	f := flag.NewFlagSet("topic", flag.ContinueOnError)
	require.NoError(t, f.Parse(nil))
	assert.Equal(t, subcommands.ExitSuccess, (&topicCmd{}).Execute(context.Background(), f))
	assert.NotEmpty(t, out.String())
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, mutation.Outcome) error {
	return errors.New("broker unreachable")
}

func TestPublishLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	publish(context.Background(), failingPublisher{}, zap.New(core), mutation.Outcome{WriteID: "w1"})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "failed to publish the write", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "w1", fields["write"])
	assert.Equal(t, "broker unreachable", fields["error"])
}
