package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/folio"
	"github.com/etnz/folio/analytics"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/renderer"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// summaryCmd holds the flags for the 'summary' subcommand.
type summaryCmd struct {
	record    bool
	positions bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display the portfolio summary" }
func (*summaryCmd) Usage() string {
	return `folio summary [-positions] [-record]

  Displays the net worth, the stock allocation and the top holdings. With -record,
  today's net worth is appended to the history used by the net worth charts.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.record, "record", false, "record today's net worth")
	f.BoolVar(&c.positions, "positions", false, "list every position too")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	snap, err := app.store.Snapshot(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading the portfolio:", err)
		return subcommands.ExitFailure
	}
	md, summary := summaryMarkdown(snap, c.positions)

	if c.record {
		if err := app.store.RecordNetWorth(ctx, date.Today(), decimal.NewFromFloat(summary.NetWorth)); err != nil {
			fmt.Fprintln(os.Stderr, "Error recording the net worth:", err)
			return subcommands.ExitFailure
		}
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

func summaryMarkdown(snap *folio.Snapshot, positions bool) (string, analytics.Summary) {
	summary := analytics.PortfolioSummary(snap)
	var b strings.Builder
	b.WriteString(renderer.Summary(summary))
	if positions {
		b.WriteString("\n")
		b.WriteString(renderer.Positions(analytics.Positions(snap, analytics.PositionFilter{Limit: analytics.MaxPositionLimit})))
	}
	if grants := analytics.Grants(snap); len(grants) > 0 {
		b.WriteString("\n")
		b.WriteString(renderer.Grants(grants))
	}
	return b.String(), summary
}
