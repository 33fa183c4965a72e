package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/folio/analytics"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/renderer"
	"github.com/google/subcommands"
)

type taxlotsCmd struct {
	symbols   string
	threshold float64
	days      int
}

func (*taxlotsCmd) Name() string     { return "taxlots" }
func (*taxlotsCmd) Synopsis() string { return "analyse tax lots: harvest candidates, upcoming long term" }
func (*taxlotsCmd) Usage() string {
	return `folio taxlots [-symbols AAPL,MSFT] [-threshold <pct>] [-days <n>]

  Lists the lots worth harvesting (gain at or below the threshold), the short-term
  lots with a gain that turn long term soon, and the biggest winners and losers.
`
}

func (c *taxlotsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbols, "symbols", "", "comma separated tickers to analyse, all by default")
	f.Float64Var(&c.threshold, "threshold", analytics.DefaultHarvestThresholdPct, "harvest threshold, in percent")
	f.IntVar(&c.days, "days", analytics.DefaultUpcomingLongTermDays, "upcoming long term window, in days")
}

func (c *taxlotsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	opts := analytics.TaxLotOptions{HarvestThresholdPct: c.threshold, UpcomingLongTermDays: c.days}
	for _, s := range strings.Split(c.symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			opts.Symbols = append(opts.Symbols, s)
		}
	}
	printMarkdown(renderer.TaxLots(analytics.TaxLots(snap, date.Today(), opts)))
	return subcommands.ExitSuccess
}
