package cmd

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/etnz/folio/mutation"
	"github.com/etnz/folio/renderer"
	"github.com/google/subcommands"
)

// sellCmd sells shares without going through the assistant.
type sellCmd struct {
	ticker   string
	account  string
	date     string
	count    string
	price    string
	to       string
	amount   string
	assumeOK bool
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "sell shares out of a lot" }
func (*sellCmd) Usage() string {
	return `folio sell -t <ticker> -d <purchase date> -n <count> [-a <account>] [-p <price>] [-to <asset> [-amount <value>]] [-y]

  Sells shares bought on a given day. Lots bought the same day are depleted in
  the order they were recorded. With -to, the proceeds (count × price, or -amount)
  are added to that cash-like asset. See "folio topic sales".
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "t", "", "ticker symbol")
	f.StringVar(&c.account, "a", "", "account holding the shares, required when several do")
	f.StringVar(&c.date, "d", "", "purchase date of the lot")
	f.StringVar(&c.count, "n", "", "number of shares sold")
	f.StringVar(&c.price, "p", "", "sale price per share")
	f.StringVar(&c.to, "to", "", "asset receiving the proceeds")
	f.StringVar(&c.amount, "amount", "", "amount moved to the -to asset, count × price by default")
	f.BoolVar(&c.assumeOK, "y", false, "do not ask for confirmation")
}

// args returns the sell_shares arguments.
func (c *sellCmd) args() map[string]any {
	args := map[string]any{
		"ticker":        c.ticker,
		"sourceAccount": c.account,
		"purchaseDate":  c.date,
	}
	optional := map[string]string{"count": c.count, "salePrice": c.price, "transferTo": c.to, "transferAmount": c.amount}
	for k, v := range optional {
		if v != "" {
			args[k] = v
		}
	}
	return args
}

func (c *sellCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	w, err := mutation.Prepare(string(mutation.SellShares), c.args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}

	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	if !c.assumeOK && !confirm(os.Stdin, stdout, w.Summary) {
		fmt.Fprintln(stdout, "Cancelled.")
		return subcommands.ExitSuccess
	}
	out, err := (&mutation.Applier{Store: app.store, Log: app.log.Named("mutation")}).Apply(ctx, w)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Sale failed:", err)
		return subcommands.ExitFailure
	}
	publish(ctx, app.publisher(), app.log, out)
	printMarkdown(renderer.Outcome(out))
	return subcommands.ExitSuccess
}

// confirm prints question and reports whether the answer is yes.
func confirm(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s\nConfirm? [y/N] ", question)
	answer, _ := bufio.NewReader(r).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
