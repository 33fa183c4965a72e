package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create or upgrade the portfolio database" }
func (*migrateCmd) Usage() string {
	return `folio migrate

  Brings the database schema up to date. Other commands do it too when they open
  the store; this one does nothing else.
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer app.Close()
	fmt.Fprintf(stdout, "%s database %s is up to date.\n", app.cfg.Store.Driver, app.cfg.Store.DSN)
	return subcommands.ExitSuccess
}
