package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/folio/agent"
	"github.com/google/subcommands"
)

// assistCmd is the subcommand for the AI assistant.
type assistCmd struct {
	plain bool
}

func (*assistCmd) Name() string     { return "assist" }
func (*assistCmd) Synopsis() string { return "start an interactive session with the portfolio assistant" }
func (*assistCmd) Usage() string {
	return `folio assist [-plain] [<command>...]

  Start an interactive session with the portfolio assistant. The arguments, if
  any, are sent as the first command. Writes are only applied once confirmed.
`
}

func (c *assistCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.plain, "plain", false, "print answers as raw markdown")
}

func (c *assistCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	a, err := app.newAgent(ctx, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error initializing the assistant:", err)
		return subcommands.ExitFailure
	}

	session := agent.NewSession(a, app.store.Snapshot, os.Stdout, os.Stdin)
	if !c.plain {
		session.Render = renderMarkdown
	}
	var prompts []string
	if f.NArg() > 0 {
		prompts = append(prompts, strings.Join(f.Args(), " "))
	}
	if err := session.Run(ctx, prompts...); err != nil {
		fmt.Fprintln(os.Stderr, "Assistant failed:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
