package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/folio/agent"
	"github.com/google/subcommands"
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients.
var Version = "dev"

type mcpCmd struct{}

func (*mcpCmd) Name() string     { return "mcp" }
func (*mcpCmd) Synopsis() string { return "serve the read tools to MCP clients on stdio" }
func (*mcpCmd) Usage() string {
	return `folio mcp

  Serves the portfolio read tools (positions, transactions, tax lots, simulations...)
  with the Model Context Protocol on stdin/stdout. Nothing can be written this way.
`
}

func (*mcpCmd) SetFlags(*flag.FlagSet) {}

func (*mcpCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	s, err := agent.NewMCPServer(Version, app.store.Snapshot, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "stdio server error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
