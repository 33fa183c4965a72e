package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etnz/folio/api"
	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

type serveCmd struct {
	host string
	port int
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the command API over HTTP" }
func (*serveCmd) Usage() string {
	return `folio serve [-host <host>] [-port <port>]

  Serves the command API:
    POST   /api/v1/commands            handle a command (?trace=1 for the trace)
    POST   /api/v1/confirmations/{id}  apply a confirmed write
    DELETE /api/v1/confirmations/{id}  discard it
    GET    /health, /metrics
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.host, "host", "", "listen host, overrides the configuration")
	f.IntVar(&c.port, "port", 0, "listen port, overrides the configuration")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer app.Close()
	if c.host != "" {
		app.cfg.Server.Host = c.host
	}
	if c.port > 0 {
		app.cfg.Server.Port = c.port
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a, err := app.newAgent(ctx, reg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error initializing the agent:", err)
		return subcommands.ExitFailure
	}

	srv := &http.Server{
		Addr:              app.cfg.Server.Addr(),
		Handler:           api.SetupRoutes(api.NewHandler(a, app.store, app.log.Named("api")), reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() { errs <- srv.ListenAndServe() }()
	app.log.Info("serving", zap.String("addr", srv.Addr))

	select {
	case err = <-errs:
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdown)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintln(os.Stderr, "Server failed:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
