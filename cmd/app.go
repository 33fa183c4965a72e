// Package cmd implements the folio subcommands.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/folio/agent"
	"github.com/etnz/folio/config"
	"github.com/etnz/folio/eodhd"
	"github.com/etnz/folio/events"
	"github.com/etnz/folio/mutation"
	"github.com/etnz/folio/store"
	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", os.Getenv("FOLIO_CONFIG"), "Path to the TOML configuration file.")
var storeDriver = flag.String("store-driver", "", "Store driver (sqlite or postgres). Overrides the configuration.")
var storeDSN = flag.String("store-dsn", "", "Store data source name. Overrides the configuration.")

// Commands are the folio subcommands, by group.
var Commands = map[string][]subcommands.Command{
	"agent":     {&assistCmd{}, &serveCmd{}, &mcpCmd{}},
	"portfolio": {&summaryCmd{}, &taxlotsCmd{}, &sellCmd{}},
	"admin":     {&migrateCmd{}, &topicCmd{}},
}

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	for group, cmds := range Commands {
		for _, cmd := range cmds {
			c.Register(cmd, group)
		}
	}
}

// app holds what commands share: the configuration, the logger and the store.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store *store.Store

	closers []func() error
}

// openApp loads the configuration, then opens and migrates the store.
func openApp(ctx context.Context) (*app, error) {
	var paths []string
	if *configFile != "" {
		paths = append(paths, *configFile)
	}
	cfg, err := config.LoadFromFiles(paths...)
	if err != nil {
		return nil, err
	}
	config.ApplyFlagOverrides(cfg, *storeDriver, *storeDSN)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := cfg.Logging.NewLogger()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, store.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	a := &app{cfg: cfg, log: log, store: st}
	a.closers = append(a.closers, st.Close)
	return a, nil
}

// Close releases everything opened by the app, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	a.log.Sync()
}

// applier returns the write path, with the price backfill of new tickers.
func (a *app) applier(ctx context.Context) *mutation.Applier {
	quotes := eodhd.New(a.cfg.Quotes.APIKey)
	quotes.BaseURL = a.cfg.Quotes.BaseURL
	quotes.TTL = time.Duration(a.cfg.Quotes.CacheTTL)
	quotes.Log = a.log.Named("quotes")
	if addr := a.cfg.Quotes.RedisAddr; addr != "" {
		cache, err := eodhd.NewRedisCache(ctx, addr)
		if err != nil {
			a.log.Warn("quote cache disabled", zap.Error(err))
		} else {
			quotes.Cache = cache
			a.closers = append(a.closers, cache.Close)
		}
	}
	return &mutation.Applier{
		Store:    a.store,
		Backfill: mutation.NewBackfill(a.store, quotes, a.log.Named("backfill")),
		Log:      a.log.Named("mutation"),
	}
}

// publisher returns the Kafka producer when brokers are configured.
func (a *app) publisher() agent.Publisher {
	if len(a.cfg.Events.Brokers) == 0 {
		return events.Nop{}
	}
	p := events.NewProducer(a.cfg.Events.Brokers, a.cfg.Events.Topic)
	a.closers = append(a.closers, p.Close)
	return p
}

// publish tells p about out. Failures are only logged.
func publish(ctx context.Context, p agent.Publisher, log *zap.Logger, out mutation.Outcome) {
	if err := p.Publish(ctx, out); err != nil {
		log.Warn("failed to publish the write", zap.String("write", out.WriteID), zap.Error(err))
	}
}

// newAgent returns the command agent on Gemini. reg may be nil.
func (a *app) newAgent(ctx context.Context, reg prometheus.Registerer) (*agent.Agent, error) {
	reasoner, err := agent.NewGemini(ctx, a.cfg.Reasoning.APIKey, a.cfg.Reasoning.Model)
	if err != nil {
		return nil, err
	}
	ag := agent.New(reasoner, a.applier(ctx))
	ag.Publisher = a.publisher()
	ag.Log = a.log.Named("agent")
	ag.MaxReadRounds = a.cfg.Agent.MaxReadRounds
	ag.MaxClarificationRounds = a.cfg.Agent.MaxClarificationRounds
	if reg != nil {
		ag.Metrics = agent.NewMetrics(reg)
	}
	return ag, nil
}

// renderMarkdown renders md for the terminal, or returns it as is if it cannot.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// printMarkdown renders md to stdout.
func printMarkdown(md string) { fmt.Fprint(stdout, renderMarkdown(md)) }

var stdout io.Writer = os.Stdout
