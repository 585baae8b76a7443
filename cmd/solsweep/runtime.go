package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/solsweep/client"
	"github.com/brojonat/solsweep/service/config"
	"github.com/brojonat/solsweep/service/db"
	"github.com/brojonat/solsweep/service/metrics"
	natspkg "github.com/brojonat/solsweep/service/nats"
	"github.com/brojonat/solsweep/service/solana"
)

// runtime holds what every command needs: resolved config, a logger, optional
// metrics, and the cleanups to run on exit.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	out     io.Writer
	json    bool

	closers []func()
}

// newRuntime loads configuration and lets global flags override it.
func newRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if v := c.String("rpc"); v != "" {
		cfg.SolanaRPCURL = v
	}
	if v := c.String("relay-url"); v != "" {
		cfg.RelayURL = v
	}
	if v := c.String("database-url"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := c.String("nats-url"); v != "" {
		cfg.NATSURL = v
	}
	if v := c.String("metrics-addr"); v != "" {
		cfg.MetricsAddr = v
	}
	cfg.LogLevel = c.String("log-level")

	rt := &runtime{
		cfg:    cfg,
		logger: setupLogger(cfg.LogLevel),
		out:    c.App.Writer,
		json:   c.Bool("json"),
	}
	if rt.out == nil {
		rt.out = os.Stdout
	}
	if cfg.MetricsAddr != "" {
		rt.startMetricsServer(cfg.MetricsAddr)
	}
	return rt, nil
}

// startMetricsServer serves a private registry so repeated runs in one process
// never collide on collector registration.
func (rt *runtime) startMetricsServer(addr string) {
	registry := prometheus.NewRegistry()
	rt.metrics = metrics.NewMetrics(registry)

	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		rt.logger.Info("starting metrics HTTP server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rt.logger.Error("metrics server error", "error", err)
		}
	}()
	rt.onClose(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			rt.logger.Error("failed to shutdown metrics server", "error", err)
		}
	})
}

func (rt *runtime) onClose(fn func()) {
	rt.closers = append(rt.closers, fn)
}

// Close runs cleanups in reverse order.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// chainClient builds a fresh Solana client for the configured endpoint.
func (rt *runtime) chainClient() *solana.Client {
	url := rt.cfg.SolanaRPCURL
	return solana.NewClient(
		solana.NewRPCClient(url),
		solana.EndpointLabel(url),
		rt.metrics,
		rt.logger,
		solana.WithConfirmation(rt.cfg.ConfirmTimeout, 0),
	)
}

// relayClient builds a relay client whose requests are instrumented.
func (rt *runtime) relayClient() *client.RelayClient {
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: metrics.InstrumentRoundTripper(rt.metrics, client.RequestKind, nil),
	}
	return client.NewRelayClient(rt.cfg.RelayURL, httpClient, rt.logger)
}

// store opens the ledger. It returns nil when no database is configured.
func (rt *runtime) store(ctx context.Context) (*db.Store, error) {
	if rt.cfg.DatabaseURL == "" {
		return nil, nil
	}
	store, err := db.Open(ctx, rt.cfg.DatabaseURL, rt.metrics)
	if err != nil {
		return nil, err
	}
	rt.onClose(store.Close)
	return store, nil
}

// requireStore is store for commands that cannot run without a ledger.
func (rt *runtime) requireStore(ctx context.Context) (*db.Store, error) {
	if rt.cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}
	return rt.store(ctx)
}

// publisher connects to NATS. It returns nil when no NATS URL is configured.
func (rt *runtime) publisher() (*natspkg.JetStreamPublisher, error) {
	if rt.cfg.NATSURL == "" {
		return nil, nil
	}
	pub, err := natspkg.NewPublisher(rt.cfg.NATSURL, rt.logger, rt.metrics)
	if err != nil {
		return nil, err
	}
	rt.onClose(func() {
		if err := pub.Close(); err != nil {
			rt.logger.Warn("failed to close NATS publisher", "error", err)
		}
	})
	return pub, nil
}

// printf writes human-readable output.
func (rt *runtime) printf(format string, args ...interface{}) {
	fmt.Fprintf(rt.out, format, args...)
}

// outputJSON writes v as indented JSON.
func (rt *runtime) outputJSON(v interface{}) error {
	enc := json.NewEncoder(rt.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// formatSOL renders lamports as a SOL amount.
func formatSOL(lamports uint64) string {
	return solana.FormatSOL(solana.LamportsToSOL(lamports))
}
