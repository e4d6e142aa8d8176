// Command gridctl talks to the microgrid simulation backend from a terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/chrisboulton/gridsocket-go"
	"github.com/chrisboulton/gridsocket-go/metrics"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	url         string
	baseDelay   time.Duration
	timeout     time.Duration
	logFile     string
	logLevel    string
	metricsAddr string

	logger    *slog.Logger
	logCloser io.Closer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "gridctl",
		Short:         "Microgrid simulation backend client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, closer, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFile)
			if err != nil {
				return err
			}
			opts.logger = logger
			opts.logCloser = closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logCloser != nil {
				return opts.logCloser.Close()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.url, "url", envOr("GRIDSOCKET_URL", gridsocket.DefaultURL), "backend WebSocket URL (env GRIDSOCKET_URL)")
	flags.DurationVar(&opts.baseDelay, "base-delay", gridsocket.DefaultBaseDelay, "backoff unit for reconnects and deferred calls")
	flags.DurationVar(&opts.timeout, "timeout", gridsocket.DefaultCallTimeout, "reply timeout per call")
	flags.StringVar(&opts.logFile, "log-file", os.Getenv("GRIDSOCKET_LOG_FILE"), "write JSON logs to this rotated file instead of the console")
	flags.StringVar(&opts.logLevel, "log-level", envOr("GRIDSOCKET_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	root.AddCommand(
		newCallCmd(opts),
		newWatchCmd(opts),
		newModesCmd(),
	)
	return root
}

// newClient builds a client from the global flags. The returned stop
// function closes the client and the metrics server.
func newClient(opts *globalOptions) (*gridsocket.Client, func(), error) {
	clientOpts := []gridsocket.ClientOption{
		gridsocket.WithLogger(opts.logger),
		gridsocket.WithBaseDelay(opts.baseDelay),
		gridsocket.WithCallTimeout(opts.timeout),
	}

	var srv *http.Server
	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector, err := metrics.New(reg)
		if err != nil {
			return nil, nil, err
		}
		clientOpts = append(clientOpts, collector.Options()...)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				opts.logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		opts.logger.Info("serving metrics", slog.String("addr", opts.metricsAddr))
	}

	client := gridsocket.New(opts.url, clientOpts...)
	stop := func() {
		client.Close()
		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}
	}
	return client, stop, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
