package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"stakingcore/gateway/middleware"
	"stakingcore/gateway/routes"
	telemetry "stakingcore/observability/otel"
)

func (a *app) serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP gateway and event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = a.cfg.HTTPAddress
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, listen, nil)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config)")
	return cmd
}

// serve runs the gateway until ctx is cancelled. ready, when non-nil,
// receives the bound address once the listener is open.
func (a *app) serve(ctx context.Context, listen string, ready chan<- string) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: a.cfg.Environment,
		Endpoint:    a.cfg.Telemetry.Endpoint,
		Insecure:    a.cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(a.cfg.Telemetry.Headers),
		Metrics:     a.cfg.Telemetry.Metrics,
		Traces:      a.cfg.Telemetry.Traces,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(flushCtx)
	}()

	stream := routes.NewStream(a.logger)
	rt, err := a.openRuntime(stream)
	if err != nil {
		return err
	}
	defer rt.Close()

	reg := prometheus.NewRegistry()
	var auth *middleware.Authenticator
	if a.cfg.Auth.Enabled() {
		auth = middleware.NewAuthenticator(a.authConfig(), a.logger)
	} else {
		a.logger.Warn("auth.HMACSecret not set; write routes disabled")
	}
	limit := middleware.RateLimit{RequestsPerMinute: a.cfg.RateLimit.RequestsPerMinute, Burst: a.cfg.RateLimit.Burst}
	handler := routes.New(routes.Config{
		Service:       rt.node,
		Stream:        stream,
		Authenticator: auth,
		RateLimiter: middleware.NewRateLimiter(map[string]middleware.RateLimit{
			routes.RateLimitRead:  limit,
			routes.RateLimitWrite: limit,
		}, a.logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{LogRequests: true}, reg, a.logger),
		Metrics:       promhttp.HandlerFor(prometheus.Gatherers{prometheus.DefaultGatherer, reg}, promhttp.HandlerOpts{}),
		Logger:        a.logger,
	})

	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	a.logger.Info("gateway listening", "address", listener.Addr().String())
	if ready != nil {
		ready <- listener.Addr().String()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info("gateway stopped")
	return nil
}
