package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"salon-loyalty-api/internal/checkin"
	"salon-loyalty-api/internal/handler"
	"salon-loyalty-api/internal/middleware"
)

const shutdownTimeout = 15 * time.Second

func serveCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configFile)
		},
	}
}

func runServe(ctx context.Context, configFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configFile)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	janitor := checkin.NewJanitor(a.db, cfg.Loyalty.JanitorInterval(), nil,
		a.logger.With().Str("component", "janitor").Logger(), a.metrics)
	janitor.Start()
	defer janitor.Stop()

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second, nil)
		defer limiter.Stop()
	}

	h := handler.NewHandlerWithOptions(a.svc, handler.NewHandlerOptions{
		MaxBodySize:   cfg.Security.MaxRequestBodySize,
		SecureCookies: cfg.Auth.SecureCookies,
	})
	router := handler.NewRouter(h, handler.RouterOptions{
		Logger:         a.logger,
		Metrics:        a.metrics,
		Tracer:         a.tracer,
		AllowedOrigins: cfg.Security.Origins(),
		Limiter:        limiter,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	protocol := "HTTP"
	if cfg.Server.EnableTLS {
		protocol = "HTTPS"
	}
	a.logger.Info().
		Str("protocol", protocol).
		Str("addr", server.Addr).
		Str("database", cfg.Database.Path).
		Bool("rate_limit", cfg.RateLimit.Enabled).
		Msg("starting server")

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.EnableTLS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
