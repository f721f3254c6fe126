package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/instadm/golang_services/internal/platform/config"
	"github.com/instadm/golang_services/internal/platform/logger"
	"github.com/instadm/golang_services/internal/webhook_service/adapters/graphapi"
	httpadapter "github.com/instadm/golang_services/internal/webhook_service/adapters/http"
	"github.com/instadm/golang_services/internal/webhook_service/app"
)

const (
	serviceName     = "webhook_service"
	shutdownTimeout = 30 * time.Second
)

// httpLogger is a middleware that logs HTTP requests using slog.
func httpLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			requestID := chiMiddleware.GetReqID(r.Context())

			next.ServeHTTP(ww, r)

			logger.LogAttrs(r.Context(), slog.LevelInfo, "HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", ww.Status()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", requestID),
				slog.String("remote_addr", r.RemoteAddr),
			)
		}
		return http.HandlerFunc(fn)
	}
}

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("Webhook service starting...",
		"port", cfg.ServerPort,
		"graph_api_version", cfg.GraphAPIVersion,
		"signature_verification", cfg.AppSecret != "",
		"dedup_ttl_seconds", cfg.DedupTTLSeconds,
	)

	dedup := app.NewDedupStore(time.Duration(cfg.DedupTTLSeconds)*time.Second, cfg.DedupMaxEntries)

	sender := graphapi.NewClient(graphapi.Config{
		BaseURL:     cfg.GraphAPIBaseURL,
		APIVersion:  cfg.GraphAPIVersion,
		AccessToken: cfg.AccessToken,
	}, &http.Client{Timeout: time.Duration(cfg.HTTPClientTimeoutSeconds) * time.Second}, appLogger)

	dispatcher := app.NewDispatcher(sender, cfg.DispatchWorkers, cfg.DispatchQueueSize, appLogger)
	dispatcher.Start()

	webhookHandler := httpadapter.NewWebhookHandler(
		cfg.VerifyToken, cfg.AppSecret, cfg.ReplyText, dedup, dispatcher, appLogger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(httpLogger(appLogger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	webhookHandler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.ServerPort), Handler: r}

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()
	g, gCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quitChan := make(chan os.Signal, 1)
		signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quitChan:
			appLogger.Info("Shutdown signal received", "signal", sig.String())
		case <-gCtx.Done():
			return gCtx.Err()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("HTTP server shutdown failed", "error", err)
			return err
		}
		appLogger.Info("HTTP server shut down gracefully.")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service exited with error", "error", err)
	}

	// Drain queued deliveries after the server stops accepting requests.
	// Sends still in flight when the process is killed are lost; upstream
	// redelivery (filtered by dedup) is the only recovery path.
	dispatcher.Stop()
	appLogger.Info("Webhook service shut down.")
}
