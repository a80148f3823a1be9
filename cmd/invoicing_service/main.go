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
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/ticketshop/invoicing-gateway/internal/invoicing_service/adapters/http"
	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/adapters/notifier"
	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/adapters/paypal"
	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/app"
	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/domain"
	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/repository/memory"
	"github.com/ticketshop/invoicing-gateway/internal/platform/config"
	"github.com/ticketshop/invoicing-gateway/internal/platform/logger"
	"github.com/ticketshop/invoicing-gateway/internal/platform/messagebroker"
)

const (
	serviceName     = "invoicing-gateway"
	shutdownTimeout = 15 * time.Second
)

// httpLogger is a middleware that logs HTTP requests using slog.
func httpLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			requestID := chiMiddleware.GetReqID(r.Context())

			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			logger.LogAttrs(r.Context(), slog.LevelInfo, "HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", ww.Status()),
				slog.Int64("duration_ms", duration.Milliseconds()),
				slog.String("request_id", requestID),
				slog.String("remote_addr", r.RemoteAddr),
			)
		}
		return http.HandlerFunc(fn)
	}
}

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)

	appLogger.Info("Invoicing gateway starting...",
		"http_port", cfg.HTTPPort,
		"metrics_port", cfg.MetricsPort,
		"provider_mode", cfg.PayPalMode,
		"log_level", cfg.LogLevel,
	)
	if cfg.PayPalClientID == "" || cfg.PayPalSecret == "" {
		appLogger.Warn("Provider credentials are not configured; every issuance will fail until APP_PAYPAL_CLIENT_ID and APP_PAYPAL_SECRET are set")
	}
	if cfg.PayPalWebhookID == "" {
		appLogger.Warn("Webhook id is not configured; all webhook events will fail signature verification")
	}

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "url", cfg.NATSUrl, "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Successfully connected to NATS", "url", cfg.NATSUrl)

	correlationRepo := memory.NewCorrelationRepository(appLogger)
	correlationRepo.StartJanitor(mainCtx)

	providerClient := paypal.NewClient(paypal.Config{
		Mode:                      cfg.PayPalMode,
		ClientID:                  cfg.PayPalClientID,
		Secret:                    cfg.PayPalSecret,
		WebhookID:                 cfg.PayPalWebhookID,
		Currency:                  cfg.SettlementCurrency,
		BrandName:                 cfg.InvoiceBrandName,
		SellerEmail:               cfg.SellerEmail,
		Terms:                     cfg.InvoiceTerms,
		PlaceholderRecipientEmail: cfg.PlaceholderRecipientEmail,
	}, appLogger, nil)

	channelNotifier := notifier.NewNATSNotifier(natsClient, appLogger)

	issuerService := app.NewIssuerService(providerClient, correlationRepo, domain.ParseSendMode(cfg.InvoiceSendMode), appLogger)
	reconcilerService := app.NewReconcilerService(providerClient, correlationRepo, channelNotifier, cfg.FallbackChannelID, appLogger)

	validate := validator.New()
	invoiceHandler := httpadapter.NewInvoiceHandler(issuerService, appLogger, validate)
	webhookHandler := httpadapter.NewWebhookHandler(providerClient, reconcilerService, appLogger)

	httpRouter := chi.NewRouter()
	httpRouter.Use(chiMiddleware.RequestID)
	httpRouter.Use(chiMiddleware.RealIP)
	httpRouter.Use(chiMiddleware.Recoverer)
	httpRouter.Use(httpLogger(appLogger))
	httpRouter.Post("/invoices", invoiceHandler.IssueInvoice)
	httpRouter.Post("/webhooks/paypal", webhookHandler.HandleProviderWebhook)
	httpRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server ListenAndServe error", "error", err)
			return err
		}
		appLogger.Info("HTTP server shut down gracefully.")
		return nil
	})

	g.Go(func() error {
		appLogger.Info("Metrics HTTP server starting", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics HTTP server ListenAndServe error", "error", err)
			return err
		}
		appLogger.Info("Metrics HTTP server shut down gracefully.")
		return nil
	})

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)

	g.Go(func() error {
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
			return nil
		case <-groupCtx.Done():
			return nil
		}
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Initiating graceful shutdown of servers...")

		shutdownCtx, cancelShutdownTimeout := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdownTimeout()

		var shutdownErrors error
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics HTTP server graceful shutdown failed", "error", err)
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("metrics http shutdown: %w", err))
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("HTTP server graceful shutdown failed", "error", err)
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("http shutdown: %w", err))
		}
		return shutdownErrors
	})

	appLogger.Info("Invoicing gateway is ready and running.")
	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Service group encountered an error during run/shutdown", "error", err)
		}
	}

	appLogger.Info("Invoicing gateway shut down successfully.")
}
