package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventpilot/be-approvals/internal/client"
	"github.com/eventpilot/be-approvals/internal/config"
	"github.com/eventpilot/be-approvals/internal/database"
	"github.com/eventpilot/be-approvals/internal/handler"
	"github.com/eventpilot/be-approvals/internal/logging"
	"github.com/eventpilot/be-approvals/internal/middleware"
	"github.com/eventpilot/be-approvals/internal/repository"
	"github.com/eventpilot/be-approvals/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logging.New(cfg.Logging, cfg.Service.Name, cfg.Service.Version, cfg.Service.Environment)

	log.Info().
		Str("public_base_url", cfg.Public.BaseURL).
		Str("expiry_policy", cfg.Approvals.ExpiryPolicy).
		Msg("Starting Approvals Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	approvalRepo := repository.NewApprovalRepository(db)
	disclosureRepo := repository.NewDisclosureRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// Initialize NATS notification publisher (optional)
	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		natsConn, err = nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Service.Name),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer natsConn.Drain()
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
	}
	notifier := client.NewNotificationPublisher(natsConn, cfg.NATS.SubjectPrefix, log)

	// Initialize payment gateway
	var gateway service.PaymentGateway
	if cfg.Stripe.Enabled {
		gateway = client.NewStripeGateway(cfg.Stripe.SecretKey, log)
		log.Info().Msg("Stripe gateway initialized")
	}

	// Initialize services
	paymentService := service.NewPaymentService(paymentRepo, subjectRepo, gateway, notifier, cfg, log)
	disclosureService := service.NewDisclosureService(disclosureRepo, log)
	approvalService := service.NewApprovalService(
		approvalRepo, disclosureRepo, subjectRepo, activityRepo,
		paymentService, notifier, cfg, log,
	)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(approvalService, disclosureService, paymentService, cfg, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: false,
	}))
	r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := db.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/", httpHandler.Routes())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
