package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/bct-labs/material-tracking-api/internal/config"
	"github.com/bct-labs/material-tracking-api/internal/database"
	"github.com/bct-labs/material-tracking-api/internal/handlers"
	"github.com/bct-labs/material-tracking-api/internal/ledger"
	"github.com/bct-labs/material-tracking-api/internal/metrics"
	"github.com/bct-labs/material-tracking-api/internal/models"
	"github.com/bct-labs/material-tracking-api/internal/outbox"
	"github.com/bct-labs/material-tracking-api/internal/pipeline"
	"github.com/bct-labs/material-tracking-api/internal/repository"
	"github.com/bct-labs/material-tracking-api/internal/service"
	"github.com/bct-labs/material-tracking-api/pkg/kafka"
	"github.com/bct-labs/material-tracking-api/pkg/logger"
	"github.com/bct-labs/material-tracking-api/pkg/middleware"
	"github.com/bct-labs/material-tracking-api/pkg/retry"
)

type Server struct {
	config              *config.Config
	logger              logger.Logger
	router              *mux.Router
	httpServer          *http.Server
	db                  *database.Database
	txRecordRepo        *repository.TxRecordRepository
	outboxRepo          *repository.OutboxRepository
	dlqRepo             *repository.DeadLetterRepository
	ledgerClient        *ledger.GatewayClient
	metrics             *metrics.Registry
	shipmentService     *service.ShipmentService
	outboxProcessor     *outbox.Processor
	deadLetterProcessor *outbox.DeadLetterProcessor
	kafkaProducer       *kafka.Producer
	kafkaConsumer       *kafka.Consumer
	rateLimiter         *middleware.RateLimiterMiddleware
}

// NewServer creates a new API server with the given configuration and logger.
func NewServer(cfg *config.Config, logger logger.Logger) *Server {
	r := mux.NewRouter()
	db, err := database.New(cfg, logger)

	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		panic(err)
	}

	// Run migrations
	if err := db.RunMigrations(); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		panic(err)
	}

	// Initialize repositories
	txRecordRepo := repository.NewTxRecordRepository(db, logger)
	outboxRepo := repository.NewOutboxRepository(db, logger)
	dlqRepo := repository.NewDeadLetterRepository(db, logger)

	// Initialize the ledger gateway client and verify it speaks to the
	// expected chain. A mismatch is fatal, a down gateway is not.
	ledgerClient := ledger.NewGatewayClient(cfg.Ledger, logger)

	verifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ledgerClient.VerifyChain(verifyCtx); err != nil {
		logger.Warn("Ledger chain verification failed at startup",
			"error", err,
			"expectedChainID", cfg.Ledger.ChainID)
	}

	// Initialize Kafka producer
	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, logger)

	if err != nil {
		logger.Error("Failed to create Kafka producer", "error", err)
		panic(err)
	}

	// Initialize metrics, pipeline and services
	metricsRegistry := metrics.NewRegistry()
	queryPipeline := pipeline.New(logger, metricsRegistry)
	shipmentService := service.NewShipmentService(ledgerClient, queryPipeline, txRecordRepo, outboxRepo, metricsRegistry, logger)

	// Initialize outbox processor
	processorConfig := outbox.ProcessorConfig{
		PollingInterval: 5 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
	}
	outboxProcessor := outbox.NewProcessor(outboxRepo, dlqRepo, processorConfig, logger)

	// Initialize dead letter processor, polling less often than the outbox
	dlqProcessorConfig := &outbox.DeadLetterProcessorConfig{
		PollingInterval: 30 * time.Second,
		BatchSize:       5,
		MaxRetries:      5,
		BackoffStrategy: &retry.ExponentialBackoff{
			InitialInterval: 1 * time.Second,
			MaxInterval:     2 * time.Minute,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		},
	}

	deadLetterProcessor := outbox.NewDeadLetterProcessor(dlqRepo, logger, dlqProcessorConfig)

	// Register the Kafka publisher for every shipment event type
	kafkaHandler := outbox.NewKafkaHandler(kafkaProducer, cfg.Kafka.ShipmentsTopic, metricsRegistry, logger)

	for _, eventType := range []string{
		models.EventShipmentCreated,
		models.EventShipmentStarted,
		models.EventShipmentCompleted,
	} {
		outboxProcessor.RegisterHandler(eventType, kafkaHandler)
		deadLetterProcessor.RegisterHandler(eventType, kafkaHandler)
	}

	// Initialize Kafka consumer
	consumerConfig := &kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topics:        []string{cfg.Kafka.ShipmentsTopic},
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
	}

	kafkaConsumer, err := kafka.NewConsumer(consumerConfig, logger)

	if err != nil {
		logger.Error("Failed to create Kafka consumer", "error", err)
		panic(err)
	}

	shipmentEventsHandler := handlers.NewShipmentEventsHandler(logger)
	kafkaConsumer.RegisterHandler(cfg.Kafka.ShipmentsTopic, shipmentEventsHandler)

	// Initialize the rate limiter middleware
	rateLimiter := middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
		GlobalMaxTokens:   100,
		GlobalRefillRate:  50,
		IPMaxTokens:       20,
		IPRefillRate:      10,
		TrustForwardedFor: cfg.Env != "production",
	}, logger)

	server := &Server{
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:              logger,
		config:              cfg,
		db:                  db,
		txRecordRepo:        txRecordRepo,
		outboxRepo:          outboxRepo,
		dlqRepo:             dlqRepo,
		ledgerClient:        ledgerClient,
		metrics:             metricsRegistry,
		shipmentService:     shipmentService,
		outboxProcessor:     outboxProcessor,
		deadLetterProcessor: deadLetterProcessor,
		kafkaProducer:       kafkaProducer,
		kafkaConsumer:       kafkaConsumer,
		rateLimiter:         rateLimiter,
	}

	server.setupRoutes()

	// Start the processors
	outboxProcessor.Start()
	deadLetterProcessor.Start()

	// Start the Kafka consumer
	if err := kafkaConsumer.Start(); err != nil {
		logger.Error("Failed to start Kafka consumer", "error", err)
		// Non-fatal error, continue without the consumer
	}

	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Stop the processors
	s.outboxProcessor.Stop()
	s.deadLetterProcessor.Stop()

	// Stop the rate limiter cleanup loop
	s.rateLimiter.Stop()

	// Stop the Kafka consumer
	if s.kafkaConsumer != nil {
		if err := s.kafkaConsumer.Stop(); err != nil {
			s.logger.Error("Error stopping Kafka consumer", "error", err)
		}
	}

	// Close the Kafka producer
	if s.kafkaProducer != nil {
		if err := s.kafkaProducer.Close(); err != nil {
			s.logger.Error("Error closing Kafka producer", "error", err)
		}
	}

	// Close database connection
	if err := s.db.Close(); err != nil {
		s.logger.Error("Error closing database connection", "error", err)
	}

	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all the routes for our API
func (s *Server) setupRoutes() {
	// Add middleware for all routes
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.rateLimiter.Middleware)

	// Prometheus metrics endpoint
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Health check endpoint
	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	// Ledger-wide query endpoint
	api.HandleFunc("/shipments/query", s.queryShipmentsHandler).Methods(http.MethodPost)
	api.HandleFunc("/shipments", s.createShipmentHandler).Methods(http.MethodPost)

	// Supplier-scoped endpoints
	api.HandleFunc("/suppliers/{supplier}/shipments/query", s.querySupplierShipmentsHandler).Methods(http.MethodPost)
	api.HandleFunc("/suppliers/{supplier}/shipments/count", s.getShipmentCountHandler).Methods(http.MethodGet)
	api.HandleFunc("/suppliers/{supplier}/tx-records", s.getSupplierTxRecordsHandler).Methods(http.MethodGet)
	api.HandleFunc("/suppliers/{supplier}/shipments/{index}", s.getShipmentHandler).Methods(http.MethodGet)
	api.HandleFunc("/suppliers/{supplier}/shipments/{index}/tx-record", s.getTxRecordHandler).Methods(http.MethodGet)
	api.HandleFunc("/suppliers/{supplier}/shipments/{index}/start", s.startShipmentHandler).Methods(http.MethodPost)
	api.HandleFunc("/suppliers/{supplier}/shipments/{index}/complete", s.completeShipmentHandler).Methods(http.MethodPost)

	// Admin API for monitoring and management
	admin := s.router.PathPrefix("/api/v1/admin").Subrouter()
	admin.HandleFunc("/dead-letters", s.getDeadLettersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/dead-letters/{id}/retry", s.retryDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/dead-letters/{id}/discard", s.discardDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/circuit-breaker", s.getCircuitBreakerStatusHandler).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breaker/reset", s.resetCircuitBreakerHandler).Methods(http.MethodPost)
	admin.HandleFunc("/rate-limits", s.getRateLimitsHandler).Methods(http.MethodGet)
}

// Middleware for logging requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}
