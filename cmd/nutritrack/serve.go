package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nutritrack/internal/app/checkout"
	"nutritrack/internal/app/fulfillment"
	"nutritrack/internal/app/registration"
	"nutritrack/internal/app/status"
	"nutritrack/internal/cache"
	"nutritrack/internal/codes"
	"nutritrack/internal/config"
	"nutritrack/internal/identity"
	firebase_identity "nutritrack/internal/identity/firebase"
	local_identity "nutritrack/internal/identity/local"
	kafka_infra "nutritrack/internal/infrastructure/kafka"
	"nutritrack/internal/outbox"
	"nutritrack/internal/wompi"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the outbox publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("NutriTrack service starting...", zap.String("version", Version), zap.String("storage", cfg.StorageDriver))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.close(); err != nil {
			logger.Error("Error closing storage", zap.Error(err))
		} else {
			logger.Info("Storage closed.")
		}
	}()

	provider, err := newIdentityProvider(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	var statusCache status.Cache
	if cfg.RedisEnabled() {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		statusCache = cache.NewStatusCache(client, cfg.StatusCacheTTL)
		logger.Info("Payment status cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	checkoutService, err := checkout.NewService(cfg.WompiCheckoutURL, cfg.AppBaseURL, cfg.ReferencePrefix)
	if err != nil {
		return err
	}

	verifier := wompi.NewVerifier(cfg.WompiEventSecret)
	if !verifier.Configured() {
		logger.Error("WOMPI_EVENT_SECRET is not set; every webhook delivery will be answered with 500")
	}

	svc := services{
		fulfillment: fulfillment.NewService(
			store.transactor,
			store.payments,
			store.codes,
			store.deliveries,
			store.outbox,
			codes.NewRandomGenerator(),
			fulfillment.Config{
				MaxCodeAttempts:    cfg.CodeMaxAttempts,
				PaymentEventsTopic: cfg.KafkaPaymentEventsTopic,
			},
			logger.With(zap.String("component", "FulfillmentService")),
		),
		registration: registration.NewService(
			store.transactor,
			store.codes,
			store.users,
			store.outbox,
			provider,
			registration.Config{RegistrationEventsTopic: cfg.KafkaRegistrationEventsTopic},
			logger.With(zap.String("component", "RegistrationService")),
		),
		status:   status.NewService(store.payments, statusCache, logger.With(zap.String("component", "StatusService"))),
		checkout: checkoutService,
		verifier: verifier,
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           newRouter(cfg, svc, logger.With(zap.String("component", "HTTPHandler"))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup

	if cfg.KafkaEnabled() {
		producer, err := startOutbox(ctx, cfg, store, &wg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Error("Error closing Kafka producer", zap.Error(err))
			} else {
				logger.Info("Kafka producer closed.")
			}
		}()
	} else {
		logger.Warn("KAFKA_BROKER_URL is empty; outbox messages are stored but not published")
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down application...")
	case err := <-serverErr:
		logger.Error("HTTP server failed", zap.Error(err))
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("HTTP server gracefully shut down.")
	}

	logger.Info("Application gracefully shut down.")
	return nil
}

func newIdentityProvider(ctx context.Context, cfg *config.Config, store *storage, logger *zap.Logger) (identity.Provider, error) {
	switch cfg.IdentityProvider {
	case config.IdentityFirebase:
		return firebase_identity.New(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile,
			logger.With(zap.String("component", "FirebaseIdentity")))
	default:
		return local_identity.New(store.identities, cfg.JWTSecret, cfg.JWTTTL,
			logger.With(zap.String("component", "LocalIdentity"))), nil
	}
}

// startOutbox ensures the topics exist and runs the publisher until ctx is
// cancelled.
func startOutbox(ctx context.Context, cfg *config.Config, store *storage, wg *sync.WaitGroup, logger *zap.Logger) (kafka_infra.Producer, error) {
	brokers := cfg.GetKafkaBrokers()

	topicsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	topics := []string{cfg.KafkaPaymentEventsTopic, cfg.KafkaRegistrationEventsTopic}
	if err := kafka_infra.EnsureTopics(topicsCtx, brokers, topics, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure Kafka topics: %w", err)
	}

	producer := kafka_infra.NewProducer(brokers, logger.With(zap.String("component", "KafkaProducer")))
	processor := outbox.NewProcessor(
		store.transactor,
		store.outbox,
		producer,
		cfg.OutboxBatchSize,
		cfg.OutboxPollInterval,
		cfg.OutboxPollTimeout,
		logger.With(zap.String("component", "OutboxProcessor")),
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
		logger.Info("Outbox Processor stopped.")
	}()
	return producer, nil
}
