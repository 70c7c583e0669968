package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nutritrack/internal/config"
	"nutritrack/internal/database"
	"nutritrack/internal/domain"
	"nutritrack/internal/repository/codes_repo"
	"nutritrack/internal/repository/deliveries_repo"
	"nutritrack/internal/repository/identities_repo"
	"nutritrack/internal/repository/memory"
	"nutritrack/internal/repository/outbox_repo"
	"nutritrack/internal/repository/payments_repo"
	"nutritrack/internal/repository/users_repo"
)

const (
	dbMaxRetries = 10
	dbRetryDelay = 5 * time.Second
)

// storage is the persistence handle owned by main and injected into every
// service.
type storage struct {
	transactor domain.Transactor
	payments   payments_repo.PaymentRepository
	codes      codes_repo.CodeRepository
	users      users_repo.UserRepository
	deliveries deliveries_repo.DeliveryRepository
	outbox     outbox_repo.OutboxRepository
	identities identities_repo.IdentityRepository
	close      func() error
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		logger.Warn("Using in-memory storage; data is lost on restart and instances do not share state")
		store := memory.NewStore()
		return &storage{
			transactor: store,
			payments:   store.Payments(),
			codes:      store.Codes(),
			users:      store.Users(),
			deliveries: store.Deliveries(),
			outbox:     store.Outbox(),
			identities: store.Identities(),
			close:      func() error { return nil },
		}, nil
	}

	db, err := connectWithRetry(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Running database migrations...")
	if err := database.RunMigrations(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString(), logger); err != nil {
		db.Close()
		return nil, err
	}

	return &storage{
		transactor: database.NewSQLTransactor(db, logger.With(zap.String("component", "SQLTransactor"))),
		payments:   payments_repo.NewPaymentRepository(db),
		codes:      codes_repo.NewCodeRepository(db),
		users:      users_repo.NewUserRepository(db),
		deliveries: deliveries_repo.NewDeliveryRepository(db),
		outbox:     outbox_repo.NewOutboxRepository(db),
		identities: identities_repo.NewIdentityRepository(db),
		close:      db.Close,
	}, nil
}

func connectWithRetry(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	dbConfig := database.DBConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	logger.Info("Waiting for database to be available...")
	var lastErr error
	for i := 0; i < dbMaxRetries; i++ {
		db, err := database.NewPostgresDB(ctx, dbConfig)
		if err == nil {
			logger.Info("Successfully connected to PostgreSQL database")
			return db, nil
		}
		lastErr = err
		logger.Warn("Failed to connect to database",
			zap.Int("attempt", i+1), zap.Int("max_attempts", dbMaxRetries),
			zap.Duration("retry_in", dbRetryDelay), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dbRetryDelay):
		}
	}
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", dbMaxRetries, lastErr)
}
