package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"nutritrack/internal/domain"
	"nutritrack/internal/metrics"
)

type OutboxRepository interface {
	GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	UpdateMessageStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.OutboxMessageStatus) error
}

type Producer interface {
	Produce(ctx context.Context, key, topic string, value []byte) error
}

type Processor struct {
	transactor   domain.Transactor
	outboxRepo   OutboxRepository
	producer     Producer
	batchSize    int
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *zap.Logger
}

func NewProcessor(
	transactor domain.Transactor,
	outboxRepo OutboxRepository,
	producer Producer,
	batchSize int,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		transactor:   transactor,
		outboxRepo:   outboxRepo,
		producer:     producer,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       logger,
	}
}

// Start polls until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor...", zap.Duration("poll_interval", p.pollInterval))
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped.")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Outbox batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes up to one batch of pending messages and returns how
// many were marked as sent. A message whose publish fails stays pending and
// is retried on a later poll.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	sent := 0
	err := p.transactor.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		fetchCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
		messages, err := p.outboxRepo.GetPendingMessages(fetchCtx, q, p.batchSize)
		cancel()
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			p.logger.Debug("No pending outbox messages found.")
			return nil
		}
		p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

		for _, msg := range messages {
			if err := p.producer.Produce(ctx, msg.Key, msg.Topic, msg.Payload); err != nil {
				metrics.OutboxPublished.WithLabelValues(msg.Topic, "error").Inc()
				p.logger.Warn("Failed to publish outbox message, leaving it pending",
					zap.String("message_id", msg.ID),
					zap.String("topic", msg.Topic),
					zap.Error(err))
				continue
			}
			if err := p.outboxRepo.UpdateMessageStatusTx(ctx, q, msg.ID, domain.OutboxStatusSent); err != nil {
				return err
			}
			metrics.OutboxPublished.WithLabelValues(msg.Topic, "sent").Inc()
			sent++
			p.logger.Info("Outbox message published",
				zap.String("message_id", msg.ID),
				zap.String("message_type", msg.MessageType),
				zap.String("topic", msg.Topic))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}
