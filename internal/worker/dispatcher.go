package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/nexocrm/automation-engine/internal/models"
	"github.com/nexocrm/automation-engine/internal/queue"
	"github.com/nexocrm/automation-engine/internal/repository"
)

// Dispatcher periodically claims due messages and hands them to the delivery
// queue. Claiming is an atomic conditional update in the store, so multiple
// dispatcher replicas never double-dispatch a message.
type Dispatcher struct {
	messageRepo repository.QueuedMessageRepository
	queueClient queue.Client
	interval    time.Duration
	batchSize   int
	logger      *slog.Logger
	now         func() time.Time
}

// NewDispatcher creates a new delivery dispatcher
func NewDispatcher(
	messageRepo repository.QueuedMessageRepository,
	queueClient queue.Client,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		messageRepo: messageRepo,
		queueClient: queueClient,
		interval:    interval,
		batchSize:   batchSize,
		logger:      logger,
		now:         time.Now,
	}
}

// Run drives the dispatch loop until the context is cancelled. An in-flight
// tick always completes before Run returns.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("delivery dispatcher started",
		slog.Duration("interval", d.interval),
		slog.Int("batch_size", d.batchSize),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("delivery dispatcher stopped")
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick claims one batch of due messages and publishes a delivery job for
// each. A failure on one message never blocks the rest of the batch.
func (d *Dispatcher) tick(ctx context.Context) {
	messages, err := d.messageRepo.ClaimDue(ctx, d.now(), d.batchSize)
	if err != nil {
		// Store unreachable: skip this tick entirely, the next one retries.
		d.logger.Error("due message scan failed",
			slog.String("error", err.Error()),
		)
		return
	}

	if len(messages) == 0 {
		return
	}

	dispatched := 0
	for _, message := range messages {
		job := &models.DeliveryJob{QueuedMessageID: message.ID}

		if err := d.queueClient.Publish(ctx, job); err != nil {
			d.logger.Error("failed to dispatch claimed message",
				slog.String("message_id", message.ID.String()),
				slog.String("error", err.Error()),
			)
			// Release the claim so the next tick picks the message up again.
			if rerr := d.messageRepo.Reschedule(ctx, message.ID, message.ScheduledFor, err.Error()); rerr != nil {
				d.logger.Error("failed to release claimed message",
					slog.String("message_id", message.ID.String()),
					slog.String("error", rerr.Error()),
				)
			}
			continue
		}
		dispatched++
	}

	d.logger.Info("dispatched due messages",
		slog.Int("claimed", len(messages)),
		slog.Int("dispatched", dispatched),
	)
}
