package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nexocrm/automation-engine/internal/models"
	"github.com/nexocrm/automation-engine/internal/repository"
)

// DeliveryProcessor performs a single delivery attempt for a claimed
// message: send through the outbound channel, then record the outcome and
// drive the retry policy.
type DeliveryProcessor struct {
	messageRepo repository.QueuedMessageRepository
	contactRepo repository.ContactRepository
	sender      MessageSender
	maxAttempts int
	backoffBase time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewDeliveryProcessor creates a new delivery processor
func NewDeliveryProcessor(
	messageRepo repository.QueuedMessageRepository,
	contactRepo repository.ContactRepository,
	sender MessageSender,
	maxAttempts int,
	backoffBase time.Duration,
	logger *slog.Logger,
) *DeliveryProcessor {
	return &DeliveryProcessor{
		messageRepo: messageRepo,
		contactRepo: contactRepo,
		sender:      sender,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		logger:      logger,
		now:         time.Now,
	}
}

// Process handles a single delivery job. The message's attempts counter was
// already incremented by the claim, so it reflects the attempt in progress.
func (p *DeliveryProcessor) Process(ctx context.Context, job *models.DeliveryJob) error {
	message, err := p.messageRepo.GetByID(ctx, job.QueuedMessageID)
	if err != nil {
		p.logger.Error("failed to fetch queued message",
			slog.String("message_id", job.QueuedMessageID.String()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to fetch queued message: %w", err)
	}

	// A message can leave the in-flight state between claim and processing
	// only through operator action; nothing to deliver then.
	if message.Status != models.MessageStatusProcessing {
		p.logger.Warn("skipping message no longer in flight",
			slog.String("message_id", message.ID.String()),
			slog.String("status", message.Status),
		)
		return nil
	}

	contact, err := p.contactRepo.GetByID(ctx, message.CompanyID, message.ContactID)
	if err != nil {
		p.logger.Error("failed to fetch contact",
			slog.String("message_id", message.ID.String()),
			slog.String("contact_id", message.ContactID.String()),
			slog.String("error", err.Error()),
		)
		return p.handleFailure(ctx, message, err)
	}

	p.logger.Info("delivering message",
		slog.String("message_id", message.ID.String()),
		slog.String("number", contact.Number),
		slog.Int("attempt", message.Attempts),
	)

	if err := p.sender.Send(ctx, contact.Number, message.Content, message.MediaURL); err != nil {
		p.logger.Warn("message delivery failed",
			slog.String("message_id", message.ID.String()),
			slog.Int("attempt", message.Attempts),
			slog.String("error", err.Error()),
		)
		return p.handleFailure(ctx, message, err)
	}

	if err := p.messageRepo.MarkSent(ctx, message.ID); err != nil {
		p.logger.Error("failed to mark message sent",
			slog.String("message_id", message.ID.String()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to mark message sent: %w", err)
	}

	p.logger.Info("message delivered",
		slog.String("message_id", message.ID.String()),
		slog.Int("attempts", message.Attempts),
	)

	return nil
}

// handleFailure applies the retry policy after a failed attempt: reschedule
// with backoff while attempts remain, otherwise terminal failure.
func (p *DeliveryProcessor) handleFailure(ctx context.Context, message *models.QueuedMessage, deliveryErr error) error {
	if !message.CanRetry(p.maxAttempts) {
		p.logger.Error("message permanently failed",
			slog.String("message_id", message.ID.String()),
			slog.Int("attempts", message.Attempts),
			slog.Int("max_attempts", p.maxAttempts),
		)

		errMsg := fmt.Sprintf("max attempts reached: %s", deliveryErr.Error())
		if err := p.messageRepo.MarkFailed(ctx, message.ID, errMsg); err != nil {
			p.logger.Error("failed to mark message failed",
				slog.String("message_id", message.ID.String()),
				slog.String("error", err.Error()),
			)
			return err
		}

		return nil // Job processed (albeit failed)
	}

	retryAt := p.now().Add(p.backoff(message.Attempts))

	p.logger.Info("message will be retried",
		slog.String("message_id", message.ID.String()),
		slog.Int("attempt", message.Attempts),
		slog.Int("max_attempts", p.maxAttempts),
		slog.Time("retry_at", retryAt),
	)

	if err := p.messageRepo.Reschedule(ctx, message.ID, retryAt, deliveryErr.Error()); err != nil {
		p.logger.Error("failed to reschedule message",
			slog.String("message_id", message.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	return nil
}

// backoff doubles the base delay with each completed attempt.
func (p *DeliveryProcessor) backoff(attempts int) time.Duration {
	delay := p.backoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}
