package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nexocrm/automation-engine/internal/models"
	"github.com/nexocrm/automation-engine/internal/repository"
)

// QueueService exposes the message queue to operators: listing, inspection
// and cancellation of not-yet-delivered messages.
type QueueService interface {
	List(ctx context.Context, filter models.QueuedMessageFilter) (*QueueListResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.QueuedMessage, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.QueuedMessage, error)
}

// QueueListResult holds a page of queued messages
type QueueListResult struct {
	Data       []*models.QueuedMessage `json:"data"`
	Pagination models.PaginationResult `json:"pagination"`
}

type queueService struct {
	messageRepo repository.QueuedMessageRepository
	logger      *slog.Logger
}

// NewQueueService creates a new queue service
func NewQueueService(messageRepo repository.QueuedMessageRepository, logger *slog.Logger) QueueService {
	return &queueService{
		messageRepo: messageRepo,
		logger:      logger,
	}
}

// List retrieves queued messages with pagination
func (s *queueService) List(ctx context.Context, filter models.QueuedMessageFilter) (*QueueListResult, error) {
	messages, totalCount, err := s.messageRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued messages: %w", err)
	}

	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)
	pagination := models.NewPaginationResult(filter.Page, filter.PageSize, totalCount)

	return &QueueListResult{
		Data:       messages,
		Pagination: pagination,
	}, nil
}

// GetByID retrieves a queued message
func (s *queueService) GetByID(ctx context.Context, id uuid.UUID) (*models.QueuedMessage, error) {
	return s.messageRepo.GetByID(ctx, id)
}

// Cancel cancels a pending message. Cancelling a message that is no longer
// pending is safe and simply reports its current state, so repeated cancels
// of the same id are idempotent.
func (s *queueService) Cancel(ctx context.Context, id uuid.UUID) (*models.QueuedMessage, error) {
	message, err := s.messageRepo.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	if message.Status == models.MessageStatusCancelled {
		s.logger.Info("queued message cancelled",
			slog.String("message_id", id.String()),
		)
	} else {
		s.logger.Info("cancel was a no-op",
			slog.String("message_id", id.String()),
			slog.String("status", message.Status),
		)
	}

	return message, nil
}
