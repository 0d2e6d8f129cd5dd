package queue

import (
	"context"

	"github.com/nexocrm/automation-engine/internal/models"
)

// Client defines the interface for the delivery job queue
type Client interface {
	// Publish hands a claimed message to the delivery processors
	Publish(ctx context.Context, job *models.DeliveryJob) error

	// Consume receives delivery jobs and processes them with the handler.
	// concurrency controls how many jobs can be processed simultaneously
	Consume(ctx context.Context, handler JobHandler, concurrency int) error

	// Close closes the queue connection
	Close() error

	// Health checks if the queue is healthy
	Health(ctx context.Context) error
}

// JobHandler is a function that processes a delivery job
type JobHandler func(ctx context.Context, job *models.DeliveryJob) error
