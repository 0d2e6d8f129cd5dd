package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nexocrm/automation-engine/internal/models"
)

// QueuedMessageRepository defines the interface for queued message data
// access. Status mutations are conditional updates so concurrent workers and
// cancellations can never move a message out of a terminal state.
type QueuedMessageRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.QueuedMessage, error)
	List(ctx context.Context, filter models.QueuedMessageFilter) ([]*models.QueuedMessage, int64, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.QueuedMessage, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	Reschedule(ctx context.Context, id uuid.UUID, at time.Time, lastError string) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	Cancel(ctx context.Context, id uuid.UUID) (*models.QueuedMessage, error)
}

// queuedMessageRepository implements QueuedMessageRepository using PostgreSQL
type queuedMessageRepository struct {
	db *sql.DB
}

// NewQueuedMessageRepository creates a new queued message repository
func NewQueuedMessageRepository(db *sql.DB) QueuedMessageRepository {
	return &queuedMessageRepository{db: db}
}

const queuedMessageColumns = `id, company_id, rule_id, contact_id, content, media_url, scheduled_for, status, attempts, last_error, created_at, updated_at`

// GetByID retrieves a queued message by ID
func (r *queuedMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.QueuedMessage, error) {
	query := `SELECT ` + queuedMessageColumns + ` FROM queued_messages WHERE id = $1`

	message, err := scanQueuedMessage(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("queued message %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queued message: %w", err)
	}

	return message, nil
}

// List retrieves queued messages of a company with pagination and filtering
func (r *queuedMessageRepository) List(ctx context.Context, filter models.QueuedMessageFilter) ([]*models.QueuedMessage, int64, error) {
	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)

	query := `SELECT ` + queuedMessageColumns + ` FROM queued_messages WHERE company_id = $1`
	countQuery := `SELECT COUNT(*) FROM queued_messages WHERE company_id = $1`
	args := []interface{}{filter.CompanyID}
	argPos := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		countQuery += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}

	var totalCount int64
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count queued messages: %w", err)
	}

	offset := models.CalculateOffset(filter.Page, filter.PageSize)
	query += fmt.Sprintf(" ORDER BY scheduled_for DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list queued messages: %w", err)
	}
	defer rows.Close()

	messages := []*models.QueuedMessage{}
	for rows.Next() {
		message, err := scanQueuedMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan queued message: %w", err)
		}
		messages = append(messages, message)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating queued messages: %w", err)
	}

	return messages, totalCount, nil
}

// ClaimDue atomically claims due pending messages: pending rows with
// scheduled_for <= now move to processing with attempts incremented, and only
// the claiming caller sees them. SKIP LOCKED keeps concurrent worker replicas
// from double-claiming.
func (r *queuedMessageRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.QueuedMessage, error) {
	query := `
		UPDATE queued_messages
		SET status = $1, attempts = attempts + 1, updated_at = $2
		WHERE id IN (
			SELECT id FROM queued_messages
			WHERE status = $3 AND scheduled_for <= $2
			ORDER BY scheduled_for ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + queuedMessageColumns

	rows, err := r.db.QueryContext(ctx, query, models.MessageStatusProcessing, now, models.MessageStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due messages: %w", err)
	}
	defer rows.Close()

	messages := []*models.QueuedMessage{}
	for rows.Next() {
		message, err := scanQueuedMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claimed message: %w", err)
		}
		messages = append(messages, message)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claimed messages: %w", err)
	}

	return messages, nil
}

// MarkSent transitions an in-flight message to sent
func (r *queuedMessageRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id, models.MessageStatusProcessing, `
		UPDATE queued_messages
		SET status = $1, last_error = NULL, updated_at = now()
		WHERE id = $2 AND status = $3`,
		models.MessageStatusSent, id, models.MessageStatusProcessing)
}

// Reschedule returns an in-flight message to pending with a new delivery time
func (r *queuedMessageRepository) Reschedule(ctx context.Context, id uuid.UUID, at time.Time, lastError string) error {
	return r.transition(ctx, id, models.MessageStatusProcessing, `
		UPDATE queued_messages
		SET status = $1, scheduled_for = $2, last_error = $3, updated_at = now()
		WHERE id = $4 AND status = $5`,
		models.MessageStatusPending, at, lastError, id, models.MessageStatusProcessing)
}

// MarkFailed transitions an in-flight message to terminal failure
func (r *queuedMessageRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.transition(ctx, id, models.MessageStatusProcessing, `
		UPDATE queued_messages
		SET status = $1, last_error = $2, updated_at = now()
		WHERE id = $3 AND status = $4`,
		models.MessageStatusFailed, lastError, id, models.MessageStatusProcessing)
}

// Cancel transitions a pending message to cancelled. When the message is no
// longer pending the update is a no-op and the current row is returned so
// callers can report the terminal state.
func (r *queuedMessageRepository) Cancel(ctx context.Context, id uuid.UUID) (*models.QueuedMessage, error) {
	_, err := r.db.ExecContext(ctx, `
		UPDATE queued_messages
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		models.MessageStatusCancelled, id, models.MessageStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel queued message: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *queuedMessageRepository) transition(ctx context.Context, id uuid.UUID, fromStatus, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update queued message status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrConflictWithMsg(
			fmt.Sprintf("queued message %s is not in status '%s'", id, fromStatus),
		)
	}

	return nil
}

func scanQueuedMessage(row rowScanner) (*models.QueuedMessage, error) {
	message := &models.QueuedMessage{}
	err := row.Scan(
		&message.ID,
		&message.CompanyID,
		&message.RuleID,
		&message.ContactID,
		&message.Content,
		&message.MediaURL,
		&message.ScheduledFor,
		&message.Status,
		&message.Attempts,
		&message.LastError,
		&message.CreatedAt,
		&message.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return message, nil
}
