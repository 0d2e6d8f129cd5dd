package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/nexocrm/automation-engine/internal/models"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// FiringRepository persists rule firings. Recording a firing and enqueuing
// the resulting message is a single atomic unit: either both the ledger
// entry and the queued message commit, or neither does.
type FiringRepository interface {
	RecordFiring(ctx context.Context, entry *models.ExecutionEntry, message *models.QueuedMessage) error
}

// firingRepository implements FiringRepository using PostgreSQL
type firingRepository struct {
	db *sql.DB
}

// NewFiringRepository creates a new firing repository
func NewFiringRepository(db *sql.DB) FiringRepository {
	return &firingRepository{db: db}
}

// RecordFiring inserts the ledger entry and the queued message in one
// transaction. A unique-index conflict on the ledger tuple means the rule
// already fired for this occurrence and yields models.ErrDuplicateFire.
func (r *firingRepository) RecordFiring(ctx context.Context, entry *models.ExecutionEntry, message *models.QueuedMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Rollback is safe to call even after Commit
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO message_firings (rule_id, subject_id, trigger_fingerprint, fired_at)
		VALUES ($1, $2, $3, $4)`,
		entry.RuleID,
		entry.SubjectID,
		entry.Fingerprint,
		entry.FiredAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.ErrDuplicateFire
		}
		return fmt.Errorf("failed to record firing: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO queued_messages (id, company_id, rule_id, contact_id, content, media_url, scheduled_for, status, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		message.ID,
		message.CompanyID,
		message.RuleID,
		message.ContactID,
		message.Content,
		message.MediaURL,
		message.ScheduledFor,
		message.Status,
		message.Attempts,
	).Scan(&message.CreatedAt, &message.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit firing: %w", err)
	}

	return nil
}
