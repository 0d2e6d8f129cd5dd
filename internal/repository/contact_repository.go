package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/nexocrm/automation-engine/internal/models"
)

// ContactRepository defines read access to CRM contacts. Contacts are owned
// by the CRM proper; the engine never writes them.
type ContactRepository interface {
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.Contact, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Contact, error)
}

// contactRepository implements ContactRepository using PostgreSQL
type contactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db *sql.DB) ContactRepository {
	return &contactRepository{db: db}
}

// GetByID retrieves a contact scoped to a company
func (r *contactRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.Contact, error) {
	query := `
		SELECT id, company_id, name, number, email, first_name, last_name, tags, kanban_stage, created_at, updated_at
		FROM contacts
		WHERE company_id = $1 AND id = $2`

	contact := &models.Contact{}
	err := r.db.QueryRowContext(ctx, query, companyID, id).Scan(
		&contact.ID,
		&contact.CompanyID,
		&contact.Name,
		&contact.Number,
		&contact.Email,
		&contact.FirstName,
		&contact.LastName,
		pq.Array(&contact.Tags),
		&contact.KanbanStage,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("contact %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return contact, nil
}

// ListByCompany retrieves all contacts of a company, used for the schedule
// trigger fan-out.
func (r *contactRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Contact, error) {
	query := `
		SELECT id, company_id, name, number, email, first_name, last_name, tags, kanban_stage, created_at, updated_at
		FROM contacts
		WHERE company_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []*models.Contact{}
	for rows.Next() {
		contact := &models.Contact{}
		err := rows.Scan(
			&contact.ID,
			&contact.CompanyID,
			&contact.Name,
			&contact.Number,
			&contact.Email,
			&contact.FirstName,
			&contact.LastName,
			pq.Array(&contact.Tags),
			&contact.KanbanStage,
			&contact.CreatedAt,
			&contact.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return contacts, nil
}
