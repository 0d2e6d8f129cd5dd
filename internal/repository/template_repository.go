package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/nexocrm/automation-engine/internal/models"
)

// TemplateRepository defines the interface for message template data access
type TemplateRepository interface {
	Create(ctx context.Context, template *models.MessageTemplate) error
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.MessageTemplate, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.MessageTemplate, error)
}

// templateRepository implements TemplateRepository using PostgreSQL
type templateRepository struct {
	db *sql.DB
}

// NewTemplateRepository creates a new message template repository
func NewTemplateRepository(db *sql.DB) TemplateRepository {
	return &templateRepository{db: db}
}

// Create inserts a new message template
func (r *templateRepository) Create(ctx context.Context, template *models.MessageTemplate) error {
	query := `
		INSERT INTO message_templates (id, company_id, name, content, greetings, endings, media_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		template.ID,
		template.CompanyID,
		template.Name,
		template.Content,
		pq.Array(template.Greetings),
		pq.Array(template.Endings),
		template.MediaURL,
	).Scan(&template.CreatedAt, &template.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create message template: %w", err)
	}

	return nil
}

// GetByID retrieves a message template scoped to a company
func (r *templateRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.MessageTemplate, error) {
	query := `
		SELECT id, company_id, name, content, greetings, endings, media_url, created_at, updated_at
		FROM message_templates
		WHERE company_id = $1 AND id = $2`

	template := &models.MessageTemplate{}
	err := r.db.QueryRowContext(ctx, query, companyID, id).Scan(
		&template.ID,
		&template.CompanyID,
		&template.Name,
		&template.Content,
		pq.Array(&template.Greetings),
		pq.Array(&template.Endings),
		&template.MediaURL,
		&template.CreatedAt,
		&template.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("message template %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message template: %w", err)
	}

	return template, nil
}

// ListByCompany retrieves all message templates of a company
func (r *templateRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.MessageTemplate, error) {
	query := `
		SELECT id, company_id, name, content, greetings, endings, media_url, created_at, updated_at
		FROM message_templates
		WHERE company_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list message templates: %w", err)
	}
	defer rows.Close()

	templates := []*models.MessageTemplate{}
	for rows.Next() {
		template := &models.MessageTemplate{}
		err := rows.Scan(
			&template.ID,
			&template.CompanyID,
			&template.Name,
			&template.Content,
			pq.Array(&template.Greetings),
			pq.Array(&template.Endings),
			&template.MediaURL,
			&template.CreatedAt,
			&template.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message template: %w", err)
		}
		templates = append(templates, template)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message templates: %w", err)
	}

	return templates, nil
}
