package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nexocrm/automation-engine/internal/models"
)

// RuleRepository defines the interface for automation rule data access
type RuleRepository interface {
	Create(ctx context.Context, rule *models.AutomationRule) error
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.AutomationRule, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.AutomationRule, error)
	ListCompanyIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ruleRepository implements RuleRepository using PostgreSQL
type ruleRepository struct {
	db *sql.DB
}

// NewRuleRepository creates a new automation rule repository
func NewRuleRepository(db *sql.DB) RuleRepository {
	return &ruleRepository{db: db}
}

// Create inserts a new automation rule
func (r *ruleRepository) Create(ctx context.Context, rule *models.AutomationRule) error {
	triggerJSON, err := json.Marshal(rule.Trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger: %w", err)
	}

	query := `
		INSERT INTO automation_rules (id, company_id, name, trigger, template_id, delay_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(
		ctx,
		query,
		rule.ID,
		rule.CompanyID,
		rule.Name,
		triggerJSON,
		rule.Message.TemplateID,
		rule.Message.DelaySeconds,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create automation rule: %w", err)
	}

	return nil
}

// GetByID retrieves an automation rule scoped to a company
func (r *ruleRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.AutomationRule, error) {
	query := `
		SELECT id, company_id, name, trigger, template_id, delay_seconds, created_at, updated_at
		FROM automation_rules
		WHERE company_id = $1 AND id = $2`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, companyID, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("automation rule %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get automation rule: %w", err)
	}

	return rule, nil
}

// ListByCompany retrieves all automation rules of a company
func (r *ruleRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.AutomationRule, error) {
	query := `
		SELECT id, company_id, name, trigger, template_id, delay_seconds, created_at, updated_at
		FROM automation_rules
		WHERE company_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list automation rules: %w", err)
	}
	defer rows.Close()

	rules := []*models.AutomationRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automation rules: %w", err)
	}

	return rules, nil
}

// ListCompanyIDs returns the distinct companies that have automation rules,
// used by the schedule scanner to sweep all tenants.
func (r *ruleRepository) ListCompanyIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT company_id FROM automation_rules`)
	if err != nil {
		return nil, fmt.Errorf("failed to list company ids: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan company id: %w", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating company ids: %w", err)
	}

	return ids, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*models.AutomationRule, error) {
	rule := &models.AutomationRule{}
	var triggerJSON []byte

	err := row.Scan(
		&rule.ID,
		&rule.CompanyID,
		&rule.Name,
		&triggerJSON,
		&rule.Message.TemplateID,
		&rule.Message.DelaySeconds,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(triggerJSON, &rule.Trigger); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger: %w", err)
	}

	return rule, nil
}
