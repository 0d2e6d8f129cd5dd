package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nexocrm/automation-engine/internal/models"
	"github.com/nexocrm/automation-engine/internal/repository"
)

// RuleService handles automation rule and template management
type RuleService interface {
	CreateRule(ctx context.Context, companyID uuid.UUID, req *CreateRuleRequest) (*models.AutomationRule, error)
	ListRules(ctx context.Context, companyID uuid.UUID) (*RuleListResult, error)
	CreateTemplate(ctx context.Context, companyID uuid.UUID, req *CreateTemplateRequest) (*models.MessageTemplate, error)
	ListTemplates(ctx context.Context, companyID uuid.UUID) (*TemplateListResult, error)
}

type ruleService struct {
	ruleRepo     repository.RuleRepository
	templateRepo repository.TemplateRepository
	logger       *slog.Logger
}

// NewRuleService creates a new rule service
func NewRuleService(
	ruleRepo repository.RuleRepository,
	templateRepo repository.TemplateRepository,
	logger *slog.Logger,
) RuleService {
	return &ruleService{
		ruleRepo:     ruleRepo,
		templateRepo: templateRepo,
		logger:       logger,
	}
}

// CreateRule validates and creates an automation rule. The referenced
// template must already exist for the same company.
func (s *ruleService) CreateRule(ctx context.Context, companyID uuid.UUID, req *CreateRuleRequest) (*models.AutomationRule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.templateRepo.GetByID(ctx, companyID, req.Message.TemplateID); err != nil {
		return nil, err
	}

	rule := &models.AutomationRule{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      req.Name,
		Trigger:   req.Trigger,
		Message:   req.Message,
	}

	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		s.logger.Error("failed to create automation rule",
			slog.String("error", err.Error()),
			slog.String("name", req.Name),
		)
		return nil, fmt.Errorf("failed to create automation rule: %w", err)
	}

	s.logger.Info("automation rule created",
		slog.String("rule_id", rule.ID.String()),
		slog.String("company_id", companyID.String()),
		slog.String("trigger_type", rule.Trigger.Type),
	)

	return rule, nil
}

// ListRules retrieves the automation rules of a company
func (s *ruleService) ListRules(ctx context.Context, companyID uuid.UUID) (*RuleListResult, error) {
	rules, err := s.ruleRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list automation rules: %w", err)
	}

	return &RuleListResult{Data: rules}, nil
}

// CreateTemplate validates and creates a message template
func (s *ruleService) CreateTemplate(ctx context.Context, companyID uuid.UUID, req *CreateTemplateRequest) (*models.MessageTemplate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	template := &models.MessageTemplate{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      req.Name,
		Content:   req.Content,
		Greetings: req.Greetings,
		Endings:   req.Endings,
		MediaURL:  req.MediaURL,
	}

	if err := s.templateRepo.Create(ctx, template); err != nil {
		s.logger.Error("failed to create message template",
			slog.String("error", err.Error()),
			slog.String("name", req.Name),
		)
		return nil, fmt.Errorf("failed to create message template: %w", err)
	}

	s.logger.Info("message template created",
		slog.String("template_id", template.ID.String()),
		slog.String("company_id", companyID.String()),
	)

	return template, nil
}

// ListTemplates retrieves the message templates of a company
func (s *ruleService) ListTemplates(ctx context.Context, companyID uuid.UUID) (*TemplateListResult, error) {
	templates, err := s.templateRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list message templates: %w", err)
	}

	return &TemplateListResult{Data: templates}, nil
}
