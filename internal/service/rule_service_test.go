package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/nexocrm/automation-engine/internal/models"
)

type stubRuleRepo struct {
	created []*models.AutomationRule
}

func (s *stubRuleRepo) Create(ctx context.Context, rule *models.AutomationRule) error {
	s.created = append(s.created, rule)
	return nil
}

func (s *stubRuleRepo) GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.AutomationRule, error) {
	return nil, models.ErrNotFound
}

func (s *stubRuleRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.AutomationRule, error) {
	return s.created, nil
}

func (s *stubRuleRepo) ListCompanyIDs(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

type stubTemplateRepo struct {
	templates map[uuid.UUID]*models.MessageTemplate
}

func (s *stubTemplateRepo) Create(ctx context.Context, template *models.MessageTemplate) error {
	s.templates[template.ID] = template
	return nil
}

func (s *stubTemplateRepo) GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.MessageTemplate, error) {
	template, ok := s.templates[id]
	if !ok || template.CompanyID != companyID {
		return nil, models.ErrNotFound
	}
	return template, nil
}

func (s *stubTemplateRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.MessageTemplate, error) {
	var out []*models.MessageTemplate
	for _, template := range s.templates {
		if template.CompanyID == companyID {
			out = append(out, template)
		}
	}
	return out, nil
}

func ruleFixture(companyID uuid.UUID) (RuleService, *stubRuleRepo, *models.MessageTemplate) {
	ruleRepo := &stubRuleRepo{}
	templateRepo := &stubTemplateRepo{templates: make(map[uuid.UUID]*models.MessageTemplate)}

	template := &models.MessageTemplate{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      "welcome",
		Content:   "Hi {first_name}",
		Greetings: []string{"Hello"},
		Endings:   []string{"Bye"},
	}
	templateRepo.templates[template.ID] = template

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRuleService(ruleRepo, templateRepo, logger), ruleRepo, template
}

func TestRuleService_CreateRule(t *testing.T) {
	companyID := uuid.New()
	svc, repo, template := ruleFixture(companyID)

	req := &CreateRuleRequest{
		Name:    "welcome vip",
		Trigger: models.Trigger{Type: models.TriggerTag, TagValue: "vip"},
		Message: models.RuleMessage{TemplateID: template.ID, DelaySeconds: 60},
	}

	rule, err := svc.CreateRule(context.Background(), companyID, req)
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	if rule.ID == uuid.Nil {
		t.Error("rule was not assigned an id")
	}
	if rule.CompanyID != companyID {
		t.Errorf("company_id = %s, want %s", rule.CompanyID, companyID)
	}
	if len(repo.created) != 1 {
		t.Errorf("persisted %d rules, want 1", len(repo.created))
	}
}

func TestRuleService_CreateRule_Invalid(t *testing.T) {
	companyID := uuid.New()
	svc, repo, template := ruleFixture(companyID)

	tests := []struct {
		name string
		req  *CreateRuleRequest
	}{
		{
			name: "missing name",
			req: &CreateRuleRequest{
				Trigger: models.Trigger{Type: models.TriggerTag, TagValue: "vip"},
				Message: models.RuleMessage{TemplateID: template.ID},
			},
		},
		{
			name: "invalid trigger",
			req: &CreateRuleRequest{
				Name:    "broken",
				Trigger: models.Trigger{Type: "birthday"},
				Message: models.RuleMessage{TemplateID: template.ID},
			},
		},
		{
			name: "unknown template",
			req: &CreateRuleRequest{
				Name:    "dangling",
				Trigger: models.Trigger{Type: models.TriggerTag, TagValue: "vip"},
				Message: models.RuleMessage{TemplateID: uuid.New()},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateRule(context.Background(), companyID, tt.req); err == nil {
				t.Error("CreateRule() should fail")
			}
		})
	}

	if len(repo.created) != 0 {
		t.Errorf("persisted %d rules, want 0", len(repo.created))
	}
}

func TestRuleService_CreateRule_TemplateScopedToCompany(t *testing.T) {
	companyID := uuid.New()
	svc, _, template := ruleFixture(companyID)

	req := &CreateRuleRequest{
		Name:    "cross-company",
		Trigger: models.Trigger{Type: models.TriggerTag, TagValue: "vip"},
		Message: models.RuleMessage{TemplateID: template.ID},
	}

	// Another company must not reference this company's template.
	if _, err := svc.CreateRule(context.Background(), uuid.New(), req); err == nil {
		t.Error("CreateRule() with another company's template should fail")
	}
}

func TestRuleService_CreateTemplate(t *testing.T) {
	companyID := uuid.New()
	svc, _, _ := ruleFixture(companyID)

	req := &CreateTemplateRequest{
		Name:      "followup",
		Content:   "{greeting} {first_name}, checking in. {ending}",
		Greetings: []string{"Hi", "Hello"},
		Endings:   []string{"Best"},
	}

	template, err := svc.CreateTemplate(context.Background(), companyID, req)
	if err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}
	if template.ID == uuid.Nil {
		t.Error("template was not assigned an id")
	}

	listed, err := svc.ListTemplates(context.Background(), companyID)
	if err != nil {
		t.Fatalf("ListTemplates() error = %v", err)
	}
	if len(listed.Data) != 2 {
		t.Errorf("got %d templates, want 2", len(listed.Data))
	}
}

func TestRuleService_CreateTemplate_Invalid(t *testing.T) {
	companyID := uuid.New()
	svc, _, _ := ruleFixture(companyID)

	tests := []struct {
		name string
		req  *CreateTemplateRequest
	}{
		{
			name: "missing name",
			req: &CreateTemplateRequest{
				Content:   "Hi",
				Greetings: []string{"Hi"},
				Endings:   []string{"Bye"},
			},
		},
		{
			name: "missing content",
			req: &CreateTemplateRequest{
				Name:      "empty",
				Greetings: []string{"Hi"},
				Endings:   []string{"Bye"},
			},
		},
		{
			name: "no greetings",
			req: &CreateTemplateRequest{
				Name:    "no greetings",
				Content: "Hi",
				Endings: []string{"Bye"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateTemplate(context.Background(), companyID, tt.req); err == nil {
				t.Error("CreateTemplate() should fail")
			}
		})
	}
}
