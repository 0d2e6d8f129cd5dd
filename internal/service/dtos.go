package service

import (
	"github.com/nexocrm/automation-engine/internal/models"
)

// CreateRuleRequest is the payload for creating an automation rule
type CreateRuleRequest struct {
	Name    string             `json:"name"`
	Trigger models.Trigger     `json:"trigger"`
	Message models.RuleMessage `json:"message"`
}

// Validate checks the create rule request
func (r *CreateRuleRequest) Validate() error {
	if r.Name == "" {
		return models.ErrInvalidInput("rule name is required")
	}

	rule := &models.AutomationRule{Trigger: r.Trigger, Message: r.Message}
	return rule.Validate()
}

// CreateTemplateRequest is the payload for creating a message template
type CreateTemplateRequest struct {
	Name      string   `json:"name"`
	Content   string   `json:"content"`
	Greetings []string `json:"greetings"`
	Endings   []string `json:"endings"`
	MediaURL  *string  `json:"media_url,omitempty"`
}

// Validate checks the create template request
func (r *CreateTemplateRequest) Validate() error {
	if r.Name == "" {
		return models.ErrInvalidInput("template name is required")
	}

	template := &models.MessageTemplate{
		Content:   r.Content,
		Greetings: r.Greetings,
		Endings:   r.Endings,
	}
	return template.Validate()
}

// RuleListResult holds the automation rules of a company
type RuleListResult struct {
	Data []*models.AutomationRule `json:"data"`
}

// TemplateListResult holds the message templates of a company
type TemplateListResult struct {
	Data []*models.MessageTemplate `json:"data"`
}
