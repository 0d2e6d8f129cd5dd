package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageTemplate is the body of an automated message. Content may contain
// {greeting} and {ending} markers plus contact field placeholders; the
// renderer picks one greeting and one ending per message.
type MessageTemplate struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Greetings []string  `json:"greetings"`
	Endings   []string  `json:"endings"`
	MediaURL  *string   `json:"media_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the template is renderable.
func (t *MessageTemplate) Validate() error {
	if t.Content == "" {
		return ErrInvalidInput("template content cannot be empty")
	}
	if len(t.Greetings) == 0 {
		return ErrInvalidInput("template requires at least one greeting")
	}
	if len(t.Endings) == 0 {
		return ErrInvalidInput("template requires at least one ending")
	}
	return nil
}
