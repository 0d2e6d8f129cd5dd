package service

import (
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/nexocrm/automation-engine/internal/models"
)

// Renderer produces the final message content for a template and contact.
type Renderer interface {
	Render(template *models.MessageTemplate, contact *models.Contact) (string, error)
}

type templateRenderer struct {
	placeholderPattern *regexp.Regexp
}

// NewRenderer creates a new template renderer
func NewRenderer() Renderer {
	return &templateRenderer{
		placeholderPattern: regexp.MustCompile(`\{([a-z_]+)\}`),
	}
}

// Render replaces {greeting}, {ending} and contact field placeholders in the
// template content. Greeting and ending are picked deterministically per
// (template, contact) pair, so re-rendering after a crash or retry yields an
// identical message. Unknown placeholders are replaced with empty strings.
func (r *templateRenderer) Render(template *models.MessageTemplate, contact *models.Contact) (string, error) {
	if template == nil {
		return "", models.ErrInvalidInput("template cannot be nil")
	}
	if contact == nil {
		return "", models.ErrInvalidInput("contact cannot be nil")
	}
	if err := template.Validate(); err != nil {
		return "", err
	}

	fieldMap := map[string]string{
		"greeting":   pickVariant(template.Greetings, template.ID, contact.ID, 0),
		"ending":     pickVariant(template.Endings, template.ID, contact.ID, 1),
		"name":       contact.Name,
		"first_name": contact.FirstName,
		"last_name":  contact.LastName,
		"number":     contact.Number,
		"email":      contact.Email,
	}

	result := r.placeholderPattern.ReplaceAllStringFunc(template.Content, func(match string) string {
		fieldName := strings.Trim(match, "{}")

		if value, exists := fieldMap[fieldName]; exists {
			return value
		}

		return ""
	})

	return result, nil
}

// pickVariant selects one of variants by hashing the template and contact
// ids. The salt keeps the greeting and ending choices independent.
func pickVariant(variants []string, templateID, contactID uuid.UUID, salt byte) string {
	digest := xxhash.New()
	_, _ = digest.Write(templateID[:])
	_, _ = digest.Write(contactID[:])
	_, _ = digest.Write([]byte{salt})

	return variants[digest.Sum64()%uint64(len(variants))]
}
