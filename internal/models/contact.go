package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact is a CRM contact. Contacts are written by the CRM itself; this
// engine only reads them for rendering and schedule fan-out.
type Contact struct {
	ID          uuid.UUID `json:"id"`
	CompanyID   uuid.UUID `json:"company_id"`
	Name        string    `json:"name"`
	Number      string    `json:"number"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Tags        []string  `json:"tags"`
	KanbanStage string    `json:"kanban_stage"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
