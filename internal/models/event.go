package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types delivered by the CRM webhooks
const (
	EventTagApplied   = "tag_applied"
	EventStageEntered = "stage_entered"
)

// Event is a state-change notification for a contact: a tag was applied or
// an opportunity moved into a kanban stage. The ID identifies the specific
// occurrence and is reused as the firing fingerprint, so a webhook delivered
// twice carries the same ID both times.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	SubjectID  uuid.UUID `json:"subject_id"`
	TagValue   string    `json:"tag_value,omitempty"`
	StageID    string    `json:"stage_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
