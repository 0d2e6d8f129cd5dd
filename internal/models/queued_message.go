package models

import (
	"time"

	"github.com/google/uuid"
)

// Queued message status constants. "processing" marks a message claimed by a
// delivery worker; it is the in-flight state between pending and a result.
const (
	MessageStatusPending    = "pending"
	MessageStatusProcessing = "processing"
	MessageStatusSent       = "sent"
	MessageStatusFailed     = "failed"
	MessageStatusCancelled  = "cancelled"
)

// QueuedMessage is a rendered outbound message awaiting delivery at
// ScheduledFor. Attempts counts delivery attempts started, including the one
// that eventually succeeds.
type QueuedMessage struct {
	ID           uuid.UUID `json:"id"`
	CompanyID    uuid.UUID `json:"company_id"`
	RuleID       uuid.UUID `json:"rule_id"`
	ContactID    uuid.UUID `json:"contact_id"`
	Content      string    `json:"content"`
	MediaURL     *string   `json:"media_url,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Status       string    `json:"status"`
	Attempts     int       `json:"attempts"`
	LastError    *string   `json:"last_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// QueuedMessageFilter holds filtering options for listing queued messages
type QueuedMessageFilter struct {
	CompanyID uuid.UUID
	Status    string
	Page      int
	PageSize  int
}

// DeliveryJob is the unit handed from the dispatcher to delivery processors
// through the queue.
type DeliveryJob struct {
	QueuedMessageID uuid.UUID `json:"queued_message_id"`
}

// IsTerminalStatus reports whether a status admits no further transitions.
func IsTerminalStatus(status string) bool {
	switch status {
	case MessageStatusSent, MessageStatusFailed, MessageStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValidMessageStatus checks if the message status is valid
func IsValidMessageStatus(status string) bool {
	switch status {
	case MessageStatusPending, MessageStatusProcessing, MessageStatusSent,
		MessageStatusFailed, MessageStatusCancelled:
		return true
	default:
		return false
	}
}

// CanRetry reports whether another delivery attempt is allowed.
func (m *QueuedMessage) CanRetry(maxAttempts int) bool {
	return m.Attempts < maxAttempts
}
