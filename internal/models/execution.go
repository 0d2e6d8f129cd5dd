package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionEntry records a single firing of a rule for a subject. The
// (RuleID, SubjectID, Fingerprint) tuple is unique in the backing store;
// that constraint, not any in-memory check, is what guarantees a rule fires
// at most once per qualifying occurrence.
type ExecutionEntry struct {
	RuleID      uuid.UUID `json:"rule_id"`
	SubjectID   uuid.UUID `json:"subject_id"`
	Fingerprint string    `json:"trigger_fingerprint"`
	FiredAt     time.Time `json:"fired_at"`
}
