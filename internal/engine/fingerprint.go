package engine

import (
	"time"

	"github.com/nexocrm/automation-engine/internal/models"
)

// eventFingerprint identifies the occurrence behind a discrete event. The
// CRM assigns webhook events stable ids, so a redelivered webhook carries
// the same fingerprint.
func eventFingerprint(event *models.Event) string {
	return event.ID
}

// occurrenceFingerprint names a schedule occurrence by its canonical day.
// Daily, weekly and monthly occurrences each happen on exactly one day, so
// the day together with the rule id uniquely identifies the occurrence.
func occurrenceFingerprint(occurrence time.Time) string {
	return occurrence.Format("2006-01-02")
}
