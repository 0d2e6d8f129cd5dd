package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Trigger type constants
const (
	TriggerTag      = "tag"
	TriggerSchedule = "schedule"
	TriggerKanban   = "kanban_stage"
)

// Schedule frequency constants
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Schedule describes a recurring firing time for schedule-triggered rules.
// Time is a 24h clock value in "HH:MM" form. DaysOfWeek uses 0 for Sunday,
// matching time.Weekday.
type Schedule struct {
	Frequency  string `json:"frequency"`
	Time       string `json:"time"`
	DaysOfWeek []int  `json:"days_of_week,omitempty"`
	DayOfMonth int    `json:"day_of_month,omitempty"`
}

// Trigger is the condition under which a rule becomes eligible to fire.
// Exactly one variant is populated, selected by Type.
type Trigger struct {
	Type     string    `json:"type"`
	TagValue string    `json:"tag_value,omitempty"`
	StageID  string    `json:"stage_id,omitempty"`
	Schedule *Schedule `json:"schedule,omitempty"`
}

// RuleMessage describes what a rule sends when it fires.
type RuleMessage struct {
	TemplateID   uuid.UUID `json:"template_id"`
	DelaySeconds int       `json:"delay_seconds"`
}

// AutomationRule watches contact state and enqueues an outbound message when
// its trigger condition is satisfied.
type AutomationRule struct {
	ID        uuid.UUID   `json:"id"`
	CompanyID uuid.UUID   `json:"company_id"`
	Name      string      `json:"name"`
	Trigger   Trigger     `json:"trigger"`
	Message   RuleMessage `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Matches reports whether a discrete event satisfies the trigger. Schedule
// triggers never match discrete events; they are evaluated against clock
// ticks via InWindow.
func (t Trigger) Matches(event *Event) bool {
	if event == nil {
		return false
	}

	switch t.Type {
	case TriggerTag:
		return event.Type == EventTagApplied && event.TagValue == t.TagValue
	case TriggerKanban:
		return event.Type == EventStageEntered && event.StageID == t.StageID
	default:
		return false
	}
}

// OccurrenceAt returns the scheduled occurrence time on the day of now, and
// whether that day has an occurrence at all.
func (s *Schedule) OccurrenceAt(now time.Time) (time.Time, bool) {
	hour, minute, err := parseClock(s.Time)
	if err != nil {
		return time.Time{}, false
	}

	switch s.Frequency {
	case FrequencyDaily:
		// every day qualifies
	case FrequencyWeekly:
		if !containsDay(s.DaysOfWeek, int(now.Weekday())) {
			return time.Time{}, false
		}
	case FrequencyMonthly:
		if now.Day() != s.DayOfMonth {
			return time.Time{}, false
		}
	default:
		return time.Time{}, false
	}

	occurrence := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	return occurrence, true
}

// InWindow reports whether now falls within the occurrence window: at or
// after the scheduled time, and less than tolerance past it. Tolerance is
// expected to equal the scheduler tick interval, so exactly one tick lands
// inside the window.
func (s *Schedule) InWindow(now time.Time, tolerance time.Duration) bool {
	occurrence, ok := s.OccurrenceAt(now)
	if !ok {
		return false
	}
	return !now.Before(occurrence) && now.Sub(occurrence) < tolerance
}

// Validate checks that exactly one trigger variant is populated and that the
// message reference is well formed.
func (r *AutomationRule) Validate() error {
	switch r.Trigger.Type {
	case TriggerTag:
		if r.Trigger.TagValue == "" {
			return ErrInvalidInput("tag trigger requires a tag value")
		}
	case TriggerKanban:
		if r.Trigger.StageID == "" {
			return ErrInvalidInput("kanban trigger requires a stage")
		}
	case TriggerSchedule:
		if err := r.Trigger.Schedule.validate(); err != nil {
			return err
		}
	default:
		return ErrInvalidInput(fmt.Sprintf("unknown trigger type '%s'", r.Trigger.Type))
	}

	if r.Message.TemplateID == uuid.Nil {
		return ErrInvalidInput("rule requires a message template")
	}
	if r.Message.DelaySeconds < 0 {
		return ErrInvalidInput("message delay cannot be negative")
	}

	return nil
}

func (s *Schedule) validate() error {
	if s == nil {
		return ErrInvalidInput("schedule trigger requires schedule details")
	}
	if _, _, err := parseClock(s.Time); err != nil {
		return ErrInvalidInput(fmt.Sprintf("invalid schedule time '%s'", s.Time))
	}

	switch s.Frequency {
	case FrequencyDaily:
	case FrequencyWeekly:
		if len(s.DaysOfWeek) == 0 {
			return ErrInvalidInput("weekly schedule requires at least one day of week")
		}
		for _, day := range s.DaysOfWeek {
			if day < 0 || day > 6 {
				return ErrInvalidInput(fmt.Sprintf("invalid day of week %d", day))
			}
		}
	case FrequencyMonthly:
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			return ErrInvalidInput(fmt.Sprintf("invalid day of month %d", s.DayOfMonth))
		}
	default:
		return ErrInvalidInput(fmt.Sprintf("unknown schedule frequency '%s'", s.Frequency))
	}

	return nil
}

// parseClock parses a "HH:MM" clock value.
func parseClock(value string) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock value %q", value)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}

	return hour, minute, nil
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
