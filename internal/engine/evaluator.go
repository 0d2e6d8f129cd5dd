package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nexocrm/automation-engine/internal/models"
	"github.com/nexocrm/automation-engine/internal/repository"
	"github.com/nexocrm/automation-engine/internal/service"
)

// Evaluator matches incoming events and clock ticks against a company's
// automation rules and, for each qualifying rule, records a firing and
// enqueues the rendered message. The ledger's uniqueness constraint is the
// sole at-most-once guard; the evaluator itself holds no state and is safe
// under concurrent invocation.
type Evaluator struct {
	ruleRepo     repository.RuleRepository
	templateRepo repository.TemplateRepository
	contactRepo  repository.ContactRepository
	firingRepo   repository.FiringRepository
	renderer     service.Renderer
	tickInterval time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewEvaluator creates a new rule evaluator. tickInterval is the schedule
// scanner's tick period and doubles as the occurrence window tolerance.
func NewEvaluator(
	ruleRepo repository.RuleRepository,
	templateRepo repository.TemplateRepository,
	contactRepo repository.ContactRepository,
	firingRepo repository.FiringRepository,
	renderer service.Renderer,
	tickInterval time.Duration,
	logger *slog.Logger,
) *Evaluator {
	return &Evaluator{
		ruleRepo:     ruleRepo,
		templateRepo: templateRepo,
		contactRepo:  contactRepo,
		firingRepo:   firingRepo,
		renderer:     renderer,
		tickInterval: tickInterval,
		logger:       logger,
		now:          time.Now,
	}
}

// OnEvent evaluates a discrete event (tag applied, stage entered) against
// every rule of the company. A company with no rules is a no-op. Individual
// rule failures are logged and skipped, never fatal.
func (e *Evaluator) OnEvent(ctx context.Context, companyID uuid.UUID, event *models.Event) error {
	if event.ID == "" {
		return models.ErrInvalidInput("event requires an id")
	}

	rules, err := e.ruleRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	contact, err := e.contactRepo.GetByID(ctx, companyID, event.SubjectID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			e.logger.Warn("event subject not found, skipping",
				slog.String("company_id", companyID.String()),
				slog.String("subject_id", event.SubjectID.String()),
			)
			return nil
		}
		return fmt.Errorf("failed to load event subject: %w", err)
	}

	for _, rule := range rules {
		if !rule.Trigger.Matches(event) {
			continue
		}

		if err := e.fire(ctx, rule, contact, eventFingerprint(event)); err != nil {
			e.logger.Error("rule firing failed",
				slog.String("rule_id", rule.ID.String()),
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// OnClockTick evaluates schedule-triggered rules for every company. A
// schedule rule whose occurrence window contains now fires once per contact
// of the company, each firing deduplicated by the occurrence fingerprint.
// Returning an error means the whole tick should be retried at the next
// interval; partial progress is safe because every firing is individually
// atomic.
func (e *Evaluator) OnClockTick(ctx context.Context, now time.Time) error {
	companyIDs, err := e.ruleRepo.ListCompanyIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list companies: %w", err)
	}

	for _, companyID := range companyIDs {
		if err := e.tickCompany(ctx, companyID, now); err != nil {
			e.logger.Error("schedule scan failed for company",
				slog.String("company_id", companyID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

func (e *Evaluator) tickCompany(ctx context.Context, companyID uuid.UUID, now time.Time) error {
	rules, err := e.ruleRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	var due []*models.AutomationRule
	for _, rule := range rules {
		if rule.Trigger.Type != models.TriggerSchedule || rule.Trigger.Schedule == nil {
			continue
		}
		if rule.Trigger.Schedule.InWindow(now, e.tickInterval) {
			due = append(due, rule)
		}
	}

	if len(due) == 0 {
		return nil
	}

	contacts, err := e.contactRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return fmt.Errorf("failed to load contacts: %w", err)
	}

	for _, rule := range due {
		occurrence, _ := rule.Trigger.Schedule.OccurrenceAt(now)
		fingerprint := occurrenceFingerprint(occurrence)

		for _, contact := range contacts {
			if err := e.fire(ctx, rule, contact, fingerprint); err != nil {
				e.logger.Error("scheduled rule firing failed",
					slog.String("rule_id", rule.ID.String()),
					slog.String("contact_id", contact.ID.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return nil
}

// fire performs the fire-once step for a single rule and contact: validate,
// render, then atomically record the firing and enqueue the message. A
// duplicate-fire conflict means another call already handled this occurrence
// and is silently absorbed.
func (e *Evaluator) fire(ctx context.Context, rule *models.AutomationRule, contact *models.Contact, fingerprint string) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("malformed rule: %w", err)
	}

	template, err := e.templateRepo.GetByID(ctx, rule.CompanyID, rule.Message.TemplateID)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	content, err := e.renderer.Render(template, contact)
	if err != nil {
		return fmt.Errorf("failed to render message: %w", err)
	}

	now := e.now()
	message := &models.QueuedMessage{
		ID:           uuid.New(),
		CompanyID:    rule.CompanyID,
		RuleID:       rule.ID,
		ContactID:    contact.ID,
		Content:      content,
		MediaURL:     template.MediaURL,
		ScheduledFor: now.Add(time.Duration(rule.Message.DelaySeconds) * time.Second),
		Status:       models.MessageStatusPending,
	}

	entry := &models.ExecutionEntry{
		RuleID:      rule.ID,
		SubjectID:   contact.ID,
		Fingerprint: fingerprint,
		FiredAt:     now,
	}

	if err := e.firingRepo.RecordFiring(ctx, entry, message); err != nil {
		if errors.Is(err, models.ErrDuplicateFire) {
			e.logger.Debug("rule already fired for occurrence",
				slog.String("rule_id", rule.ID.String()),
				slog.String("fingerprint", fingerprint),
			)
			return nil
		}
		return fmt.Errorf("failed to record firing: %w", err)
	}

	e.logger.Info("rule fired",
		slog.String("rule_id", rule.ID.String()),
		slog.String("contact_id", contact.ID.String()),
		slog.String("message_id", message.ID.String()),
		slog.Time("scheduled_for", message.ScheduledFor),
	)

	return nil
}
