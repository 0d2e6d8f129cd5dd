package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nexocrm/automation-engine/internal/models"
)

// Mock implementations for testing

type mockMessageRepo struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*models.QueuedMessage

	claimErr      error
	rescheduleErr error
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{messages: make(map[uuid.UUID]*models.QueuedMessage)}
}

func (m *mockMessageRepo) add(message *models.QueuedMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[message.ID] = message
}

func (m *mockMessageRepo) get(id uuid.UUID) *models.QueuedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[id]
}

func (m *mockMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.QueuedMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	message, ok := m.messages[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *message
	return &copied, nil
}

func (m *mockMessageRepo) List(ctx context.Context, filter models.QueuedMessageFilter) ([]*models.QueuedMessage, int64, error) {
	return nil, 0, nil
}

func (m *mockMessageRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.QueuedMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.claimErr != nil {
		return nil, m.claimErr
	}

	var claimed []*models.QueuedMessage
	for _, message := range m.messages {
		if len(claimed) >= limit {
			break
		}
		if message.Status == models.MessageStatusPending && !message.ScheduledFor.After(now) {
			message.Status = models.MessageStatusProcessing
			message.Attempts++
			copied := *message
			claimed = append(claimed, &copied)
		}
	}
	return claimed, nil
}

func (m *mockMessageRepo) MarkSent(ctx context.Context, id uuid.UUID) error {
	return m.transition(id, models.MessageStatusSent, nil, nil)
}

func (m *mockMessageRepo) Reschedule(ctx context.Context, id uuid.UUID, at time.Time, lastError string) error {
	if m.rescheduleErr != nil {
		return m.rescheduleErr
	}
	return m.transition(id, models.MessageStatusPending, &at, &lastError)
}

func (m *mockMessageRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	return m.transition(id, models.MessageStatusFailed, nil, &lastError)
}

func (m *mockMessageRepo) Cancel(ctx context.Context, id uuid.UUID) (*models.QueuedMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	message, ok := m.messages[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if message.Status == models.MessageStatusPending {
		message.Status = models.MessageStatusCancelled
	}
	copied := *message
	return &copied, nil
}

func (m *mockMessageRepo) transition(id uuid.UUID, status string, at *time.Time, lastError *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	message, ok := m.messages[id]
	if !ok {
		return models.ErrNotFound
	}
	if message.Status != models.MessageStatusProcessing {
		return models.ErrConflictWithMsg(fmt.Sprintf("message is %s, not in flight", message.Status))
	}
	message.Status = status
	if at != nil {
		message.ScheduledFor = *at
	}
	if lastError != nil {
		message.LastError = lastError
	}
	return nil
}

type mockContactRepo struct {
	contacts map[uuid.UUID]*models.Contact
}

func (m *mockContactRepo) GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.Contact, error) {
	contact, ok := m.contacts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return contact, nil
}

func (m *mockContactRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Contact, error) {
	var out []*models.Contact
	for _, contact := range m.contacts {
		out = append(out, contact)
	}
	return out, nil
}

// scriptedSender fails or succeeds per a fixed script, one entry per call.
type scriptedSender struct {
	script []error
	calls  int
}

func (s *scriptedSender) Send(ctx context.Context, number, content string, mediaURL *string) error {
	if s.calls >= len(s.script) {
		return errors.New("unexpected send call")
	}
	err := s.script[s.calls]
	s.calls++
	return err
}

// Test fixtures

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func deliveryFixture(sender MessageSender, maxAttempts int) (*DeliveryProcessor, *mockMessageRepo, *models.QueuedMessage) {
	messageRepo := newMockMessageRepo()
	contact := &models.Contact{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		Name:      "Ana",
		Number:    "+5511999990001",
	}
	contactRepo := &mockContactRepo{contacts: map[uuid.UUID]*models.Contact{contact.ID: contact}}

	message := &models.QueuedMessage{
		ID:           uuid.New(),
		CompanyID:    contact.CompanyID,
		RuleID:       uuid.New(),
		ContactID:    contact.ID,
		Content:      "Hello Ana",
		ScheduledFor: time.Now().Add(-time.Minute),
		Status:       models.MessageStatusPending,
	}
	messageRepo.add(message)

	processor := NewDeliveryProcessor(messageRepo, contactRepo, sender, maxAttempts, time.Minute, discardLogger())
	return processor, messageRepo, message
}

// runDeliveryCycle claims whatever is due and processes each claimed message,
// the way the dispatcher and consumer do in production.
func runDeliveryCycle(t *testing.T, processor *DeliveryProcessor, repo *mockMessageRepo, now time.Time) int {
	t.Helper()

	claimed, err := repo.ClaimDue(context.Background(), now, 10)
	if err != nil {
		t.Fatalf("ClaimDue() error = %v", err)
	}

	for _, message := range claimed {
		job := &models.DeliveryJob{QueuedMessageID: message.ID}
		if err := processor.Process(context.Background(), job); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}
	return len(claimed)
}

// Tests

func TestDeliveryProcessor_SucceedsFirstAttempt(t *testing.T) {
	sender := &scriptedSender{script: []error{nil}}
	processor, repo, message := deliveryFixture(sender, 3)

	if n := runDeliveryCycle(t, processor, repo, time.Now()); n != 1 {
		t.Fatalf("claimed %d messages, want 1", n)
	}

	got := repo.get(message.ID)
	if got.Status != models.MessageStatusSent {
		t.Errorf("status = %q, want %q", got.Status, models.MessageStatusSent)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
}

func TestDeliveryProcessor_RetriesThenSucceeds(t *testing.T) {
	sender := &scriptedSender{script: []error{
		errors.New("provider timeout"),
		errors.New("provider timeout"),
		nil,
	}}
	processor, repo, message := deliveryFixture(sender, 3)

	// Each cycle runs far enough in the future to be past any retry backoff.
	clock := time.Now()
	for cycle := 0; cycle < 3; cycle++ {
		clock = clock.Add(time.Hour)
		if n := runDeliveryCycle(t, processor, repo, clock); n != 1 {
			t.Fatalf("cycle %d: claimed %d messages, want 1", cycle+1, n)
		}
	}

	got := repo.get(message.ID)
	if got.Status != models.MessageStatusSent {
		t.Errorf("status = %q, want %q", got.Status, models.MessageStatusSent)
	}
	if got.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", got.Attempts)
	}
	if sender.calls != 3 {
		t.Errorf("sender calls = %d, want 3", sender.calls)
	}
}

func TestDeliveryProcessor_ExhaustsAttempts(t *testing.T) {
	sender := &scriptedSender{script: []error{
		errors.New("number unreachable"),
		errors.New("number unreachable"),
		errors.New("number unreachable"),
	}}
	processor, repo, message := deliveryFixture(sender, 3)

	clock := time.Now()
	for cycle := 0; cycle < 3; cycle++ {
		clock = clock.Add(time.Hour)
		if n := runDeliveryCycle(t, processor, repo, clock); n != 1 {
			t.Fatalf("cycle %d: claimed %d messages, want 1", cycle+1, n)
		}
	}

	got := repo.get(message.ID)
	if got.Status != models.MessageStatusFailed {
		t.Errorf("status = %q, want %q", got.Status, models.MessageStatusFailed)
	}
	if got.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", got.Attempts)
	}
	if got.LastError == nil || !strings.Contains(*got.LastError, "max attempts reached") {
		t.Errorf("last_error = %v, want max attempts message", got.LastError)
	}

	// A failed message is terminal: nothing left to claim.
	clock = clock.Add(time.Hour)
	if n := runDeliveryCycle(t, processor, repo, clock); n != 0 {
		t.Errorf("claimed %d messages after terminal failure, want 0", n)
	}
	if sender.calls != 3 {
		t.Errorf("sender calls = %d, want 3", sender.calls)
	}
}

func TestDeliveryProcessor_RescheduleUsesBackoff(t *testing.T) {
	sender := &scriptedSender{script: []error{errors.New("provider timeout")}}
	processor, repo, message := deliveryFixture(sender, 3)

	fixedNow := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	processor.now = func() time.Time { return fixedNow }

	runDeliveryCycle(t, processor, repo, fixedNow)

	got := repo.get(message.ID)
	if got.Status != models.MessageStatusPending {
		t.Fatalf("status = %q, want %q", got.Status, models.MessageStatusPending)
	}

	// First retry waits one backoff base.
	if want := fixedNow.Add(time.Minute); !got.ScheduledFor.Equal(want) {
		t.Errorf("scheduled_for = %v, want %v", got.ScheduledFor, want)
	}
	if got.LastError == nil || *got.LastError != "provider timeout" {
		t.Errorf("last_error = %v, want provider timeout", got.LastError)
	}
}

func TestDeliveryProcessor_SkipsMessageNotInFlight(t *testing.T) {
	sender := &scriptedSender{}
	processor, repo, message := deliveryFixture(sender, 3)

	// Cancelled between claim and processing.
	repo.get(message.ID).Status = models.MessageStatusCancelled

	job := &models.DeliveryJob{QueuedMessageID: message.ID}
	if err := processor.Process(context.Background(), job); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if sender.calls != 0 {
		t.Errorf("sender calls = %d, want 0", sender.calls)
	}
	if got := repo.get(message.ID); got.Status != models.MessageStatusCancelled {
		t.Errorf("status = %q, want %q", got.Status, models.MessageStatusCancelled)
	}
}

func TestDeliveryProcessor_UnknownMessage(t *testing.T) {
	sender := &scriptedSender{}
	processor, _, _ := deliveryFixture(sender, 3)

	job := &models.DeliveryJob{QueuedMessageID: uuid.New()}
	if err := processor.Process(context.Background(), job); err == nil {
		t.Error("Process() with unknown message should fail")
	}
}

func TestBackoffDoublesPerAttempt(t *testing.T) {
	processor := &DeliveryProcessor{backoffBase: time.Minute}

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
	}

	for _, tt := range tests {
		if got := processor.backoff(tt.attempts); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}
