package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nexocrm/automation-engine/internal/models"
)

// EventEvaluator evaluates a discrete CRM event against a company's rules.
type EventEvaluator interface {
	OnEvent(ctx context.Context, companyID uuid.UUID, event *models.Event) error
}

// EventHandler receives CRM webhooks and feeds them to the rule evaluator.
// Events are evaluated synchronously with the webhook, so tag- and
// stage-triggered rules fire immediately after the mutation.
type EventHandler struct {
	evaluator EventEvaluator
	logger    *slog.Logger
}

// NewEventHandler creates a new event webhook handler
func NewEventHandler(evaluator EventEvaluator, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		evaluator: evaluator,
		logger:    logger,
	}
}

type tagWebhookRequest struct {
	EventID   string `json:"event_id"`
	ContactID string `json:"contact_id"`
	Tag       string `json:"tag"`
}

type kanbanWebhookRequest struct {
	EventID   string `json:"event_id"`
	ContactID string `json:"contact_id"`
	FromStage string `json:"from_stage"`
	ToStage   string `json:"to_stage"`
}

// HandleTagApplied handles POST /webhooks/companies/{companyID}/tags
func (h *EventHandler) HandleTagApplied(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseCompanyID(w, r)
	if !ok {
		return
	}

	var req tagWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	if req.EventID == "" || req.Tag == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "event_id and tag are required")
		return
	}

	contactID, err := uuid.Parse(req.ContactID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid contact_id")
		return
	}

	event := &models.Event{
		ID:         req.EventID,
		Type:       models.EventTagApplied,
		SubjectID:  contactID,
		TagValue:   req.Tag,
		OccurredAt: time.Now().UTC(),
	}

	if err := h.evaluator.OnEvent(r.Context(), companyID, event); err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HandleStageEntered handles POST /webhooks/companies/{companyID}/kanban
func (h *EventHandler) HandleStageEntered(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseCompanyID(w, r)
	if !ok {
		return
	}

	var req kanbanWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	if req.EventID == "" || req.ToStage == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "event_id and to_stage are required")
		return
	}

	contactID, err := uuid.Parse(req.ContactID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid contact_id")
		return
	}

	event := &models.Event{
		ID:         req.EventID,
		Type:       models.EventStageEntered,
		SubjectID:  contactID,
		StageID:    req.ToStage,
		OccurredAt: time.Now().UTC(),
	}

	if err := h.evaluator.OnEvent(r.Context(), companyID, event); err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// parseCompanyID extracts and validates the companyID URL parameter
func parseCompanyID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	companyID, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid company ID")
		return uuid.Nil, false
	}
	return companyID, true
}
