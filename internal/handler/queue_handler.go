package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nexocrm/automation-engine/internal/models"
	"github.com/nexocrm/automation-engine/internal/service"
)

// QueueHandler handles message queue HTTP requests
type QueueHandler struct {
	queueService service.QueueService
	logger       *slog.Logger
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(queueService service.QueueService, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{
		queueService: queueService,
		logger:       logger,
	}
}

// ListQueue handles GET /companies/{companyID}/queue
func (h *QueueHandler) ListQueue(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseCompanyID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	status := query.Get("status")
	if status != "" && !models.IsValidMessageStatus(status) {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid status filter")
		return
	}

	filter := models.QueuedMessageFilter{
		CompanyID: companyID,
		Status:    status,
		Page:      page,
		PageSize:  pageSize,
	}

	result, err := h.queueService.List(r.Context(), filter)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

// GetMessage handles GET /companies/{companyID}/queue/{id}
func (h *QueueHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseCompanyID(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	message, err := h.queueService.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	if message.CompanyID != companyID {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Queued message not found")
		return
	}

	respondSuccess(w, message)
}

// CancelMessage handles DELETE /companies/{companyID}/queue/{id}. Cancelling
// an already-terminal message is not an error; the response reports the
// message's current state either way.
func (h *QueueHandler) CancelMessage(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseCompanyID(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	message, err := h.queueService.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	if message.CompanyID != companyID {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Queued message not found")
		return
	}

	cancelled, err := h.queueService.Cancel(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, cancelled)
}
