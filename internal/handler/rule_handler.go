package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nexocrm/automation-engine/internal/service"
)

// RuleHandler handles automation rule and template HTTP requests
type RuleHandler struct {
	ruleService service.RuleService
	logger      *slog.Logger
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(ruleService service.RuleService, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{
		ruleService: ruleService,
		logger:      logger,
	}
}

// CreateRule handles POST /companies/{companyID}/rules
func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseCompanyID(w, r)
	if !ok {
		return
	}

	var req service.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	rule, err := h.ruleService.CreateRule(r.Context(), companyID, &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondCreated(w, rule)
}

// ListRules handles GET /companies/{companyID}/rules
func (h *RuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseCompanyID(w, r)
	if !ok {
		return
	}

	result, err := h.ruleService.ListRules(r.Context(), companyID)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

// CreateTemplate handles POST /companies/{companyID}/templates
func (h *RuleHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseCompanyID(w, r)
	if !ok {
		return
	}

	var req service.CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	template, err := h.ruleService.CreateTemplate(r.Context(), companyID, &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondCreated(w, template)
}

// ListTemplates handles GET /companies/{companyID}/templates
func (h *RuleHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseCompanyID(w, r)
	if !ok {
		return
	}

	result, err := h.ruleService.ListTemplates(r.Context(), companyID)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}
