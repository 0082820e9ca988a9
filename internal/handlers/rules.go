package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/avc/laundry-loyalty/internal/service"
	"go.uber.org/zap"
)

// RuleService определяет управление правилами лояльности.
type RuleService interface {
	CreateRule(ctx context.Context, req service.CreateRuleRequest) (*domain.LoyaltyRule, error)
	SetRuleActive(ctx context.Context, id int64, active bool) (*domain.LoyaltyRule, error)
	ListRules(ctx context.Context, activeOnly bool) ([]*domain.LoyaltyRule, error)
}

type RulesHandler struct {
	rules  RuleService
	logger *zap.Logger
}

func NewRulesHandler(rules RuleService, logger *zap.Logger) *RulesHandler {
	return &RulesHandler{
		rules:  rules,
		logger: logger,
	}
}

func (h *RulesHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, h.logger, "active must be a boolean")
			return
		}
		activeOnly = parsed
	}

	rules, err := h.rules.ListRules(r.Context(), activeOnly)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to list loyalty rules")
		return
	}

	if rules == nil {
		rules = []*domain.LoyaltyRule{}
	}
	writeJSON(w, h.logger, http.StatusOK, rules)
}

func (h *RulesHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, h.logger, "malformed loyalty rule")
		return
	}

	rule, err := h.rules.CreateRule(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to create loyalty rule")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, rule)
}

type updateRuleRequest struct {
	IsActive *bool `json:"is_active"`
}

func (h *RulesHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := idParam(r, "ruleID")
	if !ok {
		writeBadRequest(w, h.logger, "invalid rule id")
		return
	}

	var req updateRuleRequest
	if err := decodeJSON(r, &req); err != nil || req.IsActive == nil {
		writeBadRequest(w, h.logger, "is_active is required")
		return
	}

	rule, err := h.rules.SetRuleActive(r.Context(), ruleID, *req.IsActive)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to update loyalty rule")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, rule)
}
