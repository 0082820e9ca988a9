package handlers

import (
	"context"
	"net/http"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/avc/laundry-loyalty/internal/service"
	"go.uber.org/zap"
)

// LoyaltyService определяет методы работы со счетами баллов.
type LoyaltyService interface {
	Summary(ctx context.Context, customerID int64) (*service.LoyaltySummary, error)
	AdjustPoints(ctx context.Context, customerID, delta int64, reason string) (*domain.LoyaltyTransaction, error)
	VerifyLedger(ctx context.Context, customerID int64) error
}

// ReferralService определяет регистрацию рекомендаций.
type ReferralService interface {
	CreateReferral(ctx context.Context, referrerID, refereeID int64) (*domain.Referral, error)
}

type LoyaltyHandler struct {
	loyalty   LoyaltyService
	referrals ReferralService
	logger    *zap.Logger
}

func NewLoyaltyHandler(loyalty LoyaltyService, referrals ReferralService, logger *zap.Logger) *LoyaltyHandler {
	return &LoyaltyHandler{
		loyalty:   loyalty,
		referrals: referrals,
		logger:    logger,
	}
}

func (h *LoyaltyHandler) Summary(w http.ResponseWriter, r *http.Request) {
	customerID, ok := idParam(r, "customerID")
	if !ok {
		writeBadRequest(w, h.logger, "invalid customer id")
		return
	}

	summary, err := h.loyalty.Summary(r.Context(), customerID)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to get loyalty summary")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, summary)
}

type adjustRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

func (h *LoyaltyHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	customerID, ok := idParam(r, "customerID")
	if !ok {
		writeBadRequest(w, h.logger, "invalid customer id")
		return
	}

	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, h.logger, "malformed adjustment")
		return
	}

	tx, err := h.loyalty.AdjustPoints(r.Context(), customerID, req.Delta, req.Reason)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to adjust loyalty points")
		return
	}

	h.logger.Info("loyalty points adjusted",
		zap.Int64("customer_id", customerID),
		zap.Int64("delta", req.Delta),
		zap.String("actor", GetActor(r.Context())),
	)
	writeJSON(w, h.logger, http.StatusCreated, tx)
}

type verifyResponse struct {
	CustomerID int64 `json:"customer_id"`
	Consistent bool  `json:"consistent"`
}

func (h *LoyaltyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	customerID, ok := idParam(r, "customerID")
	if !ok {
		writeBadRequest(w, h.logger, "invalid customer id")
		return
	}

	if err := h.loyalty.VerifyLedger(r.Context(), customerID); err != nil {
		writeError(w, r, h.logger, err, "failed to verify loyalty ledger")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, verifyResponse{CustomerID: customerID, Consistent: true})
}

type referralRequest struct {
	ReferrerID int64 `json:"referrer_id"`
	RefereeID  int64 `json:"referee_id"`
}

func (h *LoyaltyHandler) CreateReferral(w http.ResponseWriter, r *http.Request) {
	var req referralRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, h.logger, "malformed referral")
		return
	}

	referral, err := h.referrals.CreateReferral(r.Context(), req.ReferrerID, req.RefereeID)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to create referral")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, referral)
}
