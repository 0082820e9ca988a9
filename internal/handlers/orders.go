package handlers

import (
	"context"
	"net/http"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/avc/laundry-loyalty/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderService определяет методы работы с заказами.
type OrderService interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	AddLine(ctx context.Context, orderID int64, req service.LineRequest) (*domain.Order, error)
	UpdateLinePieces(ctx context.Context, orderID, lineID int64, pieces int) (*domain.Order, error)
	SetDiscountPercentage(ctx context.Context, orderID int64, pct decimal.Decimal) (*domain.Order, error)
	RecomputeTotals(ctx context.Context, orderID int64) (*domain.Order, error)
	TransitionStatus(ctx context.Context, orderID int64, to domain.OrderStatus, actor, notes string) (*service.TransitionResult, error)
	StatusHistory(ctx context.Context, orderID int64) ([]*domain.StatusChange, error)
}

// RedemptionService определяет списание баллов в счет заказа.
type RedemptionService interface {
	RedeemPoints(ctx context.Context, orderID, points int64) (*domain.RedemptionResult, error)
}

type OrdersHandler struct {
	orders     OrderService
	redemption RedemptionService
	logger     *zap.Logger
}

func NewOrdersHandler(orders OrderService, redemption RedemptionService, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		orders:     orders,
		redemption: redemption,
		logger:     logger,
	}
}

func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req service.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, h.logger, "malformed order")
		return
	}
	req.CreatedBy = GetActor(r.Context())

	order, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to create order")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, order)
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "orderID")
	if !ok {
		writeBadRequest(w, h.logger, "invalid order id")
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to get order")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, order)
}

func (h *OrdersHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "orderID")
	if !ok {
		writeBadRequest(w, h.logger, "invalid order id")
		return
	}

	var req service.LineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, h.logger, "malformed order line")
		return
	}

	order, err := h.orders.AddLine(r.Context(), orderID, req)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to add order line")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, order)
}

type updateLineRequest struct {
	Pieces int `json:"pieces"`
}

func (h *OrdersHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "orderID")
	if !ok {
		writeBadRequest(w, h.logger, "invalid order id")
		return
	}
	lineID, ok := idParam(r, "lineID")
	if !ok {
		writeBadRequest(w, h.logger, "invalid line id")
		return
	}

	var req updateLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, h.logger, "malformed order line")
		return
	}

	order, err := h.orders.UpdateLinePieces(r.Context(), orderID, lineID, req.Pieces)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to update order line")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, order)
}

type discountRequest struct {
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
}

func (h *OrdersHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "orderID")
	if !ok {
		writeBadRequest(w, h.logger, "invalid order id")
		return
	}

	var req discountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, h.logger, "malformed discount")
		return
	}

	order, err := h.orders.SetDiscountPercentage(r.Context(), orderID, req.DiscountPercentage)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to set order discount")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, order)
}

func (h *OrdersHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "orderID")
	if !ok {
		writeBadRequest(w, h.logger, "invalid order id")
		return
	}

	order, err := h.orders.RecomputeTotals(r.Context(), orderID)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to recompute order totals")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, order)
}

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *OrdersHandler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "orderID")
	if !ok {
		writeBadRequest(w, h.logger, "invalid order id")
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, h.logger, "malformed status change")
		return
	}

	to, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		writeBadRequest(w, h.logger, "unknown order status")
		return
	}

	result, err := h.orders.TransitionStatus(r.Context(), orderID, to, GetActor(r.Context()), req.Notes)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to change order status")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, result)
}

func (h *OrdersHandler) History(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "orderID")
	if !ok {
		writeBadRequest(w, h.logger, "invalid order id")
		return
	}

	history, err := h.orders.StatusHistory(r.Context(), orderID)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to get status history")
		return
	}

	if history == nil {
		history = []*domain.StatusChange{}
	}
	writeJSON(w, h.logger, http.StatusOK, history)
}

type redeemRequest struct {
	Points int64 `json:"points"`
}

func (h *OrdersHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "orderID")
	if !ok {
		writeBadRequest(w, h.logger, "invalid order id")
		return
	}

	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, h.logger, "malformed redemption")
		return
	}

	result, err := h.redemption.RedeemPoints(r.Context(), orderID, req.Points)
	if err != nil {
		writeError(w, r, h.logger, err, "failed to redeem points")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, result)
}
