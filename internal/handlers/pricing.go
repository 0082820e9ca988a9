package handlers

import (
	"net/http"
	"strconv"

	"github.com/avc/laundry-loyalty/internal/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PricingHandler отдает расчет стоимости позиции без создания заказа
type PricingHandler struct {
	calculator *pricing.Calculator
	settings   pricing.Settings
	logger     *zap.Logger
}

func NewPricingHandler(settings pricing.Settings, logger *zap.Logger) *PricingHandler {
	return &PricingHandler{
		calculator: pricing.NewCalculator(settings),
		settings:   settings,
		logger:     logger,
	}
}

// LineTotalResponse расчет стоимости позиции
type LineTotalResponse struct {
	PricePerDozen string `json:"price_per_dozen"`
	Pieces        int    `json:"pieces"`
	UnitPrice     string `json:"unit_price"`
	LineTotal     string `json:"line_total"`
	Currency      string `json:"currency"`
}

func (h *PricingHandler) LineTotal(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	price, err := decimal.NewFromString(query.Get("price_per_dozen"))
	if err != nil || price.IsNegative() {
		writeBadRequest(w, h.logger, "price_per_dozen must be a non-negative amount")
		return
	}

	pieces, err := strconv.Atoi(query.Get("pieces"))
	if err != nil || pieces <= 0 {
		writeBadRequest(w, h.logger, "pieces must be a positive integer")
		return
	}

	precision := h.settings.Precision
	writeJSON(w, h.logger, http.StatusOK, LineTotalResponse{
		PricePerDozen: price.StringFixed(precision),
		Pieces:        pieces,
		UnitPrice:     h.calculator.UnitPrice(price).String(),
		LineTotal:     h.calculator.LineTotal(price, pieces).StringFixed(precision),
		Currency:      h.settings.CurrencySymbol,
	})
}
