package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
	// MaxPoints заполняется, когда скидка превышает сумму заказа
	MaxPoints *int64 `json:"max_points,omitempty"`
	// Available заполняется при нехватке баллов
	Available *int64 `json:"available,omitempty"`
}

// statusFor сопоставляет доменную ошибку с HTTP статусом
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInsufficientPoints):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrDiscountExceedsOrderTotal),
		errors.Is(err, domain.ErrNoLoyaltyAccount),
		errors.Is(err, domain.ErrServiceNotOffered),
		errors.Is(err, domain.ErrNegativeTotal):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidPieces),
		errors.Is(err, domain.ErrInvalidDiscount),
		errors.Is(err, domain.ErrInvalidRuleConfig):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrLineNotFound),
		errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrServiceNotFound),
		errors.Is(err, domain.ErrRuleNotFound),
		errors.Is(err, domain.ErrReferralNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrOrderFinalized),
		errors.Is(err, domain.ErrOrderNotEditable),
		errors.Is(err, domain.ErrPointsAlreadyRedeemed),
		errors.Is(err, domain.ErrRuleExists),
		errors.Is(err, domain.ErrReferralExists),
		errors.Is(err, domain.ErrLedgerMismatch):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError отправляет ошибку клиенту. Неизвестные ошибки логируются и скрываются.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg,
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, logger, status, ErrorResponse{Error: http.StatusText(status)})
		return
	}

	response := ErrorResponse{Error: err.Error()}

	var exceeds *domain.DiscountExceedsOrderTotalError
	if errors.As(err, &exceeds) {
		response.MaxPoints = &exceeds.MaxPoints
	}
	var insufficient *domain.InsufficientPointsError
	if errors.As(err, &insufficient) {
		response.Available = &insufficient.Available
	}

	writeJSON(w, logger, status, response)
}

// writeBadRequest отвечает 400 на некорректный запрос
func writeBadRequest(w http.ResponseWriter, logger *zap.Logger, msg string) {
	writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// decodeJSON разбирает тело запроса, неизвестные поля считаются ошибкой
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// idParam извлекает положительный идентификатор из пути
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
