package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const pingTimeout = 2 * time.Second

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	store  Pinger
	cache  Pinger
	logger *zap.Logger
}

// NewHealthHandler создает новый HealthHandler. cache может быть nil.
func NewHealthHandler(store Pinger, cache Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache,omitempty"`
}

// Health возвращает статус приложения
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:   "ok",
		Database: "ok",
	}

	// Проверяем подключение к БД с таймаутом
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unavailable"
		h.logger.Warn("health check: database unavailable", zap.Error(err))
	}

	// Кеш не обязателен для работы, его недоступность не меняет статус
	if h.cache != nil {
		response.Cache = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			response.Cache = "unavailable"
			h.logger.Warn("health check: cache unavailable", zap.Error(err))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode health response", zap.Error(err))
	}
}

// Ready возвращает готовность приложения принимать трафик
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed: database unavailable", zap.Error(err))
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
