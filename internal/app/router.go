package app

import (
	"net/http"

	"github.com/avc/laundry-loyalty/internal/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// setupRouter создает и настраивает роутер
func setupRouter(deps *dependencies, metricsHandler http.Handler, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Глобальные middleware
	setupMiddleware(r, logger)

	// Маршруты
	setupRoutes(r, deps, metricsHandler)

	return r
}

// setupMiddleware настраивает middleware для роутера
func setupMiddleware(r *chi.Mux, logger *zap.Logger) {
	r.Use(handlers.RequestIDMiddleware())
	r.Use(handlers.ActorMiddleware())
	r.Use(handlers.LoggingMiddleware(logger))
	r.Use(handlers.RecoveryMiddleware(logger))
	r.Use(middleware.Compress(5))
}

// setupRoutes настраивает маршруты приложения
func setupRoutes(r *chi.Mux, deps *dependencies, metricsHandler http.Handler) {
	// Служебные эндпоинты
	r.Get("/health", deps.handlers.health.Health)
	r.Get("/ready", deps.handlers.health.Ready)
	r.Handle("/metrics", metricsHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/pricing/line-total", deps.handlers.pricing.LineTotal)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", deps.handlers.orders.CreateOrder)
			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", deps.handlers.orders.GetOrder)
				r.Post("/lines", deps.handlers.orders.AddLine)
				r.Patch("/lines/{lineID}", deps.handlers.orders.UpdateLine)
				r.Put("/discount", deps.handlers.orders.SetDiscount)
				r.Post("/recompute", deps.handlers.orders.Recompute)
				r.Post("/status", deps.handlers.orders.TransitionStatus)
				r.Get("/history", deps.handlers.orders.History)
				r.Post("/redeem", deps.handlers.orders.Redeem)
			})
		})

		r.Route("/customers/{customerID}/loyalty", func(r chi.Router) {
			r.Get("/", deps.handlers.loyalty.Summary)
			r.Post("/adjust", deps.handlers.loyalty.Adjust)
			r.Get("/verify", deps.handlers.loyalty.Verify)
		})
		r.Post("/referrals", deps.handlers.loyalty.CreateReferral)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", deps.handlers.rules.ListRules)
			r.Post("/", deps.handlers.rules.CreateRule)
			r.Patch("/{ruleID}", deps.handlers.rules.UpdateRule)
		})
	})
}
