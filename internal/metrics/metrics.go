// Package metrics содержит prometheus-метрики движка лояльности.
// Методы безопасны для nil-получателя, поэтому метрики можно не подключать.
package metrics

import (
	"errors"
	"time"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "loyalty"

// Результаты списания баллов
const (
	RedemptionSuccess            = "success"
	RedemptionInsufficientPoints = "insufficient_points"
	RedemptionExceedsTotal       = "exceeds_total"
	RedemptionNoAccount          = "no_account"
	RedemptionRejected           = "rejected"
	RedemptionError              = "error"
)

// Metrics набор метрик движка
type Metrics struct {
	statusTransitions *prometheus.CounterVec
	rewardsGranted    *prometheus.CounterVec
	pointsCredited    prometheus.Counter
	pointsRedeemed    prometheus.Counter
	redemptions       *prometheus.CounterVec
	rewardEventTime   prometheus.Histogram
}

// New создает метрики и регистрирует их в registerer
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Order status transitions by source and target status.",
		}, []string{"from", "to"}),
		rewardsGranted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_granted_total",
			Help:      "Loyalty rewards granted by rule trigger.",
		}, []string{"trigger"}),
		pointsCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_credited_total",
			Help:      "Loyalty points credited to customer accounts.",
		}),
		pointsRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_redeemed_total",
			Help:      "Loyalty points redeemed against orders.",
		}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_total",
			Help:      "Points redemption attempts by result.",
		}, []string{"result"}),
		rewardEventTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reward_event_duration_seconds",
			Help:      "Time spent evaluating loyalty rules for one reward event.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registerer.MustRegister(
		m.statusTransitions,
		m.rewardsGranted,
		m.pointsCredited,
		m.pointsRedeemed,
		m.redemptions,
		m.rewardEventTime,
	)

	return m
}

// StatusTransition учитывает переход статуса заказа
func (m *Metrics) StatusTransition(from, to domain.OrderStatus) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// RewardGranted учитывает начисление баллов по правилу
func (m *Metrics) RewardGranted(trigger domain.TriggerType, points int64) {
	if m == nil {
		return
	}
	m.rewardsGranted.WithLabelValues(string(trigger)).Inc()
	if points > 0 {
		m.pointsCredited.Add(float64(points))
	}
}

// Redemption учитывает попытку списания баллов
func (m *Metrics) Redemption(points int64, err error) {
	if m == nil {
		return
	}
	result := RedemptionResult(err)
	m.redemptions.WithLabelValues(result).Inc()
	if result == RedemptionSuccess && points > 0 {
		m.pointsRedeemed.Add(float64(points))
	}
}

// ObserveRewardEvent учитывает длительность обработки события начисления
func (m *Metrics) ObserveRewardEvent(d time.Duration) {
	if m == nil {
		return
	}
	m.rewardEventTime.Observe(d.Seconds())
}

// RedemptionResult классифицирует результат списания для метки result
func RedemptionResult(err error) string {
	switch {
	case err == nil:
		return RedemptionSuccess
	case errors.Is(err, domain.ErrInsufficientPoints):
		return RedemptionInsufficientPoints
	case errors.Is(err, domain.ErrDiscountExceedsOrderTotal):
		return RedemptionExceedsTotal
	case errors.Is(err, domain.ErrNoLoyaltyAccount):
		return RedemptionNoAccount
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrOrderFinalized),
		errors.Is(err, domain.ErrPointsAlreadyRedeemed),
		errors.Is(err, domain.ErrOrderNotFound):
		return RedemptionRejected
	default:
		return RedemptionError
	}
}
