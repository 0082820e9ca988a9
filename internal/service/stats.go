package service

import (
	"context"
	"fmt"
	"time"

	"github.com/avc/laundry-loyalty/internal/clock"
	"github.com/avc/laundry-loyalty/internal/domain"
	"go.uber.org/zap"
)

// StatsCache определяет кэш агрегатов клиента
type StatsCache interface {
	Get(ctx context.Context, customerID int64, windowDays int) (domain.CustomerStats, bool, error)
	Set(ctx context.Context, stats domain.CustomerStats) error
	Invalidate(ctx context.Context, customerID int64) error
}

// StatsProvider вычисляет агрегаты клиента по заказам и кэширует их.
// Кэш сбрасывается, когда заказ впервые достигает вознаграждаемого статуса.
type StatsProvider struct {
	cache  StatsCache
	clock  clock.Clock
	logger *zap.Logger
}

// NewStatsProvider создает новый StatsProvider
func NewStatsProvider(cache StatsCache, clk clock.Clock, logger *zap.Logger) *StatsProvider {
	return &StatsProvider{cache: cache, clock: clk, logger: logger}
}

// Stats возвращает агрегаты клиента за последние windowDays дней (0 - вся история).
// Значение может быть взято из кэша, поэтому годится только для отображения.
func (p *StatsProvider) Stats(ctx context.Context, store domain.Store, customerID int64, windowDays int) (domain.CustomerStats, error) {
	stats, ok, err := p.cache.Get(ctx, customerID, windowDays)
	if err != nil {
		p.logger.Warn("stats cache read failed", zap.Int64("customer_id", customerID), zap.Error(err))
	}
	if ok {
		return stats, nil
	}

	return p.Refresh(ctx, store, customerID, windowDays)
}

// Refresh считает агрегаты клиента по заказам в store, минуя кэш, и обновляет кэш.
// Решения о начислении принимаются только по этим значениям.
func (p *StatsProvider) Refresh(ctx context.Context, store domain.Store, customerID int64, windowDays int) (domain.CustomerStats, error) {
	var since *time.Time
	if windowDays > 0 {
		start := p.clock.Now().AddDate(0, 0, -windowDays)
		since = &start
	}

	stats, err := store.Customers().GetStats(ctx, customerID, since)
	if err != nil {
		return domain.CustomerStats{}, fmt.Errorf("stats: failed to compute stats for customer %d: %w", customerID, err)
	}
	stats.WindowDays = windowDays

	if err := p.cache.Set(ctx, stats); err != nil {
		p.logger.Warn("stats cache write failed", zap.Int64("customer_id", customerID), zap.Error(err))
	}

	return stats, nil
}

// Invalidate сбрасывает кэш агрегатов клиента. Ошибка кэша только логируется.
func (p *StatsProvider) Invalidate(ctx context.Context, customerID int64) {
	if err := p.cache.Invalidate(ctx, customerID); err != nil {
		p.logger.Warn("stats cache invalidation failed", zap.Int64("customer_id", customerID), zap.Error(err))
	}
}
