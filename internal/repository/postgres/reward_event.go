package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/avc/laundry-loyalty/internal/domain"
)

// RewardEventRepository реализует domain.RewardEventRepository
type RewardEventRepository struct {
	db DBTX
}

// NewRewardEventRepository создает новый RewardEventRepository
func NewRewardEventRepository(db DBTX) *RewardEventRepository {
	return &RewardEventRepository{db: db}
}

// EnqueueRewardEvent добавляет событие начисления по заказу, если его еще нет
func (r *RewardEventRepository) EnqueueRewardEvent(ctx context.Context, event *domain.RewardEvent) (bool, error) {
	result, err := r.db.Exec(ctx,
		`INSERT INTO reward_events (order_id, status, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (order_id) DO NOTHING`,
		event.OrderID, event.Status, event.CreatedAt,
	)

	if err != nil {
		return false, fmt.Errorf("repository: failed to enqueue reward event for order %d: %w", event.OrderID, err)
	}

	return result.RowsAffected() == 1, nil
}

// ClaimRewardEvent отмечает событие обработанным. Повторный захват возвращает false.
func (r *RewardEventRepository) ClaimRewardEvent(ctx context.Context, orderID int64, at time.Time) (bool, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE reward_events SET processed_at = $2
		 WHERE order_id = $1 AND processed_at IS NULL`,
		orderID, at,
	)

	if err != nil {
		return false, fmt.Errorf("repository: failed to claim reward event for order %d: %w", orderID, err)
	}

	return result.RowsAffected() == 1, nil
}

// ListPendingRewardEvents получает необработанные события в порядке создания
func (r *RewardEventRepository) ListPendingRewardEvents(ctx context.Context, limit int) ([]*domain.RewardEvent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT order_id, status, created_at, processed_at
		 FROM reward_events
		 WHERE processed_at IS NULL
		 ORDER BY created_at, order_id
		 LIMIT $1`,
		limit,
	)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to list pending reward events: %w", err)
	}
	defer rows.Close()

	var events []*domain.RewardEvent
	for rows.Next() {
		event := &domain.RewardEvent{}
		if err := rows.Scan(&event.OrderID, &event.Status, &event.CreatedAt, &event.ProcessedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan reward event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating reward events: %w", err)
	}

	return events, nil
}

// ClaimBirthdayGrant фиксирует начисление ко дню рождения за год.
// Возвращает false, если начисление уже было.
func (r *RewardEventRepository) ClaimBirthdayGrant(ctx context.Context, customerID, ruleID int64, year int) (bool, error) {
	result, err := r.db.Exec(ctx,
		`INSERT INTO birthday_grants (customer_id, rule_id, year)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		customerID, ruleID, year,
	)

	if err != nil {
		return false, fmt.Errorf("repository: failed to claim birthday grant for customer %d: %w", customerID, err)
	}

	return result.RowsAffected() == 1, nil
}
