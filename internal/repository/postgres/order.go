package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, number, customer_id, status, created_by, subtotal, discount_percentage,
	discount_amount, loyalty_discount_amount, redeemed_points, total_amount, notes,
	completed_at, delivered_at, created_at, updated_at`

const lineColumns = `id, order_id, service_id, pieces, price_per_dozen, unit_price, line_total`

// OrderRepository реализует domain.OrderRepository
type OrderRepository struct {
	db DBTX
}

// NewOrderRepository создает новый OrderRepository
func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// NextOrderNumber выделяет следующий номер заказа за день
func (r *OrderRepository) NextOrderNumber(ctx context.Context, day time.Time) (string, error) {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	var seq int
	err := r.db.QueryRow(ctx,
		`INSERT INTO order_number_counters (day, last_seq)
		 VALUES ($1, 1)
		 ON CONFLICT (day) DO UPDATE SET last_seq = order_number_counters.last_seq + 1
		 RETURNING last_seq`,
		day,
	).Scan(&seq)

	if err != nil {
		return "", fmt.Errorf("repository: failed to allocate order number for %s: %w", day.Format("2006-01-02"), err)
	}

	return domain.FormatOrderNumber(day, seq), nil
}

// CreateOrder сохраняет новый заказ с нулевыми суммами
func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO orders (number, customer_id, status, created_by, discount_percentage, notes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		order.Number, order.CustomerID, order.Status, order.CreatedBy, order.DiscountPercentage, order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)

	if err != nil {
		if isPgCode(err, codeCheckViolation) {
			return domain.ErrInvalidDiscount
		}
		return fmt.Errorf("repository: failed to create order %q: %w", order.Number, err)
	}

	return nil
}

// GetOrder получает заказ по идентификатору
func (r *OrderRepository) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to get order %d: %w", id, err)
	}

	return order, nil
}

// GetOrderForUpdate получает заказ с блокировкой строки до конца транзакции
func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to lock order %d: %w", id, err)
	}

	return order, nil
}

// UpdateTotals сохраняет денежные поля заказа
func (r *OrderRepository) UpdateTotals(ctx context.Context, order *domain.Order) error {
	result, err := r.db.Exec(ctx,
		`UPDATE orders
		 SET subtotal = $2, discount_percentage = $3, discount_amount = $4,
		     loyalty_discount_amount = $5, redeemed_points = $6, total_amount = $7, updated_at = NOW()
		 WHERE id = $1`,
		order.ID, order.Subtotal, order.DiscountPercentage, order.DiscountAmount,
		order.LoyaltyDiscountAmount, order.RedeemedPoints, order.Total,
	)

	if err != nil {
		if isPgCode(err, codeCheckViolation) {
			return fmt.Errorf("repository: order %d totals violate constraints: %w", order.ID, domain.ErrNegativeTotal)
		}
		return fmt.Errorf("repository: failed to update order %d totals: %w", order.ID, err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

// UpdateStatus сохраняет статус и отметки времени заказа
func (r *OrderRepository) UpdateStatus(ctx context.Context, order *domain.Order) error {
	result, err := r.db.Exec(ctx,
		`UPDATE orders
		 SET status = $2, completed_at = $3, delivered_at = $4, updated_at = $5
		 WHERE id = $1`,
		order.ID, order.Status, order.CompletedAt, order.DeliveredAt, order.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("repository: failed to update order %d status: %w", order.ID, err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

// AddLine сохраняет позицию заказа
func (r *OrderRepository) AddLine(ctx context.Context, line *domain.OrderLine) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO order_lines (order_id, service_id, pieces, price_per_dozen, unit_price, line_total)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		line.OrderID, line.ServiceID, line.Pieces, line.PricePerDozen, line.UnitPrice, line.LineTotal,
	).Scan(&line.ID)

	if err != nil {
		return fmt.Errorf("repository: failed to add line to order %d: %w", line.OrderID, err)
	}

	return nil
}

// UpdateLine сохраняет новое количество и сумму позиции
func (r *OrderRepository) UpdateLine(ctx context.Context, line *domain.OrderLine) error {
	result, err := r.db.Exec(ctx,
		`UPDATE order_lines SET pieces = $3, line_total = $4 WHERE id = $1 AND order_id = $2`,
		line.ID, line.OrderID, line.Pieces, line.LineTotal,
	)

	if err != nil {
		return fmt.Errorf("repository: failed to update line %d: %w", line.ID, err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrLineNotFound
	}

	return nil
}

// GetLines получает позиции заказа
func (r *OrderRepository) GetLines(ctx context.Context, orderID int64) ([]*domain.OrderLine, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+lineColumns+` FROM order_lines WHERE order_id = $1 ORDER BY id`,
		orderID,
	)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to get lines for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var lines []*domain.OrderLine
	for rows.Next() {
		line := &domain.OrderLine{}
		err := rows.Scan(&line.ID, &line.OrderID, &line.ServiceID, &line.Pieces,
			&line.PricePerDozen, &line.UnitPrice, &line.LineTotal)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order lines: %w", err)
	}

	return lines, nil
}

// AddStatusChange добавляет запись в историю статусов
func (r *OrderRepository) AddStatusChange(ctx context.Context, change *domain.StatusChange) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO order_status_history (order_id, old_status, new_status, changed_by, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		change.OrderID, change.OldStatus, change.NewStatus, change.ChangedBy, change.Notes, change.CreatedAt,
	).Scan(&change.ID)

	if err != nil {
		return fmt.Errorf("repository: failed to record status change for order %d: %w", change.OrderID, err)
	}

	return nil
}

// GetStatusHistory получает историю статусов заказа
func (r *OrderRepository) GetStatusHistory(ctx context.Context, orderID int64) ([]*domain.StatusChange, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, order_id, old_status, new_status, changed_by, notes, created_at
		 FROM order_status_history
		 WHERE order_id = $1
		 ORDER BY created_at, id`,
		orderID,
	)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to get status history for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var history []*domain.StatusChange
	for rows.Next() {
		change := &domain.StatusChange{}
		err := rows.Scan(&change.ID, &change.OrderID, &change.OldStatus, &change.NewStatus,
			&change.ChangedBy, &change.Notes, &change.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan status change: %w", err)
		}
		history = append(history, change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating status history: %w", err)
	}

	return history, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID, &order.Number, &order.CustomerID, &order.Status, &order.CreatedBy,
		&order.Subtotal, &order.DiscountPercentage, &order.DiscountAmount,
		&order.LoyaltyDiscountAmount, &order.RedeemedPoints, &order.Total, &order.Notes,
		&order.CompletedAt, &order.DeliveredAt, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}
