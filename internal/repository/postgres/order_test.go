package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderColumnNames = []string{
	"id", "number", "customer_id", "status", "created_by", "subtotal", "discount_percentage",
	"discount_amount", "loyalty_discount_amount", "redeemed_points", "total_amount", "notes",
	"completed_at", "delivered_at", "created_at", "updated_at",
}

func orderRows(now time.Time, status domain.OrderStatus) *pgxmock.Rows {
	return pgxmock.NewRows(orderColumnNames).AddRow(
		int64(7), "ORD202601150003", int64(3), status, "cashier",
		decimal.RequireFromString("1000.00"), decimal.RequireFromString("10"),
		decimal.RequireFromString("100.00"), decimal.RequireFromString("20.00"), int64(200),
		decimal.RequireFromString("880.00"), "", (*time.Time)(nil), (*time.Time)(nil), now, now,
	)
}

func TestOrderRepository_NextOrderNumber(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepository(mock)
	ctx := context.Background()
	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO order_number_counters`).
			WithArgs(day).
			WillReturnRows(pgxmock.NewRows([]string{"last_seq"}).AddRow(3))

		number, err := repo.NextOrderNumber(ctx, day.Add(15*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "ORD202601150003", number)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database error", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO order_number_counters`).
			WithArgs(day).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.NextOrderNumber(ctx, day)
		assert.Error(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_CreateOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepository(mock)
	ctx := context.Background()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		order := &domain.Order{
			Number:             "ORD202601150001",
			CustomerID:         3,
			Status:             domain.OrderStatusPending,
			CreatedBy:          "cashier",
			DiscountPercentage: decimal.NewFromInt(10),
		}

		mock.ExpectQuery(`INSERT INTO orders`).
			WithArgs(order.Number, order.CustomerID, domain.OrderStatusPending, "cashier", order.DiscountPercentage, "").
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))

		err := repo.CreateOrder(ctx, order)
		require.NoError(t, err)
		assert.Equal(t, int64(1), order.ID)
		assert.Equal(t, now, order.CreatedAt)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Discount out of range", func(t *testing.T) {
		order := &domain.Order{Number: "ORD202601150002", CustomerID: 3, Status: domain.OrderStatusPending}

		mock.ExpectQuery(`INSERT INTO orders`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: codeCheckViolation})

		err := repo.CreateOrder(ctx, order)
		assert.ErrorIs(t, err, domain.ErrInvalidDiscount)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_GetOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepository(mock)
	ctx := context.Background()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM orders WHERE id = \$1`).
			WithArgs(int64(7)).
			WillReturnRows(orderRows(now, domain.OrderStatusReady))

		order, err := repo.GetOrder(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "ORD202601150003", order.Number)
		assert.Equal(t, domain.OrderStatusReady, order.Status)
		assert.True(t, order.Total.Equal(decimal.RequireFromString("880")))
		assert.Equal(t, int64(200), order.RedeemedPoints)
		assert.Nil(t, order.CompletedAt)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM orders WHERE id = \$1`).
			WithArgs(int64(99)).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetOrder(ctx, 99)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("For update", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM orders WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(7)).
			WillReturnRows(orderRows(now, domain.OrderStatusPending))

		order, err := repo.GetOrderForUpdate(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPending, order.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_UpdateTotals(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepository(mock)
	ctx := context.Background()
	order := &domain.Order{ID: 7, Subtotal: decimal.NewFromInt(1000), Total: decimal.NewFromInt(900)}
	anyTotals := []any{
		int64(7), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		pgxmock.AnyArg(), int64(0), pgxmock.AnyArg(),
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders`).
			WithArgs(anyTotals...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdateTotals(ctx, order))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders`).
			WithArgs(anyTotals...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, repo.UpdateTotals(ctx, order), domain.ErrOrderNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Check violation", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders`).
			WithArgs(anyTotals...).
			WillReturnError(&pgconn.PgError{Code: codeCheckViolation})

		assert.ErrorIs(t, repo.UpdateTotals(ctx, order), domain.ErrNegativeTotal)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepository(mock)
	ctx := context.Background()
	now := time.Now()
	order := &domain.Order{ID: 7, Status: domain.OrderStatusCompleted, CompletedAt: &now, UpdatedAt: now}

	mock.ExpectExec(`UPDATE orders SET status = \$2`).
		WithArgs(int64(7), domain.OrderStatusCompleted, &now, (*time.Time)(nil), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateStatus(ctx, order))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Lines(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepository(mock)
	ctx := context.Background()

	t.Run("Add line", func(t *testing.T) {
		line := &domain.OrderLine{
			OrderID:       7,
			ServiceID:     2,
			Pieces:        6,
			PricePerDozen: decimal.NewFromInt(1200),
			UnitPrice:     decimal.NewFromInt(100),
			LineTotal:     decimal.NewFromInt(600),
		}

		mock.ExpectQuery(`INSERT INTO order_lines`).
			WithArgs(int64(7), int64(2), 6, line.PricePerDozen, line.UnitPrice, line.LineTotal).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

		require.NoError(t, repo.AddLine(ctx, line))
		assert.Equal(t, int64(11), line.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Update missing line", func(t *testing.T) {
		line := &domain.OrderLine{ID: 12, OrderID: 7, Pieces: 3, LineTotal: decimal.NewFromInt(300)}

		mock.ExpectExec(`UPDATE order_lines`).
			WithArgs(int64(12), int64(7), 3, line.LineTotal).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, repo.UpdateLine(ctx, line), domain.ErrLineNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Get lines", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "order_id", "service_id", "pieces", "price_per_dozen", "unit_price", "line_total"}).
			AddRow(int64(11), int64(7), int64(2), 6, "1200.00", "100.0000", "600.00").
			AddRow(int64(12), int64(7), int64(4), 12, "400.00", "33.3333", "400.00")

		mock.ExpectQuery(`SELECT (.+) FROM order_lines WHERE order_id = \$1`).
			WithArgs(int64(7)).
			WillReturnRows(rows)

		lines, err := repo.GetLines(ctx, 7)
		require.NoError(t, err)
		require.Len(t, lines, 2)
		assert.Equal(t, 12, lines[1].Pieces)
		assert.True(t, lines[1].UnitPrice.Equal(decimal.RequireFromString("33.3333")))

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_StatusHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepository(mock)
	ctx := context.Background()
	now := time.Now()

	t.Run("Add", func(t *testing.T) {
		change := &domain.StatusChange{
			OrderID:   7,
			OldStatus: domain.OrderStatusPending,
			NewStatus: domain.OrderStatusInProgress,
			ChangedBy: "cashier",
			CreatedAt: now,
		}

		mock.ExpectQuery(`INSERT INTO order_status_history`).
			WithArgs(int64(7), domain.OrderStatusPending, domain.OrderStatusInProgress, "cashier", "", now).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))

		require.NoError(t, repo.AddStatusChange(ctx, change))
		assert.Equal(t, int64(1), change.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("List", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "order_id", "old_status", "new_status", "changed_by", "notes", "created_at"}).
			AddRow(int64(1), int64(7), domain.OrderStatusPending, domain.OrderStatusInProgress, "cashier", "", now).
			AddRow(int64(2), int64(7), domain.OrderStatusInProgress, domain.OrderStatusReady, "cashier", "ironed", now)

		mock.ExpectQuery(`FROM order_status_history`).
			WithArgs(int64(7)).
			WillReturnRows(rows)

		history, err := repo.GetStatusHistory(ctx, 7)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, domain.OrderStatusReady, history[1].NewStatus)
		assert.Equal(t, "ironed", history[1].Notes)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
