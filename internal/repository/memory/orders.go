package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type orderRepository struct {
	db *db
}

func (r *orderRepository) NextOrderNumber(_ context.Context, day time.Time) (string, error) {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	var seq int
	err := r.db.run(func(st *state) error {
		key := day.Format("2006-01-02")
		st.counters[key]++
		seq = st.counters[key]
		return nil
	})
	if err != nil {
		return "", err
	}

	return domain.FormatOrderNumber(day, seq), nil
}

func (r *orderRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	if order.DiscountPercentage.IsNegative() || order.DiscountPercentage.GreaterThan(hundred) {
		return domain.ErrInvalidDiscount
	}

	return r.db.run(func(st *state) error {
		for _, existing := range st.orders {
			if existing.Number == order.Number {
				return fmt.Errorf("memory: order number %q already exists", order.Number)
			}
		}

		now := r.db.clock.Now()
		order.ID = st.nextID()
		order.CreatedAt = now
		order.UpdatedAt = now

		stored := copyOrder(order)
		stored.Subtotal = decimal.Zero
		stored.DiscountAmount = decimal.Zero
		stored.LoyaltyDiscountAmount = decimal.Zero
		stored.Total = decimal.Zero
		stored.RedeemedPoints = 0
		st.orders[order.ID] = stored
		return nil
	})
}

func (r *orderRepository) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	var order *domain.Order
	err := r.db.run(func(st *state) error {
		stored, ok := st.orders[id]
		if !ok {
			return domain.ErrOrderNotFound
		}
		order = copyOrder(stored)
		return nil
	})
	return order, err
}

// GetOrderForUpdate совпадает с GetOrder: транзакция держит блокировку всего хранилища
func (r *orderRepository) GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.GetOrder(ctx, id)
}

func (r *orderRepository) UpdateTotals(_ context.Context, order *domain.Order) error {
	if order.Total.IsNegative() {
		return fmt.Errorf("memory: order %d total %s: %w", order.ID, order.Total, domain.ErrNegativeTotal)
	}
	if order.RedeemedPoints < 0 {
		return fmt.Errorf("memory: order %d redeemed points must not be negative: %w", order.ID, domain.ErrInvalidRequest)
	}
	if order.DiscountPercentage.IsNegative() || order.DiscountPercentage.GreaterThan(hundred) {
		return domain.ErrInvalidDiscount
	}

	return r.db.run(func(st *state) error {
		stored, ok := st.orders[order.ID]
		if !ok {
			return domain.ErrOrderNotFound
		}
		stored.Subtotal = order.Subtotal
		stored.DiscountPercentage = order.DiscountPercentage
		stored.DiscountAmount = order.DiscountAmount
		stored.LoyaltyDiscountAmount = order.LoyaltyDiscountAmount
		stored.RedeemedPoints = order.RedeemedPoints
		stored.Total = order.Total
		stored.UpdatedAt = r.db.clock.Now()
		return nil
	})
}

func (r *orderRepository) UpdateStatus(_ context.Context, order *domain.Order) error {
	return r.db.run(func(st *state) error {
		stored, ok := st.orders[order.ID]
		if !ok {
			return domain.ErrOrderNotFound
		}
		updated := copyOrder(order)
		stored.Status = updated.Status
		stored.CompletedAt = updated.CompletedAt
		stored.DeliveredAt = updated.DeliveredAt
		stored.UpdatedAt = updated.UpdatedAt
		return nil
	})
}

func (r *orderRepository) AddLine(_ context.Context, line *domain.OrderLine) error {
	if line.Pieces <= 0 {
		return domain.ErrInvalidPieces
	}

	return r.db.run(func(st *state) error {
		if _, ok := st.orders[line.OrderID]; !ok {
			return domain.ErrOrderNotFound
		}
		if _, ok := st.services[line.ServiceID]; !ok {
			return domain.ErrServiceNotFound
		}
		line.ID = st.nextID()
		stored := *line
		st.lines[line.ID] = &stored
		return nil
	})
}

func (r *orderRepository) UpdateLine(_ context.Context, line *domain.OrderLine) error {
	if line.Pieces <= 0 {
		return domain.ErrInvalidPieces
	}

	return r.db.run(func(st *state) error {
		stored, ok := st.lines[line.ID]
		if !ok || stored.OrderID != line.OrderID {
			return domain.ErrLineNotFound
		}
		stored.Pieces = line.Pieces
		stored.LineTotal = line.LineTotal
		return nil
	})
}

func (r *orderRepository) GetLines(_ context.Context, orderID int64) ([]*domain.OrderLine, error) {
	var lines []*domain.OrderLine
	err := r.db.run(func(st *state) error {
		for _, stored := range st.lines {
			if stored.OrderID == orderID {
				line := *stored
				lines = append(lines, &line)
			}
		}
		return nil
	})

	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, err
}

func (r *orderRepository) AddStatusChange(_ context.Context, change *domain.StatusChange) error {
	return r.db.run(func(st *state) error {
		if _, ok := st.orders[change.OrderID]; !ok {
			return domain.ErrOrderNotFound
		}
		change.ID = st.nextID()
		if change.CreatedAt.IsZero() {
			change.CreatedAt = r.db.clock.Now()
		}
		stored := *change
		st.history = append(st.history, &stored)
		return nil
	})
}

func (r *orderRepository) GetStatusHistory(_ context.Context, orderID int64) ([]*domain.StatusChange, error) {
	var history []*domain.StatusChange
	err := r.db.run(func(st *state) error {
		for _, stored := range st.history {
			if stored.OrderID == orderID {
				change := *stored
				history = append(history, &change)
			}
		}
		return nil
	})
	return history, err
}

type catalogRepository struct {
	db *db
}

func (r *catalogRepository) GetService(_ context.Context, id int64) (*domain.Service, error) {
	var service *domain.Service
	err := r.db.run(func(st *state) error {
		stored, ok := st.services[id]
		if !ok {
			return domain.ErrServiceNotFound
		}
		cp := *stored
		service = &cp
		return nil
	})
	return service, err
}

type customerRepository struct {
	db *db
}

func (r *customerRepository) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	var customer *domain.Customer
	err := r.db.run(func(st *state) error {
		stored, ok := st.customers[id]
		if !ok {
			return domain.ErrCustomerNotFound
		}
		customer = copyCustomer(stored)
		return nil
	})
	return customer, err
}

// GetStats учитывает только completed и delivered заказы: незавершенные и отмененные
// заказы не считаются ни в количестве, ни в сумме.
func (r *customerRepository) GetStats(_ context.Context, customerID int64, since *time.Time) (domain.CustomerStats, error) {
	stats := domain.CustomerStats{CustomerID: customerID, TotalSpent: decimal.Zero}
	err := r.db.run(func(st *state) error {
		for _, order := range st.orders {
			if order.CustomerID != customerID || !order.Status.IsRewarded() {
				continue
			}
			if since != nil && order.CreatedAt.Before(*since) {
				continue
			}
			stats.OrderCount++
			stats.TotalSpent = stats.TotalSpent.Add(order.Total)
		}
		return nil
	})
	return stats, err
}

func (r *customerRepository) ListByBirthday(_ context.Context, month time.Month, day int) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	err := r.db.run(func(st *state) error {
		for _, stored := range st.customers {
			dob := stored.DateOfBirth
			if dob != nil && dob.Month() == month && dob.Day() == day {
				customers = append(customers, copyCustomer(stored))
			}
		}
		return nil
	})

	sort.Slice(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })
	return customers, err
}
