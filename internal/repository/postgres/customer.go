package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/jackc/pgx/v5"
)

// CatalogRepository реализует domain.CatalogRepository
type CatalogRepository struct {
	db DBTX
}

// NewCatalogRepository создает новый CatalogRepository
func NewCatalogRepository(db DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetService получает услугу по идентификатору
func (r *CatalogRepository) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	service := &domain.Service{}

	err := r.db.QueryRow(ctx,
		`SELECT id, name, price_per_dozen, is_active FROM services WHERE id = $1`,
		id,
	).Scan(&service.ID, &service.Name, &service.PricePerDozen, &service.IsActive)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrServiceNotFound
		}
		return nil, fmt.Errorf("repository: failed to get service %d: %w", id, err)
	}

	return service, nil
}

// CustomerRepository реализует domain.CustomerRepository
type CustomerRepository struct {
	db DBTX
}

// NewCustomerRepository создает новый CustomerRepository
func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

const customerColumns = `id, name, phone, COALESCE(email, ''), date_of_birth, created_at`

// GetCustomer получает клиента по идентификатору
func (r *CustomerRepository) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	customer, err := scanCustomer(r.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("repository: failed to get customer %d: %w", id, err)
	}

	return customer, nil
}

// GetStats считает завершенные заказы клиента и их сумму.
// Учитываются только completed и delivered заказы, отмененные и незавершенные не входят.
func (r *CustomerRepository) GetStats(ctx context.Context, customerID int64, since *time.Time) (domain.CustomerStats, error) {
	stats := domain.CustomerStats{CustomerID: customerID}

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
		 FROM orders
		 WHERE customer_id = $1
		   AND status IN ($2, $3)
		   AND ($4::timestamptz IS NULL OR created_at >= $4)`,
		customerID, domain.OrderStatusCompleted, domain.OrderStatusDelivered, since,
	).Scan(&stats.OrderCount, &stats.TotalSpent)

	if err != nil {
		return domain.CustomerStats{}, fmt.Errorf("repository: failed to get stats for customer %d: %w", customerID, err)
	}

	return stats, nil
}

// ListByBirthday получает клиентов с днем рождения в указанный день
func (r *CustomerRepository) ListByBirthday(ctx context.Context, month time.Month, day int) ([]*domain.Customer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+customerColumns+`
		 FROM customers
		 WHERE date_of_birth IS NOT NULL
		   AND EXTRACT(MONTH FROM date_of_birth) = $1
		   AND EXTRACT(DAY FROM date_of_birth) = $2
		 ORDER BY id`,
		int(month), day,
	)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to list birthdays for %02d-%02d: %w", int(month), day, err)
	}
	defer rows.Close()

	var customers []*domain.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan customer: %w", err)
		}
		customers = append(customers, customer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating customers: %w", err)
	}

	return customers, nil
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	customer := &domain.Customer{}
	err := row.Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.Email,
		&customer.DateOfBirth, &customer.CreatedAt)
	if err != nil {
		return nil, err
	}
	return customer, nil
}
