package postgres

import (
	"context"
	"fmt"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX общий интерфейс пула соединений и транзакции
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// rowScanner общий интерфейс pgx.Row и pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// Коды ошибок PostgreSQL
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// Store реализует domain.Store поверх pgx
type Store struct {
	db   DBTX
	inTx bool

	orders       *OrderRepository
	catalog      *CatalogRepository
	customers    *CustomerRepository
	loyalty      *LoyaltyRepository
	rules        *RuleRepository
	referrals    *ReferralRepository
	rewardEvents *RewardEventRepository
}

// NewStore создает Store поверх пула соединений
func NewStore(db DBTX) *Store {
	return newStore(db, false)
}

func newStore(db DBTX, inTx bool) *Store {
	return &Store{
		db:           db,
		inTx:         inTx,
		orders:       NewOrderRepository(db),
		catalog:      NewCatalogRepository(db),
		customers:    NewCustomerRepository(db),
		loyalty:      NewLoyaltyRepository(db),
		rules:        NewRuleRepository(db),
		referrals:    NewReferralRepository(db),
		rewardEvents: NewRewardEventRepository(db),
	}
}

func (s *Store) Orders() domain.OrderRepository             { return s.orders }
func (s *Store) Catalog() domain.CatalogRepository          { return s.catalog }
func (s *Store) Customers() domain.CustomerRepository       { return s.customers }
func (s *Store) Loyalty() domain.LoyaltyRepository          { return s.loyalty }
func (s *Store) Rules() domain.RuleRepository               { return s.rules }
func (s *Store) Referrals() domain.ReferralRepository       { return s.referrals }
func (s *Store) RewardEvents() domain.RewardEventRepository { return s.rewardEvents }

// WithinTx выполняет fn в транзакции. Вложенный вызов использует текущую транзакцию.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback после Commit безопасен

	if err := fn(ctx, newStore(tx, true)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit transaction: %w", err)
	}

	return nil
}

// Ping проверяет доступность базы данных
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.db.(pinger); ok {
		return p.Ping(ctx)
	}
	_, err := s.db.Exec(ctx, `SELECT 1`)
	return err
}
