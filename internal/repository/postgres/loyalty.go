package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, customer_id, points_balance, tier, tier_expiry, created_at, updated_at`

// LoyaltyRepository реализует domain.LoyaltyRepository
type LoyaltyRepository struct {
	db DBTX
}

// NewLoyaltyRepository создает новый LoyaltyRepository
func NewLoyaltyRepository(db DBTX) *LoyaltyRepository {
	return &LoyaltyRepository{db: db}
}

// GetAccount получает счет клиента без блокировки
func (r *LoyaltyRepository) GetAccount(ctx context.Context, customerID int64) (*domain.LoyaltyAccount, error) {
	account, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM loyalty_accounts WHERE customer_id = $1`, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoLoyaltyAccount
		}
		return nil, fmt.Errorf("repository: failed to get loyalty account of customer %d: %w", customerID, err)
	}

	return account, nil
}

// LockAccount блокирует счет клиента до конца транзакции.
// Должен вызываться внутри транзакции.
func (r *LoyaltyRepository) LockAccount(ctx context.Context, customerID int64) (*domain.LoyaltyAccount, error) {
	if err := r.advisoryLock(ctx, customerID); err != nil {
		return nil, err
	}

	account, err := r.selectForUpdate(ctx, customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoLoyaltyAccount
		}
		return nil, fmt.Errorf("repository: failed to lock loyalty account of customer %d: %w", customerID, err)
	}

	return account, nil
}

// LockOrCreateAccount блокирует счет клиента, создавая его при отсутствии
func (r *LoyaltyRepository) LockOrCreateAccount(ctx context.Context, customerID int64) (*domain.LoyaltyAccount, error) {
	if err := r.advisoryLock(ctx, customerID); err != nil {
		return nil, err
	}

	account, err := r.selectForUpdate(ctx, customerID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("repository: failed to lock loyalty account of customer %d: %w", customerID, err)
	}

	// Advisory lock гарантирует, что счет создается один раз
	account, err = scanAccount(r.db.QueryRow(ctx,
		`INSERT INTO loyalty_accounts (customer_id, tier)
		 VALUES ($1, $2)
		 RETURNING `+accountColumns,
		customerID, domain.DefaultTier,
	))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to create loyalty account for customer %d: %w", customerID, err)
	}

	return account, nil
}

// UpdateBalance сохраняет баланс счета
func (r *LoyaltyRepository) UpdateBalance(ctx context.Context, account *domain.LoyaltyAccount) error {
	result, err := r.db.Exec(ctx,
		`UPDATE loyalty_accounts SET points_balance = $2, updated_at = NOW() WHERE id = $1`,
		account.ID, account.PointsBalance,
	)

	if err != nil {
		if isPgCode(err, codeCheckViolation) {
			return fmt.Errorf("repository: account %d balance would become negative: %w", account.ID, domain.ErrInsufficientPoints)
		}
		return fmt.Errorf("repository: failed to update balance of account %d: %w", account.ID, err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrNoLoyaltyAccount
	}

	return nil
}

// AppendTransaction добавляет запись в журнал баллов
func (r *LoyaltyRepository) AppendTransaction(ctx context.Context, tx *domain.LoyaltyTransaction) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO loyalty_transactions (account_id, order_id, rule_id, points_change, description)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		tx.AccountID, tx.OrderID, tx.RuleID, tx.PointsChange, tx.Description,
	).Scan(&tx.ID, &tx.CreatedAt)

	if err != nil {
		return fmt.Errorf("repository: failed to append loyalty transaction for account %d: %w", tx.AccountID, err)
	}

	return nil
}

// ListTransactions получает журнал счета, новые записи первыми
func (r *LoyaltyRepository) ListTransactions(ctx context.Context, accountID int64) ([]*domain.LoyaltyTransaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, account_id, order_id, rule_id, points_change, description, created_at
		 FROM loyalty_transactions
		 WHERE account_id = $1
		 ORDER BY created_at DESC, id DESC`,
		accountID,
	)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to list transactions of account %d: %w", accountID, err)
	}
	defer rows.Close()

	var transactions []*domain.LoyaltyTransaction
	for rows.Next() {
		tx := &domain.LoyaltyTransaction{}
		err := rows.Scan(&tx.ID, &tx.AccountID, &tx.OrderID, &tx.RuleID, &tx.PointsChange, &tx.Description, &tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan loyalty transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating loyalty transactions: %w", err)
	}

	return transactions, nil
}

// advisoryLock сериализует операции со счетом клиента.
// Блокировка снимается при завершении транзакции.
func (r *LoyaltyRepository) advisoryLock(ctx context.Context, customerID int64) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, customerID)
	if err != nil {
		return fmt.Errorf("repository: failed to acquire lock for customer %d: %w", customerID, err)
	}
	return nil
}

func (r *LoyaltyRepository) selectForUpdate(ctx context.Context, customerID int64) (*domain.LoyaltyAccount, error) {
	return scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM loyalty_accounts WHERE customer_id = $1 FOR UPDATE`, customerID))
}

func scanAccount(row rowScanner) (*domain.LoyaltyAccount, error) {
	account := &domain.LoyaltyAccount{}
	err := row.Scan(&account.ID, &account.CustomerID, &account.PointsBalance, &account.Tier,
		&account.TierExpiry, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return account, nil
}
