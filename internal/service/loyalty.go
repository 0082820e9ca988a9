package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/avc/laundry-loyalty/internal/metrics"
	"go.uber.org/zap"
)

// LoyaltySummary состояние программы лояльности клиента
type LoyaltySummary struct {
	Customer *domain.Customer `json:"customer"`
	// Account nil, пока клиенту ничего не начислено
	Account      *domain.LoyaltyAccount       `json:"account"`
	Transactions []*domain.LoyaltyTransaction `json:"transactions"`
	Stats        domain.CustomerStats         `json:"stats"`
}

// LoyaltyService обслуживает счета баллов клиентов
type LoyaltyService struct {
	store   domain.Store
	applier *RewardApplier
	stats   *StatsProvider
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewLoyaltyService создает новый LoyaltyService
func NewLoyaltyService(store domain.Store, applier *RewardApplier, stats *StatsProvider, m *metrics.Metrics, logger *zap.Logger) *LoyaltyService {
	return &LoyaltyService{
		store:   store,
		applier: applier,
		stats:   stats,
		metrics: m,
		logger:  logger,
	}
}

// Summary возвращает счет, журнал и агрегаты клиента
func (s *LoyaltyService) Summary(ctx context.Context, customerID int64) (*LoyaltySummary, error) {
	customer, err := s.store.Customers().GetCustomer(ctx, customerID)
	if err != nil {
		return nil, s.wrap(err, "failed to get customer %d", customerID)
	}

	summary := &LoyaltySummary{Customer: customer}

	account, err := s.store.Loyalty().GetAccount(ctx, customerID)
	switch {
	case errors.Is(err, domain.ErrNoLoyaltyAccount):
	case err != nil:
		return nil, s.wrap(err, "failed to get account of customer %d", customerID)
	default:
		summary.Account = account
		summary.Transactions, err = s.store.Loyalty().ListTransactions(ctx, account.ID)
		if err != nil {
			return nil, s.wrap(err, "failed to get ledger of customer %d", customerID)
		}
	}

	summary.Stats, err = s.stats.Stats(ctx, s.store, customerID, 0)
	if err != nil {
		return nil, s.wrap(err, "failed to get stats of customer %d", customerID)
	}

	return summary, nil
}

// AdjustPoints вручную меняет баланс клиента на delta баллов с указанием причины.
// Начисление создает счет при необходимости, списание требует достаточного баланса.
func (s *LoyaltyService) AdjustPoints(ctx context.Context, customerID, delta int64, reason string) (*domain.LoyaltyTransaction, error) {
	reason = strings.TrimSpace(reason)
	if delta == 0 {
		return nil, fmt.Errorf("%w: adjustment must change the balance", domain.ErrInvalidRequest)
	}
	// -MinInt64 не представимо в int64
	if delta == math.MinInt64 {
		return nil, fmt.Errorf("%w: adjustment %d is out of range", domain.ErrInvalidRequest, delta)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: adjustment reason is required", domain.ErrInvalidRequest)
	}

	if _, err := s.store.Customers().GetCustomer(ctx, customerID); err != nil {
		return nil, s.wrap(err, "failed to get customer %d", customerID)
	}

	label := fmt.Sprintf("Manual adjustment (%s)", reason)

	var (
		entry *domain.LoyaltyTransaction
		err   error
	)
	if delta > 0 {
		entry, err = s.applier.ApplyReward(ctx, s.store, customerID,
			domain.RewardSpec{Kind: domain.RewardPoints, Amount: delta},
			domain.RewardSource{Label: label},
		)
		if err == nil {
			s.metrics.RewardGranted(domain.TriggerManual, delta)
		}
	} else {
		entry, err = s.debit(ctx, customerID, -delta, label)
	}
	if err != nil {
		return nil, s.wrap(err, "failed to adjust points of customer %d by %d", customerID, delta)
	}

	s.logger.Info("loyalty points adjusted",
		zap.Int64("customer_id", customerID),
		zap.Int64("delta", delta),
		zap.String("reason", reason),
	)
	return entry, nil
}

// VerifyLedger сверяет баланс счета с суммой записей журнала
func (s *LoyaltyService) VerifyLedger(ctx context.Context, customerID int64) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		account, err := tx.Loyalty().LockAccount(ctx, customerID)
		if err != nil {
			return err
		}

		transactions, err := tx.Loyalty().ListTransactions(ctx, account.ID)
		if err != nil {
			return err
		}

		var sum int64
		for _, entry := range transactions {
			sum += entry.PointsChange
		}
		if sum != account.PointsBalance {
			return fmt.Errorf("%w: account %d balance %d, ledger sum %d",
				domain.ErrLedgerMismatch, account.ID, account.PointsBalance, sum)
		}
		return nil
	})
	if err != nil {
		return s.wrap(err, "failed to verify ledger of customer %d", customerID)
	}

	return nil
}

func (s *LoyaltyService) debit(ctx context.Context, customerID, points int64, label string) (*domain.LoyaltyTransaction, error) {
	var entry *domain.LoyaltyTransaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		account, err := tx.Loyalty().LockAccount(ctx, customerID)
		if err != nil {
			return err
		}
		if account.PointsBalance < points {
			return &domain.InsufficientPointsError{Available: account.PointsBalance, Requested: points}
		}

		account.PointsBalance -= points
		if err := tx.Loyalty().UpdateBalance(ctx, account); err != nil {
			return err
		}

		entry = &domain.LoyaltyTransaction{
			AccountID:    account.ID,
			PointsChange: -points,
			Description:  fmt.Sprintf("%s: Deducted %d points", label, points),
		}
		return tx.Loyalty().AppendTransaction(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func (s *LoyaltyService) wrap(err error, format string, args ...any) error {
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("loyalty service: "+format+": %w", append(args, err)...)
}
