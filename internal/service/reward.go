package service

import (
	"context"
	"fmt"

	"github.com/avc/laundry-loyalty/internal/domain"
)

// RewardApplier начисляет награды на счета баллов
type RewardApplier struct{}

// NewRewardApplier создает новый RewardApplier
func NewRewardApplier() *RewardApplier {
	return &RewardApplier{}
}

// ApplyReward начисляет reward клиенту и добавляет запись в журнал.
// Выполняется в транзакции store; счет создается при первом начислении.
func (a *RewardApplier) ApplyReward(ctx context.Context, store domain.Store, customerID int64, reward domain.RewardSpec, source domain.RewardSource) (*domain.LoyaltyTransaction, error) {
	if err := reward.Validate(); err != nil {
		return nil, err
	}

	var entry *domain.LoyaltyTransaction
	err := store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		account, err := tx.Loyalty().LockOrCreateAccount(ctx, customerID)
		if err != nil {
			return err
		}

		account.PointsBalance += reward.Amount
		if err := tx.Loyalty().UpdateBalance(ctx, account); err != nil {
			return err
		}

		entry = &domain.LoyaltyTransaction{
			AccountID:    account.ID,
			OrderID:      source.OrderID,
			RuleID:       source.RuleID,
			PointsChange: reward.Amount,
			Description:  rewardDescription(source.Label, reward.Amount),
		}
		return tx.Loyalty().AppendTransaction(ctx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("reward applier: failed to credit %d points to customer %d: %w", reward.Amount, customerID, err)
	}

	return entry, nil
}

func rewardDescription(label string, points int64) string {
	if label == "" {
		return fmt.Sprintf("Points reward: %d points", points)
	}
	return fmt.Sprintf("%s: Points reward: %d points", label, points)
}
