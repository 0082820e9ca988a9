package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avc/laundry-loyalty/internal/domain"
)

type loyaltyRepository struct {
	db *db
}

func (r *loyaltyRepository) GetAccount(_ context.Context, customerID int64) (*domain.LoyaltyAccount, error) {
	var account *domain.LoyaltyAccount
	err := r.db.run(func(st *state) error {
		stored, ok := st.accounts[customerID]
		if !ok {
			return domain.ErrNoLoyaltyAccount
		}
		account = copyAccount(stored)
		return nil
	})
	return account, err
}

// LockAccount совпадает с GetAccount: транзакция держит блокировку всего хранилища
func (r *loyaltyRepository) LockAccount(ctx context.Context, customerID int64) (*domain.LoyaltyAccount, error) {
	return r.GetAccount(ctx, customerID)
}

func (r *loyaltyRepository) LockOrCreateAccount(_ context.Context, customerID int64) (*domain.LoyaltyAccount, error) {
	var account *domain.LoyaltyAccount
	err := r.db.run(func(st *state) error {
		stored, ok := st.accounts[customerID]
		if !ok {
			if _, exists := st.customers[customerID]; !exists {
				return fmt.Errorf("memory: loyalty account for unknown customer %d: %w", customerID, domain.ErrCustomerNotFound)
			}
			now := r.db.clock.Now()
			stored = &domain.LoyaltyAccount{
				ID:         st.nextID(),
				CustomerID: customerID,
				Tier:       domain.DefaultTier,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			st.accounts[customerID] = stored
		}
		account = copyAccount(stored)
		return nil
	})
	return account, err
}

func (r *loyaltyRepository) UpdateBalance(_ context.Context, account *domain.LoyaltyAccount) error {
	if account.PointsBalance < 0 {
		return fmt.Errorf("memory: account %d balance would become negative: %w", account.ID, domain.ErrInsufficientPoints)
	}

	return r.db.run(func(st *state) error {
		for _, stored := range st.accounts {
			if stored.ID == account.ID {
				stored.PointsBalance = account.PointsBalance
				stored.UpdatedAt = r.db.clock.Now()
				return nil
			}
		}
		return domain.ErrNoLoyaltyAccount
	})
}

func (r *loyaltyRepository) AppendTransaction(_ context.Context, tx *domain.LoyaltyTransaction) error {
	if tx.PointsChange == 0 {
		return fmt.Errorf("memory: loyalty transaction must change the balance: %w", domain.ErrInvalidRequest)
	}

	return r.db.run(func(st *state) error {
		tx.ID = st.nextID()
		tx.CreatedAt = r.db.clock.Now()
		st.transactions = append(st.transactions, copyTransaction(tx))
		return nil
	})
}

func (r *loyaltyRepository) ListTransactions(_ context.Context, accountID int64) ([]*domain.LoyaltyTransaction, error) {
	var transactions []*domain.LoyaltyTransaction
	err := r.db.run(func(st *state) error {
		for i := len(st.transactions) - 1; i >= 0; i-- {
			if st.transactions[i].AccountID == accountID {
				transactions = append(transactions, copyTransaction(st.transactions[i]))
			}
		}
		return nil
	})
	return transactions, err
}

type ruleRepository struct {
	db *db
}

func (r *ruleRepository) ListRules(_ context.Context, activeOnly bool) ([]*domain.LoyaltyRule, error) {
	var rules []*domain.LoyaltyRule
	err := r.db.run(func(st *state) error {
		for _, stored := range st.rules {
			if activeOnly && !stored.IsActive {
				continue
			}
			rule := *stored
			rules = append(rules, &rule)
		}
		return nil
	})

	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, err
}

func (r *ruleRepository) GetRule(_ context.Context, id int64) (*domain.LoyaltyRule, error) {
	var rule *domain.LoyaltyRule
	err := r.db.run(func(st *state) error {
		stored, ok := st.rules[id]
		if !ok {
			return domain.ErrRuleNotFound
		}
		cp := *stored
		rule = &cp
		return nil
	})
	return rule, err
}

func (r *ruleRepository) GetRuleByName(_ context.Context, name string) (*domain.LoyaltyRule, error) {
	var rule *domain.LoyaltyRule
	err := r.db.run(func(st *state) error {
		for _, stored := range st.rules {
			if stored.Name == name {
				cp := *stored
				rule = &cp
				return nil
			}
		}
		return domain.ErrRuleNotFound
	})
	return rule, err
}

func (r *ruleRepository) CreateRule(_ context.Context, rule *domain.LoyaltyRule) error {
	return r.db.run(func(st *state) error {
		for _, stored := range st.rules {
			if strings.EqualFold(stored.Name, rule.Name) {
				return domain.ErrRuleExists
			}
		}
		now := r.db.clock.Now()
		rule.ID = st.nextID()
		rule.CreatedAt = now
		rule.UpdatedAt = now
		stored := *rule
		st.rules[rule.ID] = &stored
		return nil
	})
}

func (r *ruleRepository) SetRuleActive(_ context.Context, id int64, active bool) error {
	return r.db.run(func(st *state) error {
		stored, ok := st.rules[id]
		if !ok {
			return domain.ErrRuleNotFound
		}
		stored.IsActive = active
		stored.UpdatedAt = r.db.clock.Now()
		return nil
	})
}

type referralRepository struct {
	db *db
}

func (r *referralRepository) CreateReferral(_ context.Context, referral *domain.Referral) error {
	if referral.ReferrerID == referral.RefereeID {
		return fmt.Errorf("memory: customer %d cannot refer themselves: %w", referral.RefereeID, domain.ErrInvalidRequest)
	}

	return r.db.run(func(st *state) error {
		for _, stored := range st.referrals {
			if stored.Code == referral.Code || stored.RefereeID == referral.RefereeID {
				return domain.ErrReferralExists
			}
		}
		referral.ID = st.nextID()
		referral.CreatedAt = r.db.clock.Now()
		st.referrals[referral.ID] = copyReferral(referral)
		return nil
	})
}

func (r *referralRepository) FindPendingForReferee(_ context.Context, refereeID int64) (*domain.Referral, error) {
	var found *domain.Referral
	err := r.db.run(func(st *state) error {
		for _, stored := range st.referrals {
			if stored.RefereeID != refereeID || stored.RewardGranted {
				continue
			}
			if found == nil || stored.ID < found.ID {
				found = copyReferral(stored)
			}
		}
		if found == nil {
			return domain.ErrReferralNotFound
		}
		return nil
	})
	return found, err
}

func (r *referralRepository) MarkRewarded(_ context.Context, id, orderID int64) error {
	return r.db.run(func(st *state) error {
		stored, ok := st.referrals[id]
		if !ok || stored.RewardGranted {
			return domain.ErrReferralAlreadyRewarded
		}
		stored.RewardGranted = true
		stored.OrderID = &orderID
		return nil
	})
}

type rewardEventRepository struct {
	db *db
}

func (r *rewardEventRepository) EnqueueRewardEvent(_ context.Context, event *domain.RewardEvent) (bool, error) {
	var created bool
	err := r.db.run(func(st *state) error {
		if _, exists := st.rewardEvents[event.OrderID]; exists {
			return nil
		}
		st.rewardEvents[event.OrderID] = copyRewardEvent(event)
		created = true
		return nil
	})
	return created, err
}

func (r *rewardEventRepository) ClaimRewardEvent(_ context.Context, orderID int64, at time.Time) (bool, error) {
	var claimed bool
	err := r.db.run(func(st *state) error {
		stored, ok := st.rewardEvents[orderID]
		if !ok || stored.ProcessedAt != nil {
			return nil
		}
		stored.ProcessedAt = &at
		claimed = true
		return nil
	})
	return claimed, err
}

func (r *rewardEventRepository) ListPendingRewardEvents(_ context.Context, limit int) ([]*domain.RewardEvent, error) {
	var events []*domain.RewardEvent
	err := r.db.run(func(st *state) error {
		for _, stored := range st.rewardEvents {
			if stored.ProcessedAt == nil {
				events = append(events, copyRewardEvent(stored))
			}
		}
		return nil
	})

	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].OrderID < events[j].OrderID
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, err
}

func (r *rewardEventRepository) ClaimBirthdayGrant(_ context.Context, customerID, ruleID int64, year int) (bool, error) {
	var granted bool
	err := r.db.run(func(st *state) error {
		key := birthdayKey{customerID: customerID, ruleID: ruleID, year: year}
		if _, exists := st.birthdayGrants[key]; exists {
			return nil
		}
		st.birthdayGrants[key] = struct{}{}
		granted = true
		return nil
	})
	return granted, err
}
