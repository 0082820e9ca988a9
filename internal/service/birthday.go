package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/avc/laundry-loyalty/internal/metrics"
	"go.uber.org/zap"
)

// BirthdayService начисляет награды в день рождения клиента
type BirthdayService struct {
	store   domain.Store
	applier *RewardApplier
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewBirthdayService создает новый BirthdayService
func NewBirthdayService(store domain.Store, applier *RewardApplier, m *metrics.Metrics, logger *zap.Logger) *BirthdayService {
	return &BirthdayService{
		store:   store,
		applier: applier,
		metrics: m,
		logger:  logger,
	}
}

// GrantBirthdayRewards начисляет награды активных BIRTHDAY правил клиентам,
// у которых день рождения приходится на day. Каждое правило срабатывает для клиента
// не чаще раза в год, поэтому повторный обход за тот же день ничего не начисляет.
// Возвращает число начислений.
func (s *BirthdayService) GrantBirthdayRewards(ctx context.Context, day time.Time) (int, error) {
	rules, err := s.birthdayRules(ctx)
	if err != nil {
		return 0, err
	}
	if len(rules) == 0 {
		return 0, nil
	}

	customers, err := s.celebrants(ctx, day)
	if err != nil {
		return 0, err
	}

	granted := 0
	var errs []error
	for _, customer := range customers {
		for _, rule := range rules {
			ok, err := s.grant(ctx, customer.ID, rule, day.Year())
			if err != nil {
				s.logger.Error("failed to grant birthday reward",
					zap.Int64("customer_id", customer.ID),
					zap.Int64("rule_id", rule.ID),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}
			if ok {
				granted++
				s.metrics.RewardGranted(domain.TriggerBirthday, rule.Reward.Amount)
			}
		}
	}

	s.logger.Info("birthday sweep finished",
		zap.String("day", day.Format("2006-01-02")),
		zap.Int("customers", len(customers)),
		zap.Int("granted", granted),
	)
	return granted, errors.Join(errs...)
}

func (s *BirthdayService) birthdayRules(ctx context.Context) ([]*domain.LoyaltyRule, error) {
	all, err := s.store.Rules().ListRules(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("birthday service: failed to list rules: %w", err)
	}

	var rules []*domain.LoyaltyRule
	for _, rule := range all {
		if rule.TriggerType() == domain.TriggerBirthday {
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

// celebrants клиенты с днем рождения в day. Родившиеся 29 февраля
// празднуют 28 февраля в невисокосный год.
func (s *BirthdayService) celebrants(ctx context.Context, day time.Time) ([]*domain.Customer, error) {
	customers, err := s.store.Customers().ListByBirthday(ctx, day.Month(), day.Day())
	if err != nil {
		return nil, fmt.Errorf("birthday service: %w", err)
	}

	if day.Month() == time.February && day.Day() == 28 && !isLeapYear(day.Year()) {
		leap, err := s.store.Customers().ListByBirthday(ctx, time.February, 29)
		if err != nil {
			return nil, fmt.Errorf("birthday service: %w", err)
		}
		customers = append(customers, leap...)
	}

	return customers, nil
}

func (s *BirthdayService) grant(ctx context.Context, customerID int64, rule *domain.LoyaltyRule, year int) (bool, error) {
	granted := false
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		claimed, err := tx.RewardEvents().ClaimBirthdayGrant(ctx, customerID, rule.ID, year)
		if err != nil || !claimed {
			return err
		}

		ruleID := rule.ID
		_, err = s.applier.ApplyReward(ctx, tx, customerID, rule.Reward, domain.RewardSource{
			RuleID: &ruleID,
			Label:  rule.Name,
		})
		if err != nil {
			return err
		}

		granted = true
		return nil
	})
	return granted, err
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
