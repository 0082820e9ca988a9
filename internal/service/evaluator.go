package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avc/laundry-loyalty/internal/clock"
	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/avc/laundry-loyalty/internal/metrics"
	"go.uber.org/zap"
)

// RuleEvaluator проверяет активные правила лояльности для заказа
type RuleEvaluator struct {
	store   domain.Store
	stats   *StatsProvider
	applier *RewardApplier
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRuleEvaluator создает новый RuleEvaluator
func NewRuleEvaluator(store domain.Store, stats *StatsProvider, applier *RewardApplier, clk clock.Clock, m *metrics.Metrics, logger *zap.Logger) *RuleEvaluator {
	return &RuleEvaluator{
		store:   store,
		stats:   stats,
		applier: applier,
		clock:   clk,
		metrics: m,
		logger:  logger,
	}
}

// ProcessRewardEvent захватывает событие начисления по заказу и проверяет правила
// в той же транзакции. Повторный вызов возвращает domain.ErrRewardEventProcessed.
func (e *RuleEvaluator) ProcessRewardEvent(ctx context.Context, orderID int64) ([]domain.RewardOutcome, error) {
	started := e.clock.Now()

	var outcomes []domain.RewardOutcome
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		claimed, err := tx.RewardEvents().ClaimRewardEvent(ctx, orderID, e.clock.Now())
		if err != nil {
			return err
		}
		if !claimed {
			return domain.ErrRewardEventProcessed
		}

		order, err := tx.Orders().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		outcomes, err = e.EvaluateRulesForOrder(ctx, tx, order)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrRewardEventProcessed) {
			return nil, err
		}
		return nil, fmt.Errorf("rule evaluator: failed to process reward event for order %d: %w", orderID, err)
	}

	e.metrics.ObserveRewardEvent(e.clock.Now().Sub(started))
	for _, outcome := range outcomes {
		e.metrics.RewardGranted(outcome.Trigger, outcome.Points)
		e.logger.Info("loyalty reward granted",
			zap.Int64("order_id", orderID),
			zap.Int64("rule_id", outcome.RuleID),
			zap.String("trigger", string(outcome.Trigger)),
			zap.Int64("customer_id", outcome.CustomerID),
			zap.Int64("points", outcome.Points),
		)
	}

	return outcomes, nil
}

// EvaluateRulesForOrder проверяет все активные правила для заказа, впервые достигшего
// вознаграждаемого статуса, и начисляет награды сработавших правил.
// Должен вызываться один раз на событие, поэтому используется через ProcessRewardEvent.
func (e *RuleEvaluator) EvaluateRulesForOrder(ctx context.Context, store domain.Store, order *domain.Order) ([]domain.RewardOutcome, error) {
	if !order.Status.IsRewarded() {
		return nil, fmt.Errorf("%w: order %d is %s, rules are evaluated for completed or delivered orders",
			domain.ErrInvalidRequest, order.ID, order.Status)
	}

	rules, err := store.Rules().ListRules(ctx, true)
	if err != nil {
		return nil, err
	}

	eval := &evaluation{
		evaluator: e,
		store:     store,
		order:     order,
		stats:     make(map[int]domain.CustomerStats),
	}

	var outcomes []domain.RewardOutcome
	for _, rule := range rules {
		if !rule.TriggerType().PerOrder() {
			continue
		}

		fired, err := eval.apply(ctx, rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d %q: %w", rule.ID, rule.Name, err)
		}
		outcomes = append(outcomes, fired...)
	}

	return outcomes, nil
}

// evaluation состояние проверки правил для одного заказа
type evaluation struct {
	evaluator *RuleEvaluator
	store     domain.Store
	order     *domain.Order
	stats     map[int]domain.CustomerStats
}

func (ev *evaluation) customerStats(ctx context.Context, windowDays int) (domain.CustomerStats, error) {
	if stats, ok := ev.stats[windowDays]; ok {
		return stats, nil
	}
	stats, err := ev.evaluator.stats.Refresh(ctx, ev.store, ev.order.CustomerID, windowDays)
	if err != nil {
		return domain.CustomerStats{}, err
	}
	ev.stats[windowDays] = stats
	return stats, nil
}

func (ev *evaluation) apply(ctx context.Context, rule *domain.LoyaltyRule) ([]domain.RewardOutcome, error) {
	switch trigger := rule.Trigger.(type) {
	case domain.OrderCountTrigger:
		stats, err := ev.customerStats(ctx, 0)
		if err != nil {
			return nil, err
		}
		if stats.OrderCount < trigger.Threshold {
			return nil, nil
		}

	case domain.FirstOrderTrigger:
		stats, err := ev.customerStats(ctx, 0)
		if err != nil {
			return nil, err
		}
		if stats.OrderCount != 1 {
			return nil, nil
		}

	case domain.OrderFrequencyTrigger:
		stats, err := ev.customerStats(ctx, trigger.Days)
		if err != nil {
			return nil, err
		}
		if stats.OrderCount < trigger.Orders {
			return nil, nil
		}

	case domain.SpendThresholdTrigger:
		stats, err := ev.customerStats(ctx, trigger.WindowDays)
		if err != nil {
			return nil, err
		}
		if stats.TotalSpent.LessThan(trigger.Amount) {
			return nil, nil
		}

	case domain.ReferralTrigger:
		return ev.applyReferral(ctx, rule, trigger)

	default:
		return nil, nil
	}

	outcome, err := ev.credit(ctx, rule, ev.order.CustomerID)
	if err != nil {
		return nil, err
	}
	return []domain.RewardOutcome{outcome}, nil
}

// applyReferral отмечает приглашение выплаченным до начисления, поэтому награда
// за одно приглашение срабатывает не более одного раза
func (ev *evaluation) applyReferral(ctx context.Context, rule *domain.LoyaltyRule, trigger domain.ReferralTrigger) ([]domain.RewardOutcome, error) {
	if ev.order.Total.LessThan(trigger.MinimumOrderValue) {
		return nil, nil
	}

	referral, err := ev.store.Referrals().FindPendingForReferee(ctx, ev.order.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrReferralNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if err := ev.store.Referrals().MarkRewarded(ctx, referral.ID, ev.order.ID); err != nil {
		if errors.Is(err, domain.ErrReferralAlreadyRewarded) {
			return nil, nil
		}
		return nil, err
	}

	var outcomes []domain.RewardOutcome
	if rule.Reward.CreditsReferee() {
		outcome, err := ev.credit(ctx, rule, referral.RefereeID)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	if rule.Reward.CreditsReferrer() {
		outcome, err := ev.credit(ctx, rule, referral.ReferrerID)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

func (ev *evaluation) credit(ctx context.Context, rule *domain.LoyaltyRule, customerID int64) (domain.RewardOutcome, error) {
	orderID := ev.order.ID
	ruleID := rule.ID

	entry, err := ev.evaluator.applier.ApplyReward(ctx, ev.store, customerID, rule.Reward, domain.RewardSource{
		OrderID: &orderID,
		RuleID:  &ruleID,
		Label:   rule.Name,
	})
	if err != nil {
		return domain.RewardOutcome{}, err
	}

	return domain.RewardOutcome{
		RuleID:        rule.ID,
		RuleName:      rule.Name,
		Trigger:       rule.TriggerType(),
		CustomerID:    customerID,
		Points:        entry.PointsChange,
		TransactionID: entry.ID,
	}, nil
}
