package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/avc/laundry-loyalty/internal/cache"
	"github.com/avc/laundry-loyalty/internal/clock"
	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/avc/laundry-loyalty/internal/metrics"
	"github.com/avc/laundry-loyalty/internal/pricing"
	"github.com/avc/laundry-loyalty/internal/repository/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testStart = time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	store    *memory.Store
	clock    *clock.Fake
	metrics  *metrics.Metrics
	settings pricing.Settings

	stats      *StatsProvider
	applier    *RewardApplier
	evaluator  *RuleEvaluator
	redemption *RedemptionService
	orders     *OrderService
	loyalty    *LoyaltyService
	referrals  *ReferralService
	rules      *RuleService
	catalog    *RuleCatalog
	birthdays  *BirthdayService

	// wash 120.00 за дюжину, 10.00 за штуку
	wash *domain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithCache(t, cache.NoopStatsCache{})
}

func newTestEnvWithCache(t *testing.T, statsCache StatsCache) *testEnv {
	t.Helper()
	return buildTestEnv(statsCache)
}

func buildTestEnv(statsCache StatsCache) *testEnv {
	logger, _ := zap.NewDevelopment()
	clk := clock.NewFake(testStart)
	store := memory.NewStore(clk)
	m := metrics.New(prometheus.NewRegistry())
	settings := pricing.DefaultSettings()

	env := &testEnv{
		store:    store,
		clock:    clk,
		metrics:  m,
		settings: settings,
	}
	env.stats = NewStatsProvider(statsCache, clk, logger)
	env.applier = NewRewardApplier()
	env.evaluator = NewRuleEvaluator(store, env.stats, env.applier, clk, m, logger)
	env.redemption = NewRedemptionService(store, settings, m, logger)
	env.orders = NewOrderService(store, settings, env.redemption, env.evaluator, env.stats, clk, m, logger)
	env.loyalty = NewLoyaltyService(store, env.applier, env.stats, m, logger)
	env.referrals = NewReferralService(store, logger)
	env.rules = NewRuleService(store, logger)
	env.catalog = NewRuleCatalog(store, logger)
	env.birthdays = NewBirthdayService(store, env.applier, m, logger)

	env.wash = store.AddService(&domain.Service{
		Name:          "Wash & Fold",
		PricePerDozen: decimal.RequireFromString("120.00"),
		IsActive:      true,
	})
	return env
}

func (e *testEnv) addCustomer(name string) *domain.Customer {
	return e.store.AddCustomer(&domain.Customer{Name: name, Phone: "+254700000000"})
}

func (e *testEnv) addRule(t *testing.T, name string, trigger domain.TriggerType, config, reward any) *domain.LoyaltyRule {
	t.Helper()

	rawConfig, err := json.Marshal(config)
	require.NoError(t, err)
	rawReward, err := json.Marshal(reward)
	require.NoError(t, err)

	rule, err := e.rules.CreateRule(context.Background(), CreateRuleRequest{
		Name:        name,
		TriggerType: trigger,
		Config:      rawConfig,
		Reward:      rawReward,
	})
	require.NoError(t, err)
	return rule
}

// createOrder создает заказ на pieces штук стирки
func (e *testEnv) createOrder(t *testing.T, customerID int64, pieces int) *domain.Order {
	t.Helper()

	order, err := e.orders.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: customerID,
		Lines:      []LineRequest{{ServiceID: e.wash.ID, Pieces: pieces}},
	})
	require.NoError(t, err)
	return order
}

// complete проводит заказ до статуса completed
func (e *testEnv) complete(t *testing.T, orderID int64) *TransitionResult {
	t.Helper()

	var result *TransitionResult
	for _, status := range []domain.OrderStatus{
		domain.OrderStatusInProgress,
		domain.OrderStatusReady,
		domain.OrderStatusCompleted,
	} {
		var err error
		result, err = e.orders.TransitionStatus(context.Background(), orderID, status, "staff", "")
		require.NoError(t, err)
	}
	return result
}

// completeSilently переводит заказ в completed и создает событие начисления, не обрабатывая его
func (e *testEnv) completeSilently(t *testing.T, orderID int64) {
	t.Helper()

	err := e.store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Store) error {
		order, err := tx.Orders().GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		order.Status = domain.OrderStatusReady
		if _, err := order.Transition(domain.OrderStatusCompleted, e.clock.Now()); err != nil {
			return err
		}
		if err := tx.Orders().UpdateStatus(ctx, order); err != nil {
			return err
		}
		_, err = tx.RewardEvents().EnqueueRewardEvent(ctx, &domain.RewardEvent{
			OrderID:   order.ID,
			Status:    order.Status,
			CreatedAt: e.clock.Now(),
		})
		return err
	})
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, customerID int64) int64 {
	t.Helper()

	account, err := e.store.Loyalty().GetAccount(context.Background(), customerID)
	require.NoError(t, err)
	return account.PointsBalance
}

func points(amount int64) map[string]any {
	return map[string]any{"type": "POINTS", "amount": amount}
}

func empty() map[string]any {
	return map[string]any{}
}
