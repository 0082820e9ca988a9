package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/avc/laundry-loyalty/internal/cache"
	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/avc/laundry-loyalty/internal/pricing"
	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
)

type settlementContext struct {
	env *testEnv

	service  *domain.Service
	customer *domain.Customer
	referrer *domain.Customer
	order    *domain.Order

	unitPrice decimal.Decimal
	lineTotal decimal.Decimal

	maxPoints  int64
	transition *TransitionResult
	lastErr    error
}

func (c *settlementContext) reset() {
	*c = settlementContext{env: buildTestEnv(cache.NoopStatsCache{})}
}

func (c *settlementContext) aServicePricedAtPerDozen(price string) error {
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	c.service = c.env.store.AddService(&domain.Service{Name: "Service " + price, PricePerDozen: amount, IsActive: true})
	return nil
}

func (c *settlementContext) iPricePiecesOfTheService(pieces int) error {
	calculator := pricing.NewCalculator(c.env.settings)
	c.unitPrice = calculator.UnitPrice(c.service.PricePerDozen)
	c.lineTotal = calculator.LineTotal(c.service.PricePerDozen, pieces)
	return nil
}

func (c *settlementContext) theUnitPriceIs(expected string) error {
	return expectAmount("unit price", expected, c.unitPrice)
}

func (c *settlementContext) theLineTotalIs(expected string) error {
	return expectAmount("line total", expected, c.lineTotal)
}

func (c *settlementContext) aCustomerWithLoyaltyPoints(balance int64) error {
	c.customer = c.env.addCustomer("Customer")
	_, err := c.env.loyalty.AdjustPoints(context.Background(), c.customer.ID, balance, "opening balance")
	return err
}

func (c *settlementContext) aCustomerWithNoLoyaltyAccount() error {
	c.customer = c.env.addCustomer("Customer")
	return nil
}

func (c *settlementContext) theCustomerWasReferredByAnotherCustomer() error {
	c.referrer = c.env.addCustomer("Referrer")
	_, err := c.env.referrals.CreateReferral(context.Background(), c.referrer.ID, c.customer.ID)
	return err
}

func (c *settlementContext) anActiveRuleWorthPoints(trigger, name string, amount int64) error {
	return c.createRule(trigger, name, map[string]any{"type": "POINTS", "amount": amount})
}

func (c *settlementContext) anActiveRuleWorthPointsFor(trigger, name string, amount int64, target string) error {
	return c.createRule(trigger, name, map[string]any{"type": "POINTS", "amount": amount, "target": target})
}

func (c *settlementContext) createRule(trigger, name string, reward map[string]any) error {
	raw, err := json.Marshal(reward)
	if err != nil {
		return err
	}
	_, err = c.env.rules.CreateRule(context.Background(), CreateRuleRequest{
		Name:        name,
		TriggerType: domain.TriggerType(trigger),
		Reward:      raw,
	})
	return err
}

// aPendingOrderWithASubtotalOf создает заказ из дюжины штук услуги с ценой subtotal за дюжину
func (c *settlementContext) aPendingOrderWithASubtotalOf(subtotal string) error {
	if err := c.aServicePricedAtPerDozen(subtotal); err != nil {
		return err
	}

	order, err := c.env.orders.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: c.customer.ID,
		Lines:      []LineRequest{{ServiceID: c.service.ID, Pieces: 12}},
	})
	if err != nil {
		return err
	}
	c.order = order
	return expectAmount("subtotal", subtotal, order.Subtotal)
}

func (c *settlementContext) theOrderDiscountIsSetToPercent(pct int64) error {
	order, err := c.env.orders.SetDiscountPercentage(context.Background(), c.order.ID, decimal.NewFromInt(pct))
	if err != nil {
		return err
	}
	c.order = order
	return nil
}

func (c *settlementContext) theCustomerRedeemsPointsOnTheOrder(points int64) error {
	result, err := c.env.redemption.RedeemPoints(context.Background(), c.order.ID, points)
	c.lastErr = err
	if err == nil {
		c.order = result.Order
	}
	return nil
}

func (c *settlementContext) theCustomerRedeemsTheMaximumRedeemablePoints() error {
	if c.maxPoints == 0 {
		return errors.New("no maximum redeemable points reported yet")
	}
	return c.theCustomerRedeemsPointsOnTheOrder(c.maxPoints)
}

func (c *settlementContext) theRedemptionFailsWithInsufficientPoints() error {
	if !errors.Is(c.lastErr, domain.ErrInsufficientPoints) {
		return fmt.Errorf("expected insufficient points, got %v", c.lastErr)
	}
	return nil
}

func (c *settlementContext) theRedemptionFailsBecauseTheDiscountExceedsTheOrderTotal(maxPoints int64) error {
	var exceeds *domain.DiscountExceedsOrderTotalError
	if !errors.As(c.lastErr, &exceeds) {
		return fmt.Errorf("expected discount exceeds order total, got %v", c.lastErr)
	}
	if exceeds.MaxPoints != maxPoints {
		return fmt.Errorf("expected maximum of %d points, got %d", maxPoints, exceeds.MaxPoints)
	}
	c.maxPoints = exceeds.MaxPoints
	return nil
}

func (c *settlementContext) theOrderIsMovedTo(status string) error {
	result, err := c.env.orders.TransitionStatus(context.Background(), c.order.ID, domain.OrderStatus(status), "staff", "")
	c.lastErr = err
	if err == nil {
		c.transition = result
		c.order = result.Order
	}
	return nil
}

func (c *settlementContext) theOrderIsCompleted() error {
	for _, status := range []string{"in_progress", "ready", "completed"} {
		if err := c.theOrderIsMovedTo(status); err != nil {
			return err
		}
		if c.lastErr != nil {
			return c.lastErr
		}
	}
	return nil
}

func (c *settlementContext) theTransitionIsRejectedAsInvalid() error {
	var invalid *domain.InvalidTransitionError
	if !errors.As(c.lastErr, &invalid) {
		return fmt.Errorf("expected invalid transition, got %v", c.lastErr)
	}
	return nil
}

func (c *settlementContext) theOrderHasACompletionTimestamp() error {
	if c.lastErr != nil {
		return c.lastErr
	}
	if c.order.CompletedAt == nil {
		return errors.New("completed_at is not set")
	}
	return nil
}

func (c *settlementContext) rewardsAreGranted(count int) error {
	if c.transition == nil || len(c.transition.Rewards) != count {
		return fmt.Errorf("expected %d rewards, got %+v", count, c.transition)
	}
	return nil
}

func (c *settlementContext) theRewardEventOfTheOrderIsProcessedAgain() error {
	_, c.lastErr = c.env.evaluator.ProcessRewardEvent(context.Background(), c.order.ID)
	return nil
}

func (c *settlementContext) theRewardEventIsReportedAsAlreadyProcessed() error {
	if !errors.Is(c.lastErr, domain.ErrRewardEventProcessed) {
		return fmt.Errorf("expected already processed, got %v", c.lastErr)
	}
	return nil
}

func (c *settlementContext) theCustomerHasLoyaltyPoints(expected int64) error {
	return c.expectBalance(c.customer.ID, expected)
}

func (c *settlementContext) theReferrerHasLoyaltyPoints(expected int64) error {
	return c.expectBalance(c.referrer.ID, expected)
}

func (c *settlementContext) expectBalance(customerID, expected int64) error {
	account, err := c.env.store.Loyalty().GetAccount(context.Background(), customerID)
	if err != nil {
		return err
	}
	if account.PointsBalance != expected {
		return fmt.Errorf("expected balance %d, got %d", expected, account.PointsBalance)
	}
	return nil
}

func (c *settlementContext) theReferralIsMarkedRewarded() error {
	_, err := c.env.store.Referrals().FindPendingForReferee(context.Background(), c.customer.ID)
	if !errors.Is(err, domain.ErrReferralNotFound) {
		return fmt.Errorf("expected no pending referral, got %v", err)
	}
	return nil
}

func (c *settlementContext) theLatestLedgerEntryChangesTheBalanceBy(delta int64) error {
	summary, err := c.env.loyalty.Summary(context.Background(), c.customer.ID)
	if err != nil {
		return err
	}
	if len(summary.Transactions) == 0 {
		return errors.New("ledger is empty")
	}
	if got := summary.Transactions[0].PointsChange; got != delta {
		return fmt.Errorf("expected ledger delta %d, got %d", delta, got)
	}
	return nil
}

func (c *settlementContext) theLedgerMatchesTheBalance() error {
	return c.env.loyalty.VerifyLedger(context.Background(), c.customer.ID)
}

func (c *settlementContext) theOrderDiscountAmountIs(expected string) error {
	return expectAmount("discount amount", expected, c.order.DiscountAmount)
}

func (c *settlementContext) theLoyaltyDiscountAmountIs(expected string) error {
	return expectAmount("loyalty discount amount", expected, c.order.LoyaltyDiscountAmount)
}

func (c *settlementContext) theOrderTotalIs(expected string) error {
	order, err := c.env.orders.GetOrder(context.Background(), c.order.ID)
	if err != nil {
		return err
	}
	return expectAmount("total", expected, order.Total)
}

func expectAmount(field, expected string, actual decimal.Decimal) error {
	want, err := decimal.NewFromString(expected)
	if err != nil {
		return err
	}
	if !want.Equal(actual) {
		return fmt.Errorf("expected %s %s, got %s", field, want, actual)
	}
	return nil
}

func initializeSettlementScenario(ctx *godog.ScenarioContext) {
	c := &settlementContext{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		c.reset()
		return ctx, nil
	})

	ctx.Step(`^a service priced at ([\d.]+) per dozen$`, c.aServicePricedAtPerDozen)
	ctx.Step(`^a customer with (\d+) loyalty points$`, c.aCustomerWithLoyaltyPoints)
	ctx.Step(`^a customer with no loyalty account$`, c.aCustomerWithNoLoyaltyAccount)
	ctx.Step(`^the customer was referred by another customer$`, c.theCustomerWasReferredByAnotherCustomer)
	ctx.Step(`^an active "([^"]*)" rule "([^"]*)" worth (\d+) points$`, c.anActiveRuleWorthPoints)
	ctx.Step(`^an active "([^"]*)" rule "([^"]*)" worth (\d+) points for "([^"]*)"$`, c.anActiveRuleWorthPointsFor)
	ctx.Step(`^a pending order with a subtotal of ([\d.]+)$`, c.aPendingOrderWithASubtotalOf)

	ctx.Step(`^I price (\d+) pieces of the service$`, c.iPricePiecesOfTheService)
	ctx.Step(`^the order discount is set to (\d+) percent$`, c.theOrderDiscountIsSetToPercent)
	ctx.Step(`^the customer redeems (\d+) points on the order$`, c.theCustomerRedeemsPointsOnTheOrder)
	ctx.Step(`^the customer redeems the maximum redeemable points on the order$`, c.theCustomerRedeemsTheMaximumRedeemablePoints)
	ctx.Step(`^the order is moved to "([^"]*)"$`, c.theOrderIsMovedTo)
	ctx.Step(`^the order is completed$`, c.theOrderIsCompleted)
	ctx.Step(`^the reward event of the order is processed again$`, c.theRewardEventOfTheOrderIsProcessedAgain)

	ctx.Step(`^the unit price is ([\d.]+)$`, c.theUnitPriceIs)
	ctx.Step(`^the line total is ([\d.]+)$`, c.theLineTotalIs)
	ctx.Step(`^the order discount amount is ([\d.]+)$`, c.theOrderDiscountAmountIs)
	ctx.Step(`^the loyalty discount amount is ([\d.]+)$`, c.theLoyaltyDiscountAmountIs)
	ctx.Step(`^the order total is ([\d.]+)$`, c.theOrderTotalIs)
	ctx.Step(`^the redemption fails with insufficient points$`, c.theRedemptionFailsWithInsufficientPoints)
	ctx.Step(`^the redemption fails because the discount exceeds the order total with a maximum of (\d+) points$`,
		c.theRedemptionFailsBecauseTheDiscountExceedsTheOrderTotal)
	ctx.Step(`^the transition is rejected as invalid$`, c.theTransitionIsRejectedAsInvalid)
	ctx.Step(`^the order has a completion timestamp$`, c.theOrderHasACompletionTimestamp)
	ctx.Step(`^(\d+) rewards? (?:is|are) granted$`, c.rewardsAreGranted)
	ctx.Step(`^the reward event is reported as already processed$`, c.theRewardEventIsReportedAsAlreadyProcessed)
	ctx.Step(`^the customer has (\d+) loyalty points$`, c.theCustomerHasLoyaltyPoints)
	ctx.Step(`^the referrer has (\d+) loyalty points$`, c.theReferrerHasLoyaltyPoints)
	ctx.Step(`^the referral is marked rewarded$`, c.theReferralIsMarkedRewarded)
	ctx.Step(`^the latest ledger entry changes the balance by (-?\d+)$`, c.theLatestLedgerEntryChangesTheBalanceBy)
	ctx.Step(`^the ledger matches the balance$`, c.theLedgerMatchesTheBalance)
}

func TestSettlementFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeSettlementScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
