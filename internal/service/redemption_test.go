package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedemptionService_RedeemPoints(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, balance int64) (*testEnv, *domain.Customer, *domain.Order) {
		env := newTestEnv(t)
		customer := env.addCustomer("Wanjiru")
		if balance > 0 {
			_, err := env.loyalty.AdjustPoints(ctx, customer.ID, balance, "opening balance")
			require.NoError(t, err)
		}
		return env, customer, env.createOrder(t, customer.ID, 12) // 120.00
	}

	t.Run("Success", func(t *testing.T) {
		env, customer, order := setup(t, 500)

		result, err := env.redemption.RedeemPoints(ctx, order.ID, 100)
		require.NoError(t, err)

		assert.True(t, result.DiscountAmount.Equal(decimal.RequireFromString("10.00")))
		assert.Equal(t, int64(100), result.RedeemedPoints)
		assert.Equal(t, int64(400), result.PointsBalance)
		assert.True(t, result.Order.Total.Equal(decimal.RequireFromString("110.00")))

		stored, err := env.orders.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.True(t, stored.LoyaltyDiscountAmount.Equal(decimal.RequireFromString("10")))
		assert.Equal(t, int64(100), stored.RedeemedPoints)
		assert.True(t, stored.Total.Equal(decimal.RequireFromString("110")))

		summary, err := env.loyalty.Summary(ctx, customer.ID)
		require.NoError(t, err)
		require.Len(t, summary.Transactions, 2)
		assert.Equal(t, int64(-100), summary.Transactions[0].PointsChange)
		assert.Equal(t, "Redeemed 100 points for a 10.00 discount", summary.Transactions[0].Description)
		require.NotNil(t, summary.Transactions[0].OrderID)
		assert.Equal(t, order.ID, *summary.Transactions[0].OrderID)
		require.NoError(t, env.loyalty.VerifyLedger(ctx, customer.ID))
	})

	t.Run("Whole payable amount", func(t *testing.T) {
		env, customer, order := setup(t, 1200)

		result, err := env.redemption.RedeemPoints(ctx, order.ID, 1200)
		require.NoError(t, err)
		assert.True(t, result.Order.Total.IsZero())
		assert.Equal(t, int64(0), env.balance(t, customer.ID))
	})

	t.Run("Non-positive points", func(t *testing.T) {
		env, _, order := setup(t, 500)

		for _, points := range []int64{0, -5} {
			_, err := env.redemption.RedeemPoints(ctx, order.ID, points)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		}
	})

	t.Run("Insufficient points", func(t *testing.T) {
		env, customer, order := setup(t, 500)

		_, err := env.redemption.RedeemPoints(ctx, order.ID, 600)
		require.ErrorIs(t, err, domain.ErrInsufficientPoints)

		var insufficient *domain.InsufficientPointsError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, int64(500), insufficient.Available)
		assert.Contains(t, err.Error(), "Available: 500")

		assert.Equal(t, int64(500), env.balance(t, customer.ID))
		stored, err := env.orders.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stored.RedeemedPoints)
	})

	t.Run("Discount exceeds order total", func(t *testing.T) {
		env, customer, order := setup(t, 2000)

		_, err := env.redemption.RedeemPoints(ctx, order.ID, 1500)
		require.ErrorIs(t, err, domain.ErrDiscountExceedsOrderTotal)

		var exceeds *domain.DiscountExceedsOrderTotalError
		require.True(t, errors.As(err, &exceeds))
		assert.Equal(t, int64(1200), exceeds.MaxPoints)
		assert.Equal(t, int64(2000), env.balance(t, customer.ID))
	})

	t.Run("Ceiling accounts for percentage discount", func(t *testing.T) {
		env, _, order := setup(t, 2000)

		_, err := env.orders.SetDiscountPercentage(ctx, order.ID, decimal.NewFromInt(10))
		require.NoError(t, err)

		_, err = env.redemption.RedeemPoints(ctx, order.ID, 1200)
		var exceeds *domain.DiscountExceedsOrderTotalError
		require.True(t, errors.As(err, &exceeds))
		assert.Equal(t, int64(1080), exceeds.MaxPoints)

		result, err := env.redemption.RedeemPoints(ctx, order.ID, 1080)
		require.NoError(t, err)
		assert.True(t, result.Order.Total.IsZero())
	})

	t.Run("No loyalty account", func(t *testing.T) {
		env, _, order := setup(t, 0)

		_, err := env.redemption.RedeemPoints(ctx, order.ID, 10)
		assert.ErrorIs(t, err, domain.ErrNoLoyaltyAccount)
	})

	t.Run("Already redeemed", func(t *testing.T) {
		env, _, order := setup(t, 500)

		_, err := env.redemption.RedeemPoints(ctx, order.ID, 100)
		require.NoError(t, err)

		_, err = env.redemption.RedeemPoints(ctx, order.ID, 100)
		assert.ErrorIs(t, err, domain.ErrPointsAlreadyRedeemed)
		assert.Equal(t, int64(400), env.balance(t, order.CustomerID))
	})

	t.Run("Finalized order", func(t *testing.T) {
		env, _, order := setup(t, 500)
		env.complete(t, order.ID)

		_, err := env.redemption.RedeemPoints(ctx, order.ID, 100)
		assert.ErrorIs(t, err, domain.ErrOrderFinalized)
	})

	t.Run("Unknown order", func(t *testing.T) {
		env, _, _ := setup(t, 500)

		_, err := env.redemption.RedeemPoints(ctx, 9999, 100)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}

func TestRedemptionService_ConcurrentRedemptions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.addCustomer("Zawadi")

	_, err := env.loyalty.AdjustPoints(ctx, customer.ID, 100, "opening balance")
	require.NoError(t, err)

	const attempts = 8
	orders := make([]*domain.Order, attempts)
	for i := range orders {
		orders[i] = env.createOrder(t, customer.ID, 12)
	}

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)
	for _, order := range orders {
		wg.Add(1)
		go func(orderID int64) {
			defer wg.Done()
			_, err := env.redemption.RedeemPoints(ctx, orderID, 100)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientPoints):
				insufficient++
			}
		}(order.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, insufficient)
	assert.Equal(t, int64(0), env.balance(t, customer.ID))
	require.NoError(t, env.loyalty.VerifyLedger(ctx, customer.ID))
}
