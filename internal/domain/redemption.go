package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RedemptionPlan проверенное списание баллов
type RedemptionPlan struct {
	Points   int64
	Discount decimal.Decimal
}

// PlanRedemption проверяет баланс и потолок скидки для списания points баллов.
// Скидка округляется до precision знаков по правилу half-up.
func PlanRedemption(order *Order, balance, points int64, rate decimal.Decimal, precision int32) (RedemptionPlan, error) {
	if points <= 0 {
		return RedemptionPlan{}, fmt.Errorf("%w: points to redeem must be a positive integer", ErrInvalidRequest)
	}

	if balance < points {
		return RedemptionPlan{}, &InsufficientPointsError{Available: balance, Requested: points}
	}

	discount := decimal.NewFromInt(points).Mul(rate).Round(precision)
	payable := order.Payable()
	if discount.GreaterThan(payable) {
		return RedemptionPlan{}, &DiscountExceedsOrderTotalError{
			Discount:  discount,
			Payable:   payable,
			MaxPoints: MaxRedeemablePoints(payable, rate),
		}
	}

	return RedemptionPlan{Points: points, Discount: discount}, nil
}

// MaxRedeemablePoints максимальное число баллов, покрываемое суммой payable
func MaxRedeemablePoints(payable, rate decimal.Decimal) int64 {
	if !rate.IsPositive() || !payable.IsPositive() {
		return 0
	}
	return payable.Div(rate).Floor().IntPart()
}
