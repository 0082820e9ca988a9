package pricing

import (
	"fmt"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Aggregator пересчитывает итоги заказа
type Aggregator struct {
	precision int32
}

// NewAggregator создает новый Aggregator
func NewAggregator(settings Settings) *Aggregator {
	return &Aggregator{precision: settings.Precision}
}

// Recompute пересчитывает subtotal, скидку и итог заказа по его позициям.
// Заказ без идентификатора еще не сохранен, его суммы обнуляются.
// Если итог получился бы отрицательным, заказ не меняется.
func (a *Aggregator) Recompute(order *domain.Order, lines []*domain.OrderLine) error {
	if order.ID == 0 {
		order.Subtotal = decimal.Zero
		order.DiscountAmount = decimal.Zero
		order.Total = decimal.Zero
		return nil
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal)
	}

	discount := decimal.Zero
	if !order.DiscountPercentage.IsZero() {
		discount = subtotal.Mul(order.DiscountPercentage).Div(hundred).Round(a.precision)
	}

	total := subtotal.Sub(discount).Sub(order.LoyaltyDiscountAmount)
	if total.IsNegative() {
		return fmt.Errorf("%w: subtotal %s, discount %s, loyalty discount %s",
			domain.ErrNegativeTotal, subtotal, discount, order.LoyaltyDiscountAmount)
	}

	order.Subtotal = subtotal
	order.DiscountAmount = discount
	order.Total = total
	return nil
}
