package pricing

import (
	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/shopspring/decimal"
)

// unitPricePlaces точность хранения цены за штуку
const unitPricePlaces = 4

var fifty = decimal.RequireFromString("0.50")

// Calculator рассчитывает стоимость позиций заказа
type Calculator struct {
	settings Settings
}

// NewCalculator создает новый Calculator
func NewCalculator(settings Settings) *Calculator {
	return &Calculator{settings: settings}
}

// UnitPrice цена за штуку, сохраняемая в позиции
func (c *Calculator) UnitPrice(pricePerDozen decimal.Decimal) decimal.Decimal {
	return pricePerDozen.DivRound(c.dozen(), unitPricePlaces)
}

// LineTotal стоимость pieces штук по цене за дюжину с учетом политики округления.
// pieces > 0 проверяется вызывающим кодом.
func (c *Calculator) LineTotal(pricePerDozen decimal.Decimal, pieces int) decimal.Decimal {
	raw := pricePerDozen.Mul(decimal.NewFromInt(int64(pieces))).Div(c.dozen())
	return c.Round(raw)
}

// Round округляет сумму по настроенной политике
func (c *Calculator) Round(amount decimal.Decimal) decimal.Decimal {
	if c.settings.Rounding == RoundingUpToFifty {
		return amount.Div(fifty).Ceil().Mul(fifty)
	}
	return amount.Round(c.settings.Precision)
}

// PriceLine фиксирует цены услуги в позиции и пересчитывает ее сумму
func (c *Calculator) PriceLine(line *domain.OrderLine, pricePerDozen decimal.Decimal) {
	line.PricePerDozen = pricePerDozen
	line.UnitPrice = c.UnitPrice(pricePerDozen)
	line.LineTotal = c.LineTotal(pricePerDozen, line.Pieces)
}

// RepriceLine пересчитывает сумму позиции по зафиксированной цене
func (c *Calculator) RepriceLine(line *domain.OrderLine) {
	line.LineTotal = c.LineTotal(line.PricePerDozen, line.Pieces)
}

func (c *Calculator) dozen() decimal.Decimal {
	if c.settings.PiecesPerDozen <= 0 {
		return decimal.NewFromInt(12)
	}
	return decimal.NewFromInt(int64(c.settings.PiecesPerDozen))
}
