package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTier уровень программы лояльности по умолчанию
const DefaultTier = "Standard"

// Customer представляет клиента
type Customer struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CustomerStats агрегаты клиента, вычисленные по завершенным заказам
type CustomerStats struct {
	CustomerID int64           `json:"customer_id"`
	OrderCount int64           `json:"order_count"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	// WindowDays 0 означает всю историю
	WindowDays int `json:"window_days"`
}

// Service представляет услугу прайс-листа
type Service struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	PricePerDozen decimal.Decimal `json:"price_per_dozen"`
	IsActive      bool            `json:"is_active"`
}

// Order представляет заказ клиента
type Order struct {
	ID                    int64           `json:"id"`
	Number                string          `json:"number"`
	CustomerID            int64           `json:"customer_id"`
	Status                OrderStatus     `json:"status"`
	CreatedBy             string          `json:"created_by,omitempty"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	DiscountPercentage    decimal.Decimal `json:"discount_percentage"`
	DiscountAmount        decimal.Decimal `json:"discount_amount"`
	LoyaltyDiscountAmount decimal.Decimal `json:"loyalty_discount_amount"`
	RedeemedPoints        int64           `json:"redeemed_points"`
	Total                 decimal.Decimal `json:"total_amount"`
	Notes                 string          `json:"notes,omitempty"`
	CompletedAt           *time.Time      `json:"completed_at,omitempty"`
	DeliveredAt           *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	Lines                 []*OrderLine    `json:"lines,omitempty"`
}

// Payable сумма к оплате до применения баллов
func (o *Order) Payable() decimal.Decimal {
	return o.Subtotal.Sub(o.DiscountAmount)
}

// Editable сообщает, можно ли менять позиции и скидку заказа
func (o *Order) Editable() bool {
	return o.Status == OrderStatusPending
}

// Finalized сообщает, что заказ выдан, завершен или отменен
func (o *Order) Finalized() bool {
	return o.Status.IsRewarded() || o.Status == OrderStatusCancelled
}

// OrderLine позиция заказа
type OrderLine struct {
	ID        int64 `json:"id"`
	OrderID   int64 `json:"order_id"`
	ServiceID int64 `json:"service_id"`
	Pieces    int   `json:"pieces"`
	// Цены фиксируются на момент создания позиции
	PricePerDozen decimal.Decimal `json:"price_per_dozen"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

// StatusChange запись истории статусов заказа
type StatusChange struct {
	ID        int64       `json:"id"`
	OrderID   int64       `json:"order_id"`
	OldStatus OrderStatus `json:"old_status"`
	NewStatus OrderStatus `json:"new_status"`
	ChangedBy string      `json:"changed_by"`
	Notes     string      `json:"notes,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// LoyaltyAccount счет баллов клиента
type LoyaltyAccount struct {
	ID            int64      `json:"id"`
	CustomerID    int64      `json:"customer_id"`
	PointsBalance int64      `json:"points_balance"`
	Tier          string     `json:"tier"`
	TierExpiry    *time.Time `json:"tier_expiry,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// LoyaltyTransaction неизменяемая запись журнала баллов
type LoyaltyTransaction struct {
	ID           int64     `json:"id"`
	AccountID    int64     `json:"account_id"`
	OrderID      *int64    `json:"order_id,omitempty"`
	RuleID       *int64    `json:"rule_id,omitempty"`
	PointsChange int64     `json:"points_change"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// Referral связывает пригласившего клиента с приглашенным
type Referral struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	ReferrerID    int64     `json:"referrer_id"`
	RefereeID     int64     `json:"referee_id"`
	OrderID       *int64    `json:"order_id,omitempty"`
	RewardGranted bool      `json:"reward_granted"`
	CreatedAt     time.Time `json:"created_at"`
}

// RewardEvent событие первого достижения заказом вознаграждаемого статуса
type RewardEvent struct {
	OrderID     int64       `json:"order_id"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	ProcessedAt *time.Time  `json:"processed_at,omitempty"`
}

// RewardSource описывает, за что начисляются баллы
type RewardSource struct {
	OrderID *int64
	RuleID  *int64
	Label   string
}

// RewardOutcome результат срабатывания правила
type RewardOutcome struct {
	RuleID        int64       `json:"rule_id"`
	RuleName      string      `json:"rule_name"`
	Trigger       TriggerType `json:"trigger"`
	CustomerID    int64       `json:"customer_id"`
	Points        int64       `json:"points"`
	TransactionID int64       `json:"transaction_id"`
}

// RedemptionResult результат списания баллов в счет заказа
type RedemptionResult struct {
	OrderID        int64           `json:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	RedeemedPoints int64           `json:"redeemed_points"`
	PointsBalance  int64           `json:"points_balance"`
	Order          *Order          `json:"order"`
}

// FormatOrderNumber формирует номер заказа вида ORD202601020001
func FormatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("ORD%s%04d", day.Format("20060102"), seq)
}
