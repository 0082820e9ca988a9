package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Ошибки ввода
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidPieces     = errors.New("piece count must be a positive integer")
	ErrInvalidDiscount   = errors.New("discount percentage must be between 0 and 100")
	ErrInvalidRuleConfig = errors.New("invalid loyalty rule configuration")
)

// Ошибки поиска
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrLineNotFound      = errors.New("order line not found")
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrServiceNotFound   = errors.New("service not found")
	ErrRuleNotFound      = errors.New("loyalty rule not found")
	ErrReferralNotFound  = errors.New("referral not found")
	ErrNoLoyaltyAccount  = errors.New("customer does not have a loyalty account")
	ErrRuleExists        = errors.New("loyalty rule with this name already exists")
	ErrReferralExists    = errors.New("referral for this customer already exists")
	ErrServiceNotOffered = errors.New("service is not active")
)

// Ошибки заказов
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOrderNotEditable  = errors.New("order can only be changed while pending")
	ErrOrderFinalized    = errors.New("order is already finalized")
	ErrNegativeTotal     = errors.New("order total cannot be negative")
)

// Ошибки баллов
var (
	ErrInsufficientPoints        = errors.New("insufficient loyalty points")
	ErrDiscountExceedsOrderTotal = errors.New("discount exceeds order total")
	ErrPointsAlreadyRedeemed     = errors.New("points already redeemed for this order")
	ErrReferralAlreadyRewarded   = errors.New("referral reward already granted")
	ErrRewardEventProcessed      = errors.New("reward event already processed")
	ErrLedgerMismatch            = errors.New("loyalty ledger does not match account balance")
)

// InvalidTransitionError недопустимый переход статуса
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	if !e.To.Valid() {
		return fmt.Sprintf("invalid status transition: unknown status %q", string(e.To))
	}
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// InsufficientPointsError недостаточно баллов на счете
type InsufficientPointsError struct {
	Available int64
	Requested int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient loyalty points. Available: %d", e.Available)
}

func (e *InsufficientPointsError) Is(target error) bool {
	return target == ErrInsufficientPoints
}

// DiscountExceedsOrderTotalError скидка по баллам больше суммы к оплате
type DiscountExceedsOrderTotalError struct {
	Discount  decimal.Decimal
	Payable   decimal.Decimal
	MaxPoints int64
}

func (e *DiscountExceedsOrderTotalError) Error() string {
	return fmt.Sprintf("discount %s exceeds order total %s, you can redeem a maximum of %d points",
		e.Discount.String(), e.Payable.String(), e.MaxPoints)
}

func (e *DiscountExceedsOrderTotalError) Is(target error) bool {
	return target == ErrDiscountExceedsOrderTotal
}

// RuleConfigError ошибка конфигурации правила лояльности
type RuleConfigError struct {
	Field  string
	Reason string
}

func (e *RuleConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid loyalty rule configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid loyalty rule configuration: %s %s", e.Field, e.Reason)
}

func (e *RuleConfigError) Is(target error) bool {
	return target == ErrInvalidRuleConfig
}
