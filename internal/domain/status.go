package domain

import (
	"strings"
	"time"
)

// OrderStatus представляет статус заказа
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// transitions допустимые переходы между статусами
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:      {OrderStatusCompleted, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusCompleted:  {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// ParseOrderStatus разбирает строковое значение статуса
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", false
	}
	return status, true
}

// Valid сообщает, известен ли статус
func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal сообщает, что из статуса нет переходов
func (s OrderStatus) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// IsRewarded сообщает, что достижение статуса запускает начисление баллов
func (s OrderStatus) IsRewarded() bool {
	return s == OrderStatusCompleted || s == OrderStatusDelivered
}

// AllowedTransitions возвращает допустимые следующие статусы
func AllowedTransitions(from OrderStatus) []OrderStatus {
	next := transitions[from]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition переводит заказ в новый статус и проставляет отметки времени.
// firstRewarded истинно, если заказ впервые достиг вознаграждаемого статуса.
func (o *Order) Transition(to OrderStatus, at time.Time) (firstRewarded bool, err error) {
	from := o.Status
	if !to.Valid() || !CanTransition(from, to) {
		return false, &InvalidTransitionError{From: from, To: to}
	}

	firstRewarded = to.IsRewarded() && !from.IsRewarded()

	o.Status = to
	switch to {
	case OrderStatusCompleted:
		if o.CompletedAt == nil {
			o.CompletedAt = &at
		}
	case OrderStatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &at
		}
	}
	o.UpdatedAt = at

	return firstRewarded, nil
}
