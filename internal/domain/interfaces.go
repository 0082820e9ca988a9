package domain

import (
	"context"
	"time"
)

// OrderRepository определяет методы для работы с заказами
type OrderRepository interface {
	NextOrderNumber(ctx context.Context, day time.Time) (string, error)
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, id int64) (*Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (*Order, error)
	UpdateTotals(ctx context.Context, order *Order) error
	UpdateStatus(ctx context.Context, order *Order) error
	AddLine(ctx context.Context, line *OrderLine) error
	UpdateLine(ctx context.Context, line *OrderLine) error
	GetLines(ctx context.Context, orderID int64) ([]*OrderLine, error)
	AddStatusChange(ctx context.Context, change *StatusChange) error
	GetStatusHistory(ctx context.Context, orderID int64) ([]*StatusChange, error)
}

// CatalogRepository определяет методы чтения прайс-листа
type CatalogRepository interface {
	GetService(ctx context.Context, id int64) (*Service, error)
}

// CustomerRepository определяет методы чтения клиентов и их агрегатов
type CustomerRepository interface {
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	// GetStats считает завершенные заказы клиента, созданные не раньше since (nil - вся история)
	GetStats(ctx context.Context, customerID int64, since *time.Time) (CustomerStats, error)
	ListByBirthday(ctx context.Context, month time.Month, day int) ([]*Customer, error)
}

// LoyaltyRepository определяет методы для работы со счетами баллов
type LoyaltyRepository interface {
	GetAccount(ctx context.Context, customerID int64) (*LoyaltyAccount, error)
	// LockAccount блокирует счет до конца транзакции
	LockAccount(ctx context.Context, customerID int64) (*LoyaltyAccount, error)
	LockOrCreateAccount(ctx context.Context, customerID int64) (*LoyaltyAccount, error)
	UpdateBalance(ctx context.Context, account *LoyaltyAccount) error
	AppendTransaction(ctx context.Context, tx *LoyaltyTransaction) error
	ListTransactions(ctx context.Context, accountID int64) ([]*LoyaltyTransaction, error)
}

// RuleRepository определяет методы для работы с правилами лояльности
type RuleRepository interface {
	ListRules(ctx context.Context, activeOnly bool) ([]*LoyaltyRule, error)
	GetRule(ctx context.Context, id int64) (*LoyaltyRule, error)
	GetRuleByName(ctx context.Context, name string) (*LoyaltyRule, error)
	CreateRule(ctx context.Context, rule *LoyaltyRule) error
	SetRuleActive(ctx context.Context, id int64, active bool) error
}

// ReferralRepository определяет методы для работы с приглашениями
type ReferralRepository interface {
	CreateReferral(ctx context.Context, referral *Referral) error
	// FindPendingForReferee блокирует невыплаченное приглашение клиента
	FindPendingForReferee(ctx context.Context, refereeID int64) (*Referral, error)
	MarkRewarded(ctx context.Context, id, orderID int64) error
}

// RewardEventRepository определяет методы журнала событий начисления
type RewardEventRepository interface {
	// EnqueueRewardEvent возвращает false, если событие по заказу уже есть
	EnqueueRewardEvent(ctx context.Context, event *RewardEvent) (bool, error)
	// ClaimRewardEvent возвращает false, если событие уже обработано или отсутствует
	ClaimRewardEvent(ctx context.Context, orderID int64, at time.Time) (bool, error)
	ListPendingRewardEvents(ctx context.Context, limit int) ([]*RewardEvent, error)
	ClaimBirthdayGrant(ctx context.Context, customerID, ruleID int64, year int) (bool, error)
}

// Store объединяет репозитории и границу транзакции
type Store interface {
	Orders() OrderRepository
	Catalog() CatalogRepository
	Customers() CustomerRepository
	Loyalty() LoyaltyRepository
	Rules() RuleRepository
	Referrals() ReferralRepository
	RewardEvents() RewardEventRepository

	// WithinTx выполняет fn атомарно: при ошибке изменения откатываются
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	Ping(ctx context.Context) error
}
