package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TriggerType тип условия срабатывания правила
type TriggerType string

const (
	TriggerOrderCount     TriggerType = "ORDER_COUNT"
	TriggerFirstOrder     TriggerType = "FIRST_ORDER"
	TriggerOrderFrequency TriggerType = "ORDER_FREQUENCY"
	TriggerSpendThreshold TriggerType = "SPEND_THRESHOLD"
	TriggerReferral       TriggerType = "REFERRAL"
	TriggerBirthday       TriggerType = "BIRTHDAY"
	TriggerManual         TriggerType = "MANUAL_ADJUSTMENT"
)

// Valid сообщает, известен ли тип условия
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerOrderCount, TriggerFirstOrder, TriggerOrderFrequency, TriggerSpendThreshold,
		TriggerReferral, TriggerBirthday, TriggerManual:
		return true
	}
	return false
}

// PerOrder сообщает, проверяется ли правило при завершении заказа
func (t TriggerType) PerOrder() bool {
	return t.Valid() && t != TriggerBirthday && t != TriggerManual
}

// Trigger типизированная конфигурация условия
type Trigger interface {
	Type() TriggerType
	validate() error
}

// OrderCountTrigger срабатывает, когда число заказов клиента достигает порога
type OrderCountTrigger struct {
	Threshold int64 `json:"threshold"`
}

func (OrderCountTrigger) Type() TriggerType { return TriggerOrderCount }

func (t OrderCountTrigger) validate() error {
	if t.Threshold < 1 {
		return &RuleConfigError{Field: "threshold", Reason: "must be at least 1"}
	}
	return nil
}

// FirstOrderTrigger срабатывает на первом завершенном заказе
type FirstOrderTrigger struct{}

func (FirstOrderTrigger) Type() TriggerType { return TriggerFirstOrder }
func (FirstOrderTrigger) validate() error   { return nil }

// OrderFrequencyTrigger срабатывает при N заказах за последние D дней
type OrderFrequencyTrigger struct {
	Orders int64 `json:"n_orders"`
	Days   int   `json:"n_days"`
}

func (OrderFrequencyTrigger) Type() TriggerType { return TriggerOrderFrequency }

func (t OrderFrequencyTrigger) validate() error {
	if t.Orders < 1 {
		return &RuleConfigError{Field: "n_orders", Reason: "must be at least 1"}
	}
	if t.Days < 1 {
		return &RuleConfigError{Field: "n_days", Reason: "must be at least 1"}
	}
	return nil
}

// SpendThresholdTrigger срабатывает, когда сумма покупок достигает порога
type SpendThresholdTrigger struct {
	Amount decimal.Decimal `json:"amount"`
	// WindowDays 0 означает всю историю
	WindowDays int `json:"window_days"`
}

func (SpendThresholdTrigger) Type() TriggerType { return TriggerSpendThreshold }

func (t SpendThresholdTrigger) validate() error {
	if !t.Amount.IsPositive() {
		return &RuleConfigError{Field: "amount", Reason: "must be positive"}
	}
	if t.WindowDays < 0 {
		return &RuleConfigError{Field: "window_days", Reason: "must not be negative"}
	}
	return nil
}

// ReferralTrigger срабатывает для приглашенного клиента с невыплаченной наградой
type ReferralTrigger struct {
	MinimumOrderValue decimal.Decimal `json:"minimum_order_value"`
}

func (ReferralTrigger) Type() TriggerType { return TriggerReferral }

func (t ReferralTrigger) validate() error {
	if t.MinimumOrderValue.IsNegative() {
		return &RuleConfigError{Field: "minimum_order_value", Reason: "must not be negative"}
	}
	return nil
}

// BirthdayTrigger обрабатывается ежедневным обходом дней рождения
type BirthdayTrigger struct{}

func (BirthdayTrigger) Type() TriggerType { return TriggerBirthday }
func (BirthdayTrigger) validate() error   { return nil }

// ManualTrigger ручная корректировка администратором
type ManualTrigger struct{}

func (ManualTrigger) Type() TriggerType { return TriggerManual }
func (ManualTrigger) validate() error   { return nil }

// ParseTrigger разбирает и проверяет конфигурацию условия
func ParseTrigger(triggerType TriggerType, raw []byte) (Trigger, error) {
	var trigger Trigger
	switch triggerType {
	case TriggerOrderCount:
		var t OrderCountTrigger
		if err := decodeStrict(raw, &t); err != nil {
			return nil, err
		}
		trigger = t
	case TriggerFirstOrder:
		if err := decodeStrict(raw, &struct{}{}); err != nil {
			return nil, err
		}
		trigger = FirstOrderTrigger{}
	case TriggerOrderFrequency:
		var t OrderFrequencyTrigger
		if err := decodeStrict(raw, &t); err != nil {
			return nil, err
		}
		trigger = t
	case TriggerSpendThreshold:
		var t SpendThresholdTrigger
		if err := decodeStrict(raw, &t); err != nil {
			return nil, err
		}
		trigger = t
	case TriggerReferral:
		var t ReferralTrigger
		if err := decodeStrict(raw, &t); err != nil {
			return nil, err
		}
		trigger = t
	case TriggerBirthday:
		if err := decodeStrict(raw, &struct{}{}); err != nil {
			return nil, err
		}
		trigger = BirthdayTrigger{}
	case TriggerManual:
		if err := decodeStrict(raw, &struct{}{}); err != nil {
			return nil, err
		}
		trigger = ManualTrigger{}
	default:
		return nil, &RuleConfigError{Field: "trigger_type", Reason: "unknown value " + string(triggerType)}
	}

	if err := trigger.validate(); err != nil {
		return nil, err
	}
	return trigger, nil
}

// RewardKind вид награды
type RewardKind string

// RewardPoints начисление фиксированного количества баллов
const RewardPoints RewardKind = "POINTS"

// RewardTarget кому начисляется награда за приглашение
type RewardTarget string

const (
	TargetReferee  RewardTarget = "referee"
	TargetReferrer RewardTarget = "referrer"
	TargetBoth     RewardTarget = "both"
)

// RewardSpec описание награды правила
type RewardSpec struct {
	Kind   RewardKind   `json:"type"`
	Amount int64        `json:"amount"`
	Target RewardTarget `json:"target,omitempty"`
}

// Validate проверяет награду. Ноль и отрицательные значения считаются ошибкой конфигурации.
func (r RewardSpec) Validate() error {
	if r.Kind != RewardPoints {
		return &RuleConfigError{Field: "reward.type", Reason: "unsupported value " + string(r.Kind)}
	}
	if r.Amount <= 0 {
		return &RuleConfigError{Field: "reward.amount", Reason: "must be a positive integer"}
	}
	switch r.Target {
	case "", TargetReferee, TargetReferrer, TargetBoth:
	default:
		return &RuleConfigError{Field: "reward.target", Reason: "unsupported value " + string(r.Target)}
	}
	return nil
}

// CreditsReferee сообщает, получает ли награду приглашенный клиент
func (r RewardSpec) CreditsReferee() bool {
	return r.Target == "" || r.Target == TargetReferee || r.Target == TargetBoth
}

// CreditsReferrer сообщает, получает ли награду пригласивший клиент
func (r RewardSpec) CreditsReferrer() bool {
	return r.Target == TargetReferrer || r.Target == TargetBoth
}

// ParseReward разбирает и проверяет описание награды
func ParseReward(raw []byte) (RewardSpec, error) {
	var reward RewardSpec
	if err := decodeStrict(raw, &reward); err != nil {
		return RewardSpec{}, err
	}
	reward.Kind = RewardKind(strings.ToUpper(string(reward.Kind)))
	reward.Target = RewardTarget(strings.ToLower(string(reward.Target)))
	if err := reward.Validate(); err != nil {
		return RewardSpec{}, err
	}
	return reward, nil
}

// LoyaltyRule настраиваемое правило программы лояльности
type LoyaltyRule struct {
	ID          int64
	Name        string
	Description string
	Trigger     Trigger
	Reward      RewardSpec
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TriggerType возвращает тип условия правила
func (r *LoyaltyRule) TriggerType() TriggerType {
	if r.Trigger == nil {
		return ""
	}
	return r.Trigger.Type()
}

// Validate проверяет правило целиком
func (r *LoyaltyRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &RuleConfigError{Field: "name", Reason: "is required"}
	}
	if r.Trigger == nil {
		return &RuleConfigError{Field: "trigger_type", Reason: "is required"}
	}
	if err := r.Trigger.validate(); err != nil {
		return err
	}
	if err := r.Reward.Validate(); err != nil {
		return err
	}
	if r.Reward.Target != "" && r.Reward.Target != TargetReferee && r.TriggerType() != TriggerReferral {
		return &RuleConfigError{Field: "reward.target", Reason: "is only supported for referral rules"}
	}
	return nil
}

// ConfigJSON сериализует конфигурацию условия
func (r *LoyaltyRule) ConfigJSON() ([]byte, error) {
	return json.Marshal(r.Trigger)
}

// RewardJSON сериализует награду
func (r *LoyaltyRule) RewardJSON() ([]byte, error) {
	return json.Marshal(r.Reward)
}

// MarshalJSON представляет правило в виде тип + конфигурация
func (r *LoyaltyRule) MarshalJSON() ([]byte, error) {
	config, err := r.ConfigJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		ID          int64           `json:"id"`
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		TriggerType TriggerType     `json:"trigger_type"`
		Config      json.RawMessage `json:"config"`
		Reward      RewardSpec      `json:"reward"`
		IsActive    bool            `json:"is_active"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at"`
	}{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		TriggerType: r.TriggerType(),
		Config:      config,
		Reward:      r.Reward,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	})
}

// ParseRule собирает правило из сохраненных или присланных частей
func ParseRule(name, description string, triggerType TriggerType, config, reward []byte, active bool) (*LoyaltyRule, error) {
	trigger, err := ParseTrigger(TriggerType(strings.ToUpper(string(triggerType))), config)
	if err != nil {
		return nil, err
	}
	spec, err := ParseReward(reward)
	if err != nil {
		return nil, err
	}

	rule := &LoyaltyRule{
		Name:        strings.TrimSpace(name),
		Description: description,
		Trigger:     trigger,
		Reward:      spec,
		IsActive:    active,
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// decodeStrict разбирает JSON, отклоняя неизвестные поля
func decodeStrict(raw []byte, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &RuleConfigError{Reason: err.Error()}
	}
	return nil
}
