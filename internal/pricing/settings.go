package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RoundingPolicy политика округления суммы позиции
type RoundingPolicy string

const (
	// RoundingNormal округление до минимальной денежной единицы half-up
	RoundingNormal RoundingPolicy = "normal"
	// RoundingUpToFifty округление вверх до ближайших 0.50
	RoundingUpToFifty RoundingPolicy = "round-up-to-fifty"
)

// ParseRoundingPolicy разбирает название политики округления
func ParseRoundingPolicy(s string) (RoundingPolicy, error) {
	switch p := RoundingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case RoundingNormal, RoundingUpToFifty:
		return p, nil
	case "up_to_50", "round_up_to_50":
		return RoundingUpToFifty, nil
	}
	return "", fmt.Errorf("unknown rounding policy %q", s)
}

// Settings параметры расчета цен и баллов
type Settings struct {
	CurrencySymbol string
	Precision      int32
	Rounding       RoundingPolicy
	// RedemptionRate стоимость одного балла в валюте
	RedemptionRate decimal.Decimal
	PiecesPerDozen int
}

// DefaultSettings возвращает настройки по умолчанию
func DefaultSettings() Settings {
	return Settings{
		CurrencySymbol: "KSh",
		Precision:      2,
		Rounding:       RoundingNormal,
		RedemptionRate: decimal.RequireFromString("0.10"),
		PiecesPerDozen: 12,
	}
}

// Validate проверяет настройки
func (s Settings) Validate() error {
	if s.Precision < 0 || s.Precision > 4 {
		return fmt.Errorf("currency precision must be between 0 and 4, got %d", s.Precision)
	}
	if _, err := ParseRoundingPolicy(string(s.Rounding)); err != nil {
		return err
	}
	if !s.RedemptionRate.IsPositive() {
		return fmt.Errorf("redemption rate must be positive, got %s", s.RedemptionRate)
	}
	if s.PiecesPerDozen <= 0 {
		return fmt.Errorf("pieces per dozen must be positive, got %d", s.PiecesPerDozen)
	}
	return nil
}
