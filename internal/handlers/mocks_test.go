package handlers

import (
	"context"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/avc/laundry-loyalty/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type orderServiceMock struct {
	mock.Mock
}

func (m *orderServiceMock) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*domain.Order, error) {
	args := m.Called(ctx, req)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *orderServiceMock) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *orderServiceMock) AddLine(ctx context.Context, orderID int64, req service.LineRequest) (*domain.Order, error) {
	args := m.Called(ctx, orderID, req)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *orderServiceMock) UpdateLinePieces(ctx context.Context, orderID, lineID int64, pieces int) (*domain.Order, error) {
	args := m.Called(ctx, orderID, lineID, pieces)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *orderServiceMock) SetDiscountPercentage(ctx context.Context, orderID int64, pct decimal.Decimal) (*domain.Order, error) {
	args := m.Called(ctx, orderID, pct)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *orderServiceMock) RecomputeTotals(ctx context.Context, orderID int64) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *orderServiceMock) TransitionStatus(ctx context.Context, orderID int64, to domain.OrderStatus, actor, notes string) (*service.TransitionResult, error) {
	args := m.Called(ctx, orderID, to, actor, notes)
	result, _ := args.Get(0).(*service.TransitionResult)
	return result, args.Error(1)
}

func (m *orderServiceMock) StatusHistory(ctx context.Context, orderID int64) ([]*domain.StatusChange, error) {
	args := m.Called(ctx, orderID)
	history, _ := args.Get(0).([]*domain.StatusChange)
	return history, args.Error(1)
}

type redemptionServiceMock struct {
	mock.Mock
}

func (m *redemptionServiceMock) RedeemPoints(ctx context.Context, orderID, points int64) (*domain.RedemptionResult, error) {
	args := m.Called(ctx, orderID, points)
	result, _ := args.Get(0).(*domain.RedemptionResult)
	return result, args.Error(1)
}

type loyaltyServiceMock struct {
	mock.Mock
}

func (m *loyaltyServiceMock) Summary(ctx context.Context, customerID int64) (*service.LoyaltySummary, error) {
	args := m.Called(ctx, customerID)
	summary, _ := args.Get(0).(*service.LoyaltySummary)
	return summary, args.Error(1)
}

func (m *loyaltyServiceMock) AdjustPoints(ctx context.Context, customerID, delta int64, reason string) (*domain.LoyaltyTransaction, error) {
	args := m.Called(ctx, customerID, delta, reason)
	tx, _ := args.Get(0).(*domain.LoyaltyTransaction)
	return tx, args.Error(1)
}

func (m *loyaltyServiceMock) VerifyLedger(ctx context.Context, customerID int64) error {
	return m.Called(ctx, customerID).Error(0)
}

type referralServiceMock struct {
	mock.Mock
}

func (m *referralServiceMock) CreateReferral(ctx context.Context, referrerID, refereeID int64) (*domain.Referral, error) {
	args := m.Called(ctx, referrerID, refereeID)
	referral, _ := args.Get(0).(*domain.Referral)
	return referral, args.Error(1)
}

type ruleServiceMock struct {
	mock.Mock
}

func (m *ruleServiceMock) CreateRule(ctx context.Context, req service.CreateRuleRequest) (*domain.LoyaltyRule, error) {
	args := m.Called(ctx, req)
	rule, _ := args.Get(0).(*domain.LoyaltyRule)
	return rule, args.Error(1)
}

func (m *ruleServiceMock) SetRuleActive(ctx context.Context, id int64, active bool) (*domain.LoyaltyRule, error) {
	args := m.Called(ctx, id, active)
	rule, _ := args.Get(0).(*domain.LoyaltyRule)
	return rule, args.Error(1)
}

func (m *ruleServiceMock) ListRules(ctx context.Context, activeOnly bool) ([]*domain.LoyaltyRule, error) {
	args := m.Called(ctx, activeOnly)
	rules, _ := args.Get(0).([]*domain.LoyaltyRule)
	return rules, args.Error(1)
}

type pingerMock struct {
	mock.Mock
}

func (m *pingerMock) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
