package service

import (
	"context"
	"fmt"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/avc/laundry-loyalty/internal/metrics"
	"github.com/avc/laundry-loyalty/internal/pricing"
	"go.uber.org/zap"
)

// RedemptionService списывает баллы в счет заказа
type RedemptionService struct {
	store      domain.Store
	settings   pricing.Settings
	aggregator *pricing.Aggregator
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewRedemptionService создает новый RedemptionService
func NewRedemptionService(store domain.Store, settings pricing.Settings, m *metrics.Metrics, logger *zap.Logger) *RedemptionService {
	return &RedemptionService{
		store:      store,
		settings:   settings,
		aggregator: pricing.NewAggregator(settings),
		metrics:    m,
		logger:     logger,
	}
}

// RedeemPoints списывает points баллов клиента заказа и применяет скидку.
// Заказ, счет и журнал меняются в одной транзакции: при любой ошибке не меняется ничего.
func (s *RedemptionService) RedeemPoints(ctx context.Context, orderID, points int64) (*domain.RedemptionResult, error) {
	var result *domain.RedemptionResult
	err := s.redeem(ctx, points, func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
			order, err := tx.Orders().GetOrderForUpdate(ctx, orderID)
			if err != nil {
				return err
			}

			result, err = s.redeemInTx(ctx, tx, order, points)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("loyalty points redeemed",
		zap.Int64("order_id", orderID),
		zap.Int64("points", result.RedeemedPoints),
		zap.String("discount", result.DiscountAmount.String()),
	)
	return result, nil
}

// redeem проверяет количество баллов, выполняет списание и записывает метрики
func (s *RedemptionService) redeem(ctx context.Context, points int64, fn func() error) error {
	var err error
	if points <= 0 {
		err = fmt.Errorf("%w: points to redeem must be a positive integer", domain.ErrInvalidRequest)
	} else {
		err = fn()
	}

	s.metrics.Redemption(points, err)
	if err != nil && !isDomainError(err) {
		return fmt.Errorf("redemption service: failed to redeem %d points: %w", points, err)
	}
	return err
}

// redeemInTx списывает баллы в текущей транзакции. order должен быть заблокирован.
func (s *RedemptionService) redeemInTx(ctx context.Context, tx domain.Store, order *domain.Order, points int64) (*domain.RedemptionResult, error) {
	if order.Finalized() {
		return nil, fmt.Errorf("%w: order %d is %s", domain.ErrOrderFinalized, order.ID, order.Status)
	}
	if order.RedeemedPoints > 0 {
		return nil, fmt.Errorf("%w: order %d already has %d points applied",
			domain.ErrPointsAlreadyRedeemed, order.ID, order.RedeemedPoints)
	}

	account, err := tx.Loyalty().LockAccount(ctx, order.CustomerID)
	if err != nil {
		return nil, err
	}

	plan, err := domain.PlanRedemption(order, account.PointsBalance, points, s.settings.RedemptionRate, s.settings.Precision)
	if err != nil {
		return nil, err
	}

	lines, err := tx.Orders().GetLines(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	order.LoyaltyDiscountAmount = plan.Discount
	order.RedeemedPoints = plan.Points
	if err := s.aggregator.Recompute(order, lines); err != nil {
		return nil, err
	}
	if err := tx.Orders().UpdateTotals(ctx, order); err != nil {
		return nil, err
	}
	order.Lines = lines

	account.PointsBalance -= plan.Points
	if err := tx.Loyalty().UpdateBalance(ctx, account); err != nil {
		return nil, err
	}

	orderID := order.ID
	entry := &domain.LoyaltyTransaction{
		AccountID:    account.ID,
		OrderID:      &orderID,
		PointsChange: -plan.Points,
		Description: fmt.Sprintf("Redeemed %d points for a %s discount",
			plan.Points, plan.Discount.StringFixed(s.settings.Precision)),
	}
	if err := tx.Loyalty().AppendTransaction(ctx, entry); err != nil {
		return nil, err
	}

	return &domain.RedemptionResult{
		OrderID:        order.ID,
		DiscountAmount: plan.Discount,
		RedeemedPoints: plan.Points,
		PointsBalance:  account.PointsBalance,
		Order:          order,
	}, nil
}
