package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avc/laundry-loyalty/internal/clock"
	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/avc/laundry-loyalty/internal/metrics"
	"github.com/avc/laundry-loyalty/internal/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SystemActor автор изменений, выполненных без указания пользователя
const SystemActor = "system"

var hundred = decimal.NewFromInt(100)

// LineRequest позиция создаваемого заказа
type LineRequest struct {
	ServiceID int64 `json:"service_id"`
	Pieces    int   `json:"pieces"`
}

// CreateOrderRequest данные нового заказа
type CreateOrderRequest struct {
	CustomerID         int64           `json:"customer_id"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Notes              string          `json:"notes"`
	CreatedBy          string          `json:"-"`
	Lines              []LineRequest   `json:"lines"`
	// RedeemPoints баллы, списываемые сразу при создании
	RedeemPoints int64 `json:"redeem_points"`
}

// TransitionResult заказ после смены статуса и сработавшие правила
type TransitionResult struct {
	Order   *domain.Order          `json:"order"`
	Rewards []domain.RewardOutcome `json:"rewards"`
}

// OrderService управляет заказами: позиции, итоги, статусы
type OrderService struct {
	store      domain.Store
	calculator *pricing.Calculator
	aggregator *pricing.Aggregator
	redemption *RedemptionService
	evaluator  *RuleEvaluator
	stats      *StatsProvider
	clock      clock.Clock
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewOrderService создает новый OrderService
func NewOrderService(
	store domain.Store,
	settings pricing.Settings,
	redemption *RedemptionService,
	evaluator *RuleEvaluator,
	stats *StatsProvider,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		store:      store,
		calculator: pricing.NewCalculator(settings),
		aggregator: pricing.NewAggregator(settings),
		redemption: redemption,
		evaluator:  evaluator,
		stats:      stats,
		clock:      clk,
		metrics:    m,
		logger:     logger,
	}
}

// CreateOrder создает заказ с позициями, пересчитывает итоги и при необходимости списывает баллы.
// Все изменения выполняются в одной транзакции.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	if err := validateDiscount(req.DiscountPercentage); err != nil {
		return nil, err
	}
	for _, line := range req.Lines {
		if line.Pieces <= 0 {
			return nil, fmt.Errorf("%w: service %d has %d pieces", domain.ErrInvalidPieces, line.ServiceID, line.Pieces)
		}
	}
	if req.RedeemPoints < 0 {
		return nil, fmt.Errorf("%w: points to redeem must not be negative", domain.ErrInvalidRequest)
	}
	if req.CreatedBy == "" {
		req.CreatedBy = SystemActor
	}

	var (
		order     *domain.Order
		redeemErr error
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if _, err := tx.Customers().GetCustomer(ctx, req.CustomerID); err != nil {
			return err
		}

		number, err := tx.Orders().NextOrderNumber(ctx, s.clock.Now())
		if err != nil {
			return err
		}

		order = &domain.Order{
			Number:             number,
			CustomerID:         req.CustomerID,
			Status:             domain.OrderStatusPending,
			CreatedBy:          req.CreatedBy,
			DiscountPercentage: req.DiscountPercentage,
			Notes:              req.Notes,
		}
		if err := s.aggregator.Recompute(order, nil); err != nil {
			return err
		}
		if err := tx.Orders().CreateOrder(ctx, order); err != nil {
			return err
		}

		for _, line := range req.Lines {
			if _, err := s.addLine(ctx, tx, order.ID, line); err != nil {
				return err
			}
		}
		if err := s.recompute(ctx, tx, order); err != nil {
			return err
		}

		if req.RedeemPoints > 0 {
			_, redeemErr = s.redemption.redeemInTx(ctx, tx, order, req.RedeemPoints)
			return redeemErr
		}
		return nil
	})
	if req.RedeemPoints > 0 && (err == nil || redeemErr != nil) {
		s.metrics.Redemption(req.RedeemPoints, redeemErr)
	}
	if err != nil {
		return nil, s.wrap(err, "failed to create order for customer %d", req.CustomerID)
	}

	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("number", order.Number),
		zap.Int64("customer_id", order.CustomerID),
		zap.String("total", order.Total.String()),
	)
	return order, nil
}

// GetOrder получает заказ вместе с позициями
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.store.Orders().GetOrder(ctx, orderID)
	if err != nil {
		return nil, s.wrap(err, "failed to get order %d", orderID)
	}

	order.Lines, err = s.store.Orders().GetLines(ctx, orderID)
	if err != nil {
		return nil, s.wrap(err, "failed to get lines of order %d", orderID)
	}

	return order, nil
}

// AddLine добавляет позицию в заказ в статусе pending
func (s *OrderService) AddLine(ctx context.Context, orderID int64, req LineRequest) (*domain.Order, error) {
	if req.Pieces <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidPieces, req.Pieces)
	}

	order, err := s.editOrder(ctx, orderID, func(ctx context.Context, tx domain.Store, order *domain.Order) error {
		_, err := s.addLine(ctx, tx, order.ID, req)
		return err
	})
	if err != nil {
		return nil, s.wrap(err, "failed to add service %d to order %d", req.ServiceID, orderID)
	}

	return order, nil
}

// UpdateLinePieces меняет количество штук в позиции по зафиксированной цене
func (s *OrderService) UpdateLinePieces(ctx context.Context, orderID, lineID int64, pieces int) (*domain.Order, error) {
	if pieces <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidPieces, pieces)
	}

	order, err := s.editOrder(ctx, orderID, func(ctx context.Context, tx domain.Store, order *domain.Order) error {
		lines, err := tx.Orders().GetLines(ctx, order.ID)
		if err != nil {
			return err
		}

		for _, line := range lines {
			if line.ID != lineID {
				continue
			}
			line.Pieces = pieces
			s.calculator.RepriceLine(line)
			return tx.Orders().UpdateLine(ctx, line)
		}

		return domain.ErrLineNotFound
	})
	if err != nil {
		return nil, s.wrap(err, "failed to update line %d of order %d", lineID, orderID)
	}

	return order, nil
}

// SetDiscountPercentage меняет процент скидки заказа
func (s *OrderService) SetDiscountPercentage(ctx context.Context, orderID int64, pct decimal.Decimal) (*domain.Order, error) {
	if err := validateDiscount(pct); err != nil {
		return nil, err
	}

	order, err := s.editOrder(ctx, orderID, func(_ context.Context, _ domain.Store, order *domain.Order) error {
		order.DiscountPercentage = pct
		return nil
	})
	if err != nil {
		return nil, s.wrap(err, "failed to set discount of order %d", orderID)
	}

	return order, nil
}

// RecomputeTotals пересчитывает и сохраняет итоги заказа. Повторный вызов ничего не меняет.
func (s *OrderService) RecomputeTotals(ctx context.Context, orderID int64) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		var err error
		order, err = tx.Orders().GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		return s.recompute(ctx, tx, order)
	})
	if err != nil {
		return nil, s.wrap(err, "failed to recompute order %d", orderID)
	}

	return order, nil
}

// TransitionStatus переводит заказ в новый статус и записывает историю.
// При первом достижении вознаграждаемого статуса в той же транзакции создается событие
// начисления, которое после фиксации сразу обрабатывается. Ошибка обработки только
// логируется: событие остается для фонового обработчика.
func (s *OrderService) TransitionStatus(ctx context.Context, orderID int64, to domain.OrderStatus, actor, notes string) (*TransitionResult, error) {
	if actor == "" {
		actor = SystemActor
	}

	var (
		order         *domain.Order
		from          domain.OrderStatus
		firstRewarded bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		var err error
		order, err = tx.Orders().GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		from = order.Status
		firstRewarded, err = order.Transition(to, now)
		if err != nil {
			return err
		}

		if err := tx.Orders().UpdateStatus(ctx, order); err != nil {
			return err
		}

		err = tx.Orders().AddStatusChange(ctx, &domain.StatusChange{
			OrderID:   order.ID,
			OldStatus: from,
			NewStatus: to,
			ChangedBy: actor,
			Notes:     notes,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		if firstRewarded {
			_, err := tx.RewardEvents().EnqueueRewardEvent(ctx, &domain.RewardEvent{
				OrderID:   order.ID,
				Status:    to,
				CreatedAt: now,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap(err, "failed to move order %d to %s", orderID, to)
	}

	s.metrics.StatusTransition(from, to)
	s.logger.Info("order status changed",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor),
	)

	result := &TransitionResult{Order: order}
	if !firstRewarded {
		return result, nil
	}

	s.stats.Invalidate(ctx, order.CustomerID)

	result.Rewards, err = s.evaluator.ProcessRewardEvent(ctx, order.ID)
	if err != nil {
		if errors.Is(err, domain.ErrRewardEventProcessed) {
			s.logger.Debug("reward event already processed", zap.Int64("order_id", order.ID))
		} else {
			s.logger.Error("failed to process reward event, leaving it to the worker",
				zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}

	return result, nil
}

// StatusHistory получает историю статусов заказа
func (s *OrderService) StatusHistory(ctx context.Context, orderID int64) ([]*domain.StatusChange, error) {
	if _, err := s.store.Orders().GetOrder(ctx, orderID); err != nil {
		return nil, s.wrap(err, "failed to get order %d", orderID)
	}

	history, err := s.store.Orders().GetStatusHistory(ctx, orderID)
	if err != nil {
		return nil, s.wrap(err, "failed to get status history of order %d", orderID)
	}

	return history, nil
}

// editOrder блокирует заказ в статусе pending, применяет fn и пересчитывает итоги
func (s *OrderService) editOrder(ctx context.Context, orderID int64, fn func(ctx context.Context, tx domain.Store, order *domain.Order) error) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		var err error
		order, err = tx.Orders().GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Editable() {
			return fmt.Errorf("%w: order %d is %s", domain.ErrOrderNotEditable, order.ID, order.Status)
		}

		if err := fn(ctx, tx, order); err != nil {
			return err
		}
		return s.recompute(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// addLine фиксирует цену активной услуги и сохраняет позицию
func (s *OrderService) addLine(ctx context.Context, tx domain.Store, orderID int64, req LineRequest) (*domain.OrderLine, error) {
	service, err := tx.Catalog().GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !service.IsActive {
		return nil, fmt.Errorf("%w: %s", domain.ErrServiceNotOffered, service.Name)
	}

	line := &domain.OrderLine{
		OrderID:   orderID,
		ServiceID: service.ID,
		Pieces:    req.Pieces,
	}
	s.calculator.PriceLine(line, service.PricePerDozen)

	if err := tx.Orders().AddLine(ctx, line); err != nil {
		return nil, err
	}

	return line, nil
}

// recompute пересчитывает итоги по сохраненным позициям и сохраняет их
func (s *OrderService) recompute(ctx context.Context, tx domain.Store, order *domain.Order) error {
	lines, err := tx.Orders().GetLines(ctx, order.ID)
	if err != nil {
		return err
	}

	if err := s.aggregator.Recompute(order, lines); err != nil {
		return err
	}
	if err := tx.Orders().UpdateTotals(ctx, order); err != nil {
		return err
	}

	order.Lines = lines
	return nil
}

func (s *OrderService) wrap(err error, format string, args ...any) error {
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("order service: "+format+": %w", append(args, err)...)
}

func validateDiscount(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return fmt.Errorf("%w: got %s", domain.ErrInvalidDiscount, pct)
	}
	return nil
}
