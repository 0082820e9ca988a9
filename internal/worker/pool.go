package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avc/laundry-loyalty/internal/clock"
	"github.com/avc/laundry-loyalty/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultScanInterval     = 10 * time.Second
	defaultBirthdayInterval = time.Hour
	defaultBatchSize        = 100
	birthdayLockTTL         = 10 * time.Minute
	birthdayLockPrefix      = "loyalty:birthday-sweep:"
)

// EventSource источник необработанных событий начисления
type EventSource interface {
	ListPendingRewardEvents(ctx context.Context, limit int) ([]*domain.RewardEvent, error)
}

// RewardProcessor обрабатывает событие начисления по заказу
type RewardProcessor interface {
	ProcessRewardEvent(ctx context.Context, orderID int64) ([]domain.RewardOutcome, error)
}

// BirthdaySweeper начисляет награды ко дню рождения
type BirthdaySweeper interface {
	GrantBirthdayRewards(ctx context.Context, day time.Time) (int, error)
}

// Locker распределенная блокировка обхода дней рождения
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// Config параметры пула
type Config struct {
	Workers          int
	QueueSize        int
	ScanInterval     time.Duration
	BirthdayInterval time.Duration
	BatchSize        int
}

// Pool представляет пул воркеров, который дообрабатывает события начисления
// и периодически запускает обход дней рождения
type Pool struct {
	cfg       Config
	queue     chan int64
	events    EventSource
	processor RewardProcessor
	birthdays BirthdaySweeper
	locker    Locker
	clock     clock.Clock
	logger    *zap.Logger

	// inflight заказы, уже стоящие в очереди
	inflight sync.Map
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewPool создает новый worker pool. birthdays и locker могут быть nil.
func NewPool(
	cfg Config,
	events EventSource,
	processor RewardProcessor,
	birthdays BirthdaySweeper,
	locker Locker,
	clk clock.Clock,
	logger *zap.Logger,
) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = defaultScanInterval
	}
	if cfg.BirthdayInterval <= 0 {
		cfg.BirthdayInterval = defaultBirthdayInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	return &Pool{
		cfg:       cfg,
		queue:     make(chan int64, cfg.QueueSize),
		events:    events,
		processor: processor,
		birthdays: birthdays,
		locker:    locker,
		clock:     clk,
		logger:    logger,
	}
}

// Start запускает worker pool
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	// Запускаем воркеры
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	// Запускаем сканер необработанных событий
	p.wg.Add(1)
	go p.scanner(ctx)

	if p.birthdays != nil {
		p.wg.Add(1)
		go p.birthdayLoop(ctx)
	}
}

// Stop останавливает worker pool и ждет завершения воркеров
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// worker обрабатывает события из очереди
func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Info("worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping", zap.Int("worker_id", id))
			return
		case orderID := <-p.queue:
			p.processEvent(ctx, orderID)
			p.inflight.Delete(orderID)
		}
	}
}

// scanner периодически ищет необработанные события.
// Первый проход выполняется сразу, чтобы подобрать события, оставшиеся после перезапуска.
func (p *Pool) scanner(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.ScanInterval)
	defer ticker.Stop()

	p.scanPendingEvents(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("scanner stopping")
			return
		case <-ticker.C:
			p.scanPendingEvents(ctx)
		}
	}
}

// scanPendingEvents отправляет необработанные события в очередь
func (p *Pool) scanPendingEvents(ctx context.Context) {
	events, err := p.events.ListPendingRewardEvents(ctx, p.cfg.BatchSize)
	if err != nil {
		p.logger.Error("failed to get pending reward events", zap.Error(err))
		return
	}

	for _, event := range events {
		if _, queued := p.inflight.LoadOrStore(event.OrderID, struct{}{}); queued {
			continue
		}

		select {
		case p.queue <- event.OrderID:
			// Успешно добавлено в очередь
		case <-ctx.Done():
			p.inflight.Delete(event.OrderID)
			return
		default:
			// Очередь заполнена, событие подберет следующий проход
			p.inflight.Delete(event.OrderID)
			p.logger.Warn("queue is full, skipping reward event", zap.Int64("order_id", event.OrderID))
		}
	}
}

// processEvent обрабатывает одно событие начисления
func (p *Pool) processEvent(ctx context.Context, orderID int64) {
	p.logger.Debug("processing reward event", zap.Int64("order_id", orderID))

	outcomes, err := p.processor.ProcessRewardEvent(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrRewardEventProcessed) {
			p.logger.Debug("reward event already processed", zap.Int64("order_id", orderID))
			return
		}
		p.logger.Error("failed to process reward event",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("reward event processed",
		zap.Int64("order_id", orderID),
		zap.Int("rewards", len(outcomes)),
	)
}

// birthdayLoop периодически запускает обход дней рождения
func (p *Pool) birthdayLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.BirthdayInterval)
	defer ticker.Stop()

	p.sweepBirthdays(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("birthday sweep stopping")
			return
		case <-ticker.C:
			p.sweepBirthdays(ctx)
		}
	}
}

// sweepBirthdays выполняет обход за текущий день. При наличии блокировки
// обход выполняет только один экземпляр сервиса.
func (p *Pool) sweepBirthdays(ctx context.Context) {
	day := p.clock.Now()

	if p.locker != nil {
		key := birthdayLockPrefix + day.Format("2006-01-02")
		token, ok, err := p.locker.TryLock(ctx, key, birthdayLockTTL)
		if err != nil {
			p.logger.Error("failed to acquire birthday sweep lock", zap.Error(err))
			return
		}
		if !ok {
			p.logger.Debug("birthday sweep is running elsewhere", zap.String("key", key))
			return
		}
		defer func() {
			if err := p.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				p.logger.Warn("failed to release birthday sweep lock", zap.Error(err))
			}
		}()
	}

	if _, err := p.birthdays.GrantBirthdayRewards(ctx, day); err != nil {
		p.logger.Error("birthday sweep failed", zap.Error(err))
	}
}
