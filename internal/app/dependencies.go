package app

import (
	"github.com/avc/laundry-loyalty/internal/cache"
	"github.com/avc/laundry-loyalty/internal/clock"
	"github.com/avc/laundry-loyalty/internal/config"
	"github.com/avc/laundry-loyalty/internal/handlers"
	"github.com/avc/laundry-loyalty/internal/metrics"
	"github.com/avc/laundry-loyalty/internal/pricing"
	"github.com/avc/laundry-loyalty/internal/service"
	"github.com/avc/laundry-loyalty/internal/worker"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// services содержит все сервисы приложения
type services struct {
	orders     *service.OrderService
	redemption *service.RedemptionService
	evaluator  *service.RuleEvaluator
	loyalty    *service.LoyaltyService
	referrals  *service.ReferralService
	rules      *service.RuleService
	catalog    *service.RuleCatalog
	birthdays  *service.BirthdayService
}

// handlerSet содержит все хендлеры приложения
type handlerSet struct {
	orders  *handlers.OrdersHandler
	loyalty *handlers.LoyaltyHandler
	rules   *handlers.RulesHandler
	pricing *handlers.PricingHandler
	health  *handlers.HealthHandler
}

// dependencies содержит все зависимости приложения
type dependencies struct {
	services   *services
	handlers   *handlerSet
	workerPool *worker.Pool
}

// initDependencies создает все зависимости приложения
func initDependencies(
	cfg *config.Config,
	settings pricing.Settings,
	store storage,
	redisClient *redis.Client,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *dependencies {
	// Кеш статистики и блокировка обхода дней рождения работают только с Redis
	var (
		statsCache service.StatsCache = cache.NoopStatsCache{}
		locker     worker.Locker
		cachePing  handlers.Pinger
	)
	if redisClient != nil {
		statsCache = cache.NewRedisStatsCache(redisClient, cfg.StatsCacheTTL)
		locker = cache.NewLocker(redisClient)
		cachePing = redisPinger{client: redisClient}
	}

	// Создание сервисов
	stats := service.NewStatsProvider(statsCache, clk, logger)
	applier := service.NewRewardApplier()
	redemption := service.NewRedemptionService(store, settings, m, logger)
	evaluator := service.NewRuleEvaluator(store, stats, applier, clk, m, logger)

	svcs := &services{
		orders:     service.NewOrderService(store, settings, redemption, evaluator, stats, clk, m, logger),
		redemption: redemption,
		evaluator:  evaluator,
		loyalty:    service.NewLoyaltyService(store, applier, stats, m, logger),
		referrals:  service.NewReferralService(store, logger),
		rules:      service.NewRuleService(store, logger),
		catalog:    service.NewRuleCatalog(store, logger),
		birthdays:  service.NewBirthdayService(store, applier, m, logger),
	}

	// Создание handlers
	hdlrs := &handlerSet{
		orders:  handlers.NewOrdersHandler(svcs.orders, svcs.redemption, logger),
		loyalty: handlers.NewLoyaltyHandler(svcs.loyalty, svcs.referrals, logger),
		rules:   handlers.NewRulesHandler(svcs.rules, logger),
		pricing: handlers.NewPricingHandler(settings, logger),
		health:  handlers.NewHealthHandler(store, cachePing, logger),
	}

	// Создание worker pool
	workerPoolConfig := worker.Config{
		Workers:          cfg.WorkerPoolSize,
		QueueSize:        cfg.WorkerQueueSize,
		ScanInterval:     cfg.WorkerScanInterval,
		BirthdayInterval: cfg.BirthdayScanInterval,
	}
	workerPool := worker.NewPool(workerPoolConfig, store.RewardEvents(), svcs.evaluator, svcs.birthdays, locker, clk, logger)

	return &dependencies{
		services:   svcs,
		handlers:   hdlrs,
		workerPool: workerPool,
	}
}
