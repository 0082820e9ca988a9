package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/avc/laundry-loyalty/internal/clock"
	"github.com/avc/laundry-loyalty/internal/config"
	"github.com/avc/laundry-loyalty/internal/metrics"
	"github.com/avc/laundry-loyalty/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App представляет приложение
type App struct {
	config       *config.Config
	logger       *zap.Logger
	closeStorage func()
	redis        *redis.Client
	router       *chi.Mux
	workerPool   *worker.Pool
	server       *http.Server
}

// NewApp создает новое приложение
func NewApp() (*App, error) {
	ctx := context.Background()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}

	// Инициализация логгера
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	// Инициализация хранилища
	clk := clock.Real{}
	store, closeStorage, err := initStorage(ctx, cfg.DatabaseURI, clk, logger)
	if err != nil {
		return nil, err
	}

	// Подключение к Redis
	redisClient, err := initRedis(ctx, cfg.RedisURL)
	if err != nil {
		closeStorage()
		return nil, err
	}
	if redisClient == nil {
		logger.Info("redis URL is not set, stats cache and sweep lock are disabled")
	} else {
		logger.Info("connected to redis")
	}

	// Метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Инициализация зависимостей
	deps := initDependencies(cfg, settings, store, redisClient, clk, m, logger)

	// Загрузка каталога правил
	if cfg.RulesFile != "" {
		created, err := deps.services.catalog.Load(ctx, cfg.RulesFile)
		if err != nil {
			if redisClient != nil {
				redisClient.Close()
			}
			closeStorage()
			return nil, fmt.Errorf("failed to load rule catalog: %w", err)
		}
		logger.Info("rule catalog loaded", zap.String("file", cfg.RulesFile), zap.Int("created", created))
	}

	// Настройка роутера
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	router := setupRouter(deps, metricsHandler, logger)

	// Создание HTTP сервера
	server := createServer(cfg.RunAddress, router)

	return &App{
		config:       cfg,
		logger:       logger,
		closeStorage: closeStorage,
		redis:        redisClient,
		router:       router,
		workerPool:   deps.workerPool,
		server:       server,
	}, nil
}

// Run запускает приложение
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запуск worker pool
	a.workerPool.Start(ctx)
	a.logger.Info("worker pool started")

	// Запуск HTTP сервера и ожидание сигнала завершения
	err := a.runServer(ctx)

	a.shutdown(cancel)

	return err
}
