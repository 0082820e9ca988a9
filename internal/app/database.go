package app

import (
	"context"
	"fmt"
	"time"

	"github.com/avc/laundry-loyalty/internal/clock"
	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/avc/laundry-loyalty/internal/repository/memory"
	"github.com/avc/laundry-loyalty/internal/repository/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// storage хранилище движка с проверкой доступности
type storage interface {
	domain.Store
	Ping(ctx context.Context) error
}

// initStorage подключает PostgreSQL и выполняет миграции.
// Без DATABASE_URI используется in-memory хранилище с демо-данными.
func initStorage(ctx context.Context, databaseURI string, clk clock.Clock, logger *zap.Logger) (storage, func(), error) {
	if databaseURI == "" {
		logger.Warn("database URI is not set, using in-memory storage with demo data")
		store := memory.NewStore(clk)
		seedDemoData(store, logger)
		return store, func() {}, nil
	}

	dbPool, err := initDatabase(ctx, databaseURI, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected to database")

	return postgres.NewStore(dbPool), dbPool.Close, nil
}

// initDatabase создает пул соединений с базой данных и выполняет миграции
func initDatabase(ctx context.Context, databaseURI string, logger *zap.Logger) (*pgxpool.Pool, error) {
	dbPool, err := pgxpool.New(ctx, databaseURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := postgres.RunMigrations(ctx, dbPool, logger); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("migrations completed successfully")

	return dbPool, nil
}

// seedDemoData заполняет in-memory хранилище прайс-листом и клиентами
func seedDemoData(store *memory.Store, logger *zap.Logger) {
	services := []*domain.Service{
		{Name: "Wash & Fold", PricePerDozen: decimal.RequireFromString("120.00"), IsActive: true},
		{Name: "Dry Cleaning", PricePerDozen: decimal.RequireFromString("450.00"), IsActive: true},
		{Name: "Ironing", PricePerDozen: decimal.RequireFromString("100.00"), IsActive: true},
	}
	for _, service := range services {
		store.AddService(service)
	}

	birthday := time.Date(1990, time.March, 14, 0, 0, 0, 0, time.UTC)
	customers := []*domain.Customer{
		{Name: "Jane Wanjiru", Phone: "+254700000001", Email: "jane@example.com", DateOfBirth: &birthday},
		{Name: "Peter Otieno", Phone: "+254700000002"},
	}
	for _, customer := range customers {
		added := store.AddCustomer(customer)
		logger.Info("demo customer added", zap.Int64("customer_id", added.ID), zap.String("name", added.Name))
	}
}
