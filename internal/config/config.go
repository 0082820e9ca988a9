package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/avc/laundry-loyalty/internal/pricing"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config содержит конфигурацию приложения
type Config struct {
	RunAddress  string // Адрес и порт запуска сервиса
	DatabaseURI string // URI подключения к БД, пустой для in-memory хранилища
	RedisURL    string // URL Redis, пустой отключает кеш и блокировки
	LogLevel    string // Уровень логирования
	RulesFile   string // YAML каталог правил лояльности

	// Worker Pool конфигурация
	WorkerPoolSize       int           // Количество воркеров
	WorkerQueueSize      int           // Размер очереди событий начисления
	WorkerScanInterval   time.Duration // Интервал сканирования необработанных событий
	BirthdayScanInterval time.Duration // Интервал обхода дней рождения

	StatsCacheTTL time.Duration // Время жизни статистики клиента в кеше

	// Параметры расчета
	CurrencySymbol    string
	CurrencyPrecision int
	RoundingPolicy    string
	RedemptionRate    string
	PiecesPerDozen    int
}

// defaults возвращает конфигурацию по умолчанию
func defaults() *Config {
	settings := pricing.DefaultSettings()
	return &Config{
		RunAddress:           ":8080",
		LogLevel:             "info",
		WorkerPoolSize:       3,
		WorkerQueueSize:      100,
		WorkerScanInterval:   10 * time.Second,
		BirthdayScanInterval: time.Hour,
		StatsCacheTTL:        5 * time.Minute,
		CurrencySymbol:       settings.CurrencySymbol,
		CurrencyPrecision:    int(settings.Precision),
		RoundingPolicy:       string(settings.Rounding),
		RedemptionRate:       settings.RedemptionRate.String(),
		PiecesPerDozen:       settings.PiecesPerDozen,
	}
}

// Load загружает конфигурацию из .env файла, флагов и переменных окружения
// Приоритет: env переменные > флаги > дефолтные значения
func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	// .env не перезаписывает уже заданные переменные окружения
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := defaults()

	// Определяем флаги
	flags := flag.NewFlagSet("settlement", flag.ContinueOnError)
	flags.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "address and port to run server")
	flags.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flags.StringVar(&cfg.RedisURL, "r", "", "redis URL")
	flags.StringVar(&cfg.RulesFile, "rules", "", "loyalty rule catalog file")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	// Переменные окружения имеют приоритет над флагами
	lookupString("RUN_ADDRESS", &cfg.RunAddress)
	lookupString("DATABASE_URI", &cfg.DatabaseURI)
	lookupString("REDIS_URL", &cfg.RedisURL)
	lookupString("LOG_LEVEL", &cfg.LogLevel)
	lookupString("RULES_FILE", &cfg.RulesFile)
	lookupString("CURRENCY_SYMBOL", &cfg.CurrencySymbol)
	lookupString("ROUNDING_POLICY", &cfg.RoundingPolicy)
	lookupString("REDEMPTION_RATE", &cfg.RedemptionRate)

	// Некорректные значения параметров воркеров игнорируются
	lookupPositiveInt("WORKER_POOL_SIZE", &cfg.WorkerPoolSize)
	lookupPositiveInt("WORKER_QUEUE_SIZE", &cfg.WorkerQueueSize)
	lookupPositiveDuration("WORKER_SCAN_INTERVAL", &cfg.WorkerScanInterval)
	lookupPositiveDuration("BIRTHDAY_SCAN_INTERVAL", &cfg.BirthdayScanInterval)
	lookupPositiveDuration("STATS_CACHE_TTL", &cfg.StatsCacheTTL)

	// Параметры расчета влияют на суммы, поэтому ошибка в них фатальна
	if err := lookupInt("CURRENCY_PRECISION", &cfg.CurrencyPrecision); err != nil {
		return nil, err
	}
	if err := lookupInt("PIECES_PER_DOZEN", &cfg.PiecesPerDozen); err != nil {
		return nil, err
	}

	if _, err := cfg.Settings(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Settings собирает и проверяет параметры расчета
func (c *Config) Settings() (pricing.Settings, error) {
	rounding, err := pricing.ParseRoundingPolicy(c.RoundingPolicy)
	if err != nil {
		return pricing.Settings{}, fmt.Errorf("config: %w", err)
	}

	rate, err := decimal.NewFromString(c.RedemptionRate)
	if err != nil {
		return pricing.Settings{}, fmt.Errorf("config: invalid redemption rate %q: %w", c.RedemptionRate, err)
	}

	settings := pricing.Settings{
		CurrencySymbol: c.CurrencySymbol,
		Precision:      int32(c.CurrencyPrecision),
		Rounding:       rounding,
		RedemptionRate: rate,
		PiecesPerDozen: c.PiecesPerDozen,
	}
	if err := settings.Validate(); err != nil {
		return pricing.Settings{}, fmt.Errorf("config: %w", err)
	}

	return settings, nil
}

// InMemory сообщает, что БД не настроена
func (c *Config) InMemory() bool {
	return c.DatabaseURI == ""
}

func lookupString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func lookupPositiveInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func lookupPositiveDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

func lookupInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}
