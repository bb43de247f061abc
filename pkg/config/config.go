package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Circulation  CirculationConfig
	Cron         CronConfig
	Eventing     EventingConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		if cfg.DB.SQLitePath == "" {
			return nil, fmt.Errorf("%s is required when %s is enabled", EnvDBSQLitePath, EnvUseSQLite)
		}
	} else if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Circulation.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LIBRONOVA_APP_ENV" required:"true"`
	Port         string `envconfig:"LIBRONOVA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LIBRONOVA_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LIBRONOVA_LOG_FORMAT"`
	LogWarnStack bool   `envconfig:"LIBRONOVA_LOG_WARN_STACK" default:"false"`
	// MetricsAddr, when set, makes the workers serve /metrics on it.
	MetricsAddr string `envconfig:"LIBRONOVA_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LIBRONOVA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN        string `envconfig:"LIBRONOVA_DB_DSN"`
	Driver     string `envconfig:"LIBRONOVA_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"LIBRONOVA_DB_SQLITE_PATH"`

	LegacyHost     string `envconfig:"LIBRONOVA_DB_HOST"`
	LegacyPort     int    `envconfig:"LIBRONOVA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LIBRONOVA_DB_USER"`
	LegacyPassword string `envconfig:"LIBRONOVA_DB_PASSWORD"`
	LegacyName     string `envconfig:"LIBRONOVA_DB_NAME"`
	LegacySSLMode  string `envconfig:"LIBRONOVA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LIBRONOVA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LIBRONOVA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LIBRONOVA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LIBRONOVA_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery is the duration past which a statement is logged.
	SlowQuery time.Duration `envconfig:"LIBRONOVA_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LIBRONOVA_REDIS_URL"`
	Address      string        `envconfig:"LIBRONOVA_REDIS_ADDR"`
	Password     string        `envconfig:"LIBRONOVA_REDIS_PASSWORD"`
	DB           int           `envconfig:"LIBRONOVA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LIBRONOVA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LIBRONOVA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LIBRONOVA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LIBRONOVA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LIBRONOVA_REDIS_WRITE_TIMEOUT" default:"5s"`

	// StreamMaxLen trims event streams to roughly this many entries; 0 keeps everything.
	StreamMaxLen int64 `envconfig:"LIBRONOVA_REDIS_STREAM_MAXLEN" default:"100000"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LIBRONOVA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LIBRONOVA_AUTO_MIGRATE" default:"false"`
}

// CirculationConfig bounds the loan engine.
type CirculationConfig struct {
	DefaultLoanDays  int             `envconfig:"LIBRONOVA_DEFAULT_LOAN_DAYS" default:"14"`
	MaxLoanDays      int             `envconfig:"LIBRONOVA_MAX_LOAN_DAYS" default:"60"`
	DailyFineRate    decimal.Decimal `envconfig:"LIBRONOVA_DAILY_FINE_RATE" default:"1.00"`
	MaxAttempts      int             `envconfig:"LIBRONOVA_LOAN_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay   time.Duration   `envconfig:"LIBRONOVA_LOAN_RETRY_BASE_DELAY" default:"25ms"`
	OperationTimeout time.Duration   `envconfig:"LIBRONOVA_LOAN_OPERATION_TIMEOUT" default:"5s"`
}

func (c CirculationConfig) validate() error {
	if c.MaxLoanDays < 1 {
		return fmt.Errorf("%s must be at least 1", EnvMaxLoanDays)
	}
	if c.DefaultLoanDays < 1 || c.DefaultLoanDays > c.MaxLoanDays {
		return fmt.Errorf("%s must be within [1, %d]", EnvDefaultLoanDays, c.MaxLoanDays)
	}
	if c.DailyFineRate.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvDailyFineRate)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%s must be at least 1", EnvLoanMaxAttempts)
	}
	return nil
}

type CronConfig struct {
	Interval           time.Duration `envconfig:"LIBRONOVA_CRON_INTERVAL" default:"1h"`
	LockTTL            time.Duration `envconfig:"LIBRONOVA_CRON_LOCK_TTL" default:"30m"`
	OverdueNoticeBatch int           `envconfig:"LIBRONOVA_CRON_OVERDUE_BATCH" default:"500"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"LIBRONOVA_EVENTING_IDEMPOTENCY_TTL" default:"24h"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"LIBRONOVA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"LIBRONOVA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"LIBRONOVA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Stream         string `envconfig:"LIBRONOVA_OUTBOX_STREAM" default:"libronova:loan-events"`
	RetentionDays  int    `envconfig:"LIBRONOVA_OUTBOX_RETENTION_DAYS" default:"30"`

	// InventoryStream receives book events; empty routes them to Stream.
	InventoryStream  string `envconfig:"LIBRONOVA_OUTBOX_INVENTORY_STREAM" default:"libronova:inventory-events"`
	DLQRetentionDays int    `envconfig:"LIBRONOVA_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
