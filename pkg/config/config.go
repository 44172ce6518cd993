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
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	MirPay       MirPayConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	if err := cfg.MirPay.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"LEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEDGER_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"LEDGER_LOG_FORMAT" default:"json"`

	CORSOrigins []string `envconfig:"LEDGER_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LEDGER_DB_DSN"`
	Driver string `envconfig:"LEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"LEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEDGER_DB_USER"`
	LegacyPassword string `envconfig:"LEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"LEDGER_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"LEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification settings for tokens minted by the identity service.
type JWTConfig struct {
	Secret string `envconfig:"LEDGER_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"LEDGER_JWT_ISSUER" required:"true"`
}

type RateLimitConfig struct {
	InitiateWindow   time.Duration `envconfig:"LEDGER_RATE_LIMIT_INITIATE_WINDOW" default:"1m"`
	InitiateLimit    int           `envconfig:"LEDGER_RATE_LIMIT_INITIATE_LIMIT" default:"10"`
	WithdrawalWindow time.Duration `envconfig:"LEDGER_RATE_LIMIT_WITHDRAWAL_WINDOW" default:"24h"`
	WithdrawalLimit  int           `envconfig:"LEDGER_RATE_LIMIT_WITHDRAWAL_LIMIT" default:"3"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LEDGER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LEDGER_AUTO_MIGRATE" default:"false"`
}

// LedgerConfig carries the platform-wide money rules.
type LedgerConfig struct {
	WithdrawalCommissionRate string        `envconfig:"LEDGER_WITHDRAWAL_COMMISSION_RATE" default:"0.02"`
	MinWithdrawalAmount      string        `envconfig:"LEDGER_MIN_WITHDRAWAL_AMOUNT" default:"10000"`
	VerificationWindow       time.Duration `envconfig:"LEDGER_VERIFICATION_WINDOW" default:"24h"`
	Currency                 string        `envconfig:"LEDGER_CURRENCY" default:"UZS"`
}

// WithdrawalRate parses the configured withdrawal commission rate.
func (l LedgerConfig) WithdrawalRate() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(l.WithdrawalCommissionRate))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

// MinWithdrawal parses the configured minimum withdrawal amount.
func (l LedgerConfig) MinWithdrawal() decimal.Decimal {
	min, err := decimal.NewFromString(strings.TrimSpace(l.MinWithdrawalAmount))
	if err != nil {
		return decimal.Zero
	}
	return min
}

func (l LedgerConfig) validate() error {
	rate, err := decimal.NewFromString(strings.TrimSpace(l.WithdrawalCommissionRate))
	if err != nil {
		return fmt.Errorf("%s: %w", EnvWithdrawalCommissionRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be within [0, 1)", EnvWithdrawalCommissionRate)
	}
	if _, err := decimal.NewFromString(strings.TrimSpace(l.MinWithdrawalAmount)); err != nil {
		return fmt.Errorf("%s: %w", EnvMinWithdrawalAmount, err)
	}
	if l.VerificationWindow <= 0 {
		return fmt.Errorf("%s must be positive", EnvVerificationWindow)
	}
	return nil
}

type MirPayConfig struct {
	KassaID       string        `envconfig:"LEDGER_MIRPAY_KASSA_ID" default:"1413"`
	APIKey        string        `envconfig:"LEDGER_MIRPAY_API_KEY"`
	BaseURL       string        `envconfig:"LEDGER_MIRPAY_BASE_URL" default:"https://mirpay.uz/api"`
	SuccessURL    string        `envconfig:"LEDGER_MIRPAY_SUCCESS_URL"`
	FailureURL    string        `envconfig:"LEDGER_MIRPAY_FAILURE_URL"`
	WebhookSecret string        `envconfig:"LEDGER_MIRPAY_WEBHOOK_SECRET"`
	Mode          string        `envconfig:"LEDGER_MIRPAY_MODE" default:"development"`
	Timeout       time.Duration `envconfig:"LEDGER_MIRPAY_TIMEOUT" default:"30s"`
}

// Simulated reports whether gateway calls are simulated locally.
func (m MirPayConfig) Simulated() bool {
	return !strings.EqualFold(strings.TrimSpace(m.Mode), MirPayModeProduction)
}

func (m MirPayConfig) validate() error {
	if m.Simulated() {
		return nil
	}
	if strings.TrimSpace(m.APIKey) == "" {
		return fmt.Errorf("%s is required in production mode", EnvMirPayAPIKey)
	}
	if strings.TrimSpace(m.BaseURL) == "" {
		return fmt.Errorf("%s is required in production mode", EnvMirPayBaseURL)
	}
	return nil
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"LEDGER_CRON_INTERVAL" default:"5m"`
	LockTTL        time.Duration `envconfig:"LEDGER_CRON_LOCK_TTL" default:"4m"`
	ReconcileEvery time.Duration `envconfig:"LEDGER_CRON_RECONCILE_EVERY" default:"24h"`
	// MetricsAddr is where the worker exposes /metrics. Empty disables it.
	MetricsAddr string `envconfig:"LEDGER_CRON_METRICS_ADDR" default:":9102"`
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
