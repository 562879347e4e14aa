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
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Marketplace   MarketplaceConfig
	Square        SquareConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Marketplace.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BAZARIO_APP_ENV" required:"true"`
	Port         string `envconfig:"BAZARIO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BAZARIO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAZARIO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BAZARIO_DB_DSN"`
	Driver string `envconfig:"BAZARIO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BAZARIO_DB_HOST"`
	LegacyPort     int    `envconfig:"BAZARIO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BAZARIO_DB_USER"`
	LegacyPassword string `envconfig:"BAZARIO_DB_PASSWORD"`
	LegacyName     string `envconfig:"BAZARIO_DB_NAME"`
	LegacySSLMode  string `envconfig:"BAZARIO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAZARIO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAZARIO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAZARIO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAZARIO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAZARIO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BAZARIO_REDIS_ADDR"`
	Password     string        `envconfig:"BAZARIO_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAZARIO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAZARIO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAZARIO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAZARIO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAZARIO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAZARIO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"BAZARIO_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"BAZARIO_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"BAZARIO_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"BAZARIO_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BAZARIO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BAZARIO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BAZARIO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BAZARIO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BAZARIO_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"BAZARIO_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"BAZARIO_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"BAZARIO_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"BAZARIO_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"BAZARIO_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"BAZARIO_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BAZARIO_AUTO_MIGRATE" default:"false"`
}

// MarketplaceConfig drives settlement arithmetic and order lifecycle windows.
type MarketplaceConfig struct {
	CommissionRate     string        `envconfig:"BAZARIO_COMMISSION_RATE" default:"0.10"`
	ProcessingFeeRate  string        `envconfig:"BAZARIO_PROCESSING_FEE_RATE" default:"0.029"`
	ProcessingFeeCents int64         `envconfig:"BAZARIO_PROCESSING_FEE_CENTS" default:"30"`
	ReturnWindow       time.Duration `envconfig:"BAZARIO_RETURN_WINDOW" default:"168h"`
	PendingOrderTTL    time.Duration `envconfig:"BAZARIO_PENDING_ORDER_TTL" default:"24h"`
}

// CommissionRateDecimal parses the configured commission rate.
func (m MarketplaceConfig) CommissionRateDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(m.CommissionRate)
}

// ProcessingFeeRateDecimal parses the configured gateway fee rate.
func (m MarketplaceConfig) ProcessingFeeRateDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(m.ProcessingFeeRate)
}

func (m MarketplaceConfig) validate() error {
	rate, err := m.CommissionRateDecimal()
	if err != nil {
		return fmt.Errorf("invalid commission rate %q: %w", m.CommissionRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("commission rate %q must be in [0, 1)", m.CommissionRate)
	}
	feeRate, err := m.ProcessingFeeRateDecimal()
	if err != nil {
		return fmt.Errorf("invalid processing fee rate %q: %w", m.ProcessingFeeRate, err)
	}
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("processing fee rate %q must be in [0, 1)", m.ProcessingFeeRate)
	}
	if m.ProcessingFeeCents < 0 {
		return fmt.Errorf("processing fee cents must not be negative")
	}
	return nil
}

type SquareConfig struct {
	AccessToken   string `envconfig:"BAZARIO_SQUARE_ACCESS_TOKEN"`
	Env           string `envconfig:"BAZARIO_SQUARE_ENV" default:"sandbox"`
	WebhookSecret string `envconfig:"BAZARIO_SQUARE_WEBHOOK_SECRET"`
	LocationID    string `envconfig:"BAZARIO_SQUARE_LOCATION_ID"`
	RedirectURL   string `envconfig:"BAZARIO_SQUARE_REDIRECT_URL"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BAZARIO_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BAZARIO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BAZARIO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"BAZARIO_PUBSUB_ORDERS_TOPIC" default:"bz-order-events"`
	OrdersSubscription       string `envconfig:"BAZARIO_PUBSUB_ORDERS_SUBSCRIPTION"`
	NotificationTopic        string `envconfig:"BAZARIO_PUBSUB_NOTIFICATION_TOPIC" default:"bz-notification-events"`
	NotificationSubscription string `envconfig:"BAZARIO_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"BAZARIO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"BAZARIO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"BAZARIO_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"BAZARIO_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"BAZARIO_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"BAZARIO_CRON_LOCK_TTL" default:"30m"`
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
