package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrMissingRunSettings is returned by ValidateForRun when a setting a run needs is empty
var ErrMissingRunSettings = errors.New("missing settings required for a reconciliation run")

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Log         LogConfig
	Console     ConsoleConfig
	Ledger      LedgerConfig
	Fulfillment FulfillmentConfig
	Webhook     WebhookConfig
	Alert       WebhookConfig
	Engine      EngineConfig
	Sync        SyncConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Scheduler   SchedulerConfig
	HTTP        HTTPConfig
	Telemetry   TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `validate:"required"`
	Env  string `validate:"oneof=development staging production test"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
	Output string // stdout, stderr, or file path
}

// ConsoleConfig holds the admin console (browser) settings
type ConsoleConfig struct {
	LoginURL     string `validate:"omitempty,url"`
	OrdersURL    string `validate:"omitempty,url"`
	DashboardURL string `validate:"omitempty,url"`
	Username     string
	Password     string
	Headless     bool
	// NoSandbox disables the Chrome sandbox, which containers without user namespaces need
	NoSandbox   bool
	UserDataDir string
	// RemoteURL attaches to an already running browser (ws://...) instead of launching one
	RemoteURL   string        `validate:"omitempty,url"`
	Timeout     time.Duration `validate:"gt=0"`
	ScrapeWait  time.Duration `validate:"gt=0"`
	DialogWait  time.Duration `validate:"gt=0"`
	LoginSettle time.Duration `validate:"gte=0"`
}

// LedgerConfig holds spreadsheet ledger settings
type LedgerConfig struct {
	SpreadsheetID   string
	CredentialsFile string
	// CredentialsJSON is the service-account key itself, usually injected via environment
	CredentialsJSON string
	OrderSheet      string `validate:"required"`
	ManualSheet     string `validate:"required"`

	MarketOrderIDColumn string `validate:"required"`
	StoreOrderIDColumn  string `validate:"required"`
	OrderStatusColumn   string `validate:"required"`
	ReviewStateColumn   string `validate:"required"`
	StatusShipping      string `validate:"required"`
	StatusDelivered     string `validate:"required"`
	ReviewNeeded        string `validate:"required"`

	MaxRetries      uint64        `validate:"lte=10"`
	InitialInterval time.Duration `validate:"gt=0"`
	MaxInterval     time.Duration `validate:"gtefield=InitialInterval"`
}

// FulfillmentConfig holds the fulfillment provider API settings
type FulfillmentConfig struct {
	Endpoint     string        `validate:"omitempty,url"`
	APIKey       string
	Timeout      time.Duration `validate:"gt=0"`
	MaxBodyBytes int64         `validate:"gt=0"`
}

// WebhookConfig holds an outgoing webhook endpoint. An empty URL disables it.
type WebhookConfig struct {
	URL     string        `validate:"omitempty,url"`
	Timeout time.Duration `validate:"gt=0"`
}

// EngineConfig holds reconciliation engine tuning
type EngineConfig struct {
	LookupConcurrency int `validate:"gte=1,lte=32"`
}

// SyncConfig holds ledger write-back pacing
type SyncConfig struct {
	WriteInterval   time.Duration `validate:"gte=0"`
	ConfirmInterval time.Duration `validate:"gte=0"`
}

// DatabaseConfig holds run history database settings
type DatabaseConfig struct {
	Enabled         bool
	Driver          string `validate:"oneof=sqlite postgres"`
	Path            string // sqlite file path
	Host            string
	Port            int `validate:"gte=0,lte=65535"`
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
}

// RedisConfig holds Redis connection settings for the run lock
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int `validate:"gte=0,lte=65535"`
	Password string
	DB       int
}

// Addr returns the host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SchedulerConfig holds the periodic run schedule
type SchedulerConfig struct {
	Enabled bool
	Cron    string        `validate:"required"`
	Timeout time.Duration `validate:"gt=0"`
	LockKey string        `validate:"required"`
	LockTTL time.Duration `validate:"gtefield=Timeout"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port         string `validate:"required,numeric"`
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string `validate:"required"`
	Insecure          bool
	ExportInterval    time.Duration `validate:"gt=0"`
	// SamplingRatio is the fraction of runs and requests traced, 0 to 1
	SamplingRatio float64 `validate:"gte=0,lte=1"`
	// ExportLogs also ships log entries to the collector
	ExportLogs bool
}

// Load loads configuration from a TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with SHIPCHECK_ prefix (e.g., SHIPCHECK_LEDGER_SPREADSHEET_ID)
// 2. the file at path, or config.toml in the search paths when path is empty
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/app")
		v.AddConfigPath("/etc/shipcheck")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SHIPCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Console: ConsoleConfig{
			LoginURL:     v.GetString("console.login_url"),
			OrdersURL:    v.GetString("console.orders_url"),
			DashboardURL: v.GetString("console.dashboard_url"),
			Username:     v.GetString("console.username"),
			Password:     v.GetString("console.password"),
			Headless:     !v.IsSet("console.headless") || v.GetBool("console.headless"),
			NoSandbox:    !v.IsSet("console.no_sandbox") || v.GetBool("console.no_sandbox"),
			UserDataDir:  v.GetString("console.user_data_dir"),
			RemoteURL:    v.GetString("console.remote_url"),
			Timeout:      v.GetDuration("console.timeout"),
			ScrapeWait:   v.GetDuration("console.scrape_wait"),
			DialogWait:   v.GetDuration("console.dialog_wait"),
			LoginSettle:  v.GetDuration("console.login_settle"),
		},
		Ledger: LedgerConfig{
			SpreadsheetID:       v.GetString("ledger.spreadsheet_id"),
			CredentialsFile:     v.GetString("ledger.credentials_file"),
			CredentialsJSON:     v.GetString("ledger.credentials_json"),
			OrderSheet:          v.GetString("ledger.order_sheet"),
			ManualSheet:         v.GetString("ledger.manual_sheet"),
			MarketOrderIDColumn: v.GetString("ledger.market_order_id_column"),
			StoreOrderIDColumn:  v.GetString("ledger.store_order_id_column"),
			OrderStatusColumn:   v.GetString("ledger.order_status_column"),
			ReviewStateColumn:   v.GetString("ledger.review_state_column"),
			StatusShipping:      v.GetString("ledger.status_shipping"),
			StatusDelivered:     v.GetString("ledger.status_delivered"),
			ReviewNeeded:        v.GetString("ledger.review_needed"),
			MaxRetries:          v.GetUint64("ledger.max_retries"),
			InitialInterval:     v.GetDuration("ledger.initial_interval"),
			MaxInterval:         v.GetDuration("ledger.max_interval"),
		},
		Fulfillment: FulfillmentConfig{
			Endpoint:     v.GetString("fulfillment.endpoint"),
			APIKey:       v.GetString("fulfillment.api_key"),
			Timeout:      v.GetDuration("fulfillment.timeout"),
			MaxBodyBytes: v.GetInt64("fulfillment.max_body_bytes"),
		},
		Webhook: WebhookConfig{
			URL:     v.GetString("webhook.url"),
			Timeout: v.GetDuration("webhook.timeout"),
		},
		Alert: WebhookConfig{
			URL:     v.GetString("alert.url"),
			Timeout: v.GetDuration("alert.timeout"),
		},
		Engine: EngineConfig{
			LookupConcurrency: v.GetInt("engine.lookup_concurrency"),
		},
		Sync: SyncConfig{
			WriteInterval:   v.GetDuration("sync.write_interval"),
			ConfirmInterval: v.GetDuration("sync.confirm_interval"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("database.enabled"),
			Driver:          v.GetString("database.driver"),
			Path:            v.GetString("database.path"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Scheduler: SchedulerConfig{
			Enabled: v.GetBool("scheduler.enabled"),
			Cron:    v.GetString("scheduler.cron"),
			Timeout: v.GetDuration("scheduler.timeout"),
			LockKey: v.GetString("scheduler.lock_key"),
			LockTTL: v.GetDuration("scheduler.lock_ttl"),
		},
		HTTP: HTTPConfig{
			Port:         v.GetString("http.port"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			SamplingRatio:     1.0,
			ExportLogs:        v.GetBool("telemetry.export_logs"),
		},
	}

	if v.IsSet("telemetry.sampling_ratio") {
		cfg.Telemetry.SamplingRatio = v.GetFloat64("telemetry.sampling_ratio")
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "shipcheck"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Console.Timeout == 0 {
		cfg.Console.Timeout = 10 * time.Minute
	}
	if cfg.Console.ScrapeWait == 0 {
		cfg.Console.ScrapeWait = 20 * time.Second
	}
	if cfg.Console.DialogWait == 0 {
		cfg.Console.DialogWait = 10 * time.Second
	}
	if cfg.Console.LoginSettle == 0 {
		cfg.Console.LoginSettle = 2 * time.Second
	}

	if cfg.Ledger.OrderSheet == "" {
		cfg.Ledger.OrderSheet = "orders"
	}
	if cfg.Ledger.ManualSheet == "" {
		cfg.Ledger.ManualSheet = "manual"
	}
	if cfg.Ledger.MarketOrderIDColumn == "" {
		cfg.Ledger.MarketOrderIDColumn = "market_order_id"
	}
	if cfg.Ledger.StoreOrderIDColumn == "" {
		cfg.Ledger.StoreOrderIDColumn = "store_order_id"
	}
	if cfg.Ledger.OrderStatusColumn == "" {
		cfg.Ledger.OrderStatusColumn = "order_status"
	}
	if cfg.Ledger.ReviewStateColumn == "" {
		cfg.Ledger.ReviewStateColumn = "review_state"
	}
	if cfg.Ledger.StatusShipping == "" {
		cfg.Ledger.StatusShipping = "SHIPPING"
	}
	if cfg.Ledger.StatusDelivered == "" {
		cfg.Ledger.StatusDelivered = "DELIVERED"
	}
	if cfg.Ledger.ReviewNeeded == "" {
		cfg.Ledger.ReviewNeeded = "NEEDS_REVIEW"
	}
	if cfg.Ledger.MaxRetries == 0 {
		cfg.Ledger.MaxRetries = 5
	}
	if cfg.Ledger.InitialInterval == 0 {
		cfg.Ledger.InitialInterval = time.Second
	}
	if cfg.Ledger.MaxInterval == 0 {
		cfg.Ledger.MaxInterval = 30 * time.Second
	}

	if cfg.Fulfillment.Timeout == 0 {
		cfg.Fulfillment.Timeout = 30 * time.Second
	}
	if cfg.Fulfillment.MaxBodyBytes == 0 {
		cfg.Fulfillment.MaxBodyBytes = 1 << 20 // 1MB
	}
	if cfg.Webhook.Timeout == 0 {
		cfg.Webhook.Timeout = 10 * time.Second
	}
	if cfg.Alert.Timeout == 0 {
		cfg.Alert.Timeout = 10 * time.Second
	}

	if cfg.Engine.LookupConcurrency == 0 {
		cfg.Engine.LookupConcurrency = 1
	}
	if cfg.Sync.WriteInterval == 0 {
		cfg.Sync.WriteInterval = 500 * time.Millisecond
	}
	if cfg.Sync.ConfirmInterval == 0 {
		cfg.Sync.ConfirmInterval = time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "shipcheck.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "shipcheck"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 5
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Scheduler.Cron == "" {
		cfg.Scheduler.Cron = "*/30 * * * *"
	}
	if cfg.Scheduler.Timeout == 0 {
		cfg.Scheduler.Timeout = 20 * time.Minute
	}
	if cfg.Scheduler.LockKey == "" {
		cfg.Scheduler.LockKey = "shipcheck:run"
	}
	if cfg.Scheduler.LockTTL == 0 {
		cfg.Scheduler.LockTTL = 30 * time.Minute
	}

	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// POST /api/v1/runs is synchronous, so writes must outlive a whole run
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "shipcheck"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 30 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config %s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.Database.Enabled && c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.Enabled && c.Telemetry.Insecure {
			return fmt.Errorf("telemetry.insecure must be false in production")
		}
	}

	return nil
}

// ValidateForRun checks the settings needed to talk to the console, the ledger and
// the provider. Commands that only read history do not need them.
func (c *Config) ValidateForRun() error {
	var missing []string
	check := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	check("console.login_url", c.Console.LoginURL)
	check("console.orders_url", c.Console.OrdersURL)
	check("console.username", c.Console.Username)
	check("console.password", c.Console.Password)
	check("ledger.spreadsheet_id", c.Ledger.SpreadsheetID)
	if c.Ledger.CredentialsFile == "" && c.Ledger.CredentialsJSON == "" {
		missing = append(missing, "ledger.credentials_file|ledger.credentials_json")
	}
	check("fulfillment.endpoint", c.Fulfillment.Endpoint)
	check("fulfillment.api_key", c.Fulfillment.APIKey)

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRunSettings, strings.Join(missing, ", "))
	}
	return nil
}

// DSN returns the postgres connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
