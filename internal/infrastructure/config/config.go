package config

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Cache          CacheConfig
	Log            LogConfig
	Telemetry      TelemetryConfig
	Profiling      ProfilingConfig
	Reconciliation ReconciliationConfig
	Worker         WorkerConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Path            string // sqlite file, ":memory:" for an ephemeral store
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	SlowQuery       time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// CacheConfig selects the suggestion cache backend
type CacheConfig struct {
	Backend       string // memory, redis or none
	SuggestionTTL time.Duration
	KeyPrefix     string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // export traces
	MetricsEnabled    bool    // export metrics
	LogsEnabled       bool    // bridge zap records to OTLP logs
	DBTracing         bool    // span per SQL statement, needs Enabled
	CollectorEndpoint string  // OTLP gRPC endpoint, e.g. "localhost:4317"
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool // plaintext gRPC, development only
	ExportInterval    time.Duration
}

// ProfilingConfig holds Pyroscope configuration
type ProfilingConfig struct {
	Enabled       bool
	ServerAddress string
	SpanProfiles  bool
}

// ReconciliationConfig holds the default matching settings applied when a
// caller does not pass its own
type ReconciliationConfig struct {
	UseAutomaticMatching            bool
	AmountTolerance                 string
	DateToleranceDays               int
	MinimumConfidenceScore          float64
	RequireManualApproval           bool
	CreateAdjustmentsForDifferences bool
	AdjustmentThreshold             string
	SuggestionLimit                 int
	ParallelThreshold               int
	DateWindowPaddingDays           int
}

// WorkerConfig bounds the per-session scoring fan-out
type WorkerConfig struct {
	MaxParallelism int
}

// Load loads configuration from config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with RECON_ prefix (e.g., RECON_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from an explicit file, or searches the default
// locations when path is empty
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/app")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("RECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
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
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			SlowQuery:       v.GetDuration("database.slow_query_threshold"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Cache: CacheConfig{
			Backend:       v.GetString("cache.backend"),
			SuggestionTTL: v.GetDuration("cache.suggestion_ttl"),
			KeyPrefix:     v.GetString("cache.key_prefix"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTracing:         v.GetBool("telemetry.db_tracing"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
		},
		Profiling: ProfilingConfig{
			Enabled:       v.GetBool("profiling.enabled"),
			ServerAddress: v.GetString("profiling.server_address"),
			SpanProfiles:  v.GetBool("profiling.span_profiles"),
		},
		Reconciliation: ReconciliationConfig{
			UseAutomaticMatching:            v.GetBool("reconciliation.use_automatic_matching"),
			AmountTolerance:                 v.GetString("reconciliation.amount_tolerance"),
			DateToleranceDays:               v.GetInt("reconciliation.date_tolerance_days"),
			MinimumConfidenceScore:          v.GetFloat64("reconciliation.minimum_confidence_score"),
			RequireManualApproval:           v.GetBool("reconciliation.require_manual_approval"),
			CreateAdjustmentsForDifferences: v.GetBool("reconciliation.create_adjustments_for_differences"),
			AdjustmentThreshold:             v.GetString("reconciliation.adjustment_threshold"),
			SuggestionLimit:                 v.GetInt("reconciliation.suggestion_limit"),
			ParallelThreshold:               v.GetInt("reconciliation.parallel_threshold"),
			DateWindowPaddingDays:           v.GetInt("reconciliation.date_window_padding_days"),
		},
		Worker: WorkerConfig{
			MaxParallelism: v.GetInt("worker.max_parallelism"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers defaults that are not the zero value, so an explicit
// false or 0 in the file or environment still wins
func setDefaults(v *viper.Viper) {
	defaults := reconciliation.DefaultSettings()
	v.SetDefault("reconciliation.use_automatic_matching", defaults.UseAutomaticMatching)
	v.SetDefault("reconciliation.amount_tolerance", defaults.AmountTolerance.StringFixed(2))
	v.SetDefault("reconciliation.date_tolerance_days", defaults.DateToleranceDays)
	v.SetDefault("reconciliation.minimum_confidence_score", defaults.MinimumConfidenceScore)
	v.SetDefault("reconciliation.adjustment_threshold", defaults.AdjustmentThreshold.StringFixed(2))
	v.SetDefault("reconciliation.suggestion_limit", defaults.SuggestionLimit)
	v.SetDefault("reconciliation.parallel_threshold", reconciliation.DefaultParallelThreshold)
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.logs_enabled", false)
	v.SetDefault("telemetry.db_tracing", false)
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "reconciler"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "reconciler.db"
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
		cfg.Database.DBName = "reconciler"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.SlowQuery == 0 {
		cfg.Database.SlowQuery = 200 * time.Millisecond
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.SuggestionTTL == 0 {
		cfg.Cache.SuggestionTTL = 15 * time.Minute
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "recon"
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
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "reconciler"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
	if cfg.Worker.MaxParallelism == 0 {
		cfg.Worker.MaxParallelism = runtime.NumCPU()
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("cache.backend must be memory, redis or none, got %q", c.Cache.Backend)
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Worker.MaxParallelism < 0 {
		return fmt.Errorf("worker.max_parallelism cannot be negative")
	}
	if c.Reconciliation.ParallelThreshold < 0 {
		return fmt.Errorf("reconciliation.parallel_threshold cannot be negative")
	}
	if c.Reconciliation.DateWindowPaddingDays < 0 {
		return fmt.Errorf("reconciliation.date_window_padding_days cannot be negative")
	}
	if _, err := c.Reconciliation.Settings(); err != nil {
		return err
	}
	return nil
}

// Settings converts the configured defaults into validated matching settings
func (r ReconciliationConfig) Settings() (reconciliation.ReconciliationSettings, error) {
	tolerance, err := decimal.NewFromString(r.AmountTolerance)
	if err != nil {
		return reconciliation.ReconciliationSettings{}, fmt.Errorf("reconciliation.amount_tolerance: %w", err)
	}
	threshold, err := decimal.NewFromString(r.AdjustmentThreshold)
	if err != nil {
		return reconciliation.ReconciliationSettings{}, fmt.Errorf("reconciliation.adjustment_threshold: %w", err)
	}

	s := reconciliation.ReconciliationSettings{
		UseAutomaticMatching:            r.UseAutomaticMatching,
		AmountTolerance:                 tolerance,
		DateToleranceDays:               r.DateToleranceDays,
		MinimumConfidenceScore:          r.MinimumConfidenceScore,
		RequireManualApproval:           r.RequireManualApproval,
		CreateAdjustmentsForDifferences: r.CreateAdjustmentsForDifferences,
		AdjustmentThreshold:             threshold,
		SuggestionLimit:                 r.SuggestionLimit,
	}
	if err := s.Validate(); err != nil {
		return reconciliation.ReconciliationSettings{}, fmt.Errorf("reconciliation settings: %w", err)
	}
	return s, nil
}

// DSN returns the database connection string with properly escaped values
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
