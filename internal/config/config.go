package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"matrix-commission-backend/internal/domain"
)

const (
	CommissionModelMatrix = "matrix"
	CommissionModelPool   = "pool"

	maxSupportedDepth = 10
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Log        LogConfig        `yaml:"log"`
	Matrix     MatrixConfig     `yaml:"matrix"`
	Commission CommissionConfig `yaml:"commission"`
	SelfIncome SelfIncomeConfig `yaml:"self_income"`
	Team       TeamConfig       `yaml:"team"`
	Pool       PoolConfig       `yaml:"pool"`
	Retry      RetryConfig      `yaml:"retry"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

// ServerConfig contains HTTP and gRPC listener settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// JWTConfig contains bearer token settings
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// MatrixConfig contains placement settings
type MatrixConfig struct {
	MaxDepth   int   `yaml:"max_depth"`
	RootUserID int64 `yaml:"root_user_id"` // 0 means the lazily created system root
}

// SplitConfig is one commission split in basis points
type SplitConfig struct {
	CompanyBps  int64   `yaml:"company_bps"`
	SponsorsBps int64   `yaml:"sponsors_bps"`
	SelfBps     int64   `yaml:"self_bps"`
	PoolBps     int64   `yaml:"pool_bps"`
	LevelBps    []int64 `yaml:"level_bps"`
}

// PlanConfig holds the joining and repurchase splits of one commission model
type PlanConfig struct {
	Joining    SplitConfig `yaml:"joining"`
	Repurchase SplitConfig `yaml:"repurchase"`
}

// CommissionConfig selects the active commission model. The two plans are never mixed.
type CommissionConfig struct {
	Model  string     `yaml:"model"`
	Matrix PlanConfig `yaml:"matrix"`
	Pool   PlanConfig `yaml:"pool"`
}

// Active returns the plan selected by Model
func (c CommissionConfig) Active() PlanConfig {
	if c.Model == CommissionModelPool {
		return c.Pool
	}
	return c.Matrix
}

// SelfIncomeConfig contains deferred payout settings
type SelfIncomeConfig struct {
	Installments int `yaml:"installments"`
	PeriodDays   int `yaml:"period_days"`
	BatchSize    int `yaml:"batch_size"`
}

// TeamConfig contains team and level settings
type TeamConfig struct {
	Size            int   `yaml:"size"`
	LevelThresholds []int `yaml:"level_thresholds"`
}

// PoolConfig contains turnover pool settings
type PoolConfig struct {
	LevelBps []int64 `yaml:"level_bps"`
}

// RetryConfig bounds the retry of conflicting units of work
type RetryConfig struct {
	Attempts  int `yaml:"attempts"`
	BackoffMS int `yaml:"backoff_ms"`
}

// RateLimitConfig contains per-caller rate limit settings
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	IdleTTLSeconds    int     `yaml:"idle_ttl_seconds"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	RunDuePayouts         string `yaml:"run_due_payouts"`
	RefreshEligibility    string `yaml:"refresh_eligibility"`
	ReconcileWallets      string `yaml:"reconcile_wallets"`
	ResetMonthlyPurchases string `yaml:"reset_monthly_purchases"`
}

// DefaultMatrixPlan is the legacy 25% company, 7-level plan
func DefaultMatrixPlan() PlanConfig {
	return PlanConfig{
		Joining: SplitConfig{
			CompanyBps:  2500,
			SponsorsBps: 7000,
			SelfBps:     3000,
			LevelBps:    []int64{3000, 2000, 1500, 1000, 1000, 800, 700},
		},
		Repurchase: SplitConfig{
			CompanyBps:  2500,
			SponsorsBps: 10000,
			LevelBps:    []int64{2500, 2000, 1500, 1500, 1000, 1000, 500},
		},
	}
}

// DefaultPoolPlan is the 30% company plan feeding the turnover pool
func DefaultPoolPlan() PlanConfig {
	return PlanConfig{
		Joining: SplitConfig{
			CompanyBps:  3000,
			SponsorsBps: 4000,
			SelfBps:     3000,
			PoolBps:     3000,
			LevelBps:    []int64{4000, 2500, 1500, 1000, 1000},
		},
		Repurchase: SplitConfig{
			CompanyBps:  3000,
			SponsorsBps: 7000,
			PoolBps:     3000,
			LevelBps:    []int64{4000, 2500, 1500, 1000, 1000},
		},
	}
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and validates
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("HTTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.HTTPPort)
	}
	if val := os.Getenv("GRPC_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.GRPCPort)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Commission
	if val := os.Getenv("COMMISSION_MODEL"); val != "" {
		c.Commission.Model = strings.ToLower(val)
	}
	if val := os.Getenv("MATRIX_MAX_DEPTH"); val != "" {
		fmt.Sscanf(val, "%d", &c.Matrix.MaxDepth)
	}
}

// ApplyDefaults fills every unset optional value
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = 9090
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "matrix-commission"
	}

	if c.Matrix.MaxDepth == 0 {
		c.Matrix.MaxDepth = 7
	}

	if c.Commission.Model == "" {
		c.Commission.Model = CommissionModelMatrix
	}
	if isEmptyPlan(c.Commission.Matrix) {
		c.Commission.Matrix = DefaultMatrixPlan()
	}
	if isEmptyPlan(c.Commission.Pool) {
		c.Commission.Pool = DefaultPoolPlan()
	}

	if c.SelfIncome.Installments == 0 {
		c.SelfIncome.Installments = 4
	}
	if c.SelfIncome.PeriodDays == 0 {
		c.SelfIncome.PeriodDays = 7
	}
	if c.SelfIncome.BatchSize == 0 {
		c.SelfIncome.BatchSize = 500
	}

	if c.Team.Size == 0 {
		c.Team.Size = 3
	}
	if len(c.Team.LevelThresholds) == 0 {
		c.Team.LevelThresholds = []int{1, 9, 27, 81, 243}
	}

	if len(c.Pool.LevelBps) == 0 {
		c.Pool.LevelBps = []int64{3000, 2000, 2000, 2000, 1000}
	}

	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.BackoffMS == 0 {
		c.Retry.BackoffMS = 50
	}

	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 20
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 40
	}
	if c.RateLimit.IdleTTLSeconds == 0 {
		c.RateLimit.IdleTTLSeconds = 600
	}

	// Scheduler defaults
	if c.Scheduler.RunDuePayouts == "" {
		c.Scheduler.RunDuePayouts = "0 */15 * * * *" // every 15 minutes
	}
	if c.Scheduler.RefreshEligibility == "" {
		c.Scheduler.RefreshEligibility = "0 0 2 * * *" // 2 AM UTC
	}
	if c.Scheduler.ReconcileWallets == "" {
		c.Scheduler.ReconcileWallets = "0 0 3 * * *" // 3 AM UTC
	}
	if c.Scheduler.ResetMonthlyPurchases == "" {
		c.Scheduler.ResetMonthlyPurchases = "0 0 0 1 * *" // 1st of month at 12 AM UTC
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.ApplyDefaults()

	// Server validation
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRPCPort)
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}

	return c.ValidateEngine()
}

// ValidateEngine checks the commission, matrix, team and pool settings only
func (c *Config) ValidateEngine() error {
	if c.Matrix.MaxDepth < 1 || c.Matrix.MaxDepth > maxSupportedDepth {
		return fmt.Errorf("matrix max_depth must be between 1 and %d, got %d", maxSupportedDepth, c.Matrix.MaxDepth)
	}

	switch c.Commission.Model {
	case CommissionModelMatrix, CommissionModelPool:
	default:
		return fmt.Errorf("unknown commission model %q", c.Commission.Model)
	}
	for _, name := range []string{CommissionModelMatrix, CommissionModelPool} {
		plan, depth := c.Commission.Matrix, maxSupportedDepth
		if name == CommissionModelPool {
			plan = c.Commission.Pool
		}
		// only the active plan is bound by the configured depth
		if name == c.Commission.Model {
			depth = c.Matrix.MaxDepth
		}
		if err := plan.Joining.validate(true, depth); err != nil {
			return fmt.Errorf("%s joining split: %w", name, err)
		}
		if err := plan.Repurchase.validate(false, depth); err != nil {
			return fmt.Errorf("%s repurchase split: %w", name, err)
		}
	}

	if c.SelfIncome.Installments < 1 {
		return fmt.Errorf("self_income installments must be positive")
	}
	if c.SelfIncome.PeriodDays < 1 {
		return fmt.Errorf("self_income period_days must be positive")
	}

	if c.Team.Size < 1 {
		return fmt.Errorf("team size must be positive")
	}
	if len(c.Team.LevelThresholds) > domain.MaxLevel {
		return fmt.Errorf("team has %d level thresholds, at most %d levels exist", len(c.Team.LevelThresholds), domain.MaxLevel)
	}
	for i := 1; i < len(c.Team.LevelThresholds); i++ {
		if c.Team.LevelThresholds[i] <= c.Team.LevelThresholds[i-1] {
			return fmt.Errorf("team level thresholds must be strictly increasing")
		}
	}

	if len(c.Pool.LevelBps) > len(c.Team.LevelThresholds) {
		return fmt.Errorf("pool has %d levels but only %d team levels exist", len(c.Pool.LevelBps), len(c.Team.LevelThresholds))
	}
	if err := checkBpsTable(c.Pool.LevelBps); err != nil {
		return fmt.Errorf("pool level_bps: %w", err)
	}

	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry attempts must be positive")
	}
	return nil
}

func (s SplitConfig) validate(joining bool, maxDepth int) error {
	for _, v := range []int64{s.CompanyBps, s.SponsorsBps, s.SelfBps, s.PoolBps} {
		if v < 0 || v > 10000 {
			return fmt.Errorf("basis points must be between 0 and 10000")
		}
	}
	if s.SponsorsBps+s.SelfBps+s.PoolBps != 10000 {
		return fmt.Errorf("sponsors, self and pool must add up to 10000 of the bucket, got %d", s.SponsorsBps+s.SelfBps+s.PoolBps)
	}
	if !joining && s.SelfBps != 0 {
		return fmt.Errorf("repurchase orders have no self pot")
	}
	if len(s.LevelBps) == 0 {
		return fmt.Errorf("level_bps is required")
	}
	if len(s.LevelBps) > maxDepth {
		return fmt.Errorf("level_bps has %d levels but max_depth is %d", len(s.LevelBps), maxDepth)
	}
	return checkBpsTable(s.LevelBps)
}

func checkBpsTable(table []int64) error {
	var sum int64
	for _, v := range table {
		if v < 0 {
			return fmt.Errorf("basis points must not be negative")
		}
		sum += v
	}
	if sum > 10000 {
		return fmt.Errorf("basis points add up to %d, more than 10000", sum)
	}
	return nil
}

func isEmptyPlan(p PlanConfig) bool {
	return len(p.Joining.LevelBps) == 0 && len(p.Repurchase.LevelBps) == 0 &&
		p.Joining.CompanyBps == 0 && p.Repurchase.CompanyBps == 0
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetHTTPAddress returns the HTTP listen address
func (c *Config) GetHTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// GetGRPCAddress returns the gRPC listen address
func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}
