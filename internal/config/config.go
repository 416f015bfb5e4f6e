package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"pair-growth-alerts/internal/detector"
	"pair-growth-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	API       APIConfig       `mapstructure:"api"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs sampling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// EthereumConfig covers on-chain data access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	FactoryAddress string        `mapstructure:"factory_address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DetectorConfig tunes the growth rule.
type DetectorConfig struct {
	Threshold uint64 `mapstructure:"threshold"`
	Policy    string `mapstructure:"policy"`
	Window    int    `mapstructure:"window"`
}

// LedgerConfig names the identities around the alert ledger.
type LedgerConfig struct {
	OwnerAddress    string `mapstructure:"owner_address"`
	OperatorAddress string `mapstructure:"operator_address"`
}

// Owner parses the configured acknowledgement authority.
func (l LedgerConfig) Owner() common.Address {
	return common.HexToAddress(l.OwnerAddress)
}

// Operator parses the identity recorded on collector-triggered alerts.
func (l LedgerConfig) Operator() common.Address {
	return common.HexToAddress(l.OperatorAddress)
}

// AlertingConfig defines outbound notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram delivery parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// APIConfig controls the HTTP surface over the ledger.
type APIConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	ListenAddr         string   `mapstructure:"listen_addr"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAIRWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// setDefaults registers every config key; AutomaticEnv only binds the
// PAIRWATCHER_* form of keys viper already knows about, so unset keys
// carry an explicit zero default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pairwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.time_format", "")
	v.SetDefault("logging.caller", false)
	v.SetDefault("logging.pretty", false)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("logging.compress", false)

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x50414952))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("ethereum.rpc_url", "")
	v.SetDefault("ethereum.factory_address", "")
	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("detector.threshold", uint64(detector.DefaultThreshold))
	v.SetDefault("detector.policy", string(detector.PolicyRate))
	v.SetDefault("detector.window", 10)

	v.SetDefault("ledger.owner_address", "")
	v.SetDefault("ledger.operator_address", "")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.cors_allowed_origins", []string{"*"})

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Detector.Window < 2 {
		return fmt.Errorf("detector.window must be at least 2")
	}
	switch detector.Policy(c.Detector.Policy) {
	case detector.PolicyRate, detector.PolicyDelta:
	default:
		return fmt.Errorf("detector.policy must be %q or %q", detector.PolicyRate, detector.PolicyDelta)
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Ethereum.FactoryAddress != "" && !common.IsHexAddress(c.Ethereum.FactoryAddress) {
		return fmt.Errorf("ethereum.factory_address is not a valid address")
	}
	if c.Ledger.OwnerAddress != "" && !common.IsHexAddress(c.Ledger.OwnerAddress) {
		return fmt.Errorf("ledger.owner_address is not a valid address")
	}
	if c.Ledger.OperatorAddress != "" && !common.IsHexAddress(c.Ledger.OperatorAddress) {
		return fmt.Errorf("ledger.operator_address is not a valid address")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.API.Enabled && c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr is required when the api is enabled")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
