package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/yangluo1024/store-contracts/internal/coinday"
	"github.com/yangluo1024/store-contracts/internal/economy"
	"github.com/yangluo1024/store-contracts/internal/logging"
)

// Config materialises node configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Economy   EconomyConfig   `mapstructure:"economy"`
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
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs how often the node tries to seal block-award
// epochs.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	AlignToGrid  bool          `mapstructure:"align_to_grid"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// EconomyConfig fixes the deployment's economic constants. Base-unit
// amounts are decimal strings because they routinely exceed float range.
type EconomyConfig struct {
	Owner             string        `mapstructure:"owner"`
	EpochInterval     time.Duration `mapstructure:"epoch_interval"`
	InitialDailyAward string        `mapstructure:"initial_daily_award"`
	BlockTime         time.Duration `mapstructure:"block_time"`
	ProposalNeeds     string        `mapstructure:"proposal_needs"`
	AccountsNeeds     uint32        `mapstructure:"accounts_needs"`
	ElcaimWindow      time.Duration `mapstructure:"elcaim_window"`
	VotingDelayBlocks uint64        `mapstructure:"voting_delay_blocks"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ELPNODE")
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "elpnode")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.align_to_grid", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("economy.epoch_interval", "30m")
	// 每日初始奖励 20000 ELP，8 位小数。
	v.SetDefault("economy.initial_daily_award", "2000000000000")
	v.SetDefault("economy.block_time", "6s")
	v.SetDefault("economy.proposal_needs", "100")
	v.SetDefault("economy.accounts_needs", 100)
	v.SetDefault("economy.elcaim_window", "10m")
	v.SetDefault("economy.voting_delay_blocks", uint64(201600))

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
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
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Economy.Owner == "" {
		return fmt.Errorf("economy.owner 必须配置")
	}
	if !common.IsHexAddress(c.Economy.Owner) {
		return fmt.Errorf("economy.owner is not a valid address: %s", c.Economy.Owner)
	}
	if c.Economy.EpochInterval <= 0 {
		return fmt.Errorf("economy.epoch_interval must be greater than zero")
	}
	if c.Economy.BlockTime <= 0 {
		return fmt.Errorf("economy.block_time must be greater than zero")
	}
	if _, err := coinday.ParseAmount(c.Economy.InitialDailyAward); err != nil {
		return fmt.Errorf("economy.initial_daily_award: %w", err)
	}
	if _, err := coinday.ParseAmount(c.Economy.ProposalNeeds); err != nil {
		return fmt.Errorf("economy.proposal_needs: %w", err)
	}
	return nil
}

// Params materialises the validated economy parameters.
func (c *EconomyConfig) Params() (economy.Params, error) {
	initial, err := coinday.ParseAmount(c.InitialDailyAward)
	if err != nil {
		return economy.Params{}, fmt.Errorf("initial daily award: %w", err)
	}
	needs, err := coinday.ParseAmount(c.ProposalNeeds)
	if err != nil {
		return economy.Params{}, fmt.Errorf("proposal needs: %w", err)
	}
	return economy.Params{
		Owner:             common.HexToAddress(c.Owner),
		EpochInterval:     uint64(c.EpochInterval.Milliseconds()),
		InitialDailyAward: initial,
		BlockTime:         uint64(c.BlockTime.Milliseconds()),
		ProposalNeeds:     needs,
		AccountsNeeds:     c.AccountsNeeds,
		ElcaimWindow:      uint64(c.ElcaimWindow.Milliseconds()),
		VotingDelay:       c.VotingDelayBlocks,
	}, nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
