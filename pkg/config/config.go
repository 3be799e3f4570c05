// Package config loads the indexer's operating configuration. The act of
// loading configuration is an external concern (see SPEC_FULL.md §1), but the
// shape consumed by the core lives here so every component can depend on a
// single stable struct.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/opnet-core/indexer/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for an indexer process.
type Config struct {
	Network struct {
		Chain    string `mapstructure:"chain" json:"chain"` // mainnet|testnet|testnet4|regtest|signet|custom
		Host     string `mapstructure:"host" json:"host"`
		Port     int    `mapstructure:"port" json:"port"`
		Username string `mapstructure:"username" json:"username"`
		Password string `mapstructure:"password" json:"password"`
		Magic    string `mapstructure:"magic" json:"magic"` // 4-byte hex, required when chain=custom
	} `mapstructure:"network" json:"network"`

	Indexing struct {
		ReorgDepth           uint64 `mapstructure:"reorg_depth" json:"reorg_depth"`
		PendingBlockThreshold int   `mapstructure:"pending_block_threshold" json:"pending_block_threshold"`
		PurgeWindow          uint64 `mapstructure:"purge_window" json:"purge_window"`
		PurgeEnabled         bool   `mapstructure:"purge_enabled" json:"purge_enabled"`
	} `mapstructure:"indexing" json:"indexing"`

	Evaluator struct {
		GasSchedulePath  string `mapstructure:"gas_schedule_path" json:"gas_schedule_path"`
		MaxCallDepth     int    `mapstructure:"max_call_depth" json:"max_call_depth"`
		MaxDeployDepth   int    `mapstructure:"max_deploy_depth" json:"max_deploy_depth"`
		ReentrancyGuard  bool   `mapstructure:"reentrancy_guard" json:"reentrancy_guard"`
		ModuleCacheSize  int    `mapstructure:"module_cache_size" json:"module_cache_size"`
		ViewPoolSize     int    `mapstructure:"view_pool_size" json:"view_pool_size"`
	} `mapstructure:"evaluator" json:"evaluator"`

	Hooks struct {
		BlockTimeoutMS     int  `mapstructure:"block_timeout_ms" json:"block_timeout_ms"`
		ReorgTimeoutMS     int  `mapstructure:"reorg_timeout_ms" json:"reorg_timeout_ms"`
		HighWaterMark      int  `mapstructure:"high_water_mark" json:"high_water_mark"`
		ParallelWorkerCap  int  `mapstructure:"parallel_worker_cap" json:"parallel_worker_cap"`
	} `mapstructure:"hooks" json:"hooks"`

	Storage struct {
		DataDir      string `mapstructure:"data_dir" json:"data_dir"`
		SnapshotEvery int    `mapstructure:"snapshot_every" json:"snapshot_every"`
		CompressCode bool   `mapstructure:"compress_code" json:"compress_code"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads the default configuration plus an optional environment overlay,
// merges in a .env file if present, and unmarshals into AppConfig.
func Load(env string) (*Config, error) {
	_ = godotenv.Load() // best effort; absence of .env is not an error

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the INDEXER_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("INDEXER_ENV", ""))
}
