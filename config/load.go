package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"oracle-mm-go/infrastructure/logger"
	"oracle-mm-go/store"
	"oracle-mm-go/strategy"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env      string         `yaml:"env"`
	Logging  logger.Config  `yaml:"logging"`
	Venue    VenueConfig    `yaml:"venue"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Strategy StrategyConfig `yaml:"strategy"`
	Store    StoreConfig    `yaml:"store"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type VenueConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Owner        string `yaml:"owner"`        // 市场账户期望的所有者
	Discriminant uint64 `yaml:"discriminant"` // 市场账户期望的判别值
}

type OracleConfig struct {
	Endpoint    string `yaml:"endpoint"`
	BaseFeedID  string `yaml:"baseFeedId"`
	QuoteFeedID string `yaml:"quoteFeedId"`
	MaxAgeSec   int    `yaml:"maxAgeSec"` // 读数最大陈旧秒数，0 取默认 60
	Stream      bool   `yaml:"stream"`    // 是否走 websocket 推送，REST 作兜底
}

// StrategyConfig 报价策略参数（来自配置文件，可热更新）。
type StrategyConfig struct {
	Trader                string `yaml:"trader"`
	Market                string `yaml:"market"`
	QuoteRefreshMs        int    `yaml:"quoteRefreshMs"`        // 报价周期（毫秒）
	QuoteEdgeInBps        uint64 `yaml:"quoteEdgeInBps"`        // 半边报价宽度（基点）
	QuoteSizeInQuoteAtoms uint64 `yaml:"quoteSizeInQuoteAtoms"` // 每边名义（quote 原子单位）
	Behavior              string `yaml:"behavior"`              // join / dime / ignore
	PostOnly              bool   `yaml:"postOnly"`
}

type StoreConfig struct {
	Path string `yaml:"path"` // sqlite 文件路径
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // 为空时不启动指标服务
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	cfg.Logging = logger.DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides selected fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("OMM_VENUE_ENDPOINT"); v != "" {
		cfg.Venue.Endpoint = v
	}
	if v := os.Getenv("OMM_ORACLE_ENDPOINT"); v != "" {
		cfg.Oracle.Endpoint = v
	}
	if v := os.Getenv("OMM_TRADER"); v != "" {
		cfg.Strategy.Trader = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Venue.Owner == "" {
		return errors.New("venue.owner is required")
	}
	if cfg.Oracle.BaseFeedID == "" || cfg.Oracle.QuoteFeedID == "" {
		return errors.New("oracle.baseFeedId/quoteFeedId is required")
	}
	if cfg.Oracle.MaxAgeSec < 0 {
		return errors.New("oracle.maxAgeSec must be >= 0")
	}
	if cfg.Strategy.Trader == "" || cfg.Strategy.Market == "" {
		return errors.New("strategy.trader/market is required")
	}
	if cfg.Strategy.QuoteEdgeInBps == 0 {
		return errors.New("strategy.quoteEdgeInBps must be > 0")
	}
	if cfg.Strategy.QuoteSizeInQuoteAtoms == 0 {
		return errors.New("strategy.quoteSizeInQuoteAtoms must be > 0")
	}
	if cfg.Strategy.QuoteRefreshMs < 0 {
		return errors.New("strategy.quoteRefreshMs must be >= 0")
	}
	if _, err := strategy.ParseBehavior(cfg.Strategy.Behavior); err != nil {
		return fmt.Errorf("strategy.behavior: %w", err)
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path is required")
	}
	return nil
}

// Params 把策略段转换成状态机参数（热更新和初始化共用）。
func (c StrategyConfig) Params() (store.Params, error) {
	behavior, err := strategy.ParseBehavior(c.Behavior)
	if err != nil {
		return store.Params{}, err
	}
	edge := c.QuoteEdgeInBps
	size := c.QuoteSizeInQuoteAtoms
	postOnly := c.PostOnly
	return store.Params{
		QuoteEdgeInBps:        &edge,
		QuoteSizeInQuoteAtoms: &size,
		Behavior:              &behavior,
		PostOnly:              &postOnly,
	}, nil
}
