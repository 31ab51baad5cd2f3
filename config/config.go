package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tarikbc/accountmonitor/db"
	"github.com/tarikbc/accountmonitor/helpers"

	yaml "gopkg.in/yaml.v2"
)

const (
	DefaultLoggingLevel                    = "info"
	DefaultServerPort                      = 8080
	DefaultHealthPort                      = 8081
	DefaultScanInterval      time.Duration = 60 * time.Second
	DefaultBatchSize                       = 20
	DefaultBatchDelay        time.Duration = 500 * time.Millisecond
	DefaultAccountTimeout    time.Duration = 10 * time.Second
	DefaultKeepAliveInterval time.Duration = 5 * time.Second
	DefaultAckTimeout        time.Duration = 5 * time.Second
	DefaultCacheTTL          time.Duration = 5 * time.Minute
	DefaultSummaryTTL        time.Duration = 30 * time.Second
	DefaultRateLimitAmount                 = 10
	DefaultRateLimitDuration time.Duration = 1 * time.Second

	DefaultBackOffInitialInterval         time.Duration = 1 * time.Minute
	DefaultBackOffMaxInterval             time.Duration = 10 * time.Minute
	DefaultBreakerConsecutiveFailureCount int64         = 3

	DefaultPruneInterval  time.Duration = 24 * time.Hour
	DefaultCutoffDuration time.Duration = 30 * 24 * time.Hour

	AlertDbName   = "alert_db"
	AccountDbName = "account_db"
)

type MonitorConfig struct {
	ScanInterval   time.Duration `yaml:"scan_interval"`
	BatchSize      int           `yaml:"batch_size"`
	BatchDelay     time.Duration `yaml:"batch_delay"`
	AccountTimeout time.Duration `yaml:"account_timeout"`
	ProviderURL    string        `yaml:"provider_url"`
}

type CircuitBreakerConfig struct {
	BackOffInitialInterval  time.Duration `yaml:"back_off_initial_interval"`
	BackOffMaxInterval      time.Duration `yaml:"back_off_max_interval"`
	ConsecutiveFailureCount int64         `yaml:"consecutive_failure_count"`
}

type PrunerConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	CutoffDuration  time.Duration `yaml:"cutoff_duration"`
}

type SyncConfig struct {
	KeepAliveInterval time.Duration   `yaml:"keep_alive_interval"`
	AckTimeout        time.Duration   `yaml:"ack_timeout"`
	TokenSecret       string          `yaml:"token_secret"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	MaxAmount     int           `yaml:"max_amount"`
	ValidDuration time.Duration `yaml:"valid_duration"`
}

type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	SummaryTTL time.Duration `yaml:"summary_ttl"`
}

type Config struct {
	Logging        helpers.LoggingConfig        `yaml:"logging"`
	Server         helpers.ServerConfig         `yaml:"server"`
	Health         helpers.ServerConfig         `yaml:"health"`
	Db             map[string]db.DatabaseConfig `yaml:"db"`
	Monitor        MonitorConfig                `yaml:"monitor"`
	Pruner         PrunerConfig                 `yaml:"pruner"`
	CircuitBreaker CircuitBreakerConfig         `yaml:"circuitBreaker"`
	Sync           SyncConfig                   `yaml:"sync"`
	Cache          CacheConfig                  `yaml:"cache"`
}

func LoadConfig(bytes []byte) (*Config, error) {
	conf := &Config{
		Logging: helpers.LoggingConfig{
			Level: DefaultLoggingLevel,
		},
		Server: helpers.ServerConfig{
			Port: DefaultServerPort,
		},
		Health: helpers.ServerConfig{
			Port: DefaultHealthPort,
		},
		Db: make(map[string]db.DatabaseConfig),
		Monitor: MonitorConfig{
			ScanInterval:   DefaultScanInterval,
			BatchSize:      DefaultBatchSize,
			BatchDelay:     DefaultBatchDelay,
			AccountTimeout: DefaultAccountTimeout,
		},
		Pruner: PrunerConfig{
			RefreshInterval: DefaultPruneInterval,
			CutoffDuration:  DefaultCutoffDuration,
		},
		Sync: SyncConfig{
			KeepAliveInterval: DefaultKeepAliveInterval,
			AckTimeout:        DefaultAckTimeout,
			RateLimit: RateLimitConfig{
				MaxAmount:     DefaultRateLimitAmount,
				ValidDuration: DefaultRateLimitDuration,
			},
		},
		Cache: CacheConfig{
			TTL:        DefaultCacheTTL,
			SummaryTTL: DefaultSummaryTTL,
		},
	}

	err := yaml.Unmarshal(bytes, conf)
	if err != nil {
		return nil, err
	}

	conf.Logging.Level = strings.ToLower(conf.Logging.Level)
	if conf.CircuitBreaker.ConsecutiveFailureCount == 0 {
		conf.CircuitBreaker.ConsecutiveFailureCount = DefaultBreakerConsecutiveFailureCount
	}
	if conf.CircuitBreaker.BackOffInitialInterval == 0 {
		conf.CircuitBreaker.BackOffInitialInterval = DefaultBackOffInitialInterval
	}
	if conf.CircuitBreaker.BackOffMaxInterval == 0 {
		conf.CircuitBreaker.BackOffMaxInterval = DefaultBackOffMaxInterval
	}
	return conf, nil
}

func (c *Config) Validate() error {
	if c.Db[AlertDbName].URL == "" {
		return fmt.Errorf("Configuration error: db.alert_db.url is empty")
	}
	if c.Db[AccountDbName].URL == "" {
		return fmt.Errorf("Configuration error: db.account_db.url is empty")
	}
	if c.Monitor.ScanInterval <= time.Duration(0) {
		return fmt.Errorf("Configuration error: monitor.scan_interval is less-equal than 0")
	}
	if c.Monitor.BatchSize <= 0 {
		return fmt.Errorf("Configuration error: monitor.batch_size is less-equal than 0")
	}
	if c.Monitor.BatchDelay < time.Duration(0) {
		return fmt.Errorf("Configuration error: monitor.batch_delay is less than 0")
	}
	if c.Monitor.AccountTimeout <= time.Duration(0) {
		return fmt.Errorf("Configuration error: monitor.account_timeout is less-equal than 0")
	}
	if c.Monitor.ProviderURL == "" {
		return fmt.Errorf("Configuration error: monitor.provider_url is empty")
	}
	if c.Pruner.RefreshInterval <= time.Duration(0) {
		return fmt.Errorf("Configuration error: pruner.refresh_interval is less-equal than 0")
	}
	if c.Pruner.CutoffDuration <= time.Duration(0) {
		return fmt.Errorf("Configuration error: pruner.cutoff_duration is less-equal than 0")
	}
	if c.Sync.KeepAliveInterval <= time.Duration(0) {
		return fmt.Errorf("Configuration error: sync.keep_alive_interval is less-equal than 0")
	}
	if c.Sync.AckTimeout <= time.Duration(0) {
		return fmt.Errorf("Configuration error: sync.ack_timeout is less-equal than 0")
	}
	if c.Sync.TokenSecret == "" {
		return fmt.Errorf("Configuration error: sync.token_secret is empty")
	}
	if c.Sync.RateLimit.MaxAmount <= 0 {
		return fmt.Errorf("Configuration error: sync.rate_limit.max_amount is less-equal than 0")
	}
	if c.Sync.RateLimit.ValidDuration <= time.Duration(0) {
		return fmt.Errorf("Configuration error: sync.rate_limit.valid_duration is less-equal than 0")
	}
	if c.Cache.TTL <= time.Duration(0) {
		return fmt.Errorf("Configuration error: cache.ttl is less-equal than 0")
	}
	return nil
}
