package configloader

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// GatewayPaths holds the backend endpoints consumed by the gateway client.
type GatewayPaths struct {
	Profile     string `yaml:"profile"`
	Wallets     string `yaml:"wallets"`
	CryptoRates string `yaml:"cryptoRates"`
	FiatRates   string `yaml:"fiatRates"`
}

// GatewayConfig holds configuration of the backend gateway client.
type GatewayConfig struct {
	BaseURL              string       `yaml:"baseURL"`
	RequestTimeoutMillis int64        `yaml:"requestTimeoutMillis"`
	RateLimit            float64      `yaml:"rateLimit"`
	BurstLimit           int          `yaml:"burstLimit"`
	Paths                GatewayPaths `yaml:"paths"`
}

// RealtimeConfig holds configuration of the realtime channel.
type RealtimeConfig struct {
	Enabled              bool   `yaml:"enabled"`
	URL                  string `yaml:"url"`
	ReconnectDelayMillis int64  `yaml:"reconnectDelayMillis"`
	MessageLogSize       int    `yaml:"messageLogSize"`
}

// RedisConfig holds configuration of the redis storage driver.
type RedisConfig struct {
	Addrs      []string `yaml:"addrs"`
	Password   string   `yaml:"password"`
	UseCluster bool     `yaml:"useCluster"`
	Namespace  string   `yaml:"namespace"`
}

// StorageConfig selects and configures the persistent storage driver.
type StorageConfig struct {
	Driver string      `yaml:"driver"` // file, memory, redis
	Dir    string      `yaml:"dir"`
	Redis  RedisConfig `yaml:"redis"`
}

// RefreshConfig holds intervals of the background refresh loops.
type RefreshConfig struct {
	WalletsIntervalSeconds int `yaml:"walletsIntervalSeconds"`
	RatesIntervalSeconds   int `yaml:"ratesIntervalSeconds"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level string `yaml:"level"` // e.g., "debug", "info", "warn", "error"
	File  string `yaml:"file"`
}

// CORSConfig holds allowed origins of the REST API.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Storage  StorageConfig  `yaml:"storage"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Logging  LoggingConfig  `yaml:"logging"`
	CORS     CORSConfig     `yaml:"cors"`
}

// Load reads the YAML configuration file from the given path and unmarshals it.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML data and fills in defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
		logrus.Infof("Server.Port not set, defaulting to %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 15
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 60
	}

	if cfg.Gateway.RequestTimeoutMillis == 0 {
		cfg.Gateway.RequestTimeoutMillis = 10000 // 10 seconds
		logrus.Infof("Gateway.RequestTimeoutMillis not set, defaulting to %d ms", cfg.Gateway.RequestTimeoutMillis)
	}
	if cfg.Gateway.RateLimit <= 0 {
		cfg.Gateway.RateLimit = 10
	}
	if cfg.Gateway.BurstLimit <= 0 {
		cfg.Gateway.BurstLimit = 5
	}
	if cfg.Gateway.Paths.Profile == "" {
		cfg.Gateway.Paths.Profile = "/auth-service/api/v1/users/profile"
	}
	if cfg.Gateway.Paths.Wallets == "" {
		cfg.Gateway.Paths.Wallets = "/wallet-service/api/v1/wallets"
	}
	if cfg.Gateway.Paths.CryptoRates == "" {
		cfg.Gateway.Paths.CryptoRates = "/exchange-service/api/v1/rates/crypto"
	}
	if cfg.Gateway.Paths.FiatRates == "" {
		cfg.Gateway.Paths.FiatRates = "/exchange-service/api/v1/rates/fiat"
	}

	if cfg.Realtime.ReconnectDelayMillis <= 0 {
		cfg.Realtime.ReconnectDelayMillis = 3000
	}
	if cfg.Realtime.MessageLogSize <= 0 {
		cfg.Realtime.MessageLogSize = 1000
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "file"
		logrus.Infof("Storage.Driver not set, defaulting to %s", cfg.Storage.Driver)
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "data/storage"
	}
	if cfg.Storage.Redis.Namespace == "" {
		cfg.Storage.Redis.Namespace = "balance_aggregator"
	}

	if cfg.Refresh.WalletsIntervalSeconds <= 0 {
		cfg.Refresh.WalletsIntervalSeconds = 60
	}
	if cfg.Refresh.RatesIntervalSeconds <= 0 {
		cfg.Refresh.RatesIntervalSeconds = 30
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks settings that have no sensible default.
func (c *Config) Validate() error {
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.baseURL is required")
	}
	switch c.Storage.Driver {
	case "file", "memory":
	case "redis":
		if len(c.Storage.Redis.Addrs) == 0 {
			return fmt.Errorf("storage.redis.addrs is required for redis driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Realtime.Enabled && c.Realtime.URL == "" {
		// Не фатально: канал просто не будет подключен.
		logrus.Warn("Realtime is enabled but realtime.url is empty, channel will stay disconnected")
	}
	return nil
}
