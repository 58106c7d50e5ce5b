package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the overall configuration for the application.
type Config struct {
	Server            ServerConfig            `yaml:"server"`
	Logging           LoggingConfig           `yaml:"logging"`
	NetworkController NetworkControllerConfig `yaml:"networkController"`
	RpcClient         RpcClientConfig         `yaml:"rpcClient"`
	BlockTracker      BlockTrackerConfig      `yaml:"blockTracker"`
}

// ServerConfig holds the server-specific configuration.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // e.g., "debug", "info", "warn", "error"
}

// NetworkControllerConfig holds configuration for the network controller.
type NetworkControllerConfig struct {
	// Environment selects the default provider when no state is restored:
	// "production" connects to mainnet, anything else to goerli.
	Environment string `yaml:"environment"`

	// InIntegrationTest points the default provider at a localhost node.
	InIntegrationTest bool `yaml:"inIntegrationTest"`

	// InfuraProjectID credentials the hosted first-party endpoints. May be
	// supplied via the INFURA_PROJECT_ID environment variable instead.
	InfuraProjectID string `yaml:"infuraProjectId"`
}

// RpcClientConfig holds tuning for the JSON-RPC middleware chain.
type RpcClientConfig struct {
	DefaultTimeoutMs int `yaml:"defaultTimeoutMs"`
	RateLimit        int `yaml:"rateLimit"`
	BurstLimit       int `yaml:"burstLimit"`
	MaxRetries       int `yaml:"maxRetries"`
	RetryDelayMs     int `yaml:"retryDelayMs"`
	CacheTTLSeconds  int `yaml:"cacheTTLSeconds"`
}

// BlockTrackerConfig holds tuning for the polling block tracker.
type BlockTrackerConfig struct {
	PollIntervalMs int `yaml:"pollIntervalMs"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

// ApplyDefaults fills unset fields with working values.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60
	}
	if cfg.NetworkController.Environment == "" {
		cfg.NetworkController.Environment = "production"
		logrus.Infof("networkController.environment not set, defaulting to %s", cfg.NetworkController.Environment)
	}
	if cfg.NetworkController.InfuraProjectID == "" {
		cfg.NetworkController.InfuraProjectID = os.Getenv("INFURA_PROJECT_ID")
	}
	if cfg.RpcClient.DefaultTimeoutMs == 0 {
		cfg.RpcClient.DefaultTimeoutMs = 10000
		logrus.Infof("rpcClient.defaultTimeoutMs not set, defaulting to %d ms", cfg.RpcClient.DefaultTimeoutMs)
	}
	if cfg.RpcClient.MaxRetries == 0 {
		cfg.RpcClient.MaxRetries = 3
	}
	if cfg.RpcClient.RetryDelayMs == 0 {
		cfg.RpcClient.RetryDelayMs = 250
	}
	if cfg.RpcClient.CacheTTLSeconds == 0 {
		cfg.RpcClient.CacheTTLSeconds = 30
	}
	if cfg.BlockTracker.PollIntervalMs == 0 {
		cfg.BlockTracker.PollIntervalMs = 20000
		logrus.Infof("blockTracker.pollIntervalMs not set, defaulting to %d ms", cfg.BlockTracker.PollIntervalMs)
	}
}
