package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/solrun-hq/solrunner/pkg/logger"
)

// Config holds the configuration for the runner service
type Config struct {
	RPCURL              string
	PrivateKey          string
	WalletService       WalletServiceConfig
	BirdeyeAPIKey       string
	Jupiter             JupiterConfig
	LLM                 LLMConfig
	TaskDBPath          string
	PollingInterval     time.Duration
	WorkerCount         int
	MetricsPort         string
	ConfirmPollAttempts int
	CircuitBreaker      CircuitBreakerConfig
	LoggerConfig        LoggerConfig
}

// WalletServiceConfig holds the remote key service configuration. When
// Endpoint is empty, keys come from the local environment instead.
type WalletServiceConfig struct {
	Endpoint    string
	SecretToken string
	SecretSalt  string
}

// JupiterConfig holds swap aggregator parameters. FeeWallet is the wallet
// that collects the platform fee; its token account for the input mint is
// derived per swap.
type JupiterConfig struct {
	BaseURL                string
	PlatformFeeBps         int
	FeeWallet              string
	PriorityFeeMaxLamports uint64
}

// LLMConfig holds the confirmation classifier configuration
type LLMConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	rpcURL, err := GetEnvRPCURL()
	if err != nil {
		return nil, err
	}

	pollingInterval, err := GetEnvPollingInterval()
	if err != nil {
		return nil, err
	}

	workerCount, err := GetEnvWorkerCount()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	confirmAttempts, err := GetEnvConfirmPollAttempts()
	if err != nil {
		return nil, err
	}

	jupiterConfig, err := GetEnvJupiterConfig()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCURL:     rpcURL,
		PrivateKey: os.Getenv("WALLET_PRIVATE_KEY"),
		WalletService: WalletServiceConfig{
			Endpoint:    os.Getenv("WALLET_SERVICE_ENDPOINT"),
			SecretToken: os.Getenv("WALLET_SERVICE_SECRET_TOKEN"),
			SecretSalt:  os.Getenv("WALLET_SERVICE_SECRET_SALT"),
		},
		BirdeyeAPIKey: os.Getenv("BIRDEYE_API_KEY"),
		Jupiter:       jupiterConfig,
		LLM: LLMConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   GetEnvLLMModel(),
			BaseURL: os.Getenv("LLM_BASE_URL"),
		},
		TaskDBPath:          GetEnvTaskDBPath(),
		PollingInterval:     pollingInterval,
		WorkerCount:         workerCount,
		MetricsPort:         metricsPort,
		ConfirmPollAttempts: confirmAttempts,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.PrivateKey == "" && cfg.WalletService.Endpoint == "" {
		return fmt.Errorf("either WALLET_PRIVATE_KEY or WALLET_SERVICE_ENDPOINT is required")
	}
	if cfg.WalletService.Endpoint != "" && cfg.WalletService.SecretToken == "" {
		return fmt.Errorf("WALLET_SERVICE_SECRET_TOKEN is required when WALLET_SERVICE_ENDPOINT is set")
	}
	if cfg.BirdeyeAPIKey == "" {
		return fmt.Errorf("BIRDEYE_API_KEY environment variable is required")
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable is required")
	}
	if cfg.Jupiter.PlatformFeeBps > 0 && cfg.Jupiter.FeeWallet == "" {
		return fmt.Errorf("JUP_FEE_WALLET is required when JUP_SWAP_FEE_BPS is set")
	}
	return nil
}
