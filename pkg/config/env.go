package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/solrun-hq/solrunner/pkg/logger"
)

const (
	// DefaultRPCURL defines the default Solana RPC endpoint
	DefaultRPCURL = "https://api.mainnet-beta.solana.com"

	// DefaultPollingInterval defines the default scheduler tick interval in seconds
	DefaultPollingInterval = 10

	// DefaultWorkerCount defines the default number of workers to execute tasks
	DefaultWorkerCount = 5

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultConfirmPollAttempts defines how many one-second status polls are
	// made before a submitted transaction is reported as unconfirmed
	DefaultConfirmPollAttempts = 20

	// DefaultTaskDBPath defines the default path of the task database file
	DefaultTaskDBPath = "solrunner.db"

	// DefaultJupiterBaseURL defines the default swap aggregator endpoint
	DefaultJupiterBaseURL = "https://quote-api.jup.ag/v6"

	// DefaultPriorityFeeMaxLamports caps the priority fee attached to swaps
	DefaultPriorityFeeMaxLamports = 4000000

	// DefaultLLMModel defines the default model for confirmation classification
	DefaultLLMModel = "gpt-4o-mini"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker
	DefaultCircuitBreakerWindow = 5

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerReset = 15
)

// GetEnvRPCURL returns the Solana RPC endpoint from environment variables
func GetEnvRPCURL() (string, error) {
	rpcURL := os.Getenv("SOLANA_RPC_URL")
	if rpcURL == "" {
		return DefaultRPCURL, nil
	}

	// Validate URL format
	if _, err := url.ParseRequestURI(rpcURL); err != nil {
		return "", fmt.Errorf("invalid SOLANA_RPC_URL value: %s, must be a valid URL", rpcURL)
	}
	return rpcURL, nil
}

// GetEnvPollingInterval returns the scheduler tick interval in seconds from environment variables
func GetEnvPollingInterval() (time.Duration, error) {
	pollingInterval := os.Getenv("POLLING_INTERVAL")
	if pollingInterval == "" {
		return time.Duration(DefaultPollingInterval) * time.Second, nil
	}

	// use atoi
	interval, err := strconv.Atoi(pollingInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid POLLING_INTERVAL value: %s, must be an integer", pollingInterval)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("POLLING_INTERVAL must be greater than 0")
	}
	return time.Duration(interval) * time.Second, nil
}

// GetEnvWorkerCount returns the number of workers from environment variables
func GetEnvWorkerCount() (int, error) {
	workerCount := os.Getenv("WORKER_COUNT")
	if workerCount == "" {
		return DefaultWorkerCount, nil
	}

	// use atoi
	count, err := strconv.Atoi(workerCount)
	if err != nil {
		return 0, fmt.Errorf("invalid WORKER_COUNT value: %s, must be an integer", workerCount)
	}
	if count <= 0 {
		return 0, fmt.Errorf("WORKER_COUNT must be greater than 0")
	}
	return count, nil
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvConfirmPollAttempts returns the confirmation polling budget from environment variables
func GetEnvConfirmPollAttempts() (int, error) {
	attempts := os.Getenv("CONFIRM_POLL_ATTEMPTS")
	if attempts == "" {
		return DefaultConfirmPollAttempts, nil
	}

	attemptsInt, err := strconv.Atoi(attempts)
	if err != nil {
		return 0, fmt.Errorf("invalid CONFIRM_POLL_ATTEMPTS value: %s, must be an integer", attempts)
	}
	if attemptsInt <= 0 {
		return 0, fmt.Errorf("CONFIRM_POLL_ATTEMPTS must be greater than 0")
	}
	return attemptsInt, nil
}

// GetEnvTaskDBPath returns the task database path from environment variables
func GetEnvTaskDBPath() string {
	path := os.Getenv("TASK_DB_PATH")
	if path == "" {
		return DefaultTaskDBPath
	}
	return path
}

// GetEnvLLMModel returns the confirmation classifier model from environment variables
func GetEnvLLMModel() string {
	model := os.Getenv("LLM_MODEL")
	if model == "" {
		return DefaultLLMModel
	}
	return model
}

// GetEnvJupiterConfig returns the swap aggregator configuration from environment variables
func GetEnvJupiterConfig() (JupiterConfig, error) {
	baseURL := os.Getenv("JUP_BASE_URL")
	if baseURL == "" {
		baseURL = DefaultJupiterBaseURL
	} else if _, err := url.ParseRequestURI(baseURL); err != nil {
		return JupiterConfig{}, fmt.Errorf("invalid JUP_BASE_URL value: %s, must be a valid URL", baseURL)
	}

	feeBps := 0
	if v := os.Getenv("JUP_SWAP_FEE_BPS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return JupiterConfig{}, fmt.Errorf("invalid JUP_SWAP_FEE_BPS value: %s, must be an integer", v)
		}
		if parsed < 0 || parsed > 10000 {
			return JupiterConfig{}, fmt.Errorf("JUP_SWAP_FEE_BPS must be between 0 and 10000")
		}
		feeBps = parsed
	}

	maxLamports := uint64(DefaultPriorityFeeMaxLamports)
	if v := os.Getenv("PRIORITY_FEE_MAX_LAMPORTS"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return JupiterConfig{}, fmt.Errorf("invalid PRIORITY_FEE_MAX_LAMPORTS value: %s, must be an unsigned integer", v)
		}
		maxLamports = parsed
	}

	return JupiterConfig{
		BaseURL:                baseURL,
		PlatformFeeBps:         feeBps,
		FeeWallet:              os.Getenv("JUP_FEE_WALLET"),
		PriorityFeeMaxLamports: maxLamports,
	}, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvLogLevel returns the logging level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return logger.InfoLevel, nil
	}

	switch level {
	case "debug":
		return logger.DebugLevel, nil
	case "info":
		return logger.InfoLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be 'debug', 'info', 'notice' or 'error'", level)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	if coloring == "true" {
		return true, nil
	} else if coloring == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
}
