package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds the tunable durations of a run.
// These values can be customized via environment variables.
type Timeouts struct {
	Command           time.Duration // Deadline for a single dispatched command
	SSHDial           time.Duration // TCP dial timeout for SSH connections
	ClusterReady      time.Duration // How long the node readiness check polls
	RetryMaxAttempts  int           // Maximum SSH connection retry attempts
	RetryInitialDelay time.Duration // Initial delay between SSH connection retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - CALCIFER_TIMEOUT_COMMAND (default: 10m)
//   - CALCIFER_TIMEOUT_SSH_DIAL (default: 10s)
//   - CALCIFER_TIMEOUT_CLUSTER_READY (default: 5m)
//   - CALCIFER_RETRY_MAX_ATTEMPTS (default: 5)
//   - CALCIFER_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Command:           parseDuration("CALCIFER_TIMEOUT_COMMAND", 10*time.Minute),
		SSHDial:           parseDuration("CALCIFER_TIMEOUT_SSH_DIAL", 10*time.Second),
		ClusterReady:      parseDuration("CALCIFER_TIMEOUT_CLUSTER_READY", 5*time.Minute),
		RetryMaxAttempts:  parseInt("CALCIFER_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("CALCIFER_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
