package utils

import (
	"os"
	"slices"
	"strings"
	"time"

	"go.viam.com/lcmbridge/logging"
)

const (
	// LCMDefaultURLEnvVar overrides the LCM URL used when none is configured.
	LCMDefaultURLEnvVar = "LCM_DEFAULT_URL"

	// BridgeEnvVarPrefix is the prefix of the bridge's own environment variables.
	BridgeEnvVarPrefix = "LCM_BRIDGE_"

	// StatsIntervalEnvVar overrides DefaultStatsInterval.
	StatsIntervalEnvVar = "LCM_BRIDGE_STATS_INTERVAL"

	// DefaultStatsInterval is how often the bridge logs its repeater counters.
	DefaultStatsInterval = time.Minute
)

// EnvTrueValues contains strings that we interpret as boolean true in env vars.
var EnvTrueValues = []string{"true", "yes", "1", "TRUE", "YES"}

// EnvTrue returns whether the named variable holds one of EnvTrueValues.
func EnvTrue(name string) bool {
	return slices.Contains(EnvTrueValues, os.Getenv(name))
}

// GetStatsInterval returns the stats log interval (env variable value if set,
// DefaultStatsInterval otherwise).
func GetStatsInterval(logger logging.Logger) time.Duration {
	return durationHelper(DefaultStatsInterval, StatsIntervalEnvVar, logger)
}

func durationHelper(defaultDuration time.Duration, envVar string, logger logging.Logger) time.Duration {
	if val := os.Getenv(envVar); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			logger.Warnf("Failed to parse %s env var, falling back to default %v", envVar, defaultDuration)
			return defaultDuration
		}
		return d
	}
	return defaultDuration
}

// LogBridgeEnvVariables logs the LCM related environment variables in [os.Environ].
func LogBridgeEnvVariables(msg string, logger logging.Logger) {
	var env []string
	for _, v := range os.Environ() {
		if strings.HasPrefix(v, BridgeEnvVarPrefix) || strings.HasPrefix(v, LCMDefaultURLEnvVar+"=") {
			env = append(env, v)
		}
	}
	if len(env) != 0 {
		logger.Infow(msg, "environment", env)
	}
}
