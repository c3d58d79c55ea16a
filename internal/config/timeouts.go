package config

import "time"

// TimeoutConfig holds timeout settings for the HTTP server.
// These can be configured via CLI flags.
type TimeoutConfig struct {
	// ServerRead bounds reading a request, body included. Default: 15s
	ServerRead time.Duration

	// ServerIdle is how long keep-alive connections wait for the next request.
	// Default: 120s
	ServerIdle time.Duration

	// Shutdown is how long in-flight requests get to finish on shutdown.
	// Default: 30s
	Shutdown time.Duration
}

// DefaultTimeoutConfig returns the default timeout configuration
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		ServerRead: 15 * time.Second,
		ServerIdle: 120 * time.Second,
		Shutdown:   30 * time.Second,
	}
}

// global instance that can be set at startup
var globalTimeouts = DefaultTimeoutConfig()

// SetGlobalTimeouts sets the global timeout configuration
func SetGlobalTimeouts(cfg *TimeoutConfig) {
	globalTimeouts = cfg
}

// GetTimeouts returns the global timeout configuration
func GetTimeouts() *TimeoutConfig {
	return globalTimeouts
}
