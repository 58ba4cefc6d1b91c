// Package config provides configuration helpers for camtrack commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Default service configuration.
const (
	DefaultPort         = 1111
	DefaultHTTPPort     = 8088
	DefaultTickInterval = 500 * time.Millisecond
	DefaultHorizon      = 500 * time.Millisecond
)

// Port returns the camera listener port from CAMTRACK_PORT, falling back
// to the provided default if unset or unparsable.
func Port(def int) int {
	return intEnv("CAMTRACK_PORT", def)
}

// HTTPPort returns the status/stream server port from CAMTRACK_HTTP_PORT.
func HTTPPort(def int) int {
	return intEnv("CAMTRACK_HTTP_PORT", def)
}

// TickInterval returns the tick interval from CAMTRACK_TICK_MS (milliseconds).
func TickInterval(def time.Duration) time.Duration {
	return msEnv("CAMTRACK_TICK_MS", def)
}

// Horizon returns the extrapolation horizon from CAMTRACK_HORIZON_MS (milliseconds).
func Horizon(def time.Duration) time.Duration {
	return msEnv("CAMTRACK_HORIZON_MS", def)
}

// CompassDevice returns the serial device path from CAMTRACK_COMPASS_DEV.
// Empty means no compass is configured.
func CompassDevice() string {
	return os.Getenv("CAMTRACK_COMPASS_DEV")
}

// CompassOffsetDeg returns the compass calibration offset in degrees from
// CAMTRACK_COMPASS_OFFSET_DEG.
func CompassOffsetDeg(def float64) float64 {
	v := os.Getenv("CAMTRACK_COMPASS_OFFSET_DEG")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func msEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
