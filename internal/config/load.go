package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file consulted when no explicit path is given.
const DefaultFile = "ccc.yaml"

// Load resolves the container configuration: baseline defaults, then the
// YAML file at path (skipped when path is empty and DefaultFile does not
// exist), then CCC_* environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := Baseline()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the YAML file over the current config. Fields absent
// from the file keep their current values.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// applyEnvOverrides applies CCC_* environment variables on top of the
// merged config. Malformed values are ignored in favor of the current
// value, matching the override-or-keep behavior of the file layer.
func applyEnvOverrides(cfg *Config) {
	cfg.Serial.Device = GetEnvVar("CCC_SERIAL_DEVICE", cfg.Serial.Device)
	cfg.Serial.Baud = GetEnvInt("CCC_SERIAL_BAUD", cfg.Serial.Baud)
	cfg.Serial.ReadTimeout = Duration(GetEnvDuration("CCC_SERIAL_READ_TIMEOUT", cfg.Serial.ReadTimeout.Std()))
	cfg.Serial.SettleDelay = Duration(GetEnvDuration("CCC_SERIAL_SETTLE_DELAY", cfg.Serial.SettleDelay.Std()))
	cfg.Serial.ResponseLength = GetEnvInt("CCC_SERIAL_RESPONSE_LENGTH", cfg.Serial.ResponseLength)

	cfg.Command.TimeoutConnect = Duration(GetEnvDuration("CCC_COMMAND_TIMEOUT_CONNECT", cfg.Command.TimeoutConnect.Std()))
	cfg.Command.TimeoutSetFrequency = Duration(GetEnvDuration("CCC_COMMAND_TIMEOUT_SET_FREQUENCY", cfg.Command.TimeoutSetFrequency.Std()))
	cfg.Command.TimeoutGetFrequency = Duration(GetEnvDuration("CCC_COMMAND_TIMEOUT_GET_FREQUENCY", cfg.Command.TimeoutGetFrequency.Std()))
	cfg.Command.TimeoutSendRaw = Duration(GetEnvDuration("CCC_COMMAND_TIMEOUT_SEND_RAW", cfg.Command.TimeoutSendRaw.Std()))

	cfg.API.Addr = GetEnvVar("CCC_API_ADDR", cfg.API.Addr)

	cfg.Auth.Enabled = GetEnvBool("CCC_AUTH_ENABLED", cfg.Auth.Enabled)
	cfg.Auth.HSSecret = GetEnvVar("CCC_AUTH_HS_SECRET", cfg.Auth.HSSecret)
	cfg.Auth.RSPublicKeyFile = GetEnvVar("CCC_AUTH_RS_PUBLIC_KEY_FILE", cfg.Auth.RSPublicKeyFile)

	cfg.Log.Level = GetEnvVar("CCC_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = GetEnvVar("CCC_LOG_FILE", cfg.Log.File)

	cfg.Audit.File = GetEnvVar("CCC_AUDIT_FILE", cfg.Audit.File)

	cfg.Telemetry.EventBufferSize = GetEnvInt("CCC_TELEMETRY_EVENT_BUFFER_SIZE", cfg.Telemetry.EventBufferSize)
	cfg.Telemetry.HeartbeatInterval = Duration(GetEnvDuration("CCC_TELEMETRY_HEARTBEAT_INTERVAL", cfg.Telemetry.HeartbeatInterval.Std()))
}

// GetEnvVar returns the value of an environment variable with a default.
func GetEnvVar(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvDuration returns the value of an environment variable as a
// duration with a default.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvInt returns the value of an environment variable as an int with a
// default.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// GetEnvBool returns the value of an environment variable as a bool with
// a default.
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
