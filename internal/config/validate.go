package config

import (
	"fmt"
	"time"
)

// Bounds enforced on the serial timing parameters. The settle delay is a
// blocking pause inside every transaction, so it is capped hard; the read
// timeout floor keeps the poll loop from spinning.
const (
	MinReadTimeout = 10 * time.Millisecond
	MaxReadTimeout = 30 * time.Second
	MaxSettleDelay = 5 * time.Second

	MinCommandTimeout = 100 * time.Millisecond
	MaxCommandTimeout = 5 * time.Minute
)

// Validate checks the merged configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateSerial(&cfg.Serial); err != nil {
		return fmt.Errorf("serial validation failed: %w", err)
	}
	if err := validateCommand(&cfg.Command); err != nil {
		return fmt.Errorf("command timeout validation failed: %w", err)
	}
	if err := validateAuth(&cfg.Auth); err != nil {
		return fmt.Errorf("auth validation failed: %w", err)
	}
	if err := validateLog(&cfg.Log); err != nil {
		return fmt.Errorf("log validation failed: %w", err)
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return fmt.Errorf("telemetry validation failed: %w", err)
	}
	return nil
}

func validateSerial(s *SerialConfig) error {
	if s.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", s.Baud)
	}

	rt := s.ReadTimeout.Std()
	if rt < MinReadTimeout || rt > MaxReadTimeout {
		return fmt.Errorf("read timeout %v is outside range [%v, %v]", rt, MinReadTimeout, MaxReadTimeout)
	}

	sd := s.SettleDelay.Std()
	if sd < 0 || sd > MaxSettleDelay {
		return fmt.Errorf("settle delay %v is outside range [0, %v]", sd, MaxSettleDelay)
	}

	if s.ResponseLength <= 0 || s.ResponseLength > 256 {
		return fmt.Errorf("response length %d is outside range [1, 256]", s.ResponseLength)
	}
	return nil
}

func validateCommand(c *CommandConfig) error {
	timeouts := map[string]time.Duration{
		"connect":      c.TimeoutConnect.Std(),
		"setFrequency": c.TimeoutSetFrequency.Std(),
		"getFrequency": c.TimeoutGetFrequency.Std(),
		"sendRaw":      c.TimeoutSendRaw.Std(),
	}
	for name, timeout := range timeouts {
		if timeout < MinCommandTimeout || timeout > MaxCommandTimeout {
			return fmt.Errorf("command timeout %s %v is outside range [%v, %v]",
				name, timeout, MinCommandTimeout, MaxCommandTimeout)
		}
	}
	return nil
}

func validateAuth(a *AuthConfig) error {
	if !a.Enabled {
		return nil
	}
	if a.HSSecret == "" && a.RSPublicKeyFile == "" {
		return fmt.Errorf("auth enabled but neither hsSecret nor rsPublicKeyFile is set")
	}
	return nil
}

func validateLog(l *LogConfig) error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", l.Level)
	}
	return nil
}

func validateTelemetry(t *TelemetryConfig) error {
	if t.EventBufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got %d", t.EventBufferSize)
	}
	if t.HeartbeatInterval.Std() <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", t.HeartbeatInterval.Std())
	}
	return nil
}
