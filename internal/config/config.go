package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written in the
// familiar "100ms" / "1s" form.
type Duration time.Duration

// UnmarshalYAML parses a duration string or a bare integer (nanoseconds).
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in the canonical string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// SerialConfig holds the serial link parameters.
type SerialConfig struct {
	// Device is the serial device path, e.g. /dev/ttyUSB0. Empty means
	// the container starts with no link and waits for a connect request.
	Device string `yaml:"device"`

	Baud        int      `yaml:"baud"`
	ReadTimeout Duration `yaml:"readTimeout"`

	// SettleDelay is the pause between writing a command frame and
	// reading the response.
	SettleDelay Duration `yaml:"settleDelay"`

	// ResponseLength caps a single response read.
	ResponseLength int `yaml:"responseLength"`
}

// CommandConfig holds per-operation timeout classes.
type CommandConfig struct {
	TimeoutConnect      Duration `yaml:"timeoutConnect"`
	TimeoutSetFrequency Duration `yaml:"timeoutSetFrequency"`
	TimeoutGetFrequency Duration `yaml:"timeoutGetFrequency"`
	TimeoutSendRaw      Duration `yaml:"timeoutSendRaw"`
}

// APIConfig holds the northbound HTTP server parameters.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// AuthConfig holds the bearer-token verification parameters.
type AuthConfig struct {
	// Enabled gates all token checks. Disabled is intended for bench
	// setups only.
	Enabled bool `yaml:"enabled"`

	// HSSecret enables HS256 verification when non-empty.
	HSSecret string `yaml:"hsSecret"`

	// RSPublicKeyFile enables RS256 verification when non-empty. The
	// file holds a PEM-encoded RSA public key.
	RSPublicKeyFile string `yaml:"rsPublicKeyFile"`
}

// LogConfig holds the structured application log parameters.
type LogConfig struct {
	Level string `yaml:"level"`

	// File is the log destination; empty means stderr only.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// AuditConfig holds the JSONL audit trail parameters.
type AuditConfig struct {
	// File is the audit destination; empty disables the audit trail.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// TelemetryConfig holds the SSE event stream parameters.
type TelemetryConfig struct {
	EventBufferSize   int      `yaml:"eventBufferSize"`
	HeartbeatInterval Duration `yaml:"heartbeatInterval"`
}

// Config is the merged container configuration.
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Command   CommandConfig   `yaml:"command"`
	API       APIConfig       `yaml:"api"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Baseline returns the built-in defaults. The serial timing values match
// the CAT interface's known characteristics: 9600 baud, a 1s read
// timeout, and a 100ms settle delay between write and read.
func Baseline() *Config {
	return &Config{
		Serial: SerialConfig{
			Baud:           9600,
			ReadTimeout:    Duration(1 * time.Second),
			SettleDelay:    Duration(100 * time.Millisecond),
			ResponseLength: 5,
		},
		Command: CommandConfig{
			TimeoutConnect:      Duration(5 * time.Second),
			TimeoutSetFrequency: Duration(10 * time.Second),
			TimeoutGetFrequency: Duration(5 * time.Second),
			TimeoutSendRaw:      Duration(10 * time.Second),
		},
		API: APIConfig{
			Addr: ":8080",
		},
		// Auth ships disabled: enabling it requires a verification key,
		// which the baseline cannot invent. The container logs a warning
		// when it starts with auth off.
		Auth: AuthConfig{},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Audit: AuditConfig{
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 90,
		},
		Telemetry: TelemetryConfig{
			EventBufferSize:   50,
			HeartbeatInterval: Duration(15 * time.Second),
		},
	}
}
