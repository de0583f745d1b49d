// Package config handles lifi.yaml loading for lifi receive.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/lifi/log"
)

// Input kinds.
const (
	InputStdin     = "stdin"
	InputFile      = "file"
	InputRecording = "recording"
	InputDevice    = "device"
)

// Sink backends.
const (
	SinkFS = "fs"
	SinkS3 = "s3"
)

// Adapter types.
const (
	AdapterWebhook = "webhook"
	AdapterRedis   = "redis"
)

// Config represents a lifi.yaml configuration file.
// All values are optional and act as defaults for lifi receive flags.
// CLI flags always override config values.
type Config struct {
	ReceiverID  string        `yaml:"receiver_id"`
	LogLevel    string        `yaml:"log_level"`
	Input       InputConfig   `yaml:"input"`
	Sink        SinkConfig    `yaml:"sink"`
	Adapter     AdapterConfig `yaml:"adapter"`
	AutoSave    bool          `yaml:"auto_save"`
	MetricsAddr string        `yaml:"metrics_addr"`
	Report      string        `yaml:"report"`
}

// InputConfig selects where tokens come from.
type InputConfig struct {
	// Kind is stdin, file, recording, or device.
	Kind string `yaml:"kind"`
	// Path is the token file or recording for file and recording inputs.
	Path string `yaml:"path"`
	// DeviceCommand is the decoder command line for device input,
	// e.g. "zbarcam --raw --nodisplay /dev/video0".
	DeviceCommand string `yaml:"device_command"`
	// TrimPrefix is stripped from each decoded line, e.g. "QR-Code:".
	TrimPrefix string `yaml:"trim_prefix"`
}

// SinkConfig holds file emission defaults.
type SinkConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds completion adapter defaults.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks enumerated values and cross-field requirements.
// Every problem is reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	switch c.Input.Kind {
	case "", InputStdin:
	case InputFile, InputRecording:
		if c.Input.Path == "" {
			errs = append(errs, fmt.Errorf("input.path is required for %s input", c.Input.Kind))
		}
	case InputDevice:
		if c.Input.DeviceCommand == "" {
			errs = append(errs, errors.New("input.device_command is required for device input"))
		}
	default:
		errs = append(errs, fmt.Errorf("input.kind %q is not one of stdin, file, recording, device", c.Input.Kind))
	}

	switch c.Sink.Backend {
	case "", SinkFS:
	case SinkS3:
		if c.Sink.Path == "" {
			errs = append(errs, errors.New("sink.path (bucket/prefix) is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("sink.backend %q is not one of fs, s3", c.Sink.Backend))
	}

	switch c.Adapter.Type {
	case "":
	case AdapterWebhook, AdapterRedis:
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for the %s adapter", c.Adapter.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("adapter.type %q is not one of webhook, redis", c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
