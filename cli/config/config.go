package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/netbackup/log"
	"github.com/pithecene-io/netbackup/wire"
)

// Config represents a netbackup.yaml configuration file.
// Values missing from the file keep their defaults; CLI flags override
// both.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
	Journal JournalConfig `yaml:"journal"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// ServerConfig holds server settings.
type ServerConfig struct {
	BindAddress   string `yaml:"bind_address"`
	StoragePath   string `yaml:"storage_path"`
	MaxFrameBytes uint32 `yaml:"max_frame_bytes"`
	// StaleUploadAfter drops idle pending uploads; zero disables.
	StaleUploadAfter Duration `yaml:"stale_upload_after"`
	SweepInterval    Duration `yaml:"sweep_interval"`
}

// ClientConfig holds client settings.
type ClientConfig struct {
	DefaultServer string   `yaml:"default_server"`
	ChunkSize     uint32   `yaml:"chunk_size"`
	DialTimeout   Duration `yaml:"dial_timeout"`
}

// AuthConfig holds the shared secret.
type AuthConfig struct {
	Password string `yaml:"password"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// JournalConfig selects where commit records are kept.
type JournalConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Dataset     string `yaml:"dataset"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
	// BatchSize above 1 groups records into one write; 0 or 1 writes each.
	BatchSize     int      `yaml:"batch_size"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// NotifyConfig configures commit notifications.
type NotifyConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Default values.
const (
	DefaultBindAddress   = "0.0.0.0:8080"
	DefaultStoragePath   = "./storage_data"
	DefaultServerAddress = "127.0.0.1:8080"
	DefaultPassword      = "secure_password_123"
	DefaultNotifyRetries = 3
)

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	retries := DefaultNotifyRetries
	return &Config{
		Server: ServerConfig{
			BindAddress:   DefaultBindAddress,
			StoragePath:   DefaultStoragePath,
			MaxFrameBytes: wire.DefaultMaxFrameSize,
			SweepInterval: Duration{time.Minute},
		},
		Client: ClientConfig{
			DefaultServer: DefaultServerAddress,
			ChunkSize:     wire.DefaultChunkSize,
			DialTimeout:   Duration{10 * time.Second},
		},
		Auth: AuthConfig{Password: DefaultPassword},
		Log:  LogConfig{Level: "info"},
		Journal: JournalConfig{
			Path:          "./journal",
			Dataset:       "netbackup",
			FlushInterval: Duration{5 * time.Second},
		},
		Notify: NotifyConfig{
			Timeout: Duration{5 * time.Second},
			Retries: &retries,
		},
	}
}

// Validate checks values that cannot be caught by YAML decoding.
func (c *Config) Validate() error {
	var errs []error

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Client.ChunkSize == 0 || c.Client.ChunkSize > wire.MaxChunkSize {
		errs = append(errs, fmt.Errorf("client.chunk_size must be between 1 and %d, got %d",
			wire.MaxChunkSize, c.Client.ChunkSize))
	}
	if c.Server.MaxFrameBytes != 0 && c.Server.MaxFrameBytes < wire.HeaderSize {
		errs = append(errs, fmt.Errorf("server.max_frame_bytes must be at least %d", wire.HeaderSize))
	}
	if c.Server.StaleUploadAfter.Duration < 0 {
		errs = append(errs, errors.New("server.stale_upload_after must not be negative"))
	}

	switch c.Journal.Backend {
	case "", "none":
	case "fs", "s3":
		if c.Journal.Path == "" {
			errs = append(errs, fmt.Errorf("journal.path is required for backend %q", c.Journal.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("journal.backend must be fs or s3, got %q", c.Journal.Backend))
	}

	if c.Journal.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("journal.batch_size must be >= 0, got %d", c.Journal.BatchSize))
	}
	if c.Journal.FlushInterval.Duration < 0 {
		errs = append(errs, errors.New("journal.flush_interval must not be negative"))
	}

	switch c.Notify.Type {
	case "":
	case "redis", "webhook":
		if c.Notify.URL == "" {
			errs = append(errs, fmt.Errorf("notify.url is required for type %q", c.Notify.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("notify.type must be redis or webhook, got %q", c.Notify.Type))
	}
	if c.Notify.Retries != nil && *c.Notify.Retries < 0 {
		errs = append(errs, fmt.Errorf("notify.retries must be >= 0, got %d", *c.Notify.Retries))
	}

	return errors.Join(errs...)
}

// NotifyRetries returns the configured retry count or the default.
func (c *Config) NotifyRetries() int {
	if c.Notify.Retries == nil {
		return DefaultNotifyRetries
	}
	return *c.Notify.Retries
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
// An empty string leaves the current value in place.
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

// MarshalYAML writes the duration in time.Duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}
