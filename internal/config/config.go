// Package config provides Viper-based configuration loading for the room server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Name identifies this process in logs and traces.
	Name string `mapstructure:"name"`
	// ShutdownTimeout bounds graceful shutdown of all services.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// HTTPConfig holds the HTTP listener settings for the WebSocket endpoint and
// the read-only JSON API.
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Mode is the gin mode: "release", "debug", or "test".
	Mode string `mapstructure:"mode"`
	// ReadHeaderTimeout bounds how long a client may take to send headers.
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	// AllowedOrigins lists Origin values accepted on upgrade. Empty accepts any.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// WebSocketConfig holds per-connection WebSocket settings.
type WebSocketConfig struct {
	// ReadLimit is the maximum inbound frame size in bytes.
	ReadLimit int64 `mapstructure:"read_limit"`
	// WriteWait bounds a single frame write.
	WriteWait time.Duration `mapstructure:"write_wait"`
	// PongWait is how long to wait for a pong before dropping the peer.
	PongWait time.Duration `mapstructure:"pong_wait"`
	// PingInterval is how often pings are sent. Must be less than PongWait.
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// LineConfig holds the newline-delimited JSON TCP acceptor settings.
type LineConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	// ReadTimeout is the idle timeout between inbound lines.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write timeout.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxLineBytes caps a single inbound line.
	MaxLineBytes int `mapstructure:"max_line_bytes"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (l LineConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

// AdminConfig holds the gRPC health endpoint settings.
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// RoomConfig holds room settings.
type RoomConfig struct {
	// LayoutFile is a YAML layout; empty selects the built-in lounge.
	LayoutFile string `mapstructure:"layout_file"`
	// OutboxSize is the per-session outbound frame buffer.
	OutboxSize int `mapstructure:"outbox_size"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// Enabled turns on the activity journal.
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// HealthTimeout bounds the journal check reported by the admin server.
	HealthTimeout   time.Duration `mapstructure:"health_timeout"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JournalConfig holds the asynchronous journal writer settings.
type JournalConfig struct {
	// Buffer is the number of entries queued before new ones are dropped.
	Buffer int `mapstructure:"buffer"`
	// BatchSize is the maximum number of entries per insert batch.
	BatchSize int `mapstructure:"batch_size"`
	// FlushInterval bounds how long an entry waits before being written.
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is the OTLP/HTTP collector host:port.
	Endpoint string `mapstructure:"endpoint"`
	// Insecure disables TLS to the collector.
	Insecure bool `mapstructure:"insecure"`
	// SampleRatio is the fraction of root spans sampled, in [0, 1].
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Line      LineConfig      `mapstructure:"line"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Room      RoomConfig      `mapstructure:"room"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	validators := []func() error{
		func() error { return validateServer(c.Server) },
		func() error { return validateHTTP(c.HTTP) },
		func() error { return validateWebSocket(c.WebSocket) },
		func() error { return validateLine(c.Line) },
		func() error { return validateAdmin(c.Admin) },
		func() error { return validateRoom(c.Room) },
		func() error { return validateDatabase(c.Database) },
		func() error { return validateJournal(c.Journal) },
		func() error { return validateLogging(c.Logging) },
		func() error { return validateTracing(c.Tracing) },
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

func joinErrs(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Name == "" {
		errs = append(errs, "server.name must not be empty")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "server.shutdown_timeout must be positive")
	}
	return joinErrs(errs)
}

func validateHTTP(h HTTPConfig) error {
	var errs []string
	if !validPort(h.Port) {
		errs = append(errs, fmt.Sprintf("http.port must be 1-65535, got %d", h.Port))
	}
	validModes := map[string]bool{"release": true, "debug": true, "test": true}
	if !validModes[h.Mode] {
		errs = append(errs, fmt.Sprintf("http.mode must be one of [release, debug, test], got %q", h.Mode))
	}
	if h.ReadHeaderTimeout < 0 {
		errs = append(errs, "http.read_header_timeout must not be negative")
	}
	return joinErrs(errs)
}

func validateWebSocket(w WebSocketConfig) error {
	var errs []string
	if w.ReadLimit < 1 {
		errs = append(errs, fmt.Sprintf("websocket.read_limit must be >= 1, got %d", w.ReadLimit))
	}
	if w.WriteWait <= 0 {
		errs = append(errs, "websocket.write_wait must be positive")
	}
	if w.PongWait <= 0 {
		errs = append(errs, "websocket.pong_wait must be positive")
	}
	if w.PingInterval <= 0 || w.PingInterval >= w.PongWait {
		errs = append(errs, "websocket.ping_interval must be positive and less than websocket.pong_wait")
	}
	return joinErrs(errs)
}

func validateLine(l LineConfig) error {
	if !l.Enabled {
		return nil
	}
	var errs []string
	if !validPort(l.Port) {
		errs = append(errs, fmt.Sprintf("line.port must be 1-65535, got %d", l.Port))
	}
	if l.ReadTimeout < 0 {
		errs = append(errs, "line.read_timeout must not be negative")
	}
	if l.WriteTimeout < 0 {
		errs = append(errs, "line.write_timeout must not be negative")
	}
	if l.MaxLineBytes < 64 {
		errs = append(errs, fmt.Sprintf("line.max_line_bytes must be >= 64, got %d", l.MaxLineBytes))
	}
	return joinErrs(errs)
}

func validateAdmin(a AdminConfig) error {
	if a.Enabled && !validPort(a.Port) {
		return fmt.Errorf("admin.port must be 1-65535, got %d", a.Port)
	}
	return nil
}

func validateRoom(r RoomConfig) error {
	if r.OutboxSize < 1 {
		return fmt.Errorf("room.outbox_size must be >= 1, got %d", r.OutboxSize)
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	if !d.Enabled {
		return nil
	}
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if !validPort(d.Port) {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if d.HealthTimeout <= 0 {
		errs = append(errs, "database.health_timeout must be positive")
	}
	return joinErrs(errs)
}

func validateJournal(j JournalConfig) error {
	var errs []string
	if j.Buffer < 1 {
		errs = append(errs, fmt.Sprintf("journal.buffer must be >= 1, got %d", j.Buffer))
	}
	if j.BatchSize < 1 {
		errs = append(errs, fmt.Sprintf("journal.batch_size must be >= 1, got %d", j.BatchSize))
	}
	if j.FlushInterval <= 0 {
		errs = append(errs, "journal.flush_interval must be positive")
	}
	return joinErrs(errs)
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateTracing(t TracingConfig) error {
	if !t.Enabled {
		return nil
	}
	var errs []string
	if t.Endpoint == "" {
		errs = append(errs, "tracing.endpoint must not be empty when tracing is enabled")
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_ratio must be within [0, 1], got %v", t.SampleRatio))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and HYGGEN_ environment
// overrides applied.
//
// Postcondition: Returns a non-nil Viper.
func NewViper() *viper.Viper {
	v := viper.New()

	// Environment variable overrides with HYGGEN_ prefix
	v.SetEnvPrefix("HYGGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "hyggen")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3000)
	v.SetDefault("http.mode", "release")
	v.SetDefault("http.read_header_timeout", "10s")
	v.SetDefault("http.allowed_origins", []string{})

	v.SetDefault("websocket.read_limit", 4096)
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.ping_interval", "54s")

	v.SetDefault("line.enabled", false)
	v.SetDefault("line.host", "0.0.0.0")
	v.SetDefault("line.port", 4000)
	v.SetDefault("line.read_timeout", "5m")
	v.SetDefault("line.write_timeout", "30s")
	v.SetDefault("line.max_line_bytes", 4096)

	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.host", "127.0.0.1")
	v.SetDefault("admin.port", 50051)

	v.SetDefault("room.layout_file", "")
	v.SetDefault("room.outbox_size", 64)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "hyggen")
	v.SetDefault("database.password", "hyggen")
	v.SetDefault("database.name", "hyggen")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.health_timeout", "1s")

	v.SetDefault("journal.buffer", 1024)
	v.SetDefault("journal.batch_size", 64)
	v.SetDefault("journal.flush_interval", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)
}
