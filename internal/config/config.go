package config

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/searchparams/internal/errors"
	"github.com/vango-dev/searchparams/pkg/adapter"
	"github.com/vango-dev/searchparams/pkg/provider"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "searchparams.json"

	// YAMLConfigFileName is the name of the YAML configuration file, used
	// when there is no JSON file.
	YAMLConfigFileName = "searchparams.yaml"

	// DefaultProvider is the default host environment.
	DefaultProvider = "browser"

	// DefaultPort is the default server port.
	DefaultPort = 8080

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultURLHeader is the header the server adapter reads the page URL from.
	DefaultURLHeader = "X-URL"

	// DefaultTimeout is the default server read and write timeout.
	DefaultTimeout = "15s"

	// DefaultMetricsPath is where metrics are served.
	DefaultMetricsPath = "/metrics"

	// DefaultNamespace is the default metrics namespace and tracer name.
	DefaultNamespace = "searchparams"
)

// Environment variables read by ApplyEnv.
const (
	EnvProvider = "SEARCHPARAMS_PROVIDER"
	EnvAddr     = "SEARCHPARAMS_ADDR"
	EnvLogLevel = "SEARCHPARAMS_LOG_LEVEL"
)

// Config represents the complete searchparams configuration.
type Config struct {
	// Provider selects the host adapter: server, router or browser.
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`

	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`

	// Router contains router session configuration.
	Router RouterConfig `json:"router,omitempty" yaml:"router,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// ReadTimeout is the request read timeout (e.g., "15s").
	ReadTimeout string `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`

	// WriteTimeout is the response write timeout (e.g., "15s").
	WriteTimeout string `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`

	// URLHeader carries the page URL for the server adapter.
	URLHeader string `json:"urlHeader,omitempty" yaml:"urlHeader,omitempty"`
}

// RouterConfig contains router session settings.
type RouterConfig struct {
	// Mode is "push" or "replace".
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled turns metrics collection and the metrics endpoint on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`

	// Path is where metrics are served.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled turns span creation on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// TracerName names the tracer.
	TracerName string `json:"tracerName,omitempty" yaml:"tracerName,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Provider: DefaultProvider,
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ReadTimeout:  DefaultTimeout,
			WriteTimeout: DefaultTimeout,
			URLHeader:    DefaultURLHeader,
		},
		Router: RouterConfig{
			Mode: "push",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
			Path:      DefaultMetricsPath,
		},
		Tracing: TracingConfig{
			TracerName: DefaultNamespace,
		},
	}
}

// Load reads configuration from the specified directory. It looks for
// searchparams.json, then searchparams.yaml.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		if yamlPath := filepath.Join(dir, YAMLConfigFileName); fileExists(yamlPath) {
			path = yamlPath
		}
	}
	return LoadFile(path)
}

// LoadFile reads configuration from the specified file path. Files ending
// in .yaml or .yml are YAML; anything else is JSON with comments.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E031").
				WithDetail("No " + ConfigFileName + " or " + YAMLConfigFileName + " found in " + filepath.Dir(path))
		}
		return nil, errors.New("E030").Wrap(err)
	}

	cfg := New()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("E030").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid YAML")
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, errors.New("E030").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid JSON (comments are allowed)")
		}
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if stderrors.Is(err, errors.New("E031")) {
		return New(), nil
	}
	return cfg, err
}

// SaveTo writes the configuration as indented JSON.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E030").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E030").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := New()
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = d.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = d.Server.WriteTimeout
	}
	if c.Server.URLHeader == "" {
		c.Server.URLHeader = d.Server.URLHeader
	}
	if c.Router.Mode == "" {
		c.Router.Mode = d.Router.Mode
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = d.Tracing.TracerName
	}
}

// ApplyEnv loads the given .env files (".env" when none are given, skipped
// if missing) and applies the SEARCHPARAMS_* overrides. Variables already
// set in the environment win over .env values.
func (c *Config) ApplyEnv(envFiles ...string) error {
	if err := godotenv.Load(envFiles...); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.New("E030").WithDetail("Failed to load .env").Wrap(err)
	}

	if v := os.Getenv(EnvProvider); v != "" {
		c.Provider = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		if err := c.SetAddress(v); err != nil {
			return err
		}
	}
	return nil
}

// SetAddress sets the server host and port from host:port. An empty host
// keeps the configured one.
func (c *Config) SetAddress(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return errors.New("E030").WithDetail("address must be host:port").Wrap(err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return errors.New("E030").WithDetail("address has a non-numeric port").Wrap(err)
	}
	if host != "" {
		c.Server.Host = host
	}
	c.Server.Port = n
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := provider.ParseID(c.Provider); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port must be between 0 and 65535")
	}
	if _, err := c.ReadTimeout(); err != nil {
		return invalid("server.readTimeout: " + err.Error())
	}
	if _, err := c.WriteTimeout(); err != nil {
		return invalid("server.writeTimeout: " + err.Error())
	}
	if _, err := c.RouterMode(); err != nil {
		return invalid("router.mode: " + err.Error())
	}
	if _, err := c.LogLevel(); err != nil {
		return invalid("log.level: " + err.Error())
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format must be text or json")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path must start with /")
	}
	return nil
}

func invalid(detail string) error {
	return errors.New("E030").WithDetail(detail)
}

// ProviderID returns the parsed provider.
func (c *Config) ProviderID() (provider.ID, error) {
	return provider.ParseID(c.Provider)
}

// RouterMode returns the parsed router navigation mode.
func (c *Config) RouterMode() (adapter.Mode, error) {
	return adapter.ParseMode(c.Router.Mode)
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Log.Level))
	return level, err
}

// ReadTimeout returns the parsed server read timeout.
func (c *Config) ReadTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Server.ReadTimeout)
}

// WriteTimeout returns the parsed server write timeout.
func (c *Config) WriteTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Server.WriteTimeout)
}

// Address returns the server listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	return fileExists(filepath.Join(dir, ConfigFileName)) ||
		fileExists(filepath.Join(dir, YAMLConfigFileName))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing a config file, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E031").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}
