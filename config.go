package honeybadger

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Defaults applied when neither an option nor an environment variable says
// otherwise.
const (
	DefaultEndpoint    = "https://api.honeybadger.io"
	DefaultTimeout     = 5 * time.Second
	DefaultConcurrency = 4
)

// Config holds the settings for a Client. It is treated as immutable once a
// Client is constructed from it: per-notice variation goes through
// NoticeOption values, never through config mutation.
//
// Environment bindings (see LoadConfig):
//
//	HONEYBADGER_API_KEY             project API key (required)
//	HONEYBADGER_ENDPOINT            collector base URL
//	ENV                             environment name reported on notices
//	HOSTNAME                        hostname reported on notices
//	HONEYBADGER_ROOT                project root reported on notices
//	HONEYBADGER_TIMEOUT             per-attempt delivery deadline ("5s")
//	HONEYBADGER_CONCURRENCY         max simultaneous background deliveries
//	HONEYBADGER_COMPRESSION         gzip request bodies
//	HONEYBADGER_CIRCUIT_BREAKER     fail fast after repeated transport failures
//	HONEYBADGER_INCLUDE_ENV         attach process env vars as cgi_data
//	HONEYBADGER_SEND_EMPTY_REQUEST  emit "request":{} instead of omitting it
type Config struct {
	APIKey           SecretString  `envconfig:"HONEYBADGER_API_KEY" validate:"required"`
	Endpoint         string        `envconfig:"HONEYBADGER_ENDPOINT" default:"https://api.honeybadger.io" validate:"required,url"`
	Env              string        `envconfig:"ENV"`
	Hostname         string        `envconfig:"HOSTNAME"`
	Root             string        `envconfig:"HONEYBADGER_ROOT"`
	Timeout          time.Duration `envconfig:"HONEYBADGER_TIMEOUT" default:"5s" validate:"gt=0"`
	Concurrency      int           `envconfig:"HONEYBADGER_CONCURRENCY" default:"4" validate:"min=1"`
	Compression      bool          `envconfig:"HONEYBADGER_COMPRESSION" default:"false"`
	CircuitBreaker   bool          `envconfig:"HONEYBADGER_CIRCUIT_BREAKER" default:"false"`
	IncludeEnv       bool          `envconfig:"HONEYBADGER_INCLUDE_ENV" default:"false"`
	SendEmptyRequest bool          `envconfig:"HONEYBADGER_SEND_EMPTY_REQUEST" default:"false"`
}

// ConfigOption customizes a Config during construction.
type ConfigOption func(*Config)

// WithEndpoint overrides the collector base URL. The /v1/notices path is
// appended at delivery time.
func WithEndpoint(endpoint string) ConfigOption {
	return func(c *Config) { c.Endpoint = endpoint }
}

// WithEnv sets the environment name ("production", "staging", ...) reported
// in the server section of each notice.
func WithEnv(env string) ConfigOption {
	return func(c *Config) { c.Env = env }
}

// WithHostname overrides the reported hostname. Defaults to os.Hostname().
func WithHostname(hostname string) ConfigOption {
	return func(c *Config) { c.Hostname = hostname }
}

// WithRoot overrides the reported project root. Defaults to the working
// directory.
func WithRoot(root string) ConfigOption {
	return func(c *Config) { c.Root = root }
}

// WithTimeout sets the per-attempt delivery deadline.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.Timeout = d }
}

// WithConcurrency bounds how many background deliveries may run at once.
func WithConcurrency(n int) ConfigOption {
	return func(c *Config) { c.Concurrency = n }
}

// WithCompression enables gzip-compressed request bodies.
func WithCompression() ConfigOption {
	return func(c *Config) { c.Compression = true }
}

// WithCircuitBreaker enables the transport circuit breaker: after repeated
// consecutive connection failures, deliveries fail fast for a cooldown
// period instead of dialing a collector that is down.
func WithCircuitBreaker() ConfigOption {
	return func(c *Config) { c.CircuitBreaker = true }
}

// WithIncludeEnv attaches the process environment variables to every notice
// as request cgi_data. Off by default: environment blocks routinely hold
// secrets.
func WithIncludeEnv() ConfigOption {
	return func(c *Config) { c.IncludeEnv = true }
}

// WithSendEmptyRequest emits an empty request section instead of omitting it
// when a notice carries no request data.
func WithSendEmptyRequest() ConfigOption {
	return func(c *Config) { c.SendEmptyRequest = true }
}

// NewConfig builds a validated Config from an API key and options. Dynamic
// defaults (hostname, project root) are filled from the running process.
func NewConfig(apiKey string, opts ...ConfigOption) (*Config, error) {
	cfg := &Config{
		APIKey:      SecretString(apiKey),
		Endpoint:    DefaultEndpoint,
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.fillDynamicDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig builds a validated Config from the environment. Options are
// applied after environment processing, so programmatic values win over
// environment variables.
//
// The loading sequence is:
//  1. Load a .env file via godotenv (non-fatal if absent; never overrides
//     variables already set).
//  2. Process envconfig struct tags to populate the Config.
//  3. Apply options.
//  4. Fill dynamic defaults (hostname, project root).
//  5. Validate the populated struct.
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, newError(ErrCodeBuildInvalidConfig, "failed to process environment configuration", err)
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.fillDynamicDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fillDynamicDefaults populates the fields whose defaults come from the
// running process rather than a struct tag. Lookup failures leave the field
// empty; an empty hostname or root is omitted from notices, never fatal.
func (c *Config) fillDynamicDefaults() {
	if c.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			c.Hostname = h
		}
	}
	if c.Root == "" {
		if wd, err := os.Getwd(); err == nil {
			c.Root = wd
		}
	}
}

// validate checks the config invariants. A missing API key gets its own
// code so callers can distinguish it from other misconfiguration.
func (c *Config) validate() error {
	if c.APIKey.Unmask() == "" {
		return newError(ErrCodeBuildMissingAPIKey, "API key is required", nil)
	}
	if err := validator.New().Struct(c); err != nil {
		return newError(ErrCodeBuildInvalidConfig, "configuration validation failed", err)
	}
	return nil
}
