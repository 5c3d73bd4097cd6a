package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/loandesk/loandesk/internal/policy"
)

const (
	defaultAppName         = "LoanDesk"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultAPIBaseURL      = "http://localhost:5000/api"
	defaultCurrency        = "INR"
	defaultSessionFile     = ".loandesk/session.json"
	defaultHTTPTimeout     = 10 * time.Second
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultPersistQueue    = 64
	configFileEnvVar       = "CONFIG_FILE"
	httpTimeoutSecEnvVar   = "HTTP_TIMEOUT_SECONDS"
	httpTimeoutDurEnvVar   = "HTTP_TIMEOUT"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures runtime configuration. Values come from defaults, then an
// optional YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	AppName          string
	AppEnv           string
	Port             string
	LogLevel         string
	LogFormat        string
	APIBaseURL       string
	HTTPTimeout      time.Duration
	RedisURL         string
	SessionFile      string
	SessionSecret    string
	DemoFallback     bool
	Currency         string
	CheckoutKey      string
	Rates            policy.Rates
	PersistQueueSize int
	ShutdownPeriod   time.Duration
	IdempotencyTTL   time.Duration
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		AppName:          defaultAppName,
		AppEnv:           defaultAppEnv,
		Port:             defaultPort,
		LogLevel:         defaultLogLevel,
		LogFormat:        defaultLogFormat,
		APIBaseURL:       defaultAPIBaseURL,
		HTTPTimeout:      defaultHTTPTimeout,
		SessionFile:      defaultSessionFile,
		DemoFallback:     true,
		Currency:         defaultCurrency,
		Rates:            policy.DefaultRates(),
		PersistQueueSize: defaultPersistQueue,
		ShutdownPeriod:   defaultShutdownDelay,
		IdempotencyTTL:   defaultIdempotencyTTL,
	}
}

// Load reads configuration values and validates the result.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(configFileEnvVar); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.AppName = getEnv("APP_NAME", cfg.AppName)
	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", cfg.LogFormat))
	cfg.APIBaseURL = getEnv("API_BASE_URL", cfg.APIBaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.SessionFile = getEnv("SESSION_FILE", cfg.SessionFile)
	cfg.SessionSecret = getEnv("SESSION_SECRET", cfg.SessionSecret)
	cfg.Currency = strings.ToUpper(getEnv("CURRENCY", cfg.Currency))
	cfg.CheckoutKey = getEnv("CHECKOUT_KEY", cfg.CheckoutKey)

	if v := os.Getenv("DEMO_FALLBACK"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DEMO_FALLBACK: %w", err)
		}
		cfg.DemoFallback = enabled
	}

	if v := os.Getenv("PERSIST_QUEUE_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PERSIST_QUEUE_SIZE: %w", err)
		}
		cfg.PersistQueueSize = size
	}

	if v := os.Getenv("RATE_BASIC"); v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_BASIC: %w", err)
		}
		cfg.Rates.Basic = rate
	}
	if v := os.Getenv("RATE_REALTIME"); v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_REALTIME: %w", err)
		}
		cfg.Rates.Realtime = rate
	}

	var err error
	if cfg.HTTPTimeout, err = durationEnv(httpTimeoutSecEnvVar, httpTimeoutDurEnvVar, cfg.HTTPTimeout); err != nil {
		return err
	}
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return err
	}
	return nil
}

// durationEnv prefers the integer-seconds variable over the Go duration one.
func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	if err := c.Rates.Validate(); err != nil {
		return err
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive")
	}
	if c.PersistQueueSize <= 0 {
		return fmt.Errorf("PERSIST_QUEUE_SIZE must be positive")
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
