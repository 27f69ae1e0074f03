package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/aqi-collector/internal/backoff"
	"github.com/i474232898/aqi-collector/internal/common"
)

// Defaults applied before the config file and the environment are read.
const (
	DefaultIntervalSeconds      = 600
	DefaultTimeoutSeconds       = 30
	DefaultRetryWaitBaseSeconds = 600
	DefaultRetryWaitMaxSeconds  = 21600
	DefaultRetryMultiplier      = 2.0
	DefaultPort                 = "8080"
	DefaultRedisChannel         = "aqi:readings"

	// quotaWarningSeconds is the interval below which the free API quota
	// (10,000 calls a month) runs out quickly.
	quotaWarningSeconds = 300
)

// ConfigError is a fatal configuration problem. The collector refuses to start on it.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

type AppConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key" validate:"required"`

	// Station coordinates. Both exactly zero means "not configured".
	Latitude  float64 `yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `yaml:"longitude" validate:"gte=-180,lte=180"`

	IntervalSeconds      int     `yaml:"interval_seconds" validate:"gt=0"`
	TimeoutSeconds       int     `yaml:"timeout_seconds" validate:"gt=0"`
	RetryWaitBaseSeconds int     `yaml:"retry_wait_base_seconds" validate:"gt=0"`
	RetryWaitMaxSeconds  int     `yaml:"retry_wait_max_seconds" validate:"gtefield=RetryWaitBaseSeconds"`
	RetryMultiplier      float64 `yaml:"retry_multiplier" validate:"gte=1"`

	LogSuccess bool `yaml:"log_success"`
	LogErrors  bool `yaml:"log_errors"`

	// Endpoint overrides the AirVisual nearest_city URL.
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`

	Port     string      `yaml:"port"`
	LogLevel string      `yaml:"log_level"`
	Redis    RedisConfig `yaml:"redis"`
}

// RedisConfig enables fan-out of readings when URL is set.
type RedisConfig struct {
	URL     string `yaml:"url" validate:"omitempty,url"`
	Channel string `yaml:"channel"`
}

// Interval is the normal polling interval.
func (c *AppConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Timeout bounds one outbound request.
func (c *AppConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Backoff returns the retry policy.
func (c *AppConfig) Backoff() backoff.Config {
	return backoff.Config{
		Base:       time.Duration(c.RetryWaitBaseSeconds) * time.Second,
		Max:        time.Duration(c.RetryWaitMaxSeconds) * time.Second,
		Multiplier: c.RetryMultiplier,
	}
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *AppConfig {
	return &AppConfig{
		Enabled:              true,
		IntervalSeconds:      DefaultIntervalSeconds,
		TimeoutSeconds:       DefaultTimeoutSeconds,
		RetryWaitBaseSeconds: DefaultRetryWaitBaseSeconds,
		RetryWaitMaxSeconds:  DefaultRetryWaitMaxSeconds,
		RetryMultiplier:      DefaultRetryMultiplier,
		LogSuccess:           false,
		LogErrors:            true,
		Port:                 DefaultPort,
		LogLevel:             "info",
		Redis: RedisConfig{
			Channel: DefaultRedisChannel,
		},
	}
}

// Load reads configuration from an optional YAML file named by
// AQI_CONFIG_FILE and then from the environment, which takes precedence.
// The result is validated; problems are reported as *ConfigError.
func Load() (*AppConfig, error) {
	cfg := Defaults()

	if path := os.Getenv("AQI_CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Field: "AQI_CONFIG_FILE", Msg: fmt.Sprintf("failed to read config file: %v", err)}
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return &ConfigError{Field: "AQI_CONFIG_FILE", Msg: fmt.Sprintf("failed to parse config file: %v", err)}
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	r := envReader{}

	r.boolVar(&cfg.Enabled, "AQI_ENABLED")
	r.stringVar(&cfg.APIKey, "AIRVISUAL_API_KEY")
	r.floatVar(&cfg.Latitude, "STATION_LATITUDE")
	r.floatVar(&cfg.Longitude, "STATION_LONGITUDE")
	r.intVar(&cfg.IntervalSeconds, "AQI_INTERVAL_SECONDS")
	r.intVar(&cfg.TimeoutSeconds, "AQI_TIMEOUT_SECONDS")
	r.intVar(&cfg.RetryWaitBaseSeconds, "AQI_RETRY_WAIT_BASE_SECONDS")
	r.intVar(&cfg.RetryWaitMaxSeconds, "AQI_RETRY_WAIT_MAX_SECONDS")
	r.floatVar(&cfg.RetryMultiplier, "AQI_RETRY_MULTIPLIER")
	r.boolVar(&cfg.LogSuccess, "AQI_LOG_SUCCESS")
	r.boolVar(&cfg.LogErrors, "AQI_LOG_ERRORS")
	r.stringVar(&cfg.Endpoint, "AQI_ENDPOINT")
	r.stringVar(&cfg.Port, "PORT")
	r.stringVar(&cfg.LogLevel, "LOG_LEVEL")
	r.stringVar(&cfg.Redis.URL, "AQI_REDIS_URL")
	r.stringVar(&cfg.Redis.Channel, "AQI_REDIS_CHANNEL")

	return r.err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their config-file names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the configuration. A disabled collector is always valid.
func (c *AppConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Field() == "api_key" {
				return &ConfigError{Field: "api_key", Msg: "is required but not provided"}
			}
			return &ConfigError{
				Field: fe.Field(),
				Msg:   fmt.Sprintf("value %v fails %q %s", fe.Value(), fe.Tag(), fe.Param()),
			}
		}
		return &ConfigError{Field: "config", Msg: err.Error()}
	}

	if c.Latitude == 0 && c.Longitude == 0 {
		return &ConfigError{Field: "latitude/longitude", Msg: "station coordinates not configured"}
	}
	return nil
}

// LogSummary logs the effective configuration and any non-fatal warnings.
func (c *AppConfig) LogSummary(logger *slog.Logger) {
	if !c.Enabled {
		logger.Info("air quality collection is disabled in configuration")
		return
	}

	if c.IntervalSeconds < quotaWarningSeconds {
		logger.Warn("interval is very short and may quickly exhaust API quota (10,000 calls/month)",
			"interval_seconds", c.IntervalSeconds)
	}

	logger.Info("air quality collection configured",
		"lat", c.Latitude,
		"lon", c.Longitude,
		"interval", c.Interval(),
		"api_key", common.MaskSecret(c.APIKey),
		"redis", c.Redis.URL != "",
	)
}

// envReader applies environment overrides, keeping the first parse error.
type envReader struct {
	err error
}

func (r *envReader) lookup(key string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) fail(key, v string, err error) {
	r.err = &ConfigError{Field: key, Msg: fmt.Sprintf("invalid value %q: %v", v, err)}
}

func (r *envReader) stringVar(dst *string, key string) {
	if v, ok := r.lookup(key); ok {
		*dst = v
	}
}

func (r *envReader) intVar(dst *int, key string) {
	if v, ok := r.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) floatVar(dst *float64, key string) {
	if v, ok := r.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (r *envReader) boolVar(dst *bool, key string) {
	if v, ok := r.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = b
	}
}
