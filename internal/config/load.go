package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. FUNDWATCH_RUN_WORKERS.
const EnvPrefix = "FUNDWATCH"

// defaults lists every configuration key. Keys must be registered here for
// environment variables to be picked up on Unmarshal.
var defaults = map[string]any{
	"log.level":  "info",
	"log.format": "json",

	"store.backend":      "memory",
	"store.database_url": "",
	"store.redis_addr":   "",
	"store.redis_db":     0,
	"store.redis_prefix": "fundwatch",

	"llm.backend":           "vertex",
	"llm.api_key":           "",
	"llm.project":           "",
	"llm.location":          "global",
	"llm.shallow_model":     "gemini-2.5-flash",
	"llm.deep_model":        "gemini-2.5-pro",
	"llm.shallow_timeout":   "120s",
	"llm.deep_timeout":      "300s",
	"llm.temperature":       0.0,
	"llm.top_p":             1.0,
	"llm.seed":              0,
	"llm.max_output_tokens": 65535,

	"run.total_items":  250,
	"run.workers":      10,
	"run.batch_size":   10,
	"run.max_attempts": 2,

	"paths.prompt_template": "",
	"paths.guidelines_pdf":  "",
	"paths.shallow_schema":  "",
	"paths.deep_schema":     "",
	"paths.deep_prompt":     "",
	"paths.snapshot":        "data/investments.json",
	"paths.reports_dir":     "reports",
	"paths.export_file":     "export.json",
}

// Option customizes Load.
type Option func(*loadOptions)

type loadOptions struct {
	v          *viper.Viper
	configFile string
	envFile    string
}

// WithViper loads into v, typically one that already has CLI flags bound.
func WithViper(v *viper.Viper) Option {
	return func(o *loadOptions) { o.v = v }
}

// WithConfigFile reads path instead of searching for fundwatch.yaml.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) { o.configFile = path }
}

// WithEnvFile loads the given dotenv file instead of ./.env.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) { o.envFile = path }
}

// Load configuration from a .env file, an optional config file and
// environment variables. Environment variables take precedence over values
// from config files. Returns a populated Config struct or an error wrapping
// ErrInvalidConfig if loading or validation fails.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{envFile: ".env"}
	for _, opt := range opts {
		opt(&o)
	}
	v := o.v
	if v == nil {
		v = viper.New()
	}

	// A missing .env is normal outside development.
	if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: loading %s: %w", ErrInvalidConfig, o.envFile, err)
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
	} else {
		v.SetConfigName("fundwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: reading config file: %w", ErrInvalidConfig, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding: %w", ErrInvalidConfig, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
