package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Log   LogConfig   `mapstructure:"log" validate:"required"`
	Store StoreConfig `mapstructure:"store" validate:"required"`
	LLM   LLMConfig   `mapstructure:"llm" validate:"required"`
	Run   RunConfig   `mapstructure:"run" validate:"required"`
	Paths PathsConfig `mapstructure:"paths"`
}

// LogConfig controls the process-wide slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// StoreConfig selects and configures the investment store backend.
type StoreConfig struct {
	Backend     string `mapstructure:"backend" validate:"required,oneof=memory postgres redis"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Backend postgres"`
	RedisAddr   string `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB     int    `mapstructure:"redis_db" validate:"gte=0"`
	RedisPrefix string `mapstructure:"redis_prefix" validate:"required"`
}

// LLMConfig contains the report generator settings.
type LLMConfig struct {
	Backend         string        `mapstructure:"backend" validate:"required,oneof=vertex gemini"`
	APIKey          string        `mapstructure:"api_key" validate:"required_if=Backend gemini"`
	Project         string        `mapstructure:"project" validate:"required_if=Backend vertex"`
	Location        string        `mapstructure:"location" validate:"required_if=Backend vertex"`
	ShallowModel    string        `mapstructure:"shallow_model" validate:"required"`
	DeepModel       string        `mapstructure:"deep_model" validate:"required"`
	ShallowTimeout  time.Duration `mapstructure:"shallow_timeout" validate:"gt=0"`
	DeepTimeout     time.Duration `mapstructure:"deep_timeout" validate:"gt=0"`
	Temperature     float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	TopP            float32       `mapstructure:"top_p" validate:"gte=0,lte=1"`
	Seed            int32         `mapstructure:"seed"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens" validate:"gt=0"`
}

// RunConfig sizes one shallow pipeline run.
type RunConfig struct {
	TotalItems  int `mapstructure:"total_items" validate:"gt=0"`
	Workers     int `mapstructure:"workers" validate:"gt=0"`
	BatchSize   int `mapstructure:"batch_size" validate:"gt=0,lte=500"`
	MaxAttempts int `mapstructure:"max_attempts" validate:"gt=0"`
}

// PathsConfig locates the files the pipeline reads and writes. Empty prompt
// and schema paths select the built-in defaults; an empty guidelines path
// sends prompts without the supporting document.
type PathsConfig struct {
	PromptTemplate string `mapstructure:"prompt_template"`
	GuidelinesPDF  string `mapstructure:"guidelines_pdf"`
	ShallowSchema  string `mapstructure:"shallow_schema"`
	DeepSchema     string `mapstructure:"deep_schema"`
	DeepPrompt     string `mapstructure:"deep_prompt"`
	Snapshot       string `mapstructure:"snapshot"`
	ReportsDir     string `mapstructure:"reports_dir"`
	ExportFile     string `mapstructure:"export_file"`
}
