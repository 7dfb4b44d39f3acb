// Package config loads the hub's configuration, grounded on the teacher's
// internal/config/config.go: YAML document plus environment-variable
// overlay for secrets, aggregate Validate().
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "config.yaml"

// ServerConfig declares one child tool server.
type ServerConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// SafetyConfig feeds the Tool Executor's danger classification (§4.6.a).
type SafetyConfig struct {
	DangerousFields      []string `yaml:"dangerous_fields"`
	SensitiveFields      []string `yaml:"sensitive_fields"`
	AutoFillDefaults     bool     `yaml:"auto_fill_defaults"`
	DangerousKeywords    []string `yaml:"dangerous_keywords"`
	ConfirmationRequired struct {
		DangerLevels []string `yaml:"danger_levels"`
		Tools        []string `yaml:"tools"`
		Patterns     []string `yaml:"patterns"`
	} `yaml:"confirmation_required"`
}

// ToolExecutorConfig mirrors §6's configuration input.
type ToolExecutorConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	LLMEnabled   bool          `yaml:"llm_enabled"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	SafetyConfig SafetyConfig  `yaml:"safety_config"`
}

// Config holds the hub's full configuration.
type Config struct {
	Log struct {
		Level    string `yaml:"level"`
		Format   string `yaml:"format"`
		Output   string `yaml:"output"`
		Rotation struct {
			MaxSize    int  `yaml:"max_size"`
			MaxBackups int  `yaml:"max_backups"`
			MaxAge     int  `yaml:"max_age"`
			Compress   bool `yaml:"compress"`
		} `yaml:"rotation"`
	} `yaml:"log"`

	Hub struct {
		ConnectTimeout          time.Duration `yaml:"connect_timeout"`
		ConnectRetryAttempts    int           `yaml:"connect_retry_attempts"`
		MaxConcurrentOperations int           `yaml:"max_concurrent_operations"`
		ListTimeout             time.Duration `yaml:"list_timeout"`
	} `yaml:"hub"`

	Servers map[string]ServerConfig `yaml:"servers"`

	ToolExecutor ToolExecutorConfig `yaml:"tool_executor"`

	LLM struct {
		Model    string        `yaml:"model"`
		Endpoint string        `yaml:"endpoint"`
		APIKey   string        `yaml:"-"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Audit struct {
		Driver string `yaml:"driver"` // "" disables audit, "sqlite" enables it
		DSN    string `yaml:"dsn"`
	} `yaml:"audit"`
}

// GetLogLevel maps Log.Level to a slog.Level, defaulting to Info.
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadConfig loads defaults, overlays a YAML document if present, then
// overlays environment variables for secrets.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.Log.Level = "INFO"
	cfg.Log.Format = "text"
	cfg.Log.Output = "stdout"
	cfg.Log.Rotation.MaxSize = 100
	cfg.Log.Rotation.MaxBackups = 3
	cfg.Log.Rotation.MaxAge = 28
	cfg.Log.Rotation.Compress = true
	cfg.Hub.ConnectTimeout = 10 * time.Second
	cfg.Hub.ConnectRetryAttempts = 3
	cfg.Hub.MaxConcurrentOperations = 5
	cfg.Hub.ListTimeout = 5 * time.Second
	cfg.ToolExecutor.MaxRetries = 3
	cfg.ToolExecutor.LLMEnabled = true
	cfg.ToolExecutor.RetryBackoff = time.Second
	cfg.LLM.Endpoint = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o"

	configPath := getEnv("CONFIG_PATH", DefaultConfigPath)
	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			slog.Error("unmarshal config failed", "error", err, "path", configPath)
			os.Exit(1)
		}
		slog.Info("config loaded", "path", configPath)
	} else {
		if !os.IsNotExist(err) {
			slog.Error("read config failed", "error", err, "path", configPath)
			os.Exit(1)
		}
		slog.Info("config not found, using defaults", "path", configPath)
	}

	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		cfg.Log.Level = envLevel
	}
	if envFormat := os.Getenv("LOG_FORMAT"); envFormat != "" {
		cfg.Log.Format = envFormat
	}
	if envOutput := os.Getenv("LOG_OUTPUT"); envOutput != "" {
		cfg.Log.Output = envOutput
	}
	if n := getEnvInt("HUB_MAX_CONCURRENT_OPERATIONS", 0); n != 0 {
		cfg.Hub.MaxConcurrentOperations = n
	}

	return cfg
}

// Validate aggregates configuration errors the way the teacher's Validate does.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Servers) == 0 {
		errs = append(errs, "at least one server must be configured")
	}
	for name, sc := range c.Servers {
		if sc.Command == "" {
			errs = append(errs, fmt.Sprintf("server %q: command is required", name))
		}
	}
	if c.ToolExecutor.LLMEnabled && c.LLM.APIKey == "" {
		errs = append(errs, "LLM_API_KEY is required when tool_executor.llm_enabled is true")
	}
	if c.Hub.MaxConcurrentOperations < 1 {
		errs = append(errs, "hub.max_concurrent_operations must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
