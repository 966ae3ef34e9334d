package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported backend providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	// ProviderNetMind is NetMind's OpenAI compatible inference API.
	ProviderNetMind = "netmind"
)

// NetMind defaults, applied when the provider is netmind and nothing else is set.
const (
	DefaultNetMindBaseURL = "https://api.netmind.ai/inference-api/openai/v1"
	DefaultNetMindModel   = "deepseek-v3"
)

const envPrefix = "XYZ"

// apiKeyEnv names the conventional credential variable of each provider.
var apiKeyEnv = map[string]string{
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderNetMind:   "NETMIND_POWER_KEY",
}

// Config is the complete runtime configuration.
type Config struct {
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Retry   RetryConfig   `mapstructure:"retry" yaml:"retry"`
	Batch   BatchConfig   `mapstructure:"batch" yaml:"batch"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// BackendConfig selects and parameterizes the model backend.
type BackendConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	// Model is empty for the backend's default model.
	Model string `mapstructure:"model" yaml:"model"`
	// Params are default generation parameters, e.g. temperature or top_p.
	Params map[string]any `mapstructure:"params" yaml:"params"`
}

// RetryConfig bounds the transport retry loop. A zero StreamIdleTimeout
// disables the idle timer of streaming attempts.
type RetryConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Interval          time.Duration `mapstructure:"interval" yaml:"interval"`
	StreamIdleTimeout time.Duration `mapstructure:"stream_idle_timeout" yaml:"stream_idle_timeout"`
}

// BatchConfig tunes the batch harnesses.
type BatchConfig struct {
	Delay           time.Duration `mapstructure:"delay" yaml:"delay"`
	ContinueOnError bool          `mapstructure:"continue_on_error" yaml:"continue_on_error"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// LoadOptions locate the configuration sources.
type LoadOptions struct {
	// ConfigFile is an explicit YAML file. It must exist when set.
	ConfigFile string
	// EnvFile is an explicit .env file. It must exist when set.
	EnvFile string
	// Overrides take precedence over every other source. Keys are dotted,
	// e.g. "backend.model".
	Overrides map[string]any
}

// Load reads the configuration and fills in provider defaults. It does not
// validate; call Validate before use.
func Load(optFns ...func(o *LoadOptions)) (*Config, error) {
	opts := LoadOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("xyz")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyProviderDefaults()

	return cfg, nil
}

func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("load env file .env: %w", err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.provider", ProviderOpenAI)
	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.model", "")
	v.SetDefault("retry.max_attempts", 10)
	v.SetDefault("retry.interval", 2*time.Second)
	v.SetDefault("retry.stream_idle_timeout", 5*time.Second)
	v.SetDefault("batch.delay", 2*time.Second)
	v.SetDefault("batch.continue_on_error", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func (c *Config) applyProviderDefaults() {
	c.Backend.Provider = strings.ToLower(strings.TrimSpace(c.Backend.Provider))

	if c.Backend.APIKey == "" {
		if name, ok := apiKeyEnv[c.Backend.Provider]; ok {
			c.Backend.APIKey = os.Getenv(name)
		}
	}

	if c.Backend.Provider == ProviderNetMind {
		if c.Backend.BaseURL == "" {
			c.Backend.BaseURL = DefaultNetMindBaseURL
		}
		if c.Backend.Model == "" {
			c.Backend.Model = DefaultNetMindModel
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	name, ok := apiKeyEnv[c.Backend.Provider]
	if !ok {
		return fmt.Errorf("backend.provider must be one of [openai, anthropic, netmind] (got: %q)", c.Backend.Provider)
	}

	if c.Backend.APIKey == "" {
		return fmt.Errorf("backend.api_key is required for provider %s (or set %s)", c.Backend.Provider, name)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1 (got: %d)", c.Retry.MaxAttempts)
	}

	if c.Retry.Interval < 0 || c.Retry.StreamIdleTimeout < 0 || c.Batch.Delay < 0 {
		return errors.New("retry.interval, retry.stream_idle_timeout and batch.delay must not be negative")
	}

	if !slices.Contains([]string{"json", "text"}, strings.ToLower(c.Log.Format)) {
		return fmt.Errorf("log.format must be one of [json, text] (got: %q)", c.Log.Format)
	}

	return nil
}
