// Package config loads sheetmentor configuration from a YAML file, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/sheetmentor/internal/auth"
	"github.com/valpere/sheetmentor/internal/generator"
)

// EnvPrefix is prepended to every environment override, e.g.
// SHEETMENTOR_GENERATOR_MODEL.
const EnvPrefix = "SHEETMENTOR"

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Generator generator.Config `mapstructure:"generator"`
	Google    auth.Config      `mapstructure:"google"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Prompt    PromptConfig     `mapstructure:"prompt"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	SettingsPath string `mapstructure:"settings_path"` // empty keeps settings in memory
	HistoryPath  string `mapstructure:"history_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

type PromptConfig struct {
	Language      string `mapstructure:"language"` // "ko", "en" or "auto"
	MaxInputChars int    `mapstructure:"max_input_chars"`
}

// Default returns the built-in configuration.
func Default() *Config {
	data := defaultDataPath()
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8787",
			AllowedOrigins:  []string{"chrome-extension://*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Generator: generator.Config{
			Provider:        generator.ProviderGemini,
			MaxOutputTokens: generator.DefaultMaxOutputTokens,
			Temperature:     generator.Float64(generator.DefaultTemperature),
			Timeout:         generator.DefaultTimeout,
		},
		Storage: StorageConfig{
			SettingsPath: filepath.Join(data, "settings.db"),
			HistoryPath:  filepath.Join(data, "history.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Prompt: PromptConfig{
			Language: "ko",
		},
	}
}

// defaultDataPath returns the per-user data directory for the current OS.
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "sheetmentor")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "sheetmentor")
	}
}

// DefaultConfigPath returns the directory searched for config.yaml.
func DefaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "sheetmentor")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "sheetmentor")
	}
}

// SetDefaults registers every default on v so that environment variables
// are honoured for keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("generator.provider", d.Generator.Provider)
	v.SetDefault("generator.api_key", "")
	v.SetDefault("generator.model", d.Generator.Model)
	v.SetDefault("generator.base_url", "")
	v.SetDefault("generator.max_output_tokens", d.Generator.MaxOutputTokens)
	v.SetDefault("generator.temperature", *d.Generator.Temperature)
	v.SetDefault("generator.timeout", d.Generator.Timeout)
	v.SetDefault("google.credentials", "")
	v.SetDefault("google.access_token", "")
	v.SetDefault("storage.settings_path", d.Storage.SettingsPath)
	v.SetDefault("storage.history_path", d.Storage.HistoryPath)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("prompt.language", d.Prompt.Language)
	v.SetDefault("prompt.max_input_chars", d.Prompt.MaxInputChars)
}

// Load reads configuration into a Config. When configFile is empty,
// config.yaml is searched in DefaultConfigPath and the working directory;
// a missing file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigPath())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}
