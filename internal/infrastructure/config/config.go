package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Agent    AgentConfig    `mapstructure:"agent"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // local, production
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite, postgres
	DSN  string `mapstructure:"dsn"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AgentConfig configures the agent processor's collaborators.
type AgentConfig struct {
	// DesktopURL is the base URL of the desktop daemon (computer-use and
	// input-capture backend).
	DesktopURL string `mapstructure:"desktop_url"`
	// ProxyModels lists model names served through the LLM proxy when
	// BYTEBOT_LLM_PROXY_URL is set.
	ProxyModels []string `mapstructure:"proxy_models"`
}

// GlobalDir returns the per-user config directory (~/.bytebot).
func GlobalDir() string {
	return filepath.Join(os.Getenv("HOME"), ".bytebot")
}

// Load reads configuration in layers: defaults → global ~/.bytebot/config.yaml
// → local ./config.yaml → BYTEBOT_* environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Layer 1: global config
	v.AddConfigPath(GlobalDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	// Layer 2: project-local override
	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err == nil {
			local := viper.New()
			local.SetConfigFile(localPath)
			if err := local.ReadInConfig(); err == nil {
				_ = v.MergeConfigMap(local.AllSettings())
			}
			break
		}
	}

	// Layer 3: environment overrides
	v.SetEnvPrefix("BYTEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9991)
	v.SetDefault("server.mode", "local")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "bytebot-agent.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("agent.desktop_url", "http://localhost:9990")
	v.SetDefault("agent.proxy_models", []string{})
}

// ConfigFilePath returns the path of the config file a watcher should
// observe: the local override when present, otherwise the global file.
func ConfigFilePath() string {
	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err == nil {
			return localPath
		}
	}
	return filepath.Join(GlobalDir(), "config.yaml")
}
