package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Staff   StaffConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host string `yaml:"host" env:"HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"PORT" env-default:"8080"`
}

type StorageConfig struct {
	// Backend selects the storage engine: "bolt" or "sqlite".
	Backend string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"bolt"`
	Path    string `yaml:"path" env:"STORAGE_PATH" env-default:"data/atrium.db"`
}

type StaffConfig struct {
	// ConfigPath points at the staff roster JSON file. When empty, all
	// staff endpoints deny access.
	ConfigPath string `yaml:"config_path" env:"STAFF_CONFIG_PATH"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"`
}

// Load reads configuration from config.yml when present, falling back to
// environment variables alone.
func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yml"
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	return &cfg, nil
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
