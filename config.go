// Package trainhub holds the configuration shared by the training-task
// manager daemon and its CLI.
package trainhub

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Store  StoreConfig  `toml:"store"`
	Log    LogConfig    `toml:"log"`
}

type ServerConfig struct {
	HTTPAddr string `toml:"http_addr" env:"TRAINHUB_HTTP_ADDR"`
}

type StoreConfig struct {
	TasksFile   string `toml:"tasks_file"   env:"TRAINHUB_TASKS_FILE"`
	ServersFile string `toml:"servers_file" env:"TRAINHUB_SERVERS_FILE"`
}

type LogConfig struct {
	Level string `toml:"level" env:"TRAINHUB_LOG_LEVEL"`
}

// DefaultConfig places the stores under the user config directory, falling
// back to the working directory when it cannot be resolved.
func DefaultConfig() Config {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	dir := filepath.Join(base, "trainhub")

	return Config{
		Server: ServerConfig{HTTPAddr: "localhost:7070"},
		Store: StoreConfig{
			TasksFile:   filepath.Join(dir, "training_tasks.json"),
			ServersFile: filepath.Join(dir, "servers.json"),
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig merges the defaults, the optional TOML file at path and any
// environment overrides, in that order.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		default:
			tree, err := toml.Load(string(data))
			if err != nil {
				return Config{}, fmt.Errorf("error parsing config file: %w", err)
			}
			if err := tree.Unmarshal(&cfg); err != nil {
				return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error reading environment: %w", err)
	}

	return cfg, nil
}
