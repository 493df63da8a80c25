package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds CLI configuration from cli.toml.
type Config struct {
	Broker    string `toml:"broker"`
	TopicBase string `toml:"topic_base"`
	From      string `toml:"from"`
	TLS       TLS    `toml:"tls"`
	Auth      Auth   `toml:"auth"`
}

// TLS holds TLS material paths for the broker connection.
type TLS struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// Auth holds broker credentials.
type Auth struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// Load loads cli.toml if present. Missing file returns an empty config.
func Load() (Config, error) {
	path, err := configPath()
	if err != nil {
		return Config{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func configPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "auricle", "cli.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "auricle", "cli.toml"), nil
}
