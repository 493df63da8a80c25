package auricled

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for auricled.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Player  PlayerConfig  `toml:"player"`
	Modules ModulesConfig `toml:"modules"`
}

// ServerConfig defines shared daemon settings.
type ServerConfig struct {
	Broker    string     `toml:"broker"`
	TopicBase string     `toml:"topic_base"`
	LogLevel  string     `toml:"log_level"`
	LogFormat string     `toml:"log_format"`
	LogOutput string     `toml:"log_output"`
	TLS       TLSConfig  `toml:"tls"`
	Auth      AuthConfig `toml:"auth"`
}

// TLSConfig holds TLS paths for MQTT.
type TLSConfig struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// AuthConfig holds MQTT auth credentials.
type AuthConfig struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// PlayerConfig configures the playback core.
type PlayerConfig struct {
	QueuePath         string `toml:"queue_path"`
	DefaultService    string `toml:"default_service"`
	DefaultVolume     int    `toml:"default_volume"`
	CacheTTLSec       int64  `toml:"cache_ttl_sec"`
	PrefetchLimit     int    `toml:"prefetch_limit"`
	DefaultSamplerate string `toml:"default_samplerate"`
	DefaultBitdepth   string `toml:"default_bitdepth"`
	DefaultChannels   int    `toml:"default_channels"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	EmbeddedMQTT  EmbeddedMQTTConfig  `toml:"embedded_mqtt"`
	RendererLocal RendererLocalConfig `toml:"renderer_local"`
	WebRadio      WebRadioConfig      `toml:"webradio"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TLSCA          string `toml:"tls_ca"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// RendererLocalConfig configures the local renderer backend.
type RendererLocalConfig struct {
	Enabled   bool   `toml:"enabled"`
	MusicRoot string `toml:"music_root"`
	Pipeline  string `toml:"pipeline"`
	Device    string `toml:"device"`
}

// WebRadioConfig configures the webradio backend. Pipeline and device
// default to the renderer_local values when unset.
type WebRadioConfig struct {
	Enabled      bool   `toml:"enabled"`
	UserAgent    string `toml:"user_agent"`
	FetchTimeout int64  `toml:"fetch_timeout_sec"`
	Pipeline     string `toml:"pipeline"`
	Device       string `toml:"device"`
}

// LoadConfig loads a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
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

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "auricle", "auricled.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "auricle", "auricled.toml"), nil
}

// DefaultQueuePath returns where the durable queue lives when
// unconfigured.
func DefaultQueuePath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "auricle", "playqueue.json"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "auricle", "playqueue.json"), nil
}
