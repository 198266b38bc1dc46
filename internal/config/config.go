package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Storage StorageConfig `mapstructure:"storage"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type BackendConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	RequestTimeout string `mapstructure:"request_timeout"`
	AuthToken      string `mapstructure:"auth_token"`
}

func (b BackendConfig) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(b.RequestTimeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "memory"
	Path   string `mapstructure:"path"`
}

type SyncConfig struct {
	MonitorInterval string `mapstructure:"monitor_interval"`
	AutoSync        bool   `mapstructure:"auto_sync"`
}

func (s SyncConfig) GetMonitorInterval() time.Duration {
	d, err := time.ParseDuration(s.MonitorInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	Host         string   `mapstructure:"host"`
	AuthToken    string   `mapstructure:"auth_token"`
	ReadTimeout  string   `mapstructure:"read_timeout"`
	WriteTimeout string   `mapstructure:"write_timeout"`
	CorsOrigins  []string `mapstructure:"cors_origins"`
}

func (s ServerConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

func (s ServerConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("backend.request_timeout", "15s")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "data")
	v.SetDefault("sync.monitor_interval", "30s")
	v.SetDefault("sync.auto_sync", true)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
