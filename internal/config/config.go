// Package config loads plashr configuration from plashr.yaml and PLASHR_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PLASHR_API_ACCESS_KEY.
const EnvPrefix = "PLASHR"

type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Download DownloadConfig `mapstructure:"download"`
}

type APIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	AccessKey   string        `mapstructure:"access_key"`
	SecretKey   string        `mapstructure:"secret_key"`
	RedirectURL string        `mapstructure:"redirect_url"`
	AuthURL     string        `mapstructure:"auth_url"`
	TokenURL    string        `mapstructure:"token_url"`
	PageSize    int           `mapstructure:"page_size"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ProxyConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DownloadConfig struct {
	Dir     string `mapstructure:"dir"`
	Workers int    `mapstructure:"workers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api.unsplash.com")
	v.SetDefault("api.access_key", "")
	v.SetDefault("api.secret_key", "")
	v.SetDefault("api.redirect_url", "http://localhost:8765/callback")
	v.SetDefault("api.auth_url", "")
	v.SetDefault("api.token_url", "")
	v.SetDefault("api.page_size", 30)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.max_retries", 0)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "plashr.failures")

	v.SetDefault("proxy.addr", ":8080")
	v.SetDefault("proxy.allowed_origins", []string{"*"})

	v.SetDefault("download.dir", "Pictures/plashr")
	v.SetDefault("download.workers", 4)
}

// Load reads configuration. An empty path searches for plashr.yaml in the
// working directory and in $HOME/.config/plashr; a missing file is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("plashr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "plashr"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// RequireAPI checks the settings needed to call the API.
func (c *Config) RequireAPI() error {
	if c.API.AccessKey == "" {
		return fmt.Errorf("api.access_key is not set (set %s_API_ACCESS_KEY or add it to plashr.yaml)", EnvPrefix)
	}
	if c.API.PageSize <= 0 || c.API.PageSize > 30 {
		return fmt.Errorf("api.page_size must be between 1 and 30 (got %d)", c.API.PageSize)
	}
	return nil
}

// RequireOAuth checks the settings needed to log in.
func (c *Config) RequireOAuth() error {
	if err := c.RequireAPI(); err != nil {
		return err
	}
	if c.API.SecretKey == "" {
		return fmt.Errorf("api.secret_key is not set (set %s_API_SECRET_KEY or add it to plashr.yaml)", EnvPrefix)
	}
	return nil
}
