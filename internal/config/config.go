package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig configures the chat client process.
// Priority: environment > YAML file (CONFIG_PATH) > defaults.
type ClientConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// ReconnectIntervalMs is kept in milliseconds, the unit users edit.
	ReconnectIntervalMs int64 `yaml:"reconnect_interval_ms"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	Database      string `yaml:"database"`
	QueueCapacity int    `yaml:"queue_capacity"`
	Locale        string `yaml:"locale"`

	AuthTimeout      time.Duration `yaml:"auth_timeout"`
	UserCheckTimeout time.Duration `yaml:"user_check_timeout"`

	// MetricsAddr exposes client metrics when set.
	MetricsAddr string `yaml:"metrics_addr"`
}

// ServerConfig configures the chat server and the admin CLI.
type ServerConfig struct {
	Addr           string  `yaml:"addr"`
	DatabaseDriver string  `yaml:"database_driver"`
	DatabaseURL    string  `yaml:"database_url"`
	RedisURL       string  `yaml:"redis_url"`
	BroadcastTopic string  `yaml:"broadcast_topic"`
	FrameRate      float64 `yaml:"frame_rate"`
	FrameBurst     int     `yaml:"frame_burst"`
	Locale         string  `yaml:"locale"`
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:                DefaultHost,
		Port:                DefaultPort,
		ReconnectIntervalMs: DefaultReconnectInterval.Milliseconds(),
		Database:            DefaultClientDatabase,
		QueueCapacity:       DefaultQueueCapacity,
		Locale:              DefaultLocale,
		AuthTimeout:         DefaultAuthTimeout,
		UserCheckTimeout:    DefaultUserCheckTimeout,
	}
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           DefaultServerAddr,
		DatabaseDriver: DefaultServerDriver,
		DatabaseURL:    DefaultServerDSN,
		BroadcastTopic: DefaultBroadcastTopic,
		FrameRate:      DefaultFrameRate,
		FrameBurst:     DefaultFrameBurst,
		Locale:         DefaultLocale,
	}
}

// LoadClient reads the client configuration.
func LoadClient() (ClientConfig, error) {
	cfg := defaultClientConfig()
	if err := loadYAML(os.Getenv("CONFIG_PATH"), &cfg); err != nil {
		return cfg, err
	}

	var errs []error
	setString(&cfg.Host, "MINICHAT_HOST")
	errs = append(errs, setInt(&cfg.Port, "MINICHAT_PORT"))
	errs = append(errs, setInt64(&cfg.ReconnectIntervalMs, "MINICHAT_RECONNECT_INTERVAL_MS"))
	setString(&cfg.Username, "MINICHAT_USERNAME")
	setString(&cfg.Password, "MINICHAT_PASSWORD")
	setString(&cfg.Database, "MINICHAT_DATABASE")
	errs = append(errs, setInt(&cfg.QueueCapacity, "MINICHAT_QUEUE_CAPACITY"))
	setString(&cfg.Locale, "MINICHAT_LOCALE")
	errs = append(errs, setDuration(&cfg.AuthTimeout, "MINICHAT_AUTH_TIMEOUT"))
	errs = append(errs, setDuration(&cfg.UserCheckTimeout, "MINICHAT_USER_CHECK_TIMEOUT"))
	setString(&cfg.MetricsAddr, "MINICHAT_METRICS_ADDR")
	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}

	if err := ValidatePort(cfg.Port); err != nil {
		return cfg, err
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	return cfg, nil
}

// LoadServer reads the server configuration.
func LoadServer() (ServerConfig, error) {
	cfg := defaultServerConfig()
	if err := loadYAML(os.Getenv("CONFIG_PATH"), &cfg); err != nil {
		return cfg, err
	}

	var errs []error
	setString(&cfg.Addr, "MINICHAT_ADDR")
	setString(&cfg.DatabaseDriver, "DB_DRIVER")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.BroadcastTopic, "MINICHAT_BROADCAST_TOPIC")
	errs = append(errs, setFloat(&cfg.FrameRate, "MINICHAT_FRAME_RATE"))
	errs = append(errs, setInt(&cfg.FrameBurst, "MINICHAT_FRAME_BURST"))
	setString(&cfg.Locale, "MINICHAT_LOCALE")
	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ReconnectInterval converts the configured interval to a duration.
func (c ClientConfig) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalMs) * time.Millisecond
}

func loadYAML(path string, out interface{}) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}
