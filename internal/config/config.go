package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port    int    `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type SessionConfig struct {
	RefreshMargin string `yaml:"refresh_margin"`
	RefreshFloor  string `yaml:"refresh_floor"`
	PollInterval  string `yaml:"poll_interval"`
}

type IdleConfig struct {
	CheckInterval    string `yaml:"check_interval"`
	AutoLogoutAfter  string `yaml:"auto_logout_after"`
	WarningThreshold string `yaml:"warning_threshold"`
}

type ConfigFile struct {
	App     AppConfig     `yaml:"app"`
	Backend BackendConfig `yaml:"backend"`
	Redis   RedisConfig   `yaml:"redis"`
	Session SessionConfig `yaml:"session"`
	Idle    IdleConfig    `yaml:"idle"`
}

type Config struct {
	Port    string
	GinMode string

	BackendBaseURL string
	BackendTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	RefreshMargin time.Duration
	RefreshFloor  time.Duration
	PollInterval  time.Duration

	IdleCheckInterval time.Duration
	AutoLogoutAfter   time.Duration
	WarningThreshold  time.Duration
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads the YAML config file (CONFIG_PATH, default config/config.yml)
// and applies environment overrides for deployment-specific values.
func Load() (*Config, error) {
	return LoadFrom(env("CONFIG_PATH", "config/config.yml"))
}

// LoadFrom reads configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	configFile, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	refreshMargin, err := duration(configFile.Session.RefreshMargin, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh margin: %w", err)
	}
	refreshFloor, err := duration(configFile.Session.RefreshFloor, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh floor: %w", err)
	}
	pollInterval, err := duration(configFile.Session.PollInterval, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid poll interval: %w", err)
	}
	checkInterval, err := duration(configFile.Idle.CheckInterval, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid idle check interval: %w", err)
	}
	autoLogout, err := duration(configFile.Idle.AutoLogoutAfter, 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid auto logout threshold: %w", err)
	}
	warning, err := duration(configFile.Idle.WarningThreshold, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid warning threshold: %w", err)
	}
	backendTimeout, err := duration(configFile.Backend.Timeout, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid backend timeout: %w", err)
	}

	redisDB := configFile.Redis.DB
	if v := os.Getenv("REDIS_DB"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		redisDB = parsed
	}

	return &Config{
		Port:              fmt.Sprintf("%d", configFile.App.Port),
		GinMode:           configFile.App.GinMode,
		BackendBaseURL:    env("BACKEND_BASE_URL", configFile.Backend.BaseURL),
		BackendTimeout:    backendTimeout,
		RedisAddr:         env("REDIS_ADDR", configFile.Redis.Addr),
		RedisPassword:     env("REDIS_PASSWORD", configFile.Redis.Password),
		RedisDB:           redisDB,
		RedisPrefix:       configFile.Redis.KeyPrefix,
		RefreshMargin:     refreshMargin,
		RefreshFloor:      refreshFloor,
		PollInterval:      pollInterval,
		IdleCheckInterval: checkInterval,
		AutoLogoutAfter:   autoLogout,
		WarningThreshold:  warning,
	}, nil
}

func loadConfigFile(path string) (*ConfigFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}

	return &config, nil
}

func duration(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	return time.ParseDuration(raw)
}
