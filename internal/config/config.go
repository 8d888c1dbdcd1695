package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Auth struct {
		Secret   string `yaml:"secret"`
		Issuer   string `yaml:"issuer"`
		TokenTTL string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Notifications struct {
		DailyCron string `yaml:"daily_cron"`
		Timezone  string `yaml:"timezone"`
		Channel   string `yaml:"channel"`
	} `yaml:"notifications"`
	Agent struct {
		APIURL            string `yaml:"api_url"`
		Token             string `yaml:"token"`
		UserID            string `yaml:"user_id"`
		DBPath            string `yaml:"db_path"`
		Listen            string `yaml:"listen"`
		SyncInterval      string `yaml:"sync_interval"`
		ProbeInterval     string `yaml:"probe_interval"`
		RequestTimeout    string `yaml:"request_timeout"`
		DefaultDifficulty string `yaml:"default_difficulty"`
	} `yaml:"agent"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// Load reads YAML config from path and applies environment overrides.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// LoadOptional is Load, except a missing file yields an environment-only config.
func LoadOptional(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Parse(nil)
	}
	return cfg, err
}

// Parse decodes YAML config and applies environment overrides.
func Parse(data []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets secrets and endpoints come from the environment (or a .env file).
func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("TRIVORA_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("TRIVORA_API_URL"); v != "" {
		cfg.Agent.APIURL = v
	}
	if v := os.Getenv("TRIVORA_API_TOKEN"); v != "" {
		cfg.Agent.Token = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// StringOr returns raw unless it is empty.
func StringOr(raw, fallback string) string {
	if raw == "" {
		return fallback
	}
	return raw
}
