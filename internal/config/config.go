package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string `yaml:"port"`
		StaticDir      string `yaml:"static_dir"`
		ObserverBuffer int    `yaml:"observer_buffer"`
	} `yaml:"server"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Provider struct {
		// Mode is "simulated" or "delegated".
		Mode string `yaml:"mode"`
		// Backend picks the delegated model API: "openai" or "gemini".
		Backend    string `yaml:"backend"`
		Model      string `yaml:"model"`
		BaseURL    string `yaml:"base_url"`
		APIKey     string `yaml:"api_key"`
		Timeout    string `yaml:"timeout"`
		MinLatency string `yaml:"min_latency"`
		MaxLatency string `yaml:"max_latency"`
	} `yaml:"provider"`
}

// Defaults returns the configuration used when a key is absent from the file.
func Defaults() Config {
	cfg := Config{}
	cfg.Server.Port = "3000"
	cfg.Server.ObserverBuffer = 32
	cfg.Log.Level = "info"
	cfg.Provider.Mode = "simulated"
	cfg.Provider.Backend = "openai"
	cfg.Provider.MinLatency = "50ms"
	cfg.Provider.MaxLatency = "350ms"
	return cfg
}

// Load reads YAML config from path on top of Defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv loads .env when present and lets the environment override secrets
// and the provider mode.
func applyEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("QUIZEVAL_PROVIDER_MODE"); v != "" {
		cfg.Provider.Mode = v
	}
	if v := os.Getenv("QUIZEVAL_PROVIDER_BACKEND"); v != "" {
		cfg.Provider.Backend = v
	}
	if v := os.Getenv("QUIZEVAL_POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("QUIZEVAL_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if cfg.Provider.APIKey == "" {
		switch cfg.Provider.Backend {
		case "gemini":
			cfg.Provider.APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
		}
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
