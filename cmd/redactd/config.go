package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Watch WatchConfig `toml:"watch"`
	Mask  MaskConfig  `toml:"mask"`
	Store StoreConfig `toml:"store"`
	Log   LogConfig   `toml:"log"`
}

type WatchConfig struct {
	Inbox  string `toml:"inbox"`
	Outbox string `toml:"outbox"`
}

type MaskConfig struct {
	Mode        string   `toml:"mode"`
	Placeholder bool     `toml:"placeholder"`
	Font        string   `toml:"font"`
	RasterScale float64  `toml:"raster_scale"`
	OCR         bool     `toml:"ocr"`
	Languages   []string `toml:"languages"`
	RuleFiles   []string `toml:"rule_files"`
}

type StoreConfig struct {
	Database string `toml:"database"`
	Blobs    string `toml:"blobs"`
	Secret   string `toml:"secret"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func defaultConfig() Config {
	return Config{
		Watch: WatchConfig{Inbox: "inbox", Outbox: "outbox"},
		Mask:  MaskConfig{Mode: "overlay"},
		Store: StoreConfig{Database: "redactd.db", Blobs: "blobs"},
		Log:   LogConfig{Level: "info"},
	}
}

// LoadConfig reads the TOML file, loads a dotenv file when one exists, then
// applies environment overrides. Environment wins over the file so
// deployments keep secrets out of it.
func LoadConfig(path, envFile string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("env %s: %w", envFile, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, fmt.Errorf("env .env: %w", err)
		}
	}
	applyEnv(&cfg)
	if cfg.Mask.Mode != "overlay" && cfg.Mask.Mode != "flatten" {
		return Config{}, fmt.Errorf("unknown mask mode %q", cfg.Mask.Mode)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	set(&cfg.Watch.Inbox, "REDACTD_INBOX")
	set(&cfg.Watch.Outbox, "REDACTD_OUTBOX")
	set(&cfg.Mask.Mode, "REDACTD_MODE")
	set(&cfg.Store.Database, "REDACTD_DATABASE")
	set(&cfg.Store.Blobs, "REDACTD_BLOBS")
	set(&cfg.Store.Secret, "REDACTD_SECRET")
	set(&cfg.Log.Level, "REDACTD_LOG_LEVEL")
}
