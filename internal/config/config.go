// Package config loads runtime settings from the environment, optionally
// seeded from a .env file. Command-line flags override what is loaded here.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath            string
	Addr              string
	LogPath           string
	CORSOrigin        string
	StrictStock       bool
	ImageMaxDimension int
	Chat              ChatConfig
}

type ChatConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxHistory    int
	RatePerMinute int
}

// Load reads envFile into the environment (existing variables win) and
// builds a Config. An empty envFile means ".env", which may be absent.
func Load(envFile string) (Config, error) {
	path := envFile
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if envFile != "" || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	cfg := Config{
		DBPath:     getEnv("GUDANG_DB", "gudang.sqlite3"),
		Addr:       getEnv("GUDANG_ADDR", ""),
		LogPath:    getEnv("GUDANG_LOG", ""),
		CORSOrigin: getEnv("GUDANG_CORS_ORIGIN", ""),
		Chat: ChatConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:   getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		},
	}
	if cfg.Addr == "" {
		cfg.Addr = ":" + getEnv("PORT", "8080")
	}

	var err error
	if cfg.StrictStock, err = getBool("GUDANG_STRICT_STOCK", false); err != nil {
		return Config{}, err
	}
	if cfg.ImageMaxDimension, err = getInt("GUDANG_IMAGE_MAX_DIMENSION", 1024); err != nil {
		return Config{}, err
	}
	if cfg.Chat.MaxHistory, err = getInt("CHAT_MAX_HISTORY", 20); err != nil {
		return Config{}, err
	}
	if cfg.Chat.RatePerMinute, err = getInt("CHAT_RATE_PER_MINUTE", 10); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: %q is not a non-negative integer", key, v)
	}
	return n, nil
}
