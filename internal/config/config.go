package config

import (
	"errors"
	"fmt"
	"os"
)

const (
	BackendFever   = "fever"
	BackendGReader = "greader"
)

// Config holds runtime settings for the sync app.
type Config struct {
	Backend    string
	APIBaseURL string
	Username   string
	Password   string
	DBPath     string
	Locale     string
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Backend:    os.Getenv("FEEDSYNC_BACKEND"),
		APIBaseURL: os.Getenv("FEEDSYNC_API_BASE_URL"),
		Username:   os.Getenv("FEEDSYNC_USERNAME"),
		Password:   os.Getenv("FEEDSYNC_PASSWORD"),
		DBPath:     os.Getenv("FEEDSYNC_DB_PATH"),
		Locale:     os.Getenv("FEEDSYNC_LOCALE"),
	}

	if cfg.Backend == "" {
		cfg.Backend = BackendFever
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "feedsync.db"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Backend != BackendFever && c.Backend != BackendGReader {
		return fmt.Errorf("FEEDSYNC_BACKEND must be %s or %s: %s", BackendFever, BackendGReader, c.Backend)
	}
	if c.APIBaseURL == "" {
		return errors.New("FEEDSYNC_API_BASE_URL is required")
	}
	if c.Username == "" {
		return errors.New("FEEDSYNC_USERNAME is required")
	}
	if c.Password == "" {
		return errors.New("FEEDSYNC_PASSWORD is required")
	}
	if c.DBPath == "" {
		return errors.New("FEEDSYNC_DB_PATH is required")
	}
	if c.APIBaseURL[len(c.APIBaseURL)-1] == '/' {
		return fmt.Errorf("FEEDSYNC_API_BASE_URL must not end with '/': %s", c.APIBaseURL)
	}
	return nil
}
