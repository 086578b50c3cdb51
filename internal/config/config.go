package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var (
	// ErrMissingCredentials is a startup error: the api mode cannot run without them
	ErrMissingCredentials = errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set (see .env)")
	ErrUnknownMode        = errors.New("unknown COLLECTOR_MODE (use 'api' or 'mock')")
)

const (
	ModeAPI  = "api"
	ModeMock = "mock"
)

// Provider holds everything the collector factory needs
type Provider struct {
	Mode         string
	ClientID     string
	ClientSecret string
	Market       string
	BaseURL      string
	TokenURL     string
}

type Config struct {
	Provider  Provider
	Port      string
	DataFile  string
	LogLevel  string
	LogFormat string
}

// Load reads the configuration and validates the provider settings
func Load(envFile string) (*Config, error) {
	cfg, err := Read(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Provider.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads an optional env file and then the process environment without
// validating credentials. A missing env file is not an error.
func Read(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Provider: Provider{
			Mode:         strings.ToLower(getEnv("COLLECTOR_MODE", ModeAPI)),
			ClientID:     firstEnv("SPOTIFY_CLIENT_ID", "SPOTIPY_CLIENT_ID"),
			ClientSecret: firstEnv("SPOTIFY_CLIENT_SECRET", "SPOTIPY_CLIENT_SECRET"),
			Market:       os.Getenv("SPOTIFY_MARKET"),
			BaseURL:      os.Getenv("SPOTIFY_API_URL"),
			TokenURL:     os.Getenv("SPOTIFY_TOKEN_URL"),
		},
		Port:      getEnv("PORT", "8080"),
		DataFile:  getEnv("DATA_FILE", "data/current.json"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
	return cfg, nil
}

func (p Provider) Validate() error {
	switch p.Mode {
	case ModeAPI:
		if p.ClientID == "" || p.ClientSecret == "" {
			return ErrMissingCredentials
		}
	case ModeMock:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, p.Mode)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
