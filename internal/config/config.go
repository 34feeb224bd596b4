// Package config loads settings for the proxy, the backend and the client.
//
// LAYERING (lowest to highest priority):
//  1. defaults()              compiled-in values
//  2. YAML file               $CONFIG_PATH, else ./movi.yaml if present
//  3. environment variables   mapped by envTransform
//
// Each binary only validates the sections it uses (Proxy.Validate,
// Backend.Validate, Client.Validate), so a proxy deployment does not need a
// JWT secret and a backend deployment does not need a TMDB key.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// Config is the full settings tree.
type Config struct {
	Log         LogConfig         `koanf:"log"`
	TMDB        TMDBConfig        `koanf:"tmdb"`
	OpenLibrary OpenLibraryConfig `koanf:"openlibrary"`
	Proxy       ProxyConfig       `koanf:"proxy"`
	Backend     BackendConfig     `koanf:"backend"`
	Client      ClientConfig      `koanf:"client"`
}

// LogConfig selects the slog level.
type LogConfig struct {
	Level string `koanf:"level"`
}

// SlogLevel parses Level, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// TMDBConfig is shared by the proxy and the backend catalog.
type TMDBConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// OpenLibraryConfig is shared by the proxy and the backend catalog.
type OpenLibraryConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// ProxyConfig configures cmd/proxy.
type ProxyConfig struct {
	Port        int      `koanf:"port"`
	SavePath    string   `koanf:"save_path"` // where save=1 writes the last search
	CORSOrigins []string `koanf:"cors_origins"`
}

// Validate checks the proxy section. A missing TMDB key is not an error:
// the proxy starts and answers with an explicit 500 diagnostic instead.
func (c ProxyConfig) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("proxy.port %d out of range", c.Port))
	}
	if strings.TrimSpace(c.SavePath) == "" {
		errs = append(errs, errors.New("proxy.save_path must not be empty"))
	}
	return errors.Join(errs...)
}

// BackendConfig configures cmd/backend.
type BackendConfig struct {
	Port           int           `koanf:"port"`
	DBPath         string        `koanf:"db_path"`
	JWTSecret      string        `koanf:"jwt_secret"`
	TokenTTL       time.Duration `koanf:"token_ttl"`
	BcryptCost     int           `koanf:"bcrypt_cost"`
	CatalogEnabled bool          `koanf:"catalog_enabled"` // look up item metadata on TMDB/OpenLibrary
	CORSOrigins    []string      `koanf:"cors_origins"`
}

// Validate checks the backend section.
func (c BackendConfig) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("backend.port %d out of range", c.Port))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("backend.db_path must not be empty"))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("backend.jwt_secret must be at least 16 characters (set JWT_SECRET)"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("backend.token_ttl must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("backend.bcrypt_cost %d out of range [4,31]", c.BcryptCost))
	}
	return errors.Join(errs...)
}

// ClientConfig configures the headless client (internal/app).
type ClientConfig struct {
	APIURL         string        `koanf:"api_url"`   // core backend
	ProxyURL       string        `koanf:"proxy_url"` // metadata proxy
	SessionPath    string        `koanf:"session_path"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	SearchDebounce time.Duration `koanf:"search_debounce"`
}

// Validate checks the client section.
func (c ClientConfig) Validate() error {
	var errs []error
	for name, raw := range map[string]string{"client.api_url": c.APIURL, "client.proxy_url": c.ProxyURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s %q is not an absolute URL", name, raw))
		}
	}
	if strings.TrimSpace(c.SessionPath) == "" {
		errs = append(errs, errors.New("client.session_path must not be empty"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("client.request_timeout must be positive"))
	}
	if c.SearchDebounce < 0 {
		errs = append(errs, errors.New("client.search_debounce must not be negative"))
	}
	return errors.Join(errs...)
}
