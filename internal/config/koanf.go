package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

// DefaultPath is read when PathEnvVar is unset and the file exists.
const DefaultPath = "movi.yaml"

func defaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		TMDB: TMDBConfig{
			BaseURL: "https://api.themoviedb.org/3",
			Timeout: 15 * time.Second,
		},
		OpenLibrary: OpenLibraryConfig{
			BaseURL: "https://openlibrary.org",
			Timeout: 15 * time.Second,
		},
		Proxy: ProxyConfig{
			Port:        5050,
			SavePath:    "last_search.json",
			CORSOrigins: []string{"*"},
		},
		Backend: BackendConfig{
			Port:           5000,
			DBPath:         "data/movi.db",
			TokenTTL:       time.Hour,
			BcryptCost:     12,
			CatalogEnabled: true,
			CORSOrigins:    []string{"*"},
		},
		Client: ClientConfig{
			APIURL:         "http://127.0.0.1:5000",
			ProxyURL:       "http://127.0.0.1:5050",
			SessionPath:    "data/session.db",
			RequestTimeout: 10 * time.Second,
			SearchDebounce: 350 * time.Millisecond,
		},
	}
}

// envMappings maps environment variable names (lowercased) to config keys.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"log_level": "log.level",

	"tmdb_v3_key":         "tmdb.api_key",
	"tmdb_base_url":       "tmdb.base_url",
	"tmdb_timeout":        "tmdb.timeout",
	"openlibrary_url":     "openlibrary.base_url",
	"openlibrary_timeout": "openlibrary.timeout",

	"proxy_port":         "proxy.port",
	"proxy_save_path":    "proxy.save_path",
	"proxy_cors_origins": "proxy.cors_origins",

	"backend_port":         "backend.port",
	"db_path":              "backend.db_path",
	"jwt_secret":           "backend.jwt_secret",
	"jwt_ttl":              "backend.token_ttl",
	"bcrypt_cost":          "backend.bcrypt_cost",
	"catalog_enabled":      "backend.catalog_enabled",
	"backend_cors_origins": "backend.cors_origins",

	"movi_api_url":         "client.api_url",
	"movi_proxy_url":       "client.proxy_url",
	"movi_session_path":    "client.session_path",
	"movi_request_timeout": "client.request_timeout",
	"movi_search_debounce": "client.search_debounce",
}

// sliceKeys are comma-separated when they come from the environment.
var sliceKeys = []string{"proxy.cors_origins", "backend.cors_origins"}

func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load reads defaults, the optional YAML file and the environment. It does
// not validate; callers validate the sections they use.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path := findFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}
	return cfg, nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

// splitSlices turns "a, b" strings from the environment into lists.
func splitSlices(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("config: setting %s: %w", key, err)
		}
	}
	return nil
}
