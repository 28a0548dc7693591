// Package config loads typed configuration for both processes via koanf
// (§9 Design Note "Dynamic configuration -> enumerated options": no
// untyped dictionaries). Grounded on tomtom215/cartographus's
// defaults-then-file-then-env layering and Dash-Industry-Forum/livesim2's
// struct-tag unmarshal, adapted from the teacher's own internal/config
// (a SQLite-backed untyped string KV cache) which is now narrowed to
// internal/store's config table for the handful of server-side settings
// the spec itself never names as typed fields.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

var jsonParser = koanfjson.Parser()

// ServerConfig is the server process's entire typed configuration
// surface.
type ServerConfig struct {
	Addr              string `koanf:"addr"`
	DBPath            string `koanf:"db_path"`
	UploadsDir        string `koanf:"uploads_dir"`
	RegisterRateLimit int    `koanf:"register_rate_limit"` // requests/minute/IP on POST /player/register
	MetricsAddr       string `koanf:"metrics_addr"`
	Debug             bool   `koanf:"debug"`
}

func defaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:              ":8090",
		DBPath:            "signage.db",
		UploadsDir:        "./uploads",
		RegisterRateLimit: 10,
		MetricsAddr:       ":9090",
		Debug:             false,
	}
}

// LoadServerConfig layers defaults, an optional config file (always
// parsed as JSON, via koanf's file provider) and SIGNAGE_SERVER_*
// environment variables, highest priority last.
func LoadServerConfig(configPath string) (*ServerConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultServerConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), jsonParser); err != nil {
				return nil, fmt.Errorf("config: load file %s: %w", configPath, err)
			}
		}
	}

	envProvider := env.Provider("SIGNAGE_SERVER_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "SIGNAGE_SERVER_")
		return strings.ToLower(s)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	cfg := &ServerConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// PlayerConfig mirrors the persisted player config.json exactly as §6
// and §9 name it: {server_url, access_code?, device_name?, fullscreen,
// debug}. LocalMediaPort and CacheDir are operational settings the spec
// never lists in that literal shape, so they're not written back by
// Save — they come from defaults, the optional config file, or env only.
type PlayerConfig struct {
	ServerURL      string `koanf:"server_url" json:"server_url"`
	AccessCode     string `koanf:"access_code" json:"access_code,omitempty"`
	DeviceName     string `koanf:"device_name" json:"device_name,omitempty"`
	Fullscreen     bool   `koanf:"fullscreen" json:"fullscreen"`
	Debug          bool   `koanf:"debug" json:"debug"`
	LocalMediaPort int    `koanf:"local_media_port" json:"-"`
	KioskPort      int    `koanf:"kiosk_port" json:"-"`
	CacheDir       string `koanf:"cache_dir" json:"-"`
}

func defaultPlayerConfig() *PlayerConfig {
	return &PlayerConfig{
		ServerURL:      "",
		Fullscreen:     true,
		Debug:          false,
		LocalMediaPort: 9091,
		KioskPort:      9092,
		CacheDir:       "./cache",
	}
}

// LoadPlayerConfig layers defaults, the persisted config.json (if
// present) and SIGNAGE_PLAYER_* environment overrides.
func LoadPlayerConfig(configPath string) (*PlayerConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultPlayerConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), jsonParser); err != nil {
				return nil, fmt.Errorf("config: load file %s: %w", configPath, err)
			}
		}
	}

	envProvider := env.Provider("SIGNAGE_PLAYER_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "SIGNAGE_PLAYER_")
		return strings.ToLower(s)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	cfg := &PlayerConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Save persists the spec-named surface of the config back to
// config.json, preserving the literal shape named by §6 regardless of
// the operational fields carried alongside it in memory.
func (c *PlayerConfig) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Bound reports whether the player has an access code to register with.
func (c *PlayerConfig) Bound() bool {
	return c.AccessCode != ""
}
