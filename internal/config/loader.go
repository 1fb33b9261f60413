// Package config loads the drawbridge.jsonc configuration document.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all settings loaded from drawbridge.jsonc
type Config struct {
	Server ServerConfig `json:"server"`
	Engine EngineConfig `json:"engine"`
	Sync   SyncConfig   `json:"sync"`
	Cloud  CloudConfig  `json:"cloud"`
}

// ServerConfig holds MCP server settings
type ServerConfig struct {
	Address string `json:"address"`
	LogDir  string `json:"log_dir"`
	DataDir string `json:"data_dir"`

	// RateLimitRPS bounds tool calls per second; 0 disables limiting.
	RateLimitRPS   float64 `json:"rate_limit_rps"`
	RateLimitBurst int     `json:"rate_limit_burst"`
}

// EngineConfig holds local execution engine settings
type EngineConfig struct {
	Binary       string `json:"binary"`
	DefaultModel string `json:"default_model"`
}

// SyncConfig holds object-store sync settings
type SyncConfig struct {
	Remote string `json:"remote"`
	Bucket string `json:"bucket"`
	Binary string `json:"binary"`
}

// CloudConfig holds remote execution service settings
type CloudConfig struct {
	Endpoint string `json:"endpoint"`

	// APIKey may be left empty; the runtime falls back to the
	// DRAWBRIDGE_API_KEY environment variable.
	APIKey string `json:"api_key"`

	TimeoutMinutes int  `json:"timeout_minutes"`
	SkipSync       bool `json:"skip_sync"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":8080",
			LogDir:         "logs",
			DataDir:        "data",
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
		Engine: EngineConfig{
			Binary: "codex",
		},
		Sync: SyncConfig{
			Remote: "s3",
			Bucket: "drawbridge-workspaces",
			Binary: "rclone",
		},
		Cloud: CloudConfig{
			TimeoutMinutes: 10,
		},
	}
}

// Timeout returns the cloud execution timeout as a duration
func (c *CloudConfig) Timeout() time.Duration {
	if c.TimeoutMinutes <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// FindConfigPath locates drawbridge.jsonc in the given directory,
// falling back to drawbridge.json
func FindConfigPath(dir string) (string, error) {
	for _, name := range []string{"drawbridge.jsonc", "drawbridge.json"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no drawbridge.jsonc found in %s", dir)
}

// Load reads and parses a configuration file, layering it over the
// defaults so omitted sections keep their default values
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(StripJSONComments(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDir loads configuration from a directory, returning defaults when
// no config file exists
func LoadDir(dir string) (*Config, error) {
	path, err := FindConfigPath(dir)
	if err != nil {
		return Default(), nil
	}
	return Load(path)
}
