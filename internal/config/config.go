// Package config loads the match server configuration from server.yaml and
// applies environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr    string `yaml:"addr" env:"MW_ADDR"`
	DataDir string `yaml:"data_dir" env:"MW_DATA_DIR"`
	MapPath string `yaml:"map" env:"MW_MAP"`

	// BlocksPath points at the material catalog. Empty disables material checks.
	BlocksPath string `yaml:"blocks" env:"MW_BLOCKS"`

	ScoreboardTitle string  `yaml:"scoreboard_title"`
	SoundRadius     float64 `yaml:"sound_radius"`
	ViewerQueue     int     `yaml:"viewer_queue"`

	DisableDB bool   `yaml:"disable_db" env:"MW_DISABLE_DB"`
	DBPath    string `yaml:"db_path"`

	// AdminHTTP exposes /admin/v1/* to loopback clients.
	AdminHTTP bool `yaml:"admin_http" env:"MW_ADMIN_HTTP"`
}

func defaults() Config {
	return Config{
		Addr:        ":8080",
		DataDir:     "./data",
		MapPath:     "./maps/twin_cores/map.json",
		BlocksPath:  "./configs/blocks.json",
		SoundRadius: 64,
		ViewerQueue: 256,
		AdminHTTP:   true,
	}
}

// Load reads path (may be empty for defaults), then applies environment
// overrides, normalizes, and validates.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("server.yaml: %w", err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("server.yaml: %w", err)
	}
	return cfg, nil
}

// ParseEnv overlays environment variables onto target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) Normalize() {
	c.Addr = strings.TrimSpace(c.Addr)
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.MapPath = strings.TrimSpace(c.MapPath)
	c.BlocksPath = strings.TrimSpace(c.BlocksPath)
	c.ScoreboardTitle = strings.TrimSpace(c.ScoreboardTitle)
	if c.SoundRadius <= 0 {
		c.SoundRadius = 64
	}
	if c.ViewerQueue <= 0 {
		c.ViewerQueue = 256
	}
	if c.DBPath == "" && c.DataDir != "" {
		c.DBPath = c.DataDir + "/index/match_index.sqlite"
	}
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.MapPath == "" {
		return fmt.Errorf("map must not be empty")
	}
	if c.ViewerQueue > 1<<16 {
		return fmt.Errorf("viewer_queue too large: %d", c.ViewerQueue)
	}
	return nil
}
