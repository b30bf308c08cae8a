package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// FileName is the name Load looks for in each search directory.
const FileName = "lightbake.yaml"

// Load builds the effective configuration for a scene. Layers are merged in
// order, later ones overriding earlier ones:
//
//	defaults < user config dir < scene directory < -config file < flags
//
// Missing layer files are skipped; only the -config file must exist.
func Load(sceneDir string) (*Config, error) {
	cfg := Default()

	for _, path := range searchPaths(sceneDir) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}
	if path := ConfigPath(); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// searchPaths lists the implicit config layers, lowest priority first. The
// scene directory layer is dropped when it is the user config dir.
func searchPaths(sceneDir string) []string {
	paths := []string{filepath.Join(ConfigDir(), FileName)}
	if sceneDir == "" {
		return paths
	}
	scenePath := filepath.Join(sceneDir, FileName)
	if abs, err := filepath.Abs(scenePath); err == nil && abs == paths[0] {
		return paths
	}
	return append(paths, scenePath)
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "MidgardLightbake")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "MidgardLightbake")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "midgard-lightbake")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "midgard-lightbake")
	}
}

// loadFromFile merges a YAML file into cfg. Keys the file leaves out keep
// their current value; unknown keys are rejected so typos do not pass
// silently. An empty file is a no-op.
func loadFromFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Write encodes the config as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// SaveTo writes the config to path, creating parent directories.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
