// Package config loads the cio command-line configuration from JSONC files.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/afiaakosah/caching-i-o/pkg/cachedio"
	"github.com/afiaakosah/caching-i-o/pkg/fs"
)

// Config errors.
var (
	ErrFileNotFound = errors.New("config file not found")
	ErrFileRead     = errors.New("cannot read config file")
	ErrInvalid      = errors.New("invalid config file")
	ErrCapacity     = errors.New("capacity out of range")
	ErrLogLevel     = errors.New("unknown log level")
	ErrExists       = errors.New("config file already exists")
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	Capacity int    `json:"capacity,omitempty"`
	Label    string `json:"label,omitempty"`
	LogLevel string `json:"log_level,omitempty"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// FileName is the project config file name.
const FileName = ".cio.json"

// Default returns the default configuration.
func Default() Config {
	return Config{
		Capacity: cachedio.DefaultCapacity(),
		Label:    "cio",
		LogLevel: "warn",
	}
}

// GlobalPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/cio/config.json if set, otherwise ~/.config/cio/config.json.
// Returns empty string if home directory cannot be determined.
func GlobalPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "cio", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "cio", "config.json")
	}

	return ""
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDir    string            // directory the project config is looked up in
	ConfigPath string            // -c/--config flag value
	Overrides  Config            // flag values; zero fields mean no override
	Env        map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config (~/.config/cio/config.json or $XDG_CONFIG_HOME/cio/config.json)
// 3. Project config file at default location (.cio.json, if exists)
// 4. Explicit config file via ConfigPath (replaces the project file)
// 5. Flag overrides.
func Load(input LoadInput) (Config, error) {
	cfg := Default()

	if path := GlobalPath(input.Env); path != "" {
		globalCfg, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = path
			cfg = merge(cfg, globalCfg)
		}
	}

	projectPath := filepath.Join(input.WorkDir, FileName)
	mustExist := false

	if input.ConfigPath != "" {
		projectPath = input.ConfigPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(input.WorkDir, projectPath)
		}

		mustExist = true
	}

	projectCfg, loaded, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg.Sources.Project = projectPath
		cfg = merge(cfg, projectCfg)
	}

	cfg = merge(cfg, input.Overrides)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadFile loads a config file. If mustExist is false, a missing file
// returns a zero config and loaded=false.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}

			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w %s: %w", ErrFileRead, path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	return cfg, true, nil
}

// Parse decodes a JSONC document. Comments and trailing commas are allowed;
// unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.Capacity != 0 {
		base.Capacity = overlay.Capacity
	}

	if overlay.Label != "" {
		base.Label = overlay.Label
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	return base
}

// Validate checks the resolved values.
func Validate(cfg Config) error {
	if cfg.Capacity < cachedio.MinCapacity || cfg.Capacity > cachedio.MaxCapacity {
		return fmt.Errorf("%w: %d (want %d..%d)", ErrCapacity, cfg.Capacity, cachedio.MinCapacity, cachedio.MaxCapacity)
	}

	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}

	return nil
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrLogLevel, s)
	}

	return level, nil
}

// Format renders the serialized fields as indented JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}

	return string(data), nil
}

// WriteDefault writes the default configuration to path as JSONC.
// An existing file is left alone unless force is set.
func WriteDefault(fsys *fs.Real, path string, force bool) error {
	if !force {
		if _, err := fsys.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	body, err := Format(Default())
	if err != nil {
		return err
	}

	doc := "// cio configuration. Flags override these values.\n" + body + "\n"

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if err := fsys.WriteFileAtomic(path, []byte(doc), 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}

	return nil
}
