// Package config loads dserver/dclient configuration, layering a global
// user config, a project config file, and CLI overrides — the same
// precedence and hujson-based JSONC parsing the teacher's root
// config.go uses for .tk.json, generalized from ticket-tracker settings
// to document-index settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// ConfigFileName is the default project config file name.
const ConfigFileName = ".dindex.json"

// DefaultFIFODir is where the server and reply FIFOs live absent an
// override (spec §6).
const DefaultFIFODir = "/tmp"

var (
	ErrConfigRead       = errors.New("config: cannot read config file")
	ErrConfigInvalid    = errors.New("config: invalid config file")
	ErrDocumentRootUnset = errors.New("config: document_root is required")
)

// Config holds all configuration options (spec §6 CLI plus §10.1
// ambient layering).
type Config struct {
	DocumentRoot string `json:"document_root,omitempty"` //nolint:tagliatelle // snake_case matches teacher's config style
	CacheSize    int    `json:"cache_size,omitempty"`
	FIFODir      string `json:"fifo_dir,omitempty"`
}

// Default returns the zero-value config plus the one field with a
// sensible default (FIFODir).
func Default() Config {
	return Config{FIFODir: DefaultFIFODir}
}

// Load layers: defaults < global user config < project config (cwd) <
// cliOverrides. requireDocRoot controls whether document_root is
// validated as present: dserver needs it to serve documents, but
// dclient never reads it (it only ever dials the FIFO transport), so
// dclient passes false and skips that check (spec §6: the client's
// canonical invocation, e.g. "dclient -c 0", carries no document_root
// at all).
func Load(workDir string, cliOverrides Config, env []string, requireDocRoot bool) (Config, error) {
	cfg := Default()

	globalCfg, err := loadOptional(globalConfigPath(env))
	if err != nil {
		return Config{}, err
	}

	cfg = merge(cfg, globalCfg)

	projectCfg, err := loadOptional(filepath.Join(workDir, ConfigFileName))
	if err != nil {
		return Config{}, err
	}

	cfg = merge(cfg, projectCfg)
	cfg = merge(cfg, cliOverrides)

	if err := validate(cfg, requireDocRoot); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func globalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "dindex", "config.json")
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dindex", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "dindex", "config.json")
}

func loadOptional(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is derived from trusted env/cwd inputs
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}

		return Config{}, fmt.Errorf("%w: %s: %w", ErrConfigRead, path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrConfigInvalid, path, err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.DocumentRoot != "" {
		base.DocumentRoot = overlay.DocumentRoot
	}

	if overlay.CacheSize != 0 {
		base.CacheSize = overlay.CacheSize
	}

	if overlay.FIFODir != "" {
		base.FIFODir = overlay.FIFODir
	}

	return base
}

func validate(cfg Config, requireDocRoot bool) error {
	if requireDocRoot && cfg.DocumentRoot == "" {
		return ErrDocumentRootUnset
	}

	return nil
}
