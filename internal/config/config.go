// Package config holds the service configuration and its on-disk form.
//
// Configuration is persisted as a versioned JSON envelope:
//
//	{"version": 1, "config": { ... }}
//
// Saves are atomic via temp file + rename. A missing file yields defaults,
// so a bare `notilog server` run needs no config at all.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const currentVersion = 1

// Defaults.
const (
	DefaultDataDir      = "./queue"
	DefaultAddr         = ":4570"
	DefaultMaxDataBytes = 500 << 20 // statistics capacity threshold
	DefaultWriteRPS     = 50
	DefaultWriteBurst   = 100
)

// Config is the service configuration.
type Config struct {
	// DataDir is the store directory holding the segment files.
	DataDir string `json:"dataDir"`

	// Addr is the HTTP listen address (host:port).
	Addr string `json:"addr"`

	// MaxDataBytes is the capacity threshold for the statistics usage
	// percentage.
	MaxDataBytes int64 `json:"maxDataBytes"`

	// SegmentMaxBytes is the store's segment rotation threshold.
	// Zero means the store default.
	SegmentMaxBytes int64 `json:"segmentMaxBytes,omitempty"`

	// Compression enables zstd compression of sealed segments.
	Compression bool `json:"compression,omitempty"`

	// WriteRPS / WriteBurst bound per-IP writes on the HTTP surface.
	// Zero RPS disables rate limiting.
	WriteRPS   float64 `json:"writeRps"`
	WriteBurst int     `json:"writeBurst"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		DataDir:      DefaultDataDir,
		Addr:         DefaultAddr,
		MaxDataBytes: DefaultMaxDataBytes,
		WriteRPS:     DefaultWriteRPS,
		WriteBurst:   DefaultWriteBurst,
	}
}

// envelope is the versioned on-disk format.
type envelope struct {
	Version int     `json:"version"`
	Config  *Config `json:"config"`
}

// Load reads the configuration from path. A missing file returns defaults.
// Fields absent from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	env := envelope{Config: &cfg}
	if err := json.Unmarshal(data, &env); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	if env.Version == 0 {
		return Config{}, fmt.Errorf("unversioned config file; delete %s and restart to regenerate", path)
	}
	if env.Version > currentVersion {
		return Config{}, fmt.Errorf("config file version %d is newer than supported version %d", env.Version, currentVersion)
	}
	return cfg, nil
}

// Save atomically writes the configuration to path via temp file + rename.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(envelope{Version: currentVersion, Config: &cfg}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
