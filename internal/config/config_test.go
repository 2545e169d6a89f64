package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	want := Config{
		DataDir:         "/var/lib/notilog",
		Addr:            ":9999",
		MaxDataBytes:    1 << 20,
		SegmentMaxBytes: 4 << 20,
		Compression:     true,
		WriteRPS:        10,
		WriteBurst:      20,
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: expected %+v, got %+v", want, got)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"version": 1, "config": {"addr": ":7777"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7777" {
		t.Errorf("expected addr :7777, got %s", cfg.Addr)
	}
	if cfg.DataDir != DefaultDataDir {
		t.Errorf("expected default data dir, got %s", cfg.DataDir)
	}
	if cfg.MaxDataBytes != DefaultMaxDataBytes {
		t.Errorf("expected default capacity, got %d", cfg.MaxDataBytes)
	}
}

func TestLoadUnversionedFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"config": {}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unversioned") {
		t.Fatalf("expected unversioned error, got %v", err)
	}
}

func TestLoadNewerVersionRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"version": 99, "config": {}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "newer") {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestLoadMalformedFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
