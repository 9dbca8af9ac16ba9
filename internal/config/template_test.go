package config

import (
	"path/filepath"
	"testing"
)

func TestTemplateLoadsAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg.Serial.Baud != 115200 {
		t.Fatalf("baud = %d, want 115200", cfg.Serial.Baud)
	}
}

func TestTemplateRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatal("second write did not fail")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("forced write: %v", err)
	}
}
