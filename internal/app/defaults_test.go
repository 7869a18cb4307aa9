package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("RISKSHIELD_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("RISKSHIELD_HOME", "/custom/riskshield")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/config.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/config.toml")
		}
		if defaults["base_dir"] != "/custom/riskshield" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/custom/riskshield")
		}
		if defaults["log_dir"] != "/custom/riskshield/log" {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], "/custom/riskshield/log")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("RISKSHIELD_CONFIG_PATH", "")
		t.Setenv("RISKSHIELD_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "riskshield.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "riskshield")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}
	})
}
