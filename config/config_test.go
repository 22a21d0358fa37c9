package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Web.Port != 8000 {
		t.Errorf("port = %d, want 8000", cfg.Web.Port)
	}
	if cfg.Alerts.CooldownMinutes != 30 {
		t.Errorf("cooldown = %d, want 30", cfg.Alerts.CooldownMinutes)
	}
	if cfg.Database.D1.Configured() {
		t.Error("D1 should not be configured by default")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "binwatch.yaml")
	yaml := `
web:
  port: 9000
database:
  d1:
    account_id: acct
    api_token: tok
    database_id: db
alerts:
  cooldown_minutes: 15
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Web.Port)
	}
	if cfg.Alerts.CooldownMinutes != 15 {
		t.Errorf("cooldown = %d, want 15", cfg.Alerts.CooldownMinutes)
	}
	// Untouched keys keep their defaults.
	if cfg.Web.Host != "0.0.0.0" {
		t.Errorf("host = %q, want default", cfg.Web.Host)
	}
	if cfg.Retention.Days != 90 {
		t.Errorf("retention = %d, want 90", cfg.Retention.Days)
	}
	if !cfg.Database.D1.Configured() {
		t.Error("D1 should be configured")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "binwatch.yaml")
	cfg := Defaults()
	cfg.Web.Port = 8080
	cfg.Messaging.MQTT.Enabled = true

	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Web.Port != 8080 || !loaded.Messaging.MQTT.Enabled {
		t.Errorf("round trip lost changes: %+v", loaded)
	}
}
