package model

import (
	"encoding/json"
	"testing"
)

// TestConfig_JSONUnmarshal はJSONからConfigが正しくデシリアライズされることをテスト
func TestConfig_JSONUnmarshal(t *testing.T) {
	jsonData := `{
		"server": {
			"port": 28000,
			"readTimeoutSeconds": 10,
			"writeTimeoutSeconds": 5,
			"shutdownGraceSeconds": 2
		},
		"target": {
			"mode": "procfs",
			"pid": 1234
		},
		"store": {
			"type": "sqlite",
			"path": "/data/project.db"
		},
		"log": {
			"level": "debug"
		},
		"paths": {
			"configPath": "/config/test.json",
			"dataDir": "/data/test"
		}
	}`

	var cfg Config
	if err := json.Unmarshal([]byte(jsonData), &cfg); err != nil {
		t.Fatalf("failed to unmarshal Config: %v", err)
	}

	if cfg.Server.Port != 28000 {
		t.Errorf("expected port 28000, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeoutSeconds != 10 {
		t.Errorf("expected read timeout 10, got %d", cfg.Server.ReadTimeoutSeconds)
	}
	if cfg.Target.Mode != TargetProcfs || cfg.Target.PID != 1234 {
		t.Errorf("unexpected target: %+v", cfg.Target)
	}
	if cfg.Store.Type != StoreTypeSQLite {
		t.Errorf("expected store type %q, got %q", StoreTypeSQLite, cfg.Store.Type)
	}
	if cfg.Store.Path == nil || *cfg.Store.Path != "/data/project.db" {
		t.Errorf("unexpected store path: %v", cfg.Store.Path)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.Log.Level)
	}
}

// TestStoreConfig_NullPath はpath省略時にnilになることをテスト
func TestStoreConfig_NullPath(t *testing.T) {
	var sc StoreConfig
	if err := json.Unmarshal([]byte(`{"type":"memory"}`), &sc); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if sc.Path != nil {
		t.Errorf("expected nil path, got %q", *sc.Path)
	}
}
