package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.ListenAddress != DefaultListenAddress {
		t.Fatalf("expected default listen address %q, got %q", DefaultListenAddress, cfg.ListenAddress)
	}

	if cfg.Store.Provider != DefaultStoreProvider {
		t.Fatalf("expected default store provider %q, got %q", DefaultStoreProvider, cfg.Store.Provider)
	}

	if cfg.GrantSweep.Interval != DefaultGrantSweepInterval {
		t.Fatalf("expected default grant sweep interval %v, got %v", DefaultGrantSweepInterval, cfg.GrantSweep.Interval)
	}

	if !cfg.GrantSweep.Enabled {
		t.Fatal("expected grant sweep to be enabled by default")
	}

	if !cfg.TrustGate.Enabled {
		t.Fatal("expected trust gate to be enabled by default")
	}

	if cfg.Metrics.Enabled {
		t.Fatal("expected metrics to be disabled by default")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DWN_CORE_LISTEN_ADDRESS", "example.com:8889")
	t.Setenv("DWN_CORE_TENANT", "did:example:alice")
	t.Setenv("DWN_CORE_STORE_PROVIDER", "sqlite")
	t.Setenv("DWN_CORE_STORE_SQLITE_DSN", "test.sqlite3")
	t.Setenv("DWN_CORE_TRUSTGATE_POLICY_FILE_PATH", "/tmp/policies.csv")
	t.Setenv("DWN_CORE_GRANTSWEEP_INTERVAL", "5m")
	t.Setenv("DWN_CORE_METRICS_ENABLED", "true")
	t.Setenv("DWN_CORE_METRICS_ADDRESS", "0.0.0.0:9999")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.ListenAddress != "example.com:8889" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}

	if cfg.Tenant != "did:example:alice" {
		t.Fatalf("unexpected tenant: %q", cfg.Tenant)
	}

	if cfg.Store.SQLite.DSN != "test.sqlite3" {
		t.Fatalf("unexpected sqlite dsn: %q", cfg.Store.SQLite.DSN)
	}

	if cfg.TrustGate.PolicyFilePath != "/tmp/policies.csv" {
		t.Fatalf("unexpected trustgate policy path: %q", cfg.TrustGate.PolicyFilePath)
	}

	if cfg.GrantSweep.Interval != 5*time.Minute {
		t.Fatalf("unexpected grant sweep interval: %v", cfg.GrantSweep.Interval)
	}

	if !cfg.Metrics.Enabled {
		t.Fatal("expected metrics enabled override to take effect")
	}

	if cfg.Metrics.Address != "0.0.0.0:9999" {
		t.Fatalf("unexpected metrics address: %q", cfg.Metrics.Address)
	}
}
