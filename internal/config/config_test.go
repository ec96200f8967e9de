package config

import "testing"

func TestResolveDefaults_AutoPicksSqlite(t *testing.T) {
	cfg := &Config{StoreDriver: "auto", RetentionDays: 7}
	if err := cfg.ResolveDefaults(); err != nil {
		t.Fatalf("ResolveDefaults: %v", err)
	}
	if cfg.StoreDriver != "sqlite" {
		t.Fatalf("driver=%s want sqlite", cfg.StoreDriver)
	}
}

func TestResolveDefaults_RejectsUnknownDriver(t *testing.T) {
	cfg := &Config{StoreDriver: "etcd", RetentionDays: 7}
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestResolveDefaults_PostgresNeedsDSN(t *testing.T) {
	cfg := &Config{StoreDriver: "postgres", RetentionDays: 7}
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatalf("expected error for postgres without DSN")
	}
	cfg.PostgresDSN = "postgres://localhost/vaultwire"
	if err := cfg.ResolveDefaults(); err != nil {
		t.Fatalf("ResolveDefaults with DSN: %v", err)
	}
}

func TestResolveDefaults_RetentionMustBePositive(t *testing.T) {
	cfg := &Config{StoreDriver: "memory", RetentionDays: 0}
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatalf("expected error for zero retention")
	}
}

func TestRetentionAndSweepDurations(t *testing.T) {
	cfg := NewForTesting()
	if got := cfg.Retention().Hours(); got != 7*24 {
		t.Fatalf("retention hours=%v", got)
	}
	if got := cfg.SweepInterval().Seconds(); got != 3600 {
		t.Fatalf("sweep interval=%v", got)
	}
}
