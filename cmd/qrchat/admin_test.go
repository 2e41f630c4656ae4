package main

import (
	"os"
	"strings"
	"testing"

	"github.com/zulandar/qrchat/internal/config"
)

func TestAdminSetKey_UpdatesConfig(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := run(t, "rotated-key\n", "admin", "set-key", "-c", cfgPath)
	if err != nil {
		t.Fatalf("admin set-key failed: %v", err)
	}
	if !strings.Contains(out, "Admin key updated") {
		t.Errorf("output = %q", out)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if cfg.Admin.Key != "rotated-key" {
		t.Errorf("admin key = %q, want %q", cfg.Admin.Key, "rotated-key")
	}
}

func TestAdminSetKey_EmptyRejected(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := run(t, "\n", "admin", "set-key", "-c", cfgPath)
	if err == nil {
		t.Fatal("expected error for empty key")
	}

	// Original key is untouched.
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if cfg.Admin.Key != "test-key" {
		t.Errorf("admin key = %q, want original %q", cfg.Admin.Key, "test-key")
	}
}

func TestAdminSetKey_FilePermissions(t *testing.T) {
	cfgPath := writeTestConfig(t)

	if _, err := run(t, "secret\n", "admin", "set-key", "-c", cfgPath); err != nil {
		t.Fatalf("admin set-key failed: %v", err)
	}

	info, err := os.Stat(cfgPath)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %o, want 0600", info.Mode().Perm())
	}
}
