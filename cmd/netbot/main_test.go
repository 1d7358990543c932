package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigReadsCoreAndDatabaseBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	body := `
telegram:
  token: "123:abc"
access:
  authorized_ids: [100]
registry:
  backend: postgres
database:
  host: db.internal
  port: "5432"
  user: netbot
  name: registry
  sslmode: disable
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, dbCfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Registry.Backend != "postgres" {
		t.Fatalf("backend = %q", cfg.Registry.Backend)
	}
	// Normalize defaults applied by config.Load.
	if cfg.Telegram.RunMode != "longpoll" {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}

	if dbCfg.Host != "db.internal" || dbCfg.Port != "5432" || dbCfg.User != "netbot" {
		t.Fatalf("database config = %+v", dbCfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
