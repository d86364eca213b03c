package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
databases:
  postgres:
    host: localhost
    dbname: ellen
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.General.Listen != ":10002" {
		t.Fatalf("listen default: %q", cfg.General.Listen)
	}
	if cfg.Chat.Backend != "openai" || cfg.Chat.Timeout != 2*time.Minute {
		t.Fatalf("chat defaults: %+v", cfg.Chat)
	}
	if cfg.Search.ChunkLimit != 5 || cfg.Search.RelatedLimit != 6 || cfg.Search.FallbackDocLimit != 3 {
		t.Fatalf("search defaults: %+v", cfg.Search)
	}
}

func TestLoadConfigWebhookRequiresURL(t *testing.T) {
	path := writeConfig(t, `
chat:
  backend: webhook
databases:
  postgres:
    host: localhost
    dbname: ellen
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("webhook backend without url must fail validation")
	}
}

func TestLoadConfigUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
chat:
  backend: carrier-pigeon
databases:
  postgres:
    host: localhost
    dbname: ellen
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("unknown backend must fail validation")
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "ellen", Password: "pw", DBName: "ellen"}
	want := "postgres://ellen:pw@db:5432/ellen?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("DSN: expected %q got %q", want, got)
	}

	p = PostgresConfig{URL: "postgres://u:p@h:5/db"}
	if got := p.DSN(); got != "postgres://u:p@h:5/db" {
		t.Fatalf("explicit url must win, got %q", got)
	}
}

func TestPostgresValidate(t *testing.T) {
	if err := (PostgresConfig{}).Validate(); err == nil {
		t.Fatalf("empty postgres config must fail validation")
	}
	if err := (PostgresConfig{URL: "postgres://u@h/db"}).Validate(); err != nil {
		t.Fatalf("url alone should satisfy validation: %v", err)
	}
}
