package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultHasSaneValues(t *testing.T) {
	cfg := Default()
	if len(cfg.DNS.Inets) == 0 {
		t.Error("expected at least one default listener")
	}
	if cfg.Redis.PoolSize <= 0 {
		t.Error("expected positive default pool size")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authdns.toml")

	contents := `
[server]
log_level = "debug"

[dns]
inets = ["127.0.0.1:5300"]
default_ttl = 60

[dns.zone.example_com]
master = "ns1.example.com"
responsible = "hostmaster.example.com"
serial = 2024010100
refresh = 3600
retry = 900
expire = 604800
minimum_ttl = 300

[redis]
host = "redis.internal"
port = 6380
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.LogLevel != "debug" {
		t.Errorf("got log level %q", cfg.Server.LogLevel)
	}
	if len(cfg.DNS.Inets) != 1 || cfg.DNS.Inets[0] != "127.0.0.1:5300" {
		t.Errorf("got inets %v", cfg.DNS.Inets)
	}
	if !cfg.DNS.ZoneExists("example_com") {
		t.Error("expected configured zone to exist")
	}
	if cfg.Redis.Host != "redis.internal" || cfg.Redis.Port != 6380 {
		t.Errorf("got redis %+v", cfg.Redis)
	}
	// Untouched sections should retain Default values.
	if cfg.HTTP.Inet != "0.0.0.0:8080" {
		t.Errorf("expected HTTP default to survive, got %q", cfg.HTTP.Inet)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/authdns.toml"); err == nil {
		t.Error("expected error loading missing file")
	}
}
