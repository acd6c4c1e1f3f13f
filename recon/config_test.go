package recon

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Tracker.Service != "jira" {
		t.Errorf("service: got %q", cfg.Tracker.Service)
	}
	if cfg.Scan.Concurrency != 10 || cfg.Scan.PageSize != 100 {
		t.Errorf("scan: got %+v", cfg.Scan)
	}
	if len(cfg.Scan.Keywords) != len(DefaultKeywords) {
		t.Errorf("keywords: got %d, want %d", len(cfg.Scan.Keywords), len(DefaultKeywords))
	}
	cfg.Scan.Keywords[0] = "changed"
	if DefaultKeywords[0] == "changed" {
		t.Error("DefaultKeywords aliased by config")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"ok", func(*Config) {}, nil},
		{"confluence uppercase", func(c *Config) { c.Tracker.Service = "Confluence" }, nil},
		{"bad service", func(c *Config) { c.Tracker.Service = "gitlab" }, ErrInvalidService},
		{"negative concurrency", func(c *Config) { c.Scan.Concurrency = -1 }, ErrInvalidConcurrency},
		{"negative page size", func(c *Config) { c.Scan.PageSize = -5 }, ErrInvalidPageSize},
		{"negative max results", func(c *Config) { c.Scan.MaxResults = -1 }, ErrInvalidPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	// WHAT: YAML config loads and ${ENV} references in the tracker section expand.
	// WHY: Credentials are kept out of the config file.
	t.Setenv("RECON_TEST_TOKEN", "tok-123")
	path := filepath.Join(t.TempDir(), "recon.yaml")
	data := `tracker:
  service: confluence
  url: https://wiki.example.com
  token: ${RECON_TEST_TOKEN}
  timeout: 5s
scan:
  concurrency: 4
  keywords: [password, token]
  raw: true
output:
  db_path: /tmp/recon.db
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tracker.Token != "tok-123" {
		t.Errorf("token: got %q", cfg.Tracker.Token)
	}
	if cfg.Tracker.Timeout != 5*time.Second {
		t.Errorf("timeout: got %v", cfg.Tracker.Timeout)
	}
	if cfg.Scan.Concurrency != 4 || !cfg.Scan.Raw || len(cfg.Scan.Keywords) != 2 {
		t.Errorf("scan: got %+v", cfg.Scan)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cc := cfg.ClientConfig()
	if cc.BaseURL != "https://wiki.example.com" || cc.Token != "tok-123" {
		t.Errorf("client config: %+v", cc)
	}

	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file should fail")
	}
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("scan: [1, 2"), 0o644)
	if _, err := LoadConfigFile(bad); err == nil {
		t.Error("malformed yaml should fail")
	}
}
