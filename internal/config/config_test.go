package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pelletier/go-toml/v2"

	"github.com/git-pkgs/npm2maven/internal/store"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "npm2maven.toml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load("", env(nil))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if diff := cmp.Diff(Default(), *cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestFile(t *testing.T) {
	p := writeFile(t, `
[registry]
url = "http://localhost:4873"
timeout = "45s"
materialize_timeout = "0s"
latest_cache_ttl = "1m"
requests_per_second = 2.5

[storage]
root = "/srv/m2"

[dependencies]
concurrency = 4

[s3]
endpoint = "minio:9000"
bucket = "mvnpm"
access_key = "minio"
secret_key = "minio123"

[log]
level = "debug"
format = "json"
`)
	cfg, err := load(p, env(nil))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	want := Default()
	want.Registry.URL = "http://localhost:4873"
	want.Registry.Timeout = Duration(45 * time.Second)
	want.Registry.MaterializeTimeout = 0
	want.Registry.LatestCacheTTL = Duration(time.Minute)
	want.Registry.RequestsPerSecond = 2.5
	want.Storage.Root = "/srv/m2"
	want.Dependencies.Concurrency = 4
	want.S3 = store.S3Config{Endpoint: "minio:9000", Bucket: "mvnpm", AccessKey: "minio", SecretKey: "minio123"}
	want.Log = Log{Level: "debug", Format: "json"}
	if diff := cmp.Diff(want, *cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeFile(t, `
[registry]
url = "http://from-file"

[storage]
root = "/from/file"
`)
	cfg, err := load(p, env(map[string]string{
		"NPM2MAVEN_REGISTRY_URL":        "https://registry.example.com",
		"NPM2MAVEN_REGISTRY_TOKEN":      "npm_tok",
		"NPM2MAVEN_TIMEOUT":             "10s",
		"NPM2MAVEN_MATERIALIZE_TIMEOUT": "30m",
		"NPM2MAVEN_MAX_RETRIES":         "0",
		"NPM2MAVEN_RPS":                 "20",
		"NPM2MAVEN_CONCURRENCY":         "8",
		"NPM2MAVEN_VERIFY_INTEGRITY":    "false",
		"NPM2MAVEN_SIGNING_KEY":         "/keys/private.asc",
		"NPM2MAVEN_S3_USE_SSL":          "true",
		"NPM2MAVEN_LOG_LEVEL":           "warn",
		"NPM2MAVEN_STORAGE_ROOT":        "   ",
	}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Registry.URL != "https://registry.example.com" {
		t.Errorf("Registry.URL = %q", cfg.Registry.URL)
	}
	if cfg.Registry.Token != "npm_tok" {
		t.Errorf("Registry.Token = %q", cfg.Registry.Token)
	}
	if time.Duration(cfg.Registry.Timeout) != 10*time.Second {
		t.Errorf("Registry.Timeout = %v", time.Duration(cfg.Registry.Timeout))
	}
	if time.Duration(cfg.Registry.MaterializeTimeout) != 30*time.Minute {
		t.Errorf("Registry.MaterializeTimeout = %v", time.Duration(cfg.Registry.MaterializeTimeout))
	}
	if cfg.Registry.MaxRetries != 0 || cfg.Registry.RequestsPerSecond != 20 {
		t.Errorf("retries/rps = %d/%v", cfg.Registry.MaxRetries, cfg.Registry.RequestsPerSecond)
	}
	if cfg.Dependencies.Concurrency != 8 {
		t.Errorf("Concurrency = %d", cfg.Dependencies.Concurrency)
	}
	if cfg.Registry.VerifyIntegrity {
		t.Error("VerifyIntegrity = true, want false")
	}
	if cfg.Signing.KeyFile != "/keys/private.asc" || !cfg.S3.UseSSL {
		t.Errorf("signing/s3 = %+v %+v", cfg.Signing, cfg.S3)
	}
	if cfg.Storage.Root != "/from/file" {
		t.Errorf("blank env value replaced Storage.Root: %q", cfg.Storage.Root)
	}
	if lvl, _ := cfg.Log.SlogLevel(); lvl != slog.LevelWarn {
		t.Errorf("level = %v, want warn", lvl)
	}
}

func TestEnvErrorsAreCollected(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := load("", env(map[string]string{
		"NPM2MAVEN_MAX_RETRIES": "many",
		"NPM2MAVEN_TIMEOUT":     "soon",
	}))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"NPM2MAVEN_MAX_RETRIES", "NPM2MAVEN_TIMEOUT"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "absent.toml"), env(nil))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("load = %v, want fs.ErrNotExist", err)
	}
}

func TestMalformedFile(t *testing.T) {
	p := writeFile(t, "[registry\nurl = 1")
	if _, err := load(p, env(nil)); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(*Config) {}, ""},
		{"no registry", func(c *Config) { c.Registry.URL = "" }, "registry url"},
		{"no root", func(c *Config) { c.Storage.Root = "" }, "storage root"},
		{"negative retries", func(c *Config) { c.Registry.MaxRetries = -1 }, "max_retries"},
		{"negative materialize timeout", func(c *Config) { c.Registry.MaterializeTimeout = Duration(-time.Second) }, "materialize_timeout"},
		{"zero concurrency", func(c *Config) { c.Dependencies.Concurrency = 0 }, "concurrency"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			switch {
			case tt.want == "" && err != nil:
				t.Errorf("Validate = %v, want nil", err)
			case tt.want != "" && (err == nil || !strings.Contains(err.Error(), tt.want)):
				t.Errorf("Validate = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestDurationRoundTrip(t *testing.T) {
	type doc struct {
		D Duration `toml:"d"`
	}
	out, err := toml.Marshal(doc{D: Duration(90 * time.Second)})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `d = '1m30s'`) && !strings.Contains(string(out), `d = "1m30s"`) {
		t.Errorf("marshaled = %s", out)
	}
	var back doc
	if err := toml.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if back.D != Duration(90*time.Second) {
		t.Errorf("round trip = %v", time.Duration(back.D))
	}
}
