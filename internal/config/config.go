// Package config loads the command line tool's settings from a TOML file,
// a .env file and NPM2MAVEN_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/git-pkgs/npm2maven/client"
	"github.com/git-pkgs/npm2maven/internal/store"
)

// DefaultFile is read when no file is named explicitly and it exists.
const DefaultFile = "npm2maven.toml"

const envPrefix = "NPM2MAVEN_"

// Duration is a time.Duration written as "30s" or "5m" in TOML.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	Registry     Registry       `toml:"registry"`
	Storage      Storage        `toml:"storage"`
	Dependencies Dependencies   `toml:"dependencies"`
	Signing      Signing        `toml:"signing"`
	S3           store.S3Config `toml:"s3"`
	Log          Log            `toml:"log"`
}

type Registry struct {
	URL       string   `toml:"url"`
	Token     string   `toml:"token"`
	UserAgent string   `toml:"user_agent"`
	Timeout   Duration `toml:"timeout"`
	// MaterializeTimeout bounds one whole materialize run; zero means no limit.
	MaterializeTimeout Duration `toml:"materialize_timeout"`
	MaxRetries         int      `toml:"max_retries"`
	RequestsPerSecond  float64  `toml:"requests_per_second"`
	LatestCacheSize    int      `toml:"latest_cache_size"`
	LatestCacheTTL     Duration `toml:"latest_cache_ttl"`
	BreakerThreshold   int      `toml:"breaker_threshold"`
	VerifyIntegrity    bool     `toml:"verify_integrity"`
}

type Storage struct {
	Root string `toml:"root"`
}

type Dependencies struct {
	Concurrency int `toml:"concurrency"`
}

type Signing struct {
	KeyFile    string `toml:"key_file"`
	Passphrase string `toml:"passphrase"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Registry: Registry{
			URL:                client.DefaultRegistryURL,
			UserAgent:          "npm2maven",
			Timeout:            Duration(2 * time.Minute),
			MaterializeTimeout: Duration(10 * time.Minute),
			MaxRetries:         3,
			LatestCacheSize:    4096,
			LatestCacheTTL:     Duration(5 * time.Minute),
			BreakerThreshold:   5,
			VerifyIntegrity:    true,
		},
		Storage:      Storage{Root: "repository"},
		Dependencies: Dependencies{Concurrency: 16},
		Log:          Log{Level: "info", Format: "text"},
	}
}

// Load reads path (or DefaultFile when path is empty and present), then
// .env, then the process environment.
func Load(path string) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.readFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays NPM2MAVEN_* variables. Every malformed value is reported.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	parse := func(key string, set func(string) error) {
		v, ok := lookup(envPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		if err := set(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
		}
	}
	integer := func(key string, dst *int) {
		parse(key, func(v string) error {
			n, err := strconv.Atoi(v)
			*dst = n
			return err
		})
	}
	boolean := func(key string, dst *bool) {
		parse(key, func(v string) error {
			b, err := strconv.ParseBool(v)
			*dst = b
			return err
		})
	}
	duration := func(key string, dst *Duration) {
		parse(key, func(v string) error { return dst.UnmarshalText([]byte(v)) })
	}

	str("REGISTRY_URL", &c.Registry.URL)
	str("REGISTRY_TOKEN", &c.Registry.Token)
	str("USER_AGENT", &c.Registry.UserAgent)
	duration("TIMEOUT", &c.Registry.Timeout)
	duration("MATERIALIZE_TIMEOUT", &c.Registry.MaterializeTimeout)
	integer("MAX_RETRIES", &c.Registry.MaxRetries)
	parse("RPS", func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		c.Registry.RequestsPerSecond = f
		return err
	})
	integer("CACHE_SIZE", &c.Registry.LatestCacheSize)
	duration("CACHE_TTL", &c.Registry.LatestCacheTTL)
	integer("BREAKER_THRESHOLD", &c.Registry.BreakerThreshold)
	boolean("VERIFY_INTEGRITY", &c.Registry.VerifyIntegrity)

	str("STORAGE_ROOT", &c.Storage.Root)
	integer("CONCURRENCY", &c.Dependencies.Concurrency)

	str("SIGNING_KEY", &c.Signing.KeyFile)
	str("SIGNING_PASSPHRASE", &c.Signing.Passphrase)

	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("S3_REGION", &c.S3.Region)
	str("S3_ACCESS_KEY", &c.S3.AccessKey)
	str("S3_SECRET_KEY", &c.S3.SecretKey)
	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_PREFIX", &c.S3.Prefix)
	boolean("S3_USE_SSL", &c.S3.UseSSL)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Registry.URL) == "" {
		errs = append(errs, errors.New("registry url is required"))
	}
	if strings.TrimSpace(c.Storage.Root) == "" {
		errs = append(errs, errors.New("storage root is required"))
	}
	if c.Registry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must not be negative, got %d", c.Registry.MaxRetries))
	}
	if c.Registry.MaterializeTimeout < 0 {
		errs = append(errs, fmt.Errorf("materialize_timeout must not be negative, got %s", time.Duration(c.Registry.MaterializeTimeout)))
	}
	if c.Dependencies.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("dependency concurrency must be at least 1, got %d", c.Dependencies.Concurrency))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (l Log) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}
