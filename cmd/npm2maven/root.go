package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/npm2maven/fetch"
	"github.com/git-pkgs/npm2maven/internal/config"
	"github.com/git-pkgs/npm2maven/internal/core"
	"github.com/git-pkgs/npm2maven/internal/deps"
	"github.com/git-pkgs/npm2maven/internal/derive"
	"github.com/git-pkgs/npm2maven/internal/digest"
	"github.com/git-pkgs/npm2maven/internal/event"
	"github.com/git-pkgs/npm2maven/internal/materialize"
	"github.com/git-pkgs/npm2maven/internal/npm"
	"github.com/git-pkgs/npm2maven/internal/store"
)

var version = "dev"

var (
	configPath   string
	registryFlag string
	rootFlag     string
	logLevel     string
	logFormat    string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "npm2maven",
	Short: "Serve npm packages as Maven artifacts",
	Long: `npm2maven maps npm packages to org.mvnpm Maven coordinates and writes
their pom, tarball, binary jar, sources jar and checksum files into a local
Maven repository directory.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default ./"+config.DefaultFile+" if present)")
	pf.StringVar(&registryFlag, "registry", "", "npm registry URL")
	pf.StringVar(&rootFlag, "root", "", "repository root directory")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&logFormat, "log-format", "", "text or json")
}

// setup loads the configuration, applies flag overrides and installs the
// default logger.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if registryFlag != "" {
		c.Registry.URL = registryFlag
	}
	if rootFlag != "" {
		c.Storage.Root = rootFlag
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if logFormat != "" {
		c.Log.Format = logFormat
	}
	if err := c.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), c.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	cfg = c
	return nil
}

func newLogger(w io.Writer, l config.Log) (*slog.Logger, error) {
	level, err := l.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// app holds the collaborators built from the configuration.
type app struct {
	registry     *npm.Registry
	store        *store.Store
	bus          *event.Bus
	fetcher      *fetch.Fetcher
	breaker      *fetch.CircuitBreakerFetcher
	resolver     *fetch.Resolver
	materializer *materialize.Materializer
}

func newApp(c *config.Config) (*app, error) {
	httpClient := core.NewClient(
		core.WithTimeout(time.Duration(c.Registry.Timeout)),
		core.WithMaxRetries(c.Registry.MaxRetries),
		core.WithRequestsPerSecond(c.Registry.RequestsPerSecond),
		core.WithToken(c.Registry.Token),
	).WithUserAgent(c.Registry.UserAgent)
	registry := npm.New(c.Registry.URL, httpClient,
		npm.WithLatestCache(c.Registry.LatestCacheSize, time.Duration(c.Registry.LatestCacheTTL)))

	var digestOpts []digest.Option
	if c.Signing.KeyFile != "" {
		signer, err := digest.LoadSigningKey(c.Signing.KeyFile, c.Signing.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("loading signing key: %w", err)
		}
		digestOpts = append(digestOpts, digest.WithSigner(signer))
	}

	bus := event.NewBus()
	st := store.New(c.Storage.Root, store.WithBus(bus), store.WithDigests(digest.New(digestOpts...)))
	bus.Subscribe(derive.NewTrigger(st, st.Locks()).Handle)

	if c.S3.Enabled() {
		mirror, err := store.NewMirror(c.S3, st)
		if err != nil {
			return nil, err
		}
		bus.Subscribe(mirror.Handle)
	}

	fetchOpts := []fetch.Option{
		fetch.WithUserAgent(c.Registry.UserAgent),
		fetch.WithMaxRetries(c.Registry.MaxRetries),
	}
	if u, err := url.Parse(c.Registry.URL); err == nil && c.Registry.Token != "" {
		fetchOpts = append(fetchOpts, fetch.WithBearerToken(u.Host, c.Registry.Token))
	}
	fetcher := fetch.NewFetcher(fetchOpts...)
	breaker := fetch.NewCircuitBreakerFetcher(fetcher, c.Registry.BreakerThreshold)

	m := materialize.New(registry, st,
		materialize.WithTranslator(deps.New(registry, deps.WithConcurrency(c.Dependencies.Concurrency))),
		materialize.WithDownloader(breaker),
		materialize.WithURLs(registry.URLs()),
		materialize.WithIntegrity(c.Registry.VerifyIntegrity),
	)

	return &app{
		registry:     registry,
		store:        st,
		bus:          bus,
		fetcher:      fetcher,
		breaker:      breaker,
		resolver:     fetch.NewResolver(registry, registry.URLs()),
		materializer: m,
	}, nil
}

// Close waits for derived artifacts and mirror uploads to finish.
func (a *app) Close() {
	a.bus.Wait()
	a.fetcher.Close()
}

// parseTarget accepts "name", "@scope/name" or an npm purl. A version carried
// by the purl wins over the positional one.
func parseTarget(args []string) (core.Name, string, error) {
	ver := "latest"
	if len(args) > 1 && args[1] != "" {
		ver = args[1]
	}
	if core.LooksLikePURL(args[0]) {
		n, v, err := core.NameFromPURL(args[0])
		if err != nil {
			return core.Name{}, "", err
		}
		if v != "" {
			ver = v
		}
		return n, ver, nil
	}
	n, err := core.ParseName(args[0])
	return n, ver, err
}
