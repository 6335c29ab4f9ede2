// Package app wires all Audiora subsystems into a running application.
//
// The App struct owns the full lifecycle: New opens the stores and builds
// the lookup, vocabulary and practice services, Run serves HTTP and watches
// the config file until the context is cancelled, and Shutdown tears
// everything down in reverse order.
//
// For testing, inject stores and metrics via functional options
// (WithStores, WithMetrics). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/audiora/audiora/internal/auth"
	"github.com/audiora/audiora/internal/catalog"
	"github.com/audiora/audiora/internal/config"
	"github.com/audiora/audiora/internal/health"
	"github.com/audiora/audiora/internal/lookup"
	"github.com/audiora/audiora/internal/mcptools"
	"github.com/audiora/audiora/internal/observe"
	"github.com/audiora/audiora/internal/practice"
	"github.com/audiora/audiora/internal/pronounce"
	"github.com/audiora/audiora/internal/storage"
	"github.com/audiora/audiora/internal/vocab"
	"github.com/audiora/audiora/internal/web"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Stores holds the persistence backends. Nil fields are created by New.
type Stores struct {
	Catalog  catalog.Store
	Vocab    vocab.Store
	Attempts practice.AttemptStore
}

func (s Stores) complete() bool {
	return s.Catalog != nil && s.Vocab != nil && s.Attempts != nil
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	stores    Stores
	metrics   *observe.Metrics
	version   string

	level          *slog.LevelVar
	configPath     string
	watchInterval  time.Duration
	metricsHandler http.Handler

	scorer   atomic.Pointer[pronounce.Scorer]
	lookup   *lookup.Service
	vocab    *vocab.Service
	practice *practice.Service
	web      *web.Server
	checkers []health.Checker

	// closers are called in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithStores injects stores instead of creating them from config.
func WithStores(s Stores) Option {
	return func(a *App) { a.stores = s }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets config reloads change the log level of the handler
// built around lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithConfigFile makes Run watch path and apply changes live. A zero
// interval uses the watcher default.
func WithConfigFile(path string, interval time.Duration) Option {
	return func(a *App) {
		a.configPath = path
		a.watchInterval = interval
	}
}

// WithMetricsHandler mounts h at the configured metrics path.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithVersion sets the version announced by the MCP server.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// New creates an App by wiring all subsystems together. The providers
// struct comes from [BuildProviders]. New performs all initialisation
// synchronously: store connection, catalog seeding, service construction
// and HTTP routing.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		version:   "dev",
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Stores ────────────────────────────────────────────────────────
	if err := a.initStores(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init stores: %w", err)
	}

	// ── 2. Catalog seed ──────────────────────────────────────────────────
	if err := a.seedCatalog(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: seed catalog: %w", err)
	}

	// ── 3. Services ──────────────────────────────────────────────────────
	if err := a.initServices(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init services: %w", err)
	}

	// ── 4. HTTP API ──────────────────────────────────────────────────────
	if err := a.initWeb(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init web: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStores opens PostgreSQL when a DSN is configured and falls back to
// in-memory stores otherwise.
func (a *App) initStores(ctx context.Context) error {
	if a.stores.complete() {
		return nil
	}

	dsn := a.cfg.Database.PostgresDSN
	if dsn == "" {
		if a.stores.Catalog == nil {
			a.stores.Catalog = catalog.NewMemStore()
		}
		if a.stores.Vocab == nil {
			a.stores.Vocab = vocab.NewMemStore()
		}
		if a.stores.Attempts == nil {
			a.stores.Attempts = practice.NewMemStore()
		}
		slog.Info("using in-memory stores")
		return nil
	}

	pool, err := storage.Open(ctx, dsn)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	a.checkers = append(a.checkers, health.Ping("database", pool))

	pg := storage.NewStores(pool, a.cfg.Database.EmbeddingDimensions)
	if a.stores.Catalog == nil {
		a.stores.Catalog = pg.Catalog
	}
	if a.stores.Vocab == nil {
		a.stores.Vocab = pg.Vocab
	}
	if a.stores.Attempts == nil {
		a.stores.Attempts = pg.Attempts
	}
	slog.Info("connected to postgres")
	return nil
}

// seedCatalog imports the configured song files.
func (a *App) seedCatalog(ctx context.Context) error {
	for _, path := range a.cfg.Catalog.SeedFiles {
		sf, err := catalog.LoadSeedFile(path)
		if err != nil {
			return fmt.Errorf("load seed file %q: %w", path, err)
		}
		n, err := catalog.Import(ctx, a.stores.Catalog, sf)
		if err != nil {
			return fmt.Errorf("import seed file %q: %w", path, err)
		}
		slog.Info("imported songs", "path", path, "count", n)
	}
	return nil
}

// initServices builds the lookup, vocabulary and practice services.
func (a *App) initServices() error {
	if e := a.providers.Embeddings; e != nil && a.cfg.Database.PostgresDSN != "" && e.Dimensions() != a.cfg.Database.EmbeddingDimensions {
		return fmt.Errorf("embedding model %s produces %d dimensions but database.embedding_dimensions is %d",
			e.ModelID(), e.Dimensions(), a.cfg.Database.EmbeddingDimensions)
	}

	sc := pronounce.NewScorer(a.cfg.Scoring.ScorerOptions()...)
	a.scorer.Store(sc)

	translator := a.providers.Translate
	if translator == nil {
		translator = unconfiguredTranslator{}
	}
	providerName := a.cfg.Providers.Translate.Name
	if providerName == "" {
		providerName = "none"
	}
	var err error
	a.lookup, err = lookup.NewService(translator, lookup.NewCache(),
		lookup.WithMetrics(a.metrics),
		lookup.WithProviderName(providerName),
	)
	if err != nil {
		return err
	}
	if a.cfg.Providers.Translate.Name == "httpapi" {
		probe := health.NewProbe(a.cfg.Providers.Translate.BaseURL, nil)
		a.checkers = append(a.checkers, probe.Checker("translate"))
	}
	for _, chain := range []struct {
		name string
		p    any
	}{
		{"translate_chain", a.providers.Translate},
		{"stt_chain", a.providers.STT},
		{"tts_chain", a.providers.TTS},
	} {
		if c, ok := chain.p.(chainChecker); ok {
			a.checkers = append(a.checkers, health.Checker{Name: chain.name, Check: c.Check, Optional: true})
		}
	}

	var vocabOpts []vocab.Option
	if a.providers.Embeddings != nil {
		vocabOpts = append(vocabOpts, vocab.WithEmbedder(a.providers.Embeddings))
	}
	a.vocab, err = vocab.NewService(a.stores.Vocab, vocabOpts...)
	if err != nil {
		return err
	}

	if a.providers.STT == nil {
		slog.Warn("no speech-to-text provider; pronunciation scoring is disabled")
		return nil
	}
	practiceOpts := []practice.Option{
		practice.WithScorer(sc),
		practice.WithMetrics(a.metrics),
	}
	if a.providers.TTS != nil {
		practiceOpts = append(practiceOpts, practice.WithSynthesizer(a.providers.TTS, a.cfg.TTSVoices()))
	}
	if rms := a.cfg.Scoring.SilenceRMS; rms > 0 {
		practiceOpts = append(practiceOpts, practice.WithSilenceThreshold(rms))
	}
	a.practice, err = practice.NewService(a.providers.STT, a.stores.Attempts, practiceOpts...)
	return err
}

// initWeb builds the HTTP API.
func (a *App) initWeb() error {
	opts := []web.Option{
		web.WithMetrics(a.metrics),
		web.WithOriginPatterns(a.cfg.Server.AllowedOrigins),
		web.WithHealth(health.New(health.WithCheckers(a.checkers...))),
		web.WithTimings(a.cfg.Lookup.Timings),
	}
	if secret := a.cfg.Auth.JWTSecret; secret != "" {
		v, err := auth.NewVerifier(secret,
			auth.WithIssuer(a.cfg.Auth.Issuer),
			auth.WithAudience(a.cfg.Auth.Audience),
			auth.WithLeeway(a.cfg.Auth.Leeway),
		)
		if err != nil {
			return err
		}
		opts = append(opts, web.WithVerifier(v))
	}
	if a.metricsHandler != nil {
		opts = append(opts, web.WithMetricsHandler(a.cfg.Server.MetricsPath, a.metricsHandler))
	}

	deps := web.Deps{
		Lookup:   a.lookup,
		Vocab:    a.vocab,
		Practice: a.practice,
		Catalog:  a.stores.Catalog,
	}
	var err error
	a.web, err = web.New(deps, opts...)
	return err
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the HTTP handler served by Run.
func (a *App) Handler() http.Handler { return a.web.Handler() }

// Scorer returns the pronunciation scorer in effect.
func (a *App) Scorer() *pronounce.Scorer { return a.scorer.Load() }

// Catalog returns the song store.
func (a *App) Catalog() catalog.Store { return a.stores.Catalog }

// MCPServer builds an MCP server over the app's services. Vocabulary tools
// act on behalf of userID.
func (a *App) MCPServer(userID string) (*mcp.Server, error) {
	return mcptools.NewServer(mcptools.Deps{
		Lookup:  a.lookup,
		Catalog: a.stores.Catalog,
		Scorer:  a.scorer.Load,
		Vocab:   a.vocab,
		UserID:  userID,
	}, mcptools.WithVersion(a.version), mcptools.WithMetrics(a.metrics))
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and, when a config file was given, watches it for
// changes. It blocks until ctx is cancelled or the server fails. When ctx is
// done, Run returns context.Canceled (or the underlying cause).
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.web.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	tls := a.cfg.Server.TLS
	g, gctx := errgroup.WithContext(ctx)
	if a.configPath != "" {
		watcher, err := config.NewWatcher(a.configPath, a.ApplyConfig, config.WithInterval(a.watchInterval))
		if err != nil {
			return fmt.Errorf("app: watch config: %w", err)
		}
		slog.Info("watching config file", "path", a.configPath)
		g.Go(func() error { return watcher.Run(gctx) })
	}
	g.Go(func() error {
		slog.Info("http server listening", "addr", srv.Addr, "tls", tls != nil)
		var err error
		if tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http server: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ApplyConfig applies the live-reloadable part of a config change: the log
// level, lookup popup timings and scoring thresholds. Sections that need a
// restart are logged.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.IsZero() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.ScoringChanged {
		sc := pronounce.NewScorer(new.Scoring.ScorerOptions()...)
		a.scorer.Store(sc)
		if a.practice != nil {
			a.practice.SetScorer(sc)
		}
		slog.Info("scoring thresholds reloaded")
		if old.Scoring.SilenceRMS != new.Scoring.SilenceRMS {
			slog.Warn("scoring.silence_rms only takes effect after a restart")
		}
	}
	if d.LookupChanged {
		a.web.SetTimings(new.Lookup.Timings)
		oldClient, newClient := old.Lookup, new.Lookup
		oldClient.Timings, newClient.Timings = lookup.Timings{}, lookup.Timings{}
		if oldClient != newClient {
			slog.Warn("translation client settings only take effect after a restart")
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases whatever New opened before failing.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
