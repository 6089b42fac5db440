package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"camelwiki/internal/auth"
	"camelwiki/internal/cache"
	"camelwiki/internal/config"
	"camelwiki/internal/database"
	"camelwiki/internal/logging"
	"camelwiki/internal/page"
	"camelwiki/internal/render"
	"camelwiki/internal/revision"
	"camelwiki/internal/tracing"
	"camelwiki/internal/web"
	"camelwiki/internal/wiki"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file.")
	addr := flag.String("addr", "", "Listen address, overrides server.addr.")
	dsn := flag.String("dsn", "", "The database connection string, overrides database.dsn.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}

	if err := logging.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.New(database.Dialect(cfg.Database.Driver), cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("opening database")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("migrating database")
	}
	log.Debug().Msg("database migrated")

	if flag.Arg(0) == "admin" {
		if err := runAdmin(ctx, db, flag.Args()[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func serve(ctx context.Context, cfg *config.Config, db *database.DB) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    "camelwiki",
		ServiceVersion: version,
		Enabled:        cfg.Tracing.Enabled,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn().Err(err).Msg("flushing traces")
		}
	}()

	renderCache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	if renderCache != nil {
		defer renderCache.Close()
	}

	markup, err := render.New(render.Format(cfg.Wiki.Markup))
	if err != nil {
		return err
	}
	renderer := render.NewCached(markup, renderCache, cfg.Cache.TTL, log.Logger)

	authRepo := auth.NewRepository(db)
	authService, err := auth.NewService(authRepo, cfg.Server.SessionKey, cfg.Server.SecureCookies)
	if err != nil {
		return err
	}

	var service wiki.Service
	switch cfg.Wiki.Variant {
	case wiki.VariantSimple:
		service = wiki.NewSimpleService(page.NewSimpleRepository(db), authRepo, renderer, log.Logger)
	default:
		manager := revision.NewManager(page.NewRepository(db), cfg.Wiki.MaxSaveAttempts, log.Logger)
		service = wiki.NewVersionedService(manager, authRepo, renderer, log.Logger)
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	handler, err := web.NewServer(web.Config{
		DB:          db,
		Cache:       renderCache,
		AuthService: authService,
		Wiki:        service,
		Renderer:    renderer,
		StartPage:   cfg.Wiki.StartPage,
		MetricsPath: metricsPath,
		Logger:      logging.Component("http"),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("variant", cfg.Wiki.Variant).
			Str("markup", cfg.Wiki.Markup).
			Str("version", version).
			Msg("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newCache builds the configured render cache, or nil when caching is off.
// An unreachable Redis is logged but does not prevent startup.
func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "redis":
		c := cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err := c.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, rendering uncached until it recovers")
		}
		return c, nil
	case "memory":
		return cache.NewMemory(cfg.MaxEntries), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
