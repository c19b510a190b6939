package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/ieraasyl/Storefront/internal/catalog"
	"github.com/ieraasyl/Storefront/internal/database"
	"github.com/ieraasyl/Storefront/internal/handlers"
	"github.com/ieraasyl/Storefront/internal/middleware"
	"github.com/ieraasyl/Storefront/internal/services"
	"github.com/ieraasyl/Storefront/internal/supabase"
	"github.com/ieraasyl/Storefront/pkg/cache"
	"github.com/ieraasyl/Storefront/pkg/config"
	"github.com/ieraasyl/Storefront/pkg/utils"
	"github.com/ieraasyl/Storefront/web"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	log.Info().
		Str("env", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("catalog_source", cfg.Catalog.Source).
		Msg("Starting storefront")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis holds the user session flashes and rate limit counters.
	redisDB, err := database.NewRedisDB(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisDB.Close()

	deps := map[string]handlers.Pinger{"redis": redisDB}

	source, closeSource, err := newCatalogSource(ctx, cfg, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize catalog source")
	}
	defer closeSource()

	sessionService := services.NewSessionService(cache.NewCache(redisDB.Client()), cfg.Session.MaxAge)
	oauthService := services.NewOAuthService(&cfg.OAuth)

	pages := catalog.NewPages(source, catalog.PageOptions{
		DefaultCategory: cfg.Catalog.DefaultCategory,
		LoadTimeout:     cfg.Catalog.LoadTimeout,
		Observer:        middleware.RecordCatalogLoad,
	}, cfg.Catalog.PageIdleTTL)
	go pages.Run(ctx, time.Minute)
	go reportActiveSessions(ctx, sessionService, time.Minute)

	isProduction := cfg.IsProduction()
	storefrontHandler, err := handlers.NewStorefrontHandler(pages, sessionService, cfg.ClientConfig(), isProduction)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storefront handler")
	}
	authHandler := handlers.NewAuthHandler(sessionService, oauthService, cfg.OAuth.ClientID, cfg.Server.BaseURL, cfg.Session.MaxAge, isProduction)
	healthHandler := handlers.NewHealthHandler(deps)

	trustedProxies, err := utils.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid trusted proxies")
	}
	rateLimiter := middleware.NewRateLimiter(redisDB, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowDuration)

	r := chi.NewRouter()

	r.Use(middleware.RealIP(trustedProxies))
	r.Use(middleware.Logger())
	r.Use(middleware.Recoverer())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", middleware.MetricsHandler())

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(web.Static()))))
	if cfg.Catalog.Source == config.SourceProbe && cfg.Assets.Backend == config.AssetBackendFS {
		prefix, assets, err := catalog.AssetHandler(os.DirFS(cfg.Assets.Root), cfg.Catalog.PathTemplate)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to mount product assets")
		}
		r.Handle(prefix+"*", assets)
	}
	r.Get("/js/config.js", storefrontHandler.ClientConfig)

	r.Get("/", storefrontHandler.Home)
	r.Get("/products", storefrontHandler.Products)
	r.Get("/login", authHandler.LoginPage)
	r.Get("/account", authHandler.Account)

	r.Route("/auth", func(r chi.Router) {
		r.Use(rateLimiter.Limit("auth"))
		r.Post("/google/callback", authHandler.GoogleCallback)
		r.Get("/google/login", authHandler.GoogleLogin)
		r.Get("/google/oauth-callback", authHandler.OAuthCallback)
		r.Post("/logout", authHandler.Logout)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
		r.Get("/products", storefrontHandler.ProductsJSON)
		r.Get("/auth/me", authHandler.Me)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Catalog.LoadTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped gracefully")
}

// newCatalogSource builds the catalog strategy selected by CATALOG_SOURCE and
// registers its backend for the readiness probe.
func newCatalogSource(ctx context.Context, cfg *config.Config, deps map[string]handlers.Pinger) (catalog.Source, func(), error) {
	switch cfg.Catalog.Source {
	case config.SourcePostgres:
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		deps["postgres"] = db

		querier := middleware.InstrumentedQuerier{Database: "postgres", Querier: db}
		return catalog.NewBackendSource(config.SourcePostgres, querier), func() { db.Close() }, nil

	case config.SourceSupabase:
		client := supabase.NewClient(&cfg.Supabase, nil)
		deps["supabase"] = client

		querier := middleware.InstrumentedQuerier{Database: "supabase", Querier: client}
		return catalog.NewBackendSource(config.SourceSupabase, querier), func() {}, nil

	default:
		prober, err := catalog.NewProber(ctx, &cfg.Assets)
		if err != nil {
			return nil, nil, err
		}
		source := catalog.NewProbeSource(prober, catalog.ProbeOptions{
			Max:          cfg.Catalog.MaxProbe,
			PathTemplate: cfg.Catalog.PathTemplate,
			ImagePrefix:  imagePrefix(&cfg.Assets),
		})
		return source, func() {}, nil
	}
}

// imagePrefix is where browsers fetch probed images from: the local /assets
// mount for the fs backend, otherwise the public base URL of the origin or
// bucket.
func imagePrefix(cfg *config.AssetConfig) string {
	switch {
	case cfg.Backend == config.AssetBackendFS:
		return "/"
	case cfg.BaseURL != "":
		return strings.TrimRight(cfg.BaseURL, "/") + "/"
	case cfg.Backend == config.AssetBackendS3:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", cfg.S3Bucket, cfg.S3Region)
	default:
		return "/"
	}
}

func reportActiveSessions(ctx context.Context, sessions *services.SessionService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := sessions.ActiveCount(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to count active sessions")
				continue
			}
			middleware.SetActiveSessions(float64(count))
		}
	}
}
