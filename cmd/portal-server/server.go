package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medportal/portal/internal/config"
	"github.com/medportal/portal/internal/domain/account"
	"github.com/medportal/portal/internal/domain/clinical"
	"github.com/medportal/portal/internal/domain/patient"
	"github.com/medportal/portal/internal/domain/record"
	"github.com/medportal/portal/internal/platform/accesslog"
	"github.com/medportal/portal/internal/platform/auth"
	"github.com/medportal/portal/internal/platform/blobstore"
	"github.com/medportal/portal/internal/platform/cache"
	"github.com/medportal/portal/internal/platform/db"
	"github.com/medportal/portal/internal/platform/middleware"
	"github.com/medportal/portal/internal/platform/recordpdf"
	"github.com/medportal/portal/internal/platform/websocket"
)

const (
	defaultBodyLimit = "1M"
	requestTimeout   = 30 * time.Second
)

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func poolOptions(cfg *config.Config) db.PoolOptions {
	return db.PoolOptions{
		MaxConns:          cfg.DBMaxConns,
		MinConns:          cfg.DBMinConns,
		MaxConnLifetime:   time.Hour,
		HealthCheckPeriod: time.Minute,
	}
}

// services holds the domain services shared by the HTTP server and the CLI.
type services struct {
	tokens   *auth.TokenIssuer
	hub      *websocket.Hub
	blobs    blobstore.BlobStore
	accounts *account.Service
	patients *patient.Service
	clinical *clinical.Service
	record   *record.Service
	access   accesslog.Store
}

// newExporter builds the record exporter, loading the configured fonts.
func newExporter(cfg *config.Config) (*recordpdf.Exporter, error) {
	if cfg.PDFFont == "" {
		return recordpdf.NewExporter(), nil
	}
	regular, err := os.ReadFile(cfg.PDFFont)
	if err != nil {
		return nil, fmt.Errorf("read PDF_FONT: %w", err)
	}
	var bold []byte
	if cfg.PDFBoldFont != "" {
		if bold, err = os.ReadFile(cfg.PDFBoldFont); err != nil {
			return nil, fmt.Errorf("read PDF_BOLD_FONT: %w", err)
		}
	}
	return recordpdf.NewExporter(recordpdf.WithUTF8Font(regular, bold)), nil
}

func newServices(cfg *config.Config, pool *pgxpool.Pool, tc cache.Cache, blobs blobstore.BlobStore, exporter *recordpdf.Exporter, logger zerolog.Logger) *services {
	tx := db.NewTxRunner(pool)
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSigningKey), cfg.JWTIssuer, cfg.TokenTTL)
	hub := websocket.NewHub(logger)

	patients := patient.NewService(patient.NewRepo(pool), logger)
	clin := clinical.NewService(clinical.NewRepo(pool), tx, logger,
		clinical.WithCache(tc, cfg.TemplateTTL),
		clinical.WithEvents(hub),
	)

	return &services{
		tokens:   tokens,
		hub:      hub,
		blobs:    blobs,
		accounts: account.NewService(account.NewRepo(pool), tx, tokens, logger),
		patients: patients,
		clinical: clin,
		record:   record.NewService(patients, clin, exporter, logger),
		access:   accesslog.NewPGStore(pool),
	}
}

func newBlobStore(cfg *config.Config) (blobstore.BlobStore, error) {
	maxSize := middleware.ParseSize(cfg.MaxUploadSize)
	switch cfg.BlobBackend {
	case "s3":
		store, err := blobstore.NewS3Store(cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, maxSize)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory", "":
		return blobstore.NewInMemoryBlobStore(maxSize), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

// newLimiter shares rate limit windows through redis when it is configured.
func newLimiter(cfg *config.Config, rdb *redis.Client) middleware.Limiter {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	if rdb != nil {
		return cache.NewWindowLimiter(rdb, rl.BurstSize, time.Duration(float64(rl.BurstSize)/rl.RequestsPerSecond*float64(time.Second)))
	}
	return middleware.NewMemoryLimiter(rl)
}

// application owns the connections opened for one process.
type application struct {
	cfg      *config.Config
	logger   zerolog.Logger
	pool     *pgxpool.Pool
	redis    *redis.Client
	services *services
}

func newApplication(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*application, error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolOptions(cfg), logger)
	if err != nil {
		return nil, err
	}
	app := &application{cfg: cfg, logger: logger, pool: pool}

	var tc cache.Cache = cache.Nop{}
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		app.redis = rdb
		tc = cache.NewRedisCache(rdb, "portal")
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	exporter, err := newExporter(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.services = newServices(cfg, pool, tc, blobs, exporter, logger)
	return app, nil
}

func (a *application) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.pool.Close()
}

func (a *application) healthDeps() map[string]db.Pinger {
	deps := map[string]db.Pinger{}
	if a.redis != nil {
		deps["redis"] = db.PingFunc(func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	return deps
}

// newEcho builds the HTTP server. health may be nil in tests.
func newEcho(cfg *config.Config, logger zerolog.Logger, svc *services, limiter middleware.Limiter, health echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{echo.HeaderContentDisposition, "X-Record-Pages"},
	}))
	e.Use(middleware.BodyLimit(defaultBodyLimit, cfg.MaxUploadSize))
	e.Use(middleware.RequestTimeout(requestTimeout))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(svc.tokens, auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(svc.tokens, auth.AuthSkipper))
	}
	e.Use(middleware.RateLimit(limiter, logger))
	e.Use(middleware.Audit(logger, accesslog.NewRecorder(svc.access, logger)))

	if health != nil {
		e.GET("/health", health)
	}
	websocket.NewWebSocketHandler(svc.hub, cfg.CORSOrigins).RegisterRoutes(e.Group(""))

	api := e.Group("/api/v1")
	account.NewHandler(svc.accounts).RegisterRoutes(api)
	patient.NewHandler(svc.patients).RegisterRoutes(api)
	clinical.NewHandler(svc.clinical).RegisterRoutes(api)
	record.NewHandler(svc.record).RegisterRoutes(api)
	accesslog.NewHandler(svc.access).RegisterRoutes(api)

	uploader := blobstore.NewUploader(svc.blobs, middleware.ParseSize(cfg.MaxUploadSize), logger)
	blobstore.NewBlobHandler(svc.blobs, uploader).RegisterRoutes(api)
	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return err
	}
	defer app.Close()

	e := newEcho(cfg, logger, app.services, newLimiter(cfg, app.redis), db.HealthHandler(app.pool, app.healthDeps()))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Str("blob_backend", cfg.BlobBackend).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
