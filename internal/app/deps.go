package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/aggregate"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/docstore/memstore"
	"github.com/vidtube/backend/internal/docstore/mongostore"
	"github.com/vidtube/backend/internal/docstore/pgstore"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
	"github.com/vidtube/backend/internal/toggle"
	"github.com/vidtube/backend/internal/views"
)

const limiterIdleTTL = 10 * time.Minute

// pingCloser is a document store that can also report its health.
type pingCloser interface {
	docstore.Store
	Ping(ctx context.Context) error
}

// wiring holds the wired handler dependencies plus whatever must be released
// on shutdown.
type wiring struct {
	deps    handlers.Dependencies
	store   pingCloser
	janitor *media.Janitor
}

// Close drains pending blob deletions before closing the store.
func (r *wiring) Close(ctx context.Context) error {
	var errs []error
	if err := r.janitor.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain janitor: %w", err))
	}
	if err := r.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

// openStore connects the document store selected by cfg.StoreDriver and makes
// sure its indexes exist. The postgres driver applies pending migrations first.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (pingCloser, error) {
	var store pingCloser
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store, data will not survive a restart")
		store = memstore.New()
	case config.DriverMongo:
		mongo, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		store = mongo
	case config.DriverPostgres:
		if err := migrateDatabase(ctx, cfg.DatabaseURL, io.Discard); err != nil {
			return nil, err
		}
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store = pgstore.New(pool)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	if err := repositories.EnsureIndexes(ctx, store); err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	return store, nil
}

func migrateDatabase(ctx context.Context, databaseURL string, out io.Writer) error {
	sqlDB, err := db.OpenSQL(databaseURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return db.Migrate(ctx, sqlDB, out)
}

// openBlobStore prefers the configured S3 bucket and falls back to local disk.
// The returned handler serves disk uploads and is nil for S3.
func openBlobStore(ctx context.Context, cfg config.Config) (media.BlobStore, http.Handler, error) {
	if cfg.ObjectStore.Bucket != "" {
		s3Store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, nil, err
		}
		return s3Store, nil, nil
	}

	disk, err := storage.NewDiskStorage(cfg.MediaDir, cfg.MediaBaseURL)
	if err != nil {
		return nil, nil, err
	}
	return disk, http.FileServer(http.Dir(cfg.MediaDir)), nil
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger) (*wiring, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	blobs, mediaHandler, err := openBlobStore(ctx, cfg)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	tokens, err := auth.NewTokenService(auth.Config{
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        cfg.TokenIssuer,
	}, repositories.NewUserSessionStore(store))
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	builder := views.NewBuilder(aggregate.NewEngine(store))
	janitor := media.NewJanitor(blobs, media.JanitorConfig{Workers: cfg.JanitorWorkers}, logger)

	deps := handlers.Dependencies{
		Users:     repositories.NewUserRepository(store),
		Sessions:  tokens,
		Videos:    repositories.NewVideoRepository(store),
		Comments:  repositories.NewCommentRepository(store),
		Playlists: repositories.NewPlaylistRepository(store),
		Toggles:   toggle.NewService(store, toggle.WithSelfSubscription(cfg.AllowSelfSubscription)),
		Views:     builder,
		Stats:     views.NewCachingStats(builder, cfg.StatsCacheTTL),
		Prober:    media.NewProber(cfg.FFProbePath, cfg.FFProbeTimeout),
		Janitor:   janitor,
		Uploads:   handlers.Uploads{Blobs: blobs, MaxBytes: cfg.MaxUploadBytes},
		Cookies:   handlers.CookiePolicy{Secure: cfg.CookieSecure},
		Limiter:   middleware.NewIPRateLimiter(cfg.AuthRateLimit, cfg.AuthRateLimitWindow, cfg.AuthRateLimitBurst, limiterIdleTTL),
		Health:    store,
		Metrics:   metrics.Handler(),
		Media:     mediaHandler,
	}

	return &wiring{deps: deps, store: store, janitor: janitor}, nil
}

// newHandler assembles the routed, instrumented and logged HTTP handler.
// Instrumentation wraps the mux directly so the matched pattern is visible
// to it.
func newHandler(logger *slog.Logger, deps handlers.Dependencies) http.Handler {
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)
	return middleware.RequestLogger(logger)(metrics.InstrumentHandler(mux))
}
