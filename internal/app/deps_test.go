package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vidtube/backend/internal/aggregate"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/docstore/memstore"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/views"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		StoreDriver:         config.DriverMemory,
		AccessTokenSecret:   "access",
		RefreshTokenSecret:  "refresh",
		AccessTokenTTL:      time.Minute,
		RefreshTokenTTL:     time.Hour,
		TokenIssuer:         "vidtube-test",
		StatsCacheTTL:       time.Second,
		AuthRateLimit:       100,
		AuthRateLimitWindow: time.Minute,
		AuthRateLimitBurst:  100,
		MaxUploadBytes:      1 << 20,
		FFProbePath:         "ffprobe",
		FFProbeTimeout:      time.Second,
		JanitorWorkers:      1,
		MediaDir:            t.TempDir(),
		MediaBaseURL:        "http://localhost/media",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestBuildDependencies(t *testing.T) {
	rt, err := buildDependencies(context.Background(), testConfig(t), quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := rt.Close(ctx); err != nil {
			t.Errorf("close: %v", err)
		}
	}()

	deps := rt.deps
	if deps.Users == nil || deps.Videos == nil || deps.Comments == nil || deps.Playlists == nil {
		t.Fatal("expected repositories to be configured")
	}
	if deps.Sessions == nil {
		t.Fatal("expected token service to be configured")
	}
	if deps.Toggles == nil || deps.Views == nil || deps.Stats == nil {
		t.Fatal("expected toggle and view services to be configured")
	}
	if deps.Uploads.Blobs == nil || deps.Media == nil {
		t.Fatal("expected disk storage to be served when no bucket is configured")
	}
	if deps.Limiter == nil || deps.Metrics == nil || deps.Health == nil {
		t.Fatal("expected limiter, metrics and health to be configured")
	}
}

func TestBuildDependenciesWithObjectStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.ObjectStore = config.ObjectStoreConfig{
		Bucket:          "test-bucket",
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}

	rt, err := buildDependencies(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rt.Close(context.Background())

	if rt.deps.Media != nil {
		t.Fatal("expected no local media handler with an object store")
	}
}

func TestBuildDependenciesRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "cassandra"

	if _, err := buildDependencies(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestHandlerServesAPI(t *testing.T) {
	cfg := testConfig(t)
	rt, err := buildDependencies(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer rt.Close(context.Background())

	handler := newHandler(quietLogger(), rt.deps)

	send := func(method, path, token string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			if err := json.NewEncoder(&buf).Encode(body); err != nil {
				t.Fatalf("encode: %v", err)
			}
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthy store got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}

	rec = send(http.MethodPost, "/api/v1/users/register", "", map[string]string{
		"fullname": "Test User", "username": "tester", "email": "tester@example.com", "password": "secret-password",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected registration got %d: %s", rec.Code, rec.Body.String())
	}

	rec = send(http.MethodPost, "/api/v1/users/login", "", map[string]string{"username": "tester", "password": "secret-password"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login got %d: %s", rec.Code, rec.Body.String())
	}
	var login struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	rec = send(http.MethodGet, "/api/v1/users/get-user", login.Data.AccessToken, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"username":"tester"`) {
		t.Fatalf("expected current user got %d: %s", rec.Code, rec.Body.String())
	}

	rec = send(http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "vidtube_requests_total") {
		t.Fatalf("expected request metrics, got %d", rec.Code)
	}
}

func TestHandlerServesDiskMedia(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(filepath.Join(cfg.MediaDir, "thumbnails"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.MediaDir, "thumbnails", "a.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	rt, err := buildDependencies(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer rt.Close(context.Background())

	rec := httptest.NewRecorder()
	newHandler(quietLogger(), rt.deps).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/thumbnails/a.jpg", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "jpeg" {
		t.Fatalf("expected media file got %d %q", rec.Code, rec.Body.String())
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	if err := repositories.EnsureIndexes(ctx, store); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := seed(ctx, store, "dev", now)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if first.Users != 3 || first.Videos != 3 || first.Skipped != 0 {
		t.Fatalf("unexpected first seed %+v", first)
	}

	second, err := seed(ctx, store, "dev", now)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if second.Users != 0 || second.Videos != 0 || second.Skipped != 3 {
		t.Fatalf("expected reseed to skip existing users, got %+v", second)
	}

	alice, err := repositories.NewUserRepository(store).FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("find alice: %v", err)
	}
	stats, err := views.NewBuilder(aggregate.NewEngine(store)).ChannelStats(ctx, alice.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalSubscribers != 2 || stats.TotalVideos != 2 || stats.TotalLikes != 1 {
		t.Fatalf("unexpected seeded stats %+v", stats)
	}

	if _, err := seed(ctx, store, "prod", now); err == nil {
		t.Fatal("expected unknown seed name to fail")
	}
}

func TestRunRejectsUnknownCommands(t *testing.T) {
	if err := Run(context.Background(), nil); err == nil {
		t.Fatal("expected error without command")
	}
	if err := Run(context.Background(), []string{"launch"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
