package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vidtube/backend/internal/aggregate"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/docstore/memstore"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/toggle"
	"github.com/vidtube/backend/internal/views"
)

type memoryBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *memoryBlobs) Save(_ context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = make(map[string][]byte)
	}
	location := "mem://" + name
	b.objects[location] = data
	return location, nil
}

func (b *memoryBlobs) Delete(_ context.Context, location string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, location)
	return nil
}

type recordingJanitor struct {
	mu        sync.Mutex
	discarded []string
}

func (j *recordingJanitor) Discard(locations ...string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.discarded = append(j.discarded, locations...)
}

func (j *recordingJanitor) has(location string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, l := range j.discarded {
		if l == location {
			return true
		}
	}
	return false
}

type fixedProber float64

func (p fixedProber) Duration(context.Context, string) (float64, error) { return float64(p), nil }

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

type testServer struct {
	t       *testing.T
	handler http.Handler
	blobs   *memoryBlobs
	janitor *recordingJanitor
	store   *memstore.Store
}

func newTestServer(t *testing.T, mutate ...func(*Dependencies)) *testServer {
	t.Helper()
	ctx := context.Background()

	store := memstore.New()
	if err := repositories.EnsureIndexes(ctx, store); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	tokens, err := auth.NewTokenService(auth.Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "vidtube-test",
	}, repositories.NewUserSessionStore(store))
	if err != nil {
		t.Fatalf("token service: %v", err)
	}

	builder := views.NewBuilder(aggregate.NewEngine(store))
	blobs := &memoryBlobs{}
	janitor := &recordingJanitor{}
	deps := Dependencies{
		Users:     repositories.NewUserRepository(store),
		Sessions:  tokens,
		Videos:    repositories.NewVideoRepository(store),
		Comments:  repositories.NewCommentRepository(store),
		Playlists: repositories.NewPlaylistRepository(store),
		Toggles:   toggle.NewService(store),
		Views:     builder,
		Stats:     views.NewCachingStats(builder, time.Minute),
		Prober:    fixedProber(12.5),
		Janitor:   janitor,
		Uploads:   Uploads{Blobs: blobs, MaxBytes: 1 << 20},
		Health:    store,
	}
	for _, fn := range mutate {
		fn(&deps)
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)
	return &testServer{t: t, handler: mux, blobs: blobs, janitor: janitor, store: store}
}

type apiResponse struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
}

type call struct {
	method  string
	path    string
	body    io.Reader
	ctype   string
	token   string
	cookies []*http.Cookie
}

func (s *testServer) do(c call) (*httptest.ResponseRecorder, apiResponse) {
	s.t.Helper()
	req := httptest.NewRequest(c.method, c.path, c.body)
	if c.ctype != "" {
		req.Header.Set("Content-Type", c.ctype)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			s.t.Fatalf("decode response %s %s: %v", c.method, c.path, err)
		}
	}
	return rec, resp
}

func (s *testServer) json(method, path, token string, payload any) (*httptest.ResponseRecorder, apiResponse) {
	s.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			s.t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	return s.do(call{method: method, path: path, body: body, ctype: "application/json", token: token})
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, resp.Data)
	}
	return out
}

type session struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	Cookies      []*http.Cookie
}

// signUp registers username and logs it in.
func (s *testServer) signUp(username string) session {
	s.t.Helper()
	rec, resp := s.json(http.MethodPost, "/api/v1/users/register", "", registerRequest{
		Fullname: "User " + username,
		Username: username,
		Email:    username + "@example.com",
		Password: "supersafe",
	})
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("register %s: status %d message %q", username, rec.Code, resp.Message)
	}
	return s.login(username, "supersafe")
}

func (s *testServer) login(username, password string) session {
	s.t.Helper()
	rec, resp := s.json(http.MethodPost, "/api/v1/users/login", "", loginRequest{Username: username, Password: password})
	if rec.Code != http.StatusOK {
		s.t.Fatalf("login %s: status %d message %q", username, rec.Code, resp.Message)
	}
	var data struct {
		User struct {
			ID string `json:"_id"`
		} `json:"user"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		s.t.Fatalf("decode login: %v", err)
	}
	return session{
		UserID:       data.User.ID,
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		Cookies:      rec.Result().Cookies(),
	}
}

type part struct {
	field    string
	filename string
	content  string
}

func multipartBody(t *testing.T, fields map[string]string, files ...part) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		w, err := mw.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.WriteString(w, f.content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

type videoPayload struct {
	ID          string  `json:"_id"`
	VideoFile   string  `json:"videoFile"`
	Thumbnail   string  `json:"thumbnail"`
	Duration    float64 `json:"duration"`
	Views       int64   `json:"views"`
	IsPublished bool    `json:"isPublished"`
	Owner       string  `json:"owner"`
}

func (s *testServer) publish(owner session, title string) videoPayload {
	s.t.Helper()
	body, ctype := multipartBody(s.t,
		map[string]string{"title": title, "description": "about " + title},
		part{field: "videoFile", filename: "clip.MP4", content: "video-bytes"},
		part{field: "thumbnail", filename: "thumb.png", content: "png-bytes"},
	)
	rec, resp := s.do(call{method: http.MethodPost, path: "/api/v1/videos", body: body, ctype: ctype, token: owner.AccessToken})
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("publish: status %d message %q errors %v", rec.Code, resp.Message, resp.Errors)
	}
	return decodeData[videoPayload](s.t, resp)
}
