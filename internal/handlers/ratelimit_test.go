package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type keyRecorder struct{ keys []string }

func (k *keyRecorder) Allow(key string) bool {
	k.keys = append(k.keys, key)
	return true
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "socket", remote: "10.0.0.1:5000", want: "10.0.0.1"},
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": " 1.1.1.1 , 2.2.2.2"}, remote: "10.0.0.1:5000", want: "1.1.1.1"},
		{name: "real ip wins", headers: map[string]string{"X-Real-IP": "3.3.3.3", "X-Forwarded-For": "1.1.1.1"}, remote: "10.0.0.1:5000", want: "3.3.3.3"},
		{name: "bare remote", remote: "unix", want: "unix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Fatalf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestThrottledScopesKeys(t *testing.T) {
	limiter := &keyRecorder{}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.9:1234"

	if throttled(httptest.NewRecorder(), req, limiter, "login", "slow down") {
		t.Fatal("expected request to pass")
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "login:10.0.0.9" {
		t.Fatalf("unexpected limiter keys %v", limiter.keys)
	}

	rec := httptest.NewRecorder()
	if !throttled(rec, req, denyLimiter{}, "refresh", "slow down") {
		t.Fatal("expected request to be throttled")
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
	if throttled(httptest.NewRecorder(), req, nil, "login", "") {
		t.Fatal("nil limiter must not throttle")
	}
}
