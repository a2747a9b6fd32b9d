package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestServerServesAndShutsDown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := New(0, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}), WithWriteTimeout(time.Second))

	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pong" {
		t.Fatalf("unexpected body %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
}

func TestNewAppliesOptions(t *testing.T) {
	srv := New(8080, http.NotFoundHandler(), WithWriteTimeout(time.Hour), WithReadTimeout(time.Minute))
	if srv.inner.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", srv.inner.Addr)
	}
	if srv.inner.WriteTimeout != time.Hour || srv.inner.ReadTimeout != time.Minute {
		t.Fatalf("options not applied: %+v", srv.inner)
	}
}
