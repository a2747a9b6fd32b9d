package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VIDTUBE_STORE_DRIVER", "")
	t.Setenv("VIDTUBE_ACCESS_TOKEN_TTL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != DriverPostgres {
		t.Fatalf("expected postgres driver, got %q", cfg.StoreDriver)
	}
	if cfg.AccessTokenTTL != 15*time.Minute || cfg.RefreshTokenTTL != 240*time.Hour {
		t.Fatalf("unexpected token ttls: %v %v", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	if !cfg.AllowSelfSubscription || !cfg.CookieSecure {
		t.Fatalf("unexpected policy defaults: %+v", cfg)
	}
	if cfg.MaxUploadBytes != 512<<20 {
		t.Fatalf("unexpected upload limit %d", cfg.MaxUploadBytes)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VIDTUBE_STORE_DRIVER", "Mongo")
	t.Setenv("VIDTUBE_ALLOW_SELF_SUBSCRIBE", "false")
	t.Setenv("VIDTUBE_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("VIDTUBE_PORT", "not-a-number")
	t.Setenv("VIDTUBE_COOKIE_SECURE", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != DriverMongo {
		t.Fatalf("expected mongo driver, got %q", cfg.StoreDriver)
	}
	if cfg.AllowSelfSubscription || cfg.CookieSecure {
		t.Fatalf("expected flags to be disabled: %+v", cfg)
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Fatalf("unexpected access ttl %v", cfg.AccessTokenTTL)
	}
	if cfg.AppPort != 8080 {
		t.Fatalf("expected invalid port to fall back, got %d", cfg.AppPort)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{StoreDriver: DriverMemory, AccessTokenSecret: "a", RefreshTokenSecret: "b"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg = Config{StoreDriver: "sqlite", AccessTokenSecret: "same", RefreshTokenSecret: "same"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown store driver", "must differ"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
