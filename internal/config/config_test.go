package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadFallsBackOnBadNumbers(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "not-a-number")
	t.Setenv("REPORT_CACHE_TTL_MINUTES", "-3")

	cfg := Load()
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected default token TTL, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.ReportCacheTTLMinutes != 15 {
		t.Fatalf("expected default report cache TTL, got %d", cfg.ReportCacheTTLMinutes)
	}
}

func TestAddress(t *testing.T) {
	t.Setenv("PORT", "9191")

	cfg := Load()
	if cfg.Address() != ":9191" {
		t.Fatalf("expected :9191, got %s", cfg.Address())
	}
}
