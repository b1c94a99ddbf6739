package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func baseEnv() map[string]string {
	return map[string]string{
		"ACCESS_TOKEN_SECRET":  "access",
		"REFRESH_TOKEN_SECRET": "refresh",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(baseEnv()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	tokens := cfg.Tokens()
	if tokens.AccessTTL != time.Hour || tokens.RefreshTTL != 24*time.Hour {
		t.Fatalf("unexpected token lifetimes: %v %v", tokens.AccessTTL, tokens.RefreshTTL)
	}
	if cfg.APIBasePath != "/api" {
		t.Fatalf("unexpected base path %q", cfg.APIBasePath)
	}
	if cfg.SignIn.MaxAttempts != 10 || cfg.SignIn.Window != 15*time.Minute {
		t.Fatalf("unexpected sign-in defaults: %+v", cfg.SignIn)
	}
	if cfg.Audit.Stream != "marketplace.auth" || cfg.Audit.Workers != 4 {
		t.Fatalf("unexpected audit defaults: %+v", cfg.Audit)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	env := baseEnv()
	env["ACCESS_TOKEN_EXPIRES_IN"] = "60"
	env["REFRESH_TOKEN_EXPIRES_IN"] = "600"
	env["API_BASE_PATH"] = "v1/"

	cfg, err := load(context.Background(), envconfig.MapLookuper(env))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tokens().AccessTTL != time.Minute || cfg.Tokens().RefreshTTL != 10*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg.Tokens())
	}
	if cfg.APIBasePath != "/v1" {
		t.Fatalf("base path not normalized: %q", cfg.APIBasePath)
	}
}

func TestLoad_RequiresSecrets(t *testing.T) {
	if _, err := load(context.Background(), envconfig.MapLookuper(map[string]string{})); err == nil {
		t.Fatalf("expected error without secrets")
	}
}

func TestLoad_RejectsSharedSecret(t *testing.T) {
	env := baseEnv()
	env["REFRESH_TOKEN_SECRET"] = env["ACCESS_TOKEN_SECRET"]
	if _, err := load(context.Background(), envconfig.MapLookuper(env)); err == nil {
		t.Fatalf("expected error for identical secrets")
	}
}

func TestLoad_RejectsNonPositiveLifetime(t *testing.T) {
	env := baseEnv()
	env["ACCESS_TOKEN_EXPIRES_IN"] = "0"
	if _, err := load(context.Background(), envconfig.MapLookuper(env)); err == nil {
		t.Fatalf("expected error for zero lifetime")
	}
}
