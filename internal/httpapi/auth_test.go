package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pilldncl/DNCL-SupMS-sub000/internal/domain"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/store/memory"
)

func TestLoginAndParseTokenRoundTrip(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-test-pass")
	t.Setenv("SEED_STAFF_PASSWORD", "staff-test-pass")
	auth := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, memory.NewSeeded())

	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "admin-test-pass"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != "admin" {
		t.Fatalf("expected admin role, got %s", resp.Role)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-test-pass")
	t.Setenv("SEED_STAFF_PASSWORD", "staff-test-pass")
	auth := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, memory.NewSeeded())

	if _, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "nope"}); err == nil {
		t.Fatalf("expected login with wrong password to fail")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	auth := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, nil)

	if _, err := auth.ParseToken("not-a-token"); err == nil {
		t.Fatalf("expected garbage token to be rejected")
	}
}

func TestBootstrapUpgradesPlainTextPasswords(t *testing.T) {
	repo := memory.New()
	err := repo.CreateUser(context.Background(), domain.UserAccount{
		Username: "legacy",
		Password: "plain-text-secret",
		Role:     "staff",
		Active:   true,
	})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	auth := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, repo)
	if _, err := auth.Login(domain.LoginRequest{Username: "legacy", Password: "plain-text-secret"}); err != nil {
		t.Fatalf("login with upgraded password failed: %v", err)
	}

	users, err := repo.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	for _, u := range users {
		if u.Username == "legacy" && !strings.HasPrefix(u.Password, "$2") {
			t.Fatalf("stored password was not upgraded to a bcrypt hash")
		}
	}
}
