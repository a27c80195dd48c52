package main

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"coursehub.org/internal/auth"
	"coursehub.org/internal/config"
	"coursehub.org/internal/kv"
	"coursehub.org/internal/session"
)

func newAuthService(t *testing.T) *auth.Service {
	t.Helper()
	tokens, err := auth.NewTokenService("access-secret", "refresh-secret")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	svc, err := auth.NewService(auth.NewMemoryUserStore(), session.New(kv.NewMemoryStore(), time.Hour), tokens)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestBootstrapAdminEnablesAdminLogin(t *testing.T) {
	svc := newAuthService(t)
	cfg := config.Config{AdminName: "Root", AdminEmail: "root@example.com", AdminPassword: "admin-pass"}

	for i := 0; i < 2; i++ {
		if err := bootstrapAdmin(context.Background(), svc, cfg, zap.NewNop()); err != nil {
			t.Fatalf("bootstrapAdmin run %d: %v", i+1, err)
		}
	}
	pair, err := svc.Login(context.Background(), "root@example.com", "admin-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := auth.Require(pair.Principal, auth.RoleAdmin); err != nil {
		t.Fatalf("expected admin principal: %v", err)
	}
}

func TestBootstrapAdminDisabled(t *testing.T) {
	svc := newAuthService(t)
	if err := bootstrapAdmin(context.Background(), svc, config.Config{}, zap.NewNop()); err != nil {
		t.Fatalf("bootstrapAdmin: %v", err)
	}
	if _, err := svc.Login(context.Background(), "root@example.com", "admin-pass"); err == nil {
		t.Fatal("no admin should exist without configuration")
	}
}

func TestSplitOrigins(t *testing.T) {
	got := splitOrigins(" https://a.example.com, ,https://b.example.com ")
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins %q", got)
	}
}
