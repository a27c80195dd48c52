package main

import (
	"context"

	"go.uber.org/zap"

	"coursehub.org/internal/auth"
	"coursehub.org/internal/config"
)

// bootstrapAdmin ensures the configured admin account exists so the admin
// routes are reachable on a fresh store.
func bootstrapAdmin(ctx context.Context, svc *auth.Service, cfg config.Config, logger *zap.Logger) error {
	if !cfg.AdminBootstrap() {
		logger.Warn("COURSEHUB_ADMIN_EMAIL not set, no admin account ensured")
		return nil
	}
	u, created, err := svc.EnsureAdmin(ctx, auth.RegisterInput{
		Name:     cfg.AdminName,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	})
	if err != nil {
		return err
	}
	logger.Info("admin account ready", zap.String("user_id", u.ID), zap.Bool("created", created))
	return nil
}
