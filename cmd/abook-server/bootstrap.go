package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yndnr/abook-go/internal/core/domain"
	"github.com/yndnr/abook-go/internal/core/service"
	"github.com/yndnr/abook-go/internal/server/config"
)

// adminStore is the part of a store the bootstrap needs.
type adminStore interface {
	FindUserByName(ctx context.Context, username string) (*domain.StoredUser, error)
	service.UserWriter
}

// ensureAdmin creates the configured admin account when it does not exist.
// An existing account is left alone, including its password.
func ensureAdmin(ctx context.Context, store adminStore, cfg config.BootstrapSection, log *slog.Logger) error {
	if cfg.AdminUsername == "" {
		return nil
	}

	_, err := store.FindUserByName(ctx, cfg.AdminUsername)
	switch {
	case err == nil:
		log.Debug("admin account present", "username", cfg.AdminUsername)
		return nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return err
	}

	record, err := service.HashPassword(cfg.AdminPassword, service.DefaultArgon2Params())
	if err != nil {
		return err
	}
	id, err := store.PutUser(ctx, &domain.StoredUser{
		Username: cfg.AdminUsername,
		Active:   true,
		Admin:    true,
	}, record)
	if err != nil {
		return err
	}

	log.Info("admin account created", "username", cfg.AdminUsername, "user_id", id)
	return nil
}
