package db

import (
	"context"
	"errors"

	"github.com/geocoder89/civicfix/internal/config"
	"github.com/geocoder89/civicfix/internal/domain/user"
)

type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) error
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// EnsureAdminUser creates the configured admin account when it does not
// exist yet. It is the only path that grants the admin role.
func EnsureAdminUser(ctx context.Context, users AdminStore, hasher PasswordHasher, cfg config.Config) (bool, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	_, err := users.GetByEmail(ctx, user.NormalizeEmail(cfg.AdminEmail))

	if err == nil {
		return false, nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	hash, err := hasher.Hash(cfg.AdminPassword)

	if err != nil {
		return false, err
	}

	u := user.New(user.RegisterRequest{
		FirstName: cfg.AdminFirstName,
		LastName:  cfg.AdminLastName,
		Email:     cfg.AdminEmail,
	}, hash, user.RoleAdmin)

	if err := users.Create(ctx, u); err != nil {
		// another replica seeded first
		if errors.Is(err, user.ErrEmailTaken) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}
