package mongodb

import (
	"context"
	"fmt"
)

// EnsureIndexes prepares both collections at boot.
func EnsureIndexes(ctx context.Context, defects *DefectsStore, users *UsersStore) error {
	if err := users.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	if err := defects.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("defects indexes: %w", err)
	}
	return nil
}
