package profile

import (
	"context"

	"github.com/entrhq/autofill/pkg/storage"
	"github.com/entrhq/autofill/pkg/types"
)

// Synced-tier keys of the lock gate.
const (
	LockedKey   = "isLocked"
	PasswordKey = "password"
)

// Gate is the optional password lock in front of the profiles. The password
// is stored and compared in plain text; it keeps casual users out of the
// profile list and nothing more.
type Gate struct {
	tier storage.Tier
}

// NewGate creates a Gate over the synced tier.
func NewGate(tier storage.Tier) *Gate {
	return &Gate{tier: tier}
}

// Locked reports whether the gate is closed.
func (g *Gate) Locked(ctx context.Context) (bool, error) {
	locked, _, err := storage.GetJSON[bool](ctx, g.tier, LockedKey)
	if err != nil {
		return false, types.StorageUnavailable("gate.locked", err, "failed to read lock state")
	}
	return locked, nil
}

// Check returns a Protected error while the gate is closed.
func (g *Gate) Check(ctx context.Context) error {
	locked, err := g.Locked(ctx)
	if err != nil {
		return err
	}
	if locked {
		return types.Protected("gate.check", "profiles are locked")
	}
	return nil
}

// SetPassword stores password and closes the gate.
func (g *Gate) SetPassword(ctx context.Context, password string) error {
	if password == "" {
		return types.Validation("gate.set_password", "password cannot be empty")
	}
	if err := g.tier.Set(ctx, map[string]any{PasswordKey: password, LockedKey: true}); err != nil {
		return types.StorageUnavailable("gate.set_password", err, "failed to save password")
	}
	return nil
}

// RemovePassword clears the password and opens the gate.
func (g *Gate) RemovePassword(ctx context.Context) error {
	if err := g.tier.Set(ctx, map[string]any{PasswordKey: "", LockedKey: false}); err != nil {
		return types.StorageUnavailable("gate.remove_password", err, "failed to clear password")
	}
	return nil
}

// Lock closes the gate again using the stored password.
func (g *Gate) Lock(ctx context.Context) error {
	stored, err := g.password(ctx, "gate.lock")
	if err != nil {
		return err
	}
	if stored == "" {
		return types.Validation("gate.lock", "no password set")
	}
	if err := g.tier.Set(ctx, map[string]any{LockedKey: true}); err != nil {
		return types.StorageUnavailable("gate.lock", err, "failed to save lock state")
	}
	return nil
}

// Unlock opens the gate when password equals the stored one. The password
// stays set.
func (g *Gate) Unlock(ctx context.Context, password string) error {
	stored, err := g.password(ctx, "gate.unlock")
	if err != nil {
		return err
	}
	if stored == "" {
		return types.Validation("gate.unlock", "no password set")
	}
	if password != stored {
		return types.Validation("gate.unlock", "incorrect password")
	}
	if err := g.tier.Set(ctx, map[string]any{LockedKey: false}); err != nil {
		return types.StorageUnavailable("gate.unlock", err, "failed to save lock state")
	}
	return nil
}

func (g *Gate) password(ctx context.Context, op string) (string, error) {
	stored, _, err := storage.GetJSON[string](ctx, g.tier, PasswordKey)
	if err != nil {
		return "", types.StorageUnavailable(op, err, "failed to read password")
	}
	return stored, nil
}
