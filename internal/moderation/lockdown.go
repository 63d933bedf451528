package moderation

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrNotOwner is returned when someone other than the guild owner tries to
// lift a lockdown.
var ErrNotOwner = errors.New("only the guild owner can lift a lockdown")

// Gate applies and removes the actual channel restrictions.
type Gate interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// LockdownStore persists the lockdown flag across restarts.
type LockdownStore interface {
	GetLockdown(ctx context.Context, guildID string) (bool, error)
	SetLockdown(ctx context.Context, guildID string, locked bool) error
}

// LockdownController engages and lifts guild lockdowns. Engage is idempotent:
// a second call while locked does nothing, so overlapping nuke decisions do
// not stack restrictions. The in-memory flag is the source of truth; the
// store is a best-effort mirror so a database outage never leaves the guild
// unprotected mid-raid.
type LockdownController struct {
	mu      sync.Mutex
	locked  bool
	guildID string
	ownerID string
	gate    Gate
	store   LockdownStore
	logger  *zap.Logger
}

func NewLockdownController(guildID, ownerID string, gate Gate, store LockdownStore, logger *zap.Logger) *LockdownController {
	return &LockdownController{
		guildID: guildID,
		ownerID: ownerID,
		gate:    gate,
		store:   store,
		logger:  logger,
	}
}

// Restore seeds the in-memory flag from the store, so a lockdown survives a
// restart. Called once at startup; a store failure just means starting
// unlocked.
func (c *LockdownController) Restore(ctx context.Context) {
	locked, err := c.store.GetLockdown(ctx, c.guildID)
	if err != nil {
		c.logger.Warn("lockdown flag load failed", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.locked = locked
	c.mu.Unlock()
	if locked {
		c.logger.Warn("restored active lockdown from store")
	}
}

// Engage locks the guild down. Returns true if this call did the locking,
// false if the guild was already locked. The flag is set before the gate
// runs, so even a partial gate failure leaves the guild marked locked.
func (c *LockdownController) Engage(ctx context.Context, reason string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locked {
		return false, nil
	}
	c.locked = true
	if err := c.store.SetLockdown(ctx, c.guildID, true); err != nil {
		c.logger.Warn("lockdown flag persist failed", zap.Error(err))
	}
	if err := c.gate.Lock(ctx); err != nil {
		return true, err
	}
	c.logger.Warn("guild lockdown engaged", zap.String("reason", reason))
	return true, nil
}

// Lift removes the lockdown. Only the guild owner may lift. The flag stays
// set if the gate fails to unlock, so the owner can retry.
func (c *LockdownController) Lift(ctx context.Context, actorID string) error {
	if actorID != c.ownerID {
		return ErrNotOwner
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.locked {
		return nil
	}
	if err := c.gate.Unlock(ctx); err != nil {
		return err
	}
	c.locked = false
	if err := c.store.SetLockdown(ctx, c.guildID, false); err != nil {
		c.logger.Warn("lockdown flag persist failed", zap.Error(err))
	}
	c.logger.Info("guild lockdown lifted", zap.String("actor_id", actorID))
	return nil
}

// Locked reports the current lockdown state.
func (c *LockdownController) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}
