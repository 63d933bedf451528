package moderation

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type fakeGate struct {
	locks   int
	unlocks int
}

func (g *fakeGate) Lock(context.Context) error   { g.locks++; return nil }
func (g *fakeGate) Unlock(context.Context) error { g.unlocks++; return nil }

type memLockdownStore struct {
	locked map[string]bool
}

func (s *memLockdownStore) GetLockdown(_ context.Context, guildID string) (bool, error) {
	return s.locked[guildID], nil
}

func (s *memLockdownStore) SetLockdown(_ context.Context, guildID string, locked bool) error {
	if s.locked == nil {
		s.locked = make(map[string]bool)
	}
	s.locked[guildID] = locked
	return nil
}

type brokenLockdownStore struct{}

func (brokenLockdownStore) GetLockdown(context.Context, string) (bool, error) {
	return false, errors.New("database is locked")
}

func (brokenLockdownStore) SetLockdown(context.Context, string, bool) error {
	return errors.New("database is locked")
}

func TestLockdownEngageIdempotent(t *testing.T) {
	gate := &fakeGate{}
	controller := NewLockdownController("g1", "owner", gate, &memLockdownStore{}, zap.NewNop())
	ctx := context.Background()

	engaged, err := controller.Engage(ctx, "nuke")
	if err != nil || !engaged {
		t.Fatalf("first engage: engaged=%t err=%v", engaged, err)
	}
	engaged, err = controller.Engage(ctx, "nuke again")
	if err != nil || engaged {
		t.Fatalf("second engage should be a no-op, engaged=%t err=%v", engaged, err)
	}
	if gate.locks != 1 {
		t.Fatalf("gate locked %d times", gate.locks)
	}
}

func TestLockdownEngageSurvivesStoreFailure(t *testing.T) {
	gate := &fakeGate{}
	controller := NewLockdownController("g1", "owner", gate, brokenLockdownStore{}, zap.NewNop())
	ctx := context.Background()

	engaged, err := controller.Engage(ctx, "raid")
	if err != nil || !engaged {
		t.Fatalf("engage with broken store: engaged=%t err=%v", engaged, err)
	}
	if gate.locks != 1 {
		t.Fatalf("gate must lock even when the flag cannot be persisted, locks=%d", gate.locks)
	}
	if !controller.Locked() {
		t.Fatalf("controller must report locked from memory")
	}

	if engaged, _ := controller.Engage(ctx, "raid again"); engaged {
		t.Fatalf("second engage should be a no-op despite the broken store")
	}

	if err := controller.Lift(ctx, "owner"); err != nil {
		t.Fatalf("lift with broken store: %v", err)
	}
	if gate.unlocks != 1 || controller.Locked() {
		t.Fatalf("lift must unlock from memory, unlocks=%d locked=%t", gate.unlocks, controller.Locked())
	}
}

func TestLockdownRestore(t *testing.T) {
	store := &memLockdownStore{}
	_ = store.SetLockdown(context.Background(), "g1", true)

	gate := &fakeGate{}
	controller := NewLockdownController("g1", "owner", gate, store, zap.NewNop())
	controller.Restore(context.Background())

	if !controller.Locked() {
		t.Fatalf("persisted lockdown not restored")
	}
	if engaged, _ := controller.Engage(context.Background(), "nuke"); engaged {
		t.Fatalf("engage after restore should be a no-op")
	}
}

func TestLockdownLiftOwnerOnly(t *testing.T) {
	gate := &fakeGate{}
	controller := NewLockdownController("g1", "owner", gate, &memLockdownStore{}, zap.NewNop())
	ctx := context.Background()

	if _, err := controller.Engage(ctx, "nuke"); err != nil {
		t.Fatalf("engage: %v", err)
	}

	if err := controller.Lift(ctx, "someone"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if gate.unlocks != 0 {
		t.Fatalf("gate unlocked by non-owner")
	}

	if err := controller.Lift(ctx, "owner"); err != nil {
		t.Fatalf("owner lift: %v", err)
	}
	if gate.unlocks != 1 {
		t.Fatalf("gate unlocked %d times", gate.unlocks)
	}

	if controller.Locked() {
		t.Fatalf("still locked after lift")
	}
}
