package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type credit struct {
	userID   string
	cameraOn bool
	minutes  int
}

type fakeAccumulator struct {
	mu      sync.Mutex
	credits []credit
}

func (a *fakeAccumulator) AddVoiceMinutes(_ context.Context, userID string, cameraOn bool, minutes int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.credits = append(a.credits, credit{userID: userID, cameraOn: cameraOn, minutes: minutes})
	return nil
}

func (a *fakeAccumulator) total(userID string, cameraOn bool) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	sum := 0
	for _, c := range a.credits {
		if c.userID == userID && c.cameraOn == cameraOn {
			sum += c.minutes
		}
	}
	return sum
}

type fakeRoster []Presence

func (r fakeRoster) VoiceStates() ([]Presence, error) { return r, nil }

func TestLedgerCreditsPriorState(t *testing.T) {
	clock := newFakeClock(time.Unix(1000000, 0))
	acc := &fakeAccumulator{}
	ledger := NewSessionLedger(acc, "", clock, zap.NewNop())
	ctx := context.Background()

	ledger.HandlePresence(ctx, "u1", State{ChannelID: "vc1", CameraOn: false})
	clock.Advance(5 * time.Minute)
	ledger.HandlePresence(ctx, "u1", State{ChannelID: "vc1", CameraOn: true})

	if got := acc.total("u1", false); got != 5 {
		t.Fatalf("expected 5 cam-off minutes, got %d", got)
	}
	if got := acc.total("u1", true); got != 0 {
		t.Fatalf("expected no cam-on minutes yet, got %d", got)
	}

	clock.Advance(3*time.Minute + 30*time.Second)
	ledger.HandlePresence(ctx, "u1", State{})

	if got := acc.total("u1", true); got != 3 {
		t.Fatalf("expected 3 cam-on minutes after leave, got %d", got)
	}
	if ledger.Tracking("u1") {
		t.Fatalf("session should be closed after leave")
	}
}

func TestLedgerExcludedChannel(t *testing.T) {
	clock := newFakeClock(time.Unix(1000000, 0))
	acc := &fakeAccumulator{}
	ledger := NewSessionLedger(acc, "afk", clock, zap.NewNop())
	ctx := context.Background()

	ledger.HandlePresence(ctx, "u1", State{ChannelID: "afk", CameraOn: true})
	clock.Advance(10 * time.Minute)
	ledger.HandlePresence(ctx, "u1", State{})

	if len(acc.credits) != 0 {
		t.Fatalf("excluded channel must never be credited, got %v", acc.credits)
	}
}

func TestLedgerSubMinuteDropped(t *testing.T) {
	clock := newFakeClock(time.Unix(1000000, 0))
	acc := &fakeAccumulator{}
	ledger := NewSessionLedger(acc, "", clock, zap.NewNop())
	ctx := context.Background()

	ledger.HandlePresence(ctx, "u1", State{ChannelID: "vc1", CameraOn: true})
	clock.Advance(90 * time.Second)
	ledger.HandlePresence(ctx, "u1", State{ChannelID: "vc2", CameraOn: true})

	if got := acc.total("u1", true); got != 1 {
		t.Fatalf("expected floor(90s)=1 minute, got %d", got)
	}
}

func TestReconcileIncremental(t *testing.T) {
	clock := newFakeClock(time.Unix(1000000, 0))
	acc := &fakeAccumulator{}
	ledger := NewSessionLedger(acc, "", clock, zap.NewNop())
	ctx := context.Background()

	ledger.HandlePresence(ctx, "u1", State{ChannelID: "vc1", CameraOn: true})
	clock.Advance(2*time.Minute + 30*time.Second)

	roster := fakeRoster{{UserID: "u1", ChannelID: "vc1", CameraOn: true}}
	if err := ledger.Reconcile(ctx, roster); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := acc.total("u1", true); got != 2 {
		t.Fatalf("expected 2 minutes on first sweep, got %d", got)
	}

	// Immediate second sweep must be a no-op.
	if err := ledger.Reconcile(ctx, roster); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := acc.total("u1", true); got != 2 {
		t.Fatalf("second sweep credited extra minutes, got %d", got)
	}

	// The 30s remainder carries over instead of being dropped.
	clock.Advance(30 * time.Second)
	if err := ledger.Reconcile(ctx, roster); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := acc.total("u1", true); got != 3 {
		t.Fatalf("expected remainder to accrue to 3 minutes, got %d", got)
	}
}

func TestReconcileStaleAndAdoption(t *testing.T) {
	clock := newFakeClock(time.Unix(1000000, 0))
	acc := &fakeAccumulator{}
	ledger := NewSessionLedger(acc, "", clock, zap.NewNop())
	ctx := context.Background()

	ledger.HandlePresence(ctx, "gone", State{ChannelID: "vc1", CameraOn: false})
	clock.Advance(4 * time.Minute)

	roster := fakeRoster{{UserID: "missed", ChannelID: "vc2", CameraOn: true}}
	if err := ledger.Reconcile(ctx, roster); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if got := acc.total("gone", false); got != 4 {
		t.Fatalf("stale session should settle its 4 minutes, got %d", got)
	}
	if ledger.Tracking("gone") {
		t.Fatalf("stale session should be closed")
	}
	if !ledger.Tracking("missed") {
		t.Fatalf("roster member should be adopted")
	}
	if got := acc.total("missed", true); got != 0 {
		t.Fatalf("adoption must not credit minutes, got %d", got)
	}
}
