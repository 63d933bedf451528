package voice

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeActions struct {
	mu          sync.Mutex
	warns       []string
	disconnects []string
}

func (a *fakeActions) Warn(userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.warns = append(a.warns, userID)
	return nil
}

func (a *fakeActions) Disconnect(userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disconnects = append(a.disconnects, userID)
	return nil
}

func (a *fakeActions) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.warns), len(a.disconnects)
}

func newTestEnforcer(clock Clock, actions Actions) *CameraEnforcer {
	return NewCameraEnforcer([]string{"strict"}, 30*time.Second, 180*time.Second, actions, clock, zap.NewNop())
}

func TestEnforcerWarnsThenDisconnects(t *testing.T) {
	clock := newFakeClock(time.Unix(1000000, 0))
	actions := &fakeActions{}
	enforcer := newTestEnforcer(clock, actions)

	enforcer.HandleVoice("u1", "strict", false)

	clock.Advance(29 * time.Second)
	if warns, _ := actions.counts(); warns != 0 {
		t.Fatalf("warned too early")
	}

	clock.Advance(1 * time.Second)
	if warns, disconnects := actions.counts(); warns != 1 || disconnects != 0 {
		t.Fatalf("expected warn only at 30s, got warns=%d disconnects=%d", warns, disconnects)
	}

	clock.Advance(180 * time.Second)
	if _, disconnects := actions.counts(); disconnects != 1 {
		t.Fatalf("expected disconnect after 180s more, got %d", disconnects)
	}
	if enforcer.Pending("u1") {
		t.Fatalf("state should be cleared after disconnect")
	}
}

func TestEnforcerCameraOnCancelsWarning(t *testing.T) {
	clock := newFakeClock(time.Unix(1000000, 0))
	actions := &fakeActions{}
	enforcer := newTestEnforcer(clock, actions)

	enforcer.HandleVoice("u1", "strict", false)
	clock.Advance(25 * time.Second)
	enforcer.HandleVoice("u1", "strict", true)
	clock.Advance(time.Hour)

	if warns, disconnects := actions.counts(); warns != 0 || disconnects != 0 {
		t.Fatalf("compliant member was punished: warns=%d disconnects=%d", warns, disconnects)
	}
}

func TestEnforcerCameraOnCancelsDisconnect(t *testing.T) {
	clock := newFakeClock(time.Unix(1000000, 0))
	actions := &fakeActions{}
	enforcer := newTestEnforcer(clock, actions)

	enforcer.HandleVoice("u1", "strict", false)
	clock.Advance(60 * time.Second)
	enforcer.HandleVoice("u1", "strict", true)
	clock.Advance(time.Hour)

	if warns, disconnects := actions.counts(); warns != 1 || disconnects != 0 {
		t.Fatalf("expected one warn and no disconnect, got warns=%d disconnects=%d", warns, disconnects)
	}
}

func TestEnforcerLeavingResets(t *testing.T) {
	clock := newFakeClock(time.Unix(1000000, 0))
	actions := &fakeActions{}
	enforcer := newTestEnforcer(clock, actions)

	enforcer.HandleVoice("u1", "strict", false)
	clock.Advance(10 * time.Second)
	enforcer.HandleVoice("u1", "", false)
	clock.Advance(time.Hour)

	if warns, _ := actions.counts(); warns != 0 {
		t.Fatalf("member who left was still warned")
	}
	if enforcer.Pending("u1") {
		t.Fatalf("pending state should be cleared on leave")
	}
}

func TestEnforcerNonStrictChannelIgnored(t *testing.T) {
	clock := newFakeClock(time.Unix(1000000, 0))
	actions := &fakeActions{}
	enforcer := newTestEnforcer(clock, actions)

	enforcer.HandleVoice("u1", "casual", false)
	clock.Advance(time.Hour)

	if warns, _ := actions.counts(); warns != 0 {
		t.Fatalf("non-strict channel must not be enforced")
	}
}

func TestEnforcerRescheduleAfterMove(t *testing.T) {
	clock := newFakeClock(time.Unix(1000000, 0))
	actions := &fakeActions{}
	enforcer := newTestEnforcer(clock, actions)

	enforcer.HandleVoice("u1", "strict", false)
	clock.Advance(20 * time.Second)
	// Moving resets the countdown from scratch.
	enforcer.HandleVoice("u1", "strict", false)
	clock.Advance(20 * time.Second)

	if warns, _ := actions.counts(); warns != 0 {
		t.Fatalf("warn timer should restart on state change")
	}

	clock.Advance(10 * time.Second)
	if warns, _ := actions.counts(); warns != 1 {
		t.Fatalf("expected warn 30s after the reset")
	}
}
