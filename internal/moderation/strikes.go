package moderation

import (
	"sync"
	"time"

	"studyguard/internal/utils"
)

// Penalty is the outcome of recording a strike.
type Penalty int

const (
	PenaltyNone Penalty = iota
	PenaltyTimeout
	PenaltyBan
)

func (p Penalty) String() string {
	switch p {
	case PenaltyTimeout:
		return "timeout"
	case PenaltyBan:
		return "ban"
	default:
		return "none"
	}
}

// StrikeTracker escalates repeat offenders: the first strike inside the
// window draws a timeout, a second draws a ban. The window is cleared after a
// ban so a returning member starts clean. Exempt users never accrue strikes.
type StrikeTracker struct {
	mu      sync.Mutex
	strikes map[string]*utils.SlidingWindow

	window time.Duration
	exempt map[string]struct{}
}

func NewStrikeTracker(window time.Duration, exempt []string) *StrikeTracker {
	exemptSet := make(map[string]struct{}, len(exempt))
	for _, id := range exempt {
		exemptSet[id] = struct{}{}
	}
	return &StrikeTracker{
		strikes: make(map[string]*utils.SlidingWindow),
		window:  window,
		exempt:  exemptSet,
	}
}

func (t *StrikeTracker) Exempt(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.exempt[userID]
	return ok
}

// Record adds a strike for userID at now and returns the penalty to apply.
func (t *StrikeTracker) Record(userID string, now time.Time) Penalty {
	t.mu.Lock()
	if _, ok := t.exempt[userID]; ok {
		t.mu.Unlock()
		return PenaltyNone
	}
	window, ok := t.strikes[userID]
	if !ok {
		window = utils.NewSlidingWindow(t.window)
		t.strikes[userID] = window
	}
	t.mu.Unlock()

	count := window.Add(now)
	if count >= 2 {
		window.Clear()
		return PenaltyBan
	}
	return PenaltyTimeout
}
