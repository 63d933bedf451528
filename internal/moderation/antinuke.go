package moderation

import (
	"fmt"
	"sync"
	"time"
)

// AuditAction is the destructive audit-log action kind the classifier knows
// how to judge.
type AuditAction int

const (
	ActionChannelDelete AuditAction = iota
	ActionRoleDelete
	ActionBanAdd
	ActionWebhookCreate
)

func (a AuditAction) String() string {
	switch a {
	case ActionChannelDelete:
		return "channel delete"
	case ActionRoleDelete:
		return "role delete"
	case ActionBanAdd:
		return "member ban"
	case ActionWebhookCreate:
		return "webhook create"
	default:
		return "unknown"
	}
}

// AuditEntry is one resolved audit-log record.
type AuditEntry struct {
	ID       string
	Action   AuditAction
	ActorID  string
	TargetID string
}

// Decision is what the classifier wants done about an entry. A zero Decision
// means no action.
type Decision struct {
	BanActor      bool
	UnbanTarget   bool
	DeleteWebhook bool
	Reason        string
}

// Whitelist holds the principals the classifier never acts against.
type Whitelist struct {
	OwnerID string
	BotID   string
	Trusted map[string]struct{}
}

func (w Whitelist) Allows(id string) bool {
	if id == "" {
		return false
	}
	if id == w.OwnerID || id == w.BotID {
		return true
	}
	_, ok := w.Trusted[id]
	return ok
}

// Classifier turns audit entries into punishment decisions. Two guards keep
// it from double-punishing: per-entry dedup (the same audit entry arriving
// from both the gateway event and the poll sweep yields one decision) and a
// per-actor suppression window (an actor already punished moments ago is not
// punished again for the rest of the same rampage). The dedup cache is
// capacity-bounded, evicting the oldest entries first.
type Classifier struct {
	mu         sync.Mutex
	seen       map[string]time.Time
	order      []string
	lastPunish map[string]time.Time

	suppress time.Duration
	capacity int
	wl       Whitelist
}

func NewClassifier(wl Whitelist, suppress time.Duration, capacity int) *Classifier {
	return &Classifier{
		seen:       make(map[string]time.Time),
		lastPunish: make(map[string]time.Time),
		suppress:   suppress,
		capacity:   capacity,
		wl:         wl,
	}
}

// Classify judges one audit entry. Feeding the same entry ID twice never
// produces two decisions.
func (c *Classifier) Classify(entry AuditEntry, now time.Time) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.seen[entry.ID]; dup {
		return Decision{}
	}
	c.rememberLocked(entry.ID, now)

	if c.wl.Allows(entry.ActorID) {
		return Decision{}
	}

	if punished, ok := c.lastPunish[entry.ActorID]; ok && now.Sub(punished) < c.suppress {
		// Actor is already being dealt with; still undo the damage.
		return Decision{
			UnbanTarget:   entry.Action == ActionBanAdd && entry.TargetID != "",
			DeleteWebhook: entry.Action == ActionWebhookCreate,
			Reason:        fmt.Sprintf("nuke cleanup: %s by %s", entry.Action, entry.ActorID),
		}
	}
	c.lastPunish[entry.ActorID] = now

	return Decision{
		BanActor:      true,
		UnbanTarget:   entry.Action == ActionBanAdd && entry.TargetID != "",
		DeleteWebhook: entry.Action == ActionWebhookCreate,
		Reason:        fmt.Sprintf("nuke attempt: %s by %s", entry.Action, entry.ActorID),
	}
}

func (c *Classifier) rememberLocked(entryID string, now time.Time) {
	c.seen[entryID] = now
	c.order = append(c.order, entryID)
	for c.capacity > 0 && len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
	}
}
