package voice

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Accumulator receives credited study minutes. The storage layer implements
// it directly; the bot wraps it with retry.
type Accumulator interface {
	AddVoiceMinutes(ctx context.Context, userID string, cameraOn bool, minutes int) error
}

// State is a member's observed voice position.
type State struct {
	ChannelID string
	CameraOn  bool
}

// Presence is one row of a full voice roster snapshot.
type Presence struct {
	UserID    string
	ChannelID string
	CameraOn  bool
}

// VoicePresence supplies the current roster for reconciliation sweeps.
type VoicePresence interface {
	VoiceStates() ([]Presence, error)
}

type session struct {
	channelID string
	cameraOn  bool
	startedAt time.Time
}

// SessionLedger tracks open voice sessions and converts elapsed wall time
// into study minutes. Minutes are always credited to the camera state and
// channel the time was actually spent in, never to the state a member is
// transitioning into. Time spent in the excluded channel is discarded.
type SessionLedger struct {
	mu       sync.Mutex
	sessions map[string]*session

	excludedChannel string
	clock           Clock
	acc             Accumulator
	logger          *zap.Logger
}

func NewSessionLedger(acc Accumulator, excludedChannel string, clock Clock, logger *zap.Logger) *SessionLedger {
	return &SessionLedger{
		sessions:        make(map[string]*session),
		excludedChannel: excludedChannel,
		clock:           clock,
		acc:             acc,
		logger:          logger,
	}
}

// HandlePresence settles the open session against the prior state and opens a
// new one for the state the member moved into. Whole minutes are credited,
// the sub-minute remainder is dropped with the old session.
func (l *SessionLedger) HandlePresence(ctx context.Context, userID string, after State) {
	now := l.clock.Now()

	l.mu.Lock()
	open, ok := l.sessions[userID]
	if ok {
		l.settleLocked(ctx, userID, open, now)
	}
	if after.ChannelID == "" {
		delete(l.sessions, userID)
	} else {
		l.sessions[userID] = &session{
			channelID: after.ChannelID,
			cameraOn:  after.CameraOn,
			startedAt: now,
		}
	}
	l.mu.Unlock()
}

// Tracking reports whether an open session exists for the user.
func (l *SessionLedger) Tracking(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sessions[userID]
	return ok
}

// Reconcile settles the ledger against a roster snapshot. Tracked members
// absent from the roster have their session settled and closed; members on
// the roster but not tracked are adopted with a session starting now. Present
// members get an incremental flush: whole elapsed minutes are credited and
// the session origin advances by exactly the credited amount, so a second
// immediate sweep credits nothing and the sub-minute remainder keeps
// accruing.
func (l *SessionLedger) Reconcile(ctx context.Context, p VoicePresence) error {
	roster, err := p.VoiceStates()
	if err != nil {
		return err
	}
	now := l.clock.Now()

	present := make(map[string]Presence, len(roster))
	for _, entry := range roster {
		present[entry.UserID] = entry
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for userID, open := range l.sessions {
		current, ok := present[userID]
		if !ok {
			l.settleLocked(ctx, userID, open, now)
			delete(l.sessions, userID)
			continue
		}
		minutes := int(now.Sub(open.startedAt) / time.Minute)
		l.creditLocked(ctx, userID, open, minutes)
		open.startedAt = open.startedAt.Add(time.Duration(minutes) * time.Minute)
		open.channelID = current.ChannelID
		open.cameraOn = current.CameraOn
	}

	for userID, entry := range present {
		if _, ok := l.sessions[userID]; ok {
			continue
		}
		l.sessions[userID] = &session{
			channelID: entry.ChannelID,
			cameraOn:  entry.CameraOn,
			startedAt: now,
		}
	}
	return nil
}

func (l *SessionLedger) settleLocked(ctx context.Context, userID string, open *session, now time.Time) {
	minutes := int(now.Sub(open.startedAt) / time.Minute)
	l.creditLocked(ctx, userID, open, minutes)
}

func (l *SessionLedger) creditLocked(ctx context.Context, userID string, open *session, minutes int) {
	if minutes <= 0 {
		return
	}
	if l.excludedChannel != "" && open.channelID == l.excludedChannel {
		return
	}
	if err := l.acc.AddVoiceMinutes(ctx, userID, open.cameraOn, minutes); err != nil {
		l.logger.Error("failed to credit study minutes",
			zap.String("user_id", userID),
			zap.Int("minutes", minutes),
			zap.Bool("camera_on", open.cameraOn),
			zap.Error(err))
	}
}
