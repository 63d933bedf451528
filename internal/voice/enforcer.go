package voice

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Actions are the effects the enforcer can take on a member. The bot layer
// maps them onto DMs and guild moves.
type Actions interface {
	Warn(userID string) error
	Disconnect(userID string) error
}

type enforceState struct {
	timer  Timer
	warned bool
}

// CameraEnforcer escalates against members sitting camera-off in a strict
// channel: a warning after the warn delay, then a disconnect after the
// disconnect delay if the camera is still off. Any state change cancels the
// pending step; compliance or leaving resets the member entirely.
type CameraEnforcer struct {
	mu      sync.Mutex
	pending map[string]*enforceState

	strict          map[string]struct{}
	warnDelay       time.Duration
	disconnectDelay time.Duration

	clock   Clock
	actions Actions
	logger  *zap.Logger
}

func NewCameraEnforcer(strictChannels []string, warnDelay, disconnectDelay time.Duration, actions Actions, clock Clock, logger *zap.Logger) *CameraEnforcer {
	strict := make(map[string]struct{}, len(strictChannels))
	for _, id := range strictChannels {
		strict[id] = struct{}{}
	}
	return &CameraEnforcer{
		pending:         make(map[string]*enforceState),
		strict:          strict,
		warnDelay:       warnDelay,
		disconnectDelay: disconnectDelay,
		clock:           clock,
		actions:         actions,
		logger:          logger,
	}
}

// HandleVoice is called on every voice state change. It cancels whatever step
// was pending for the member and schedules a fresh warning only if the new
// state is camera-off inside a strict channel.
func (e *CameraEnforcer) HandleVoice(userID, channelID string, cameraOn bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelLocked(userID)

	if channelID == "" || cameraOn {
		return
	}
	if _, strict := e.strict[channelID]; !strict {
		return
	}

	// A cancelled timer may already be running its callback; the callback
	// checks pointer identity against the pending map so a stale fire is a
	// no-op.
	state := &enforceState{}
	e.pending[userID] = state
	state.timer = e.clock.AfterFunc(e.warnDelay, func() {
		e.fireWarn(userID, state)
	})
}

// Pending reports whether an escalation is scheduled for the member.
func (e *CameraEnforcer) Pending(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pending[userID]
	return ok
}

func (e *CameraEnforcer) fireWarn(userID string, state *enforceState) {
	e.mu.Lock()
	if e.pending[userID] != state {
		e.mu.Unlock()
		return
	}
	state.warned = true
	state.timer = e.clock.AfterFunc(e.disconnectDelay, func() {
		e.fireDisconnect(userID, state)
	})
	e.mu.Unlock()

	if err := e.actions.Warn(userID); err != nil {
		e.logger.Warn("camera warning failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (e *CameraEnforcer) fireDisconnect(userID string, state *enforceState) {
	e.mu.Lock()
	if e.pending[userID] != state {
		e.mu.Unlock()
		return
	}
	delete(e.pending, userID)
	e.mu.Unlock()

	if err := e.actions.Disconnect(userID); err != nil {
		e.logger.Warn("camera disconnect failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (e *CameraEnforcer) cancelLocked(userID string) {
	state, ok := e.pending[userID]
	if !ok {
		return
	}
	if state.timer != nil {
		state.timer.Stop()
	}
	delete(e.pending, userID)
}
