package moderation

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"studyguard/internal/utils"
)

// Finding classifies a single inspected message. DangerousAttachment is the
// only finding that escalates straight to a ban; everything else goes through
// the strike tracker.
type Finding int

const (
	Clean Finding = iota
	SpamBurst
	MassMention
	InviteLink
	DangerousAttachment
)

func (f Finding) String() string {
	switch f {
	case SpamBurst:
		return "spam burst"
	case MassMention:
		return "mass mention"
	case InviteLink:
		return "invite link"
	case DangerousAttachment:
		return "dangerous attachment"
	default:
		return "clean"
	}
}

var dangerousExtensions = map[string]struct{}{
	".exe": {}, ".bat": {}, ".cmd": {}, ".msi": {}, ".apk": {},
	".jar": {}, ".vbs": {}, ".scr": {}, ".ps1": {}, ".hta": {},
}

var invitePrefixes = []string{
	"discord.gg/",
	"discord.com/invite/",
	"discordapp.com/invite/",
}

// Message is the slice of a message the detector cares about.
type Message struct {
	AuthorID         string
	Content          string
	MentionCount     int
	MentionsEveryone bool
	Attachments      []string
}

// Detector inspects messages for abuse. It keeps one sliding window per
// author for burst detection; the window is cleared when a burst triggers so
// the same burst is not reported twice.
type Detector struct {
	mu      sync.Mutex
	windows map[string]*utils.SlidingWindow

	maxMessages int
	window      time.Duration
	maxMentions int
}

func NewDetector(maxMessages int, window time.Duration, maxMentions int) *Detector {
	return &Detector{
		windows:     make(map[string]*utils.SlidingWindow),
		maxMessages: maxMessages,
		window:      window,
		maxMentions: maxMentions,
	}
}

func (d *Detector) Inspect(msg Message, now time.Time) Finding {
	// Every message counts toward the author's burst window, even ones
	// flagged for a different reason.
	window := d.windowFor(msg.AuthorID)
	count := window.Add(now)

	for _, name := range msg.Attachments {
		ext := strings.ToLower(filepath.Ext(name))
		if _, bad := dangerousExtensions[ext]; bad {
			return DangerousAttachment
		}
	}

	if msg.MentionsEveryone || msg.MentionCount > d.maxMentions {
		return MassMention
	}

	if containsInvite(msg.Content) {
		return InviteLink
	}

	if count > d.maxMessages {
		window.Clear()
		return SpamBurst
	}
	return Clean
}

func (d *Detector) windowFor(userID string) *utils.SlidingWindow {
	d.mu.Lock()
	defer d.mu.Unlock()
	window, ok := d.windows[userID]
	if !ok {
		window = utils.NewSlidingWindow(d.window)
		d.windows[userID] = window
	}
	return window
}

func containsInvite(content string) bool {
	lowered := strings.ToLower(content)
	for _, prefix := range invitePrefixes {
		if strings.Contains(lowered, prefix) {
			return true
		}
	}
	return false
}
