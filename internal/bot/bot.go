package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"studyguard/internal/config"
	"studyguard/internal/leaderboard"
	"studyguard/internal/moderation"
	"studyguard/internal/storage"
	"studyguard/internal/utils"
	"studyguard/internal/voice"
)

type Bot struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *storage.Store
	session *discordgo.Session

	ledger     *voice.SessionLedger
	enforcer   *voice.CameraEnforcer
	detector   *moderation.Detector
	strikes    *moderation.StrikeTracker
	classifier *moderation.Classifier
	raid       *moderation.RaidDetector
	lockdown   *moderation.LockdownController
	board      *leaderboard.Board

	hopsMu sync.Mutex
	hops   map[string]*utils.SlidingWindow

	lockMu       sync.Mutex
	lockSnapshot map[string]channelSnapshot

	location *time.Location
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, board *leaderboard.Board) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsGuildWebhooks |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsDirectMessages

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	b := &Bot{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		session:      session,
		board:        board,
		hops:         make(map[string]*utils.SlidingWindow),
		lockSnapshot: make(map[string]channelSnapshot),
		location:     location,
		stop:         make(chan struct{}),
	}

	clock := voice.NewRealClock()
	b.ledger = voice.NewSessionLedger(
		&retryAccumulator{store: store, board: board, logger: logger},
		cfg.Voice.ExcludedChannel,
		clock,
		logger,
	)
	b.enforcer = voice.NewCameraEnforcer(
		cfg.Voice.StrictChannels,
		time.Duration(cfg.Voice.WarnDelaySeconds)*time.Second,
		time.Duration(cfg.Voice.DisconnectDelaySeconds)*time.Second,
		camActions{b: b},
		clock,
		logger,
	)
	b.detector = moderation.NewDetector(
		cfg.Spam.Messages,
		time.Duration(cfg.Spam.WindowSeconds)*time.Second,
		cfg.Spam.MaxMentions,
	)
	b.strikes = moderation.NewStrikeTracker(
		time.Duration(cfg.Strikes.WindowSeconds)*time.Second,
		append([]string{cfg.OwnerID}, cfg.Nuke.TrustedUsers...),
	)
	trusted := make(map[string]struct{}, len(cfg.Nuke.TrustedUsers)+len(cfg.WhitelistedBots))
	for _, id := range cfg.Nuke.TrustedUsers {
		trusted[id] = struct{}{}
	}
	for _, id := range cfg.WhitelistedBots {
		trusted[id] = struct{}{}
	}
	b.classifier = moderation.NewClassifier(
		moderation.Whitelist{OwnerID: cfg.OwnerID, Trusted: trusted},
		time.Duration(cfg.Nuke.SuppressSeconds)*time.Second,
		cfg.Nuke.CacheSize,
	)
	b.raid = moderation.NewRaidDetector(cfg.Raid.Joins, time.Duration(cfg.Raid.WindowSeconds)*time.Second)
	b.lockdown = moderation.NewLockdownController(cfg.GuildID, cfg.OwnerID, channelGate{b: b}, store, logger)

	return b, nil
}

func (b *Bot) Start() error {
	b.lockdown.Restore(context.Background())

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onVoiceStateUpdate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onChannelDelete)
	b.session.AddHandler(b.onGuildRoleDelete)
	b.session.AddHandler(b.onGuildBanAdd)
	b.session.AddHandler(b.onWebhooksUpdate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.startTasks()

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	close(b.stop)
	b.wg.Wait()

	// Settle open sessions so minutes accrued since the last sweep survive
	// the restart.
	if err := b.ledger.Reconcile(ctx, emptyRoster{}); err != nil {
		b.logger.Warn("final ledger settle failed", zap.Error(err))
	}

	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) botUserID() string {
	if b.session.State != nil && b.session.State.User != nil {
		return b.session.State.User.ID
	}
	return ""
}

func (b *Bot) alert(format string, args ...interface{}) {
	if b.cfg.Channels.Alert == "" {
		return
	}
	if _, err := b.session.ChannelMessageSend(b.cfg.Channels.Alert, fmt.Sprintf(format, args...)); err != nil {
		b.logger.Warn("alert send failed", zap.Error(err))
	}
}

// retryAccumulator writes credited minutes through to sqlite with a short
// exponential backoff, then mirrors them into the redis board. The board
// mirror is best effort.
type retryAccumulator struct {
	store  *storage.Store
	board  *leaderboard.Board
	logger *zap.Logger
}

func (a *retryAccumulator) AddVoiceMinutes(ctx context.Context, userID string, cameraOn bool, minutes int) error {
	operation := func() error {
		return a.store.AddVoiceMinutes(ctx, userID, cameraOn, minutes)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return err
	}
	a.board.AddMinutes(ctx, userID, cameraOn, minutes)
	return nil
}

// camActions delivers enforcement effects: a DM warning and a voice
// disconnect.
type camActions struct {
	b *Bot
}

func (a camActions) Warn(userID string) error {
	channel, err := a.b.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = a.b.session.ChannelMessageSend(channel.ID,
		"Please turn your camera on. This voice channel requires cameras; you will be disconnected if it stays off.")
	return err
}

func (a camActions) Disconnect(userID string) error {
	return a.b.session.GuildMemberMove(a.b.cfg.GuildID, userID, nil)
}

// channelSnapshot remembers a channel's @everyone overwrite from before the
// lockdown, so lifting restores exactly what was there.
type channelSnapshot struct {
	allow   int64
	deny    int64
	hasPerm bool
}

const lockdownDeny = int64(discordgo.PermissionSendMessages |
	discordgo.PermissionVoiceConnect |
	discordgo.PermissionVoiceSpeak)

// channelGate applies the lockdown by stripping send/connect/speak from
// @everyone in every channel.
type channelGate struct {
	b *Bot
}

func (g channelGate) Lock(ctx context.Context) error {
	_ = ctx
	channels, err := g.b.session.GuildChannels(g.b.cfg.GuildID)
	if err != nil {
		return err
	}

	g.b.lockMu.Lock()
	defer g.b.lockMu.Unlock()

	for _, channel := range channels {
		snapshot := channelSnapshot{}
		allow, deny := int64(0), lockdownDeny
		for _, overwrite := range channel.PermissionOverwrites {
			if overwrite.Type == discordgo.PermissionOverwriteTypeRole && overwrite.ID == g.b.cfg.GuildID {
				snapshot = channelSnapshot{allow: overwrite.Allow, deny: overwrite.Deny, hasPerm: true}
				allow = overwrite.Allow &^ lockdownDeny
				deny = overwrite.Deny | lockdownDeny
				break
			}
		}
		err := g.b.session.ChannelPermissionSet(channel.ID, g.b.cfg.GuildID,
			discordgo.PermissionOverwriteTypeRole, allow, deny)
		if err != nil {
			g.b.logger.Warn("lockdown deny failed", zap.String("channel_id", channel.ID), zap.Error(err))
			continue
		}
		g.b.lockSnapshot[channel.ID] = snapshot
	}
	return nil
}

func (g channelGate) Unlock(ctx context.Context) error {
	_ = ctx
	channels, err := g.b.session.GuildChannels(g.b.cfg.GuildID)
	if err != nil {
		return err
	}

	g.b.lockMu.Lock()
	defer g.b.lockMu.Unlock()

	for _, channel := range channels {
		snapshot, ok := g.b.lockSnapshot[channel.ID]
		if ok && snapshot.hasPerm {
			err = g.b.session.ChannelPermissionSet(channel.ID, g.b.cfg.GuildID,
				discordgo.PermissionOverwriteTypeRole, snapshot.allow, snapshot.deny)
		} else {
			// No overwrite existed before the lockdown (or the lockdown
			// predates this process); drop ours entirely.
			err = g.b.session.ChannelPermissionDelete(channel.ID, g.b.cfg.GuildID)
		}
		if err != nil {
			g.b.logger.Warn("lockdown lift failed", zap.String("channel_id", channel.ID), zap.Error(err))
			continue
		}
		delete(g.b.lockSnapshot, channel.ID)
	}
	return nil
}

// guildPresence adapts the session state cache into a voice roster.
type guildPresence struct {
	b *Bot
}

func (p guildPresence) VoiceStates() ([]voice.Presence, error) {
	guild, err := p.b.session.State.Guild(p.b.cfg.GuildID)
	if err != nil {
		return nil, err
	}
	roster := make([]voice.Presence, 0, len(guild.VoiceStates))
	for _, state := range guild.VoiceStates {
		if state.UserID == p.b.botUserID() {
			continue
		}
		roster = append(roster, voice.Presence{
			UserID:    state.UserID,
			ChannelID: state.ChannelID,
			CameraOn:  state.SelfVideo,
		})
	}
	return roster, nil
}

// emptyRoster settles every open session, used on shutdown.
type emptyRoster struct{}

func (emptyRoster) VoiceStates() ([]voice.Presence, error) { return nil, nil }
