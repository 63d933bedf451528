package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"studyguard/internal/leaderboard"
	"studyguard/internal/todo"
)

func (b *Bot) startTasks() {
	b.runEvery(time.Duration(b.cfg.Voice.FlushSeconds)*time.Second, b.reconcileVoice)
	b.runEvery(time.Duration(b.cfg.Nuke.PollSeconds)*time.Second, b.pollAuditLog)
	b.runEvery(time.Duration(b.cfg.Todo.SweepMinutes)*time.Minute, b.sweepTodos)
	b.runEvery(time.Hour, b.sweepWebhooks)

	b.wg.Add(1)
	go b.runDaily()
}

func (b *Bot) runEvery(interval time.Duration, task func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				task(context.Background())
			case <-b.stop:
				return
			}
		}
	}()
}

func (b *Bot) reconcileVoice(ctx context.Context) {
	if err := b.ledger.Reconcile(ctx, guildPresence{b: b}); err != nil {
		b.logger.Warn("voice reconcile failed", zap.Error(err))
	}
}

// pollAuditLog is the safety net behind the gateway handlers: entries missed
// while the bot was down or rate limited are judged here. Already-seen
// entries are deduped by the classifier.
func (b *Bot) pollAuditLog(ctx context.Context) {
	_ = ctx
	kinds := []discordgo.AuditLogAction{
		discordgo.AuditLogActionChannelDelete,
		discordgo.AuditLogActionRoleDelete,
		discordgo.AuditLogActionMemberBanAdd,
		discordgo.AuditLogActionWebhookCreate,
	}
	now := time.Now()
	for _, kind := range kinds {
		entries, err := b.fetchAuditEntries(kind, 10)
		if err != nil {
			b.logger.Warn("audit poll failed", zap.Int("action", int(kind)), zap.Error(err))
			continue
		}
		for _, entry := range entries {
			b.executeDecision(entry, b.classifier.Classify(entry, now))
		}
	}
}

// sweepWebhooks deletes every webhook that is not on the trusted list.
func (b *Bot) sweepWebhooks(ctx context.Context) {
	_ = ctx
	hooks, err := b.session.GuildWebhooks(b.cfg.GuildID)
	if err != nil {
		b.logger.Warn("webhook listing failed", zap.Error(err))
		return
	}
	trusted := make(map[string]struct{}, len(b.cfg.Nuke.TrustedWebhooks))
	for _, id := range b.cfg.Nuke.TrustedWebhooks {
		trusted[id] = struct{}{}
	}
	for _, hook := range hooks {
		if _, ok := trusted[hook.ID]; ok {
			continue
		}
		if err := b.session.WebhookDelete(hook.ID); err != nil {
			b.logger.Warn("webhook sweep delete failed", zap.String("webhook_id", hook.ID), zap.Error(err))
			continue
		}
		b.alert("Deleted untrusted webhook `%s` in <#%s>.", hook.Name, hook.ChannelID)
	}
}

func (b *Bot) sweepTodos(ctx context.Context) {
	active, err := b.store.ListActiveMembers(ctx)
	if err != nil {
		b.logger.Warn("active member listing failed", zap.Error(err))
		return
	}
	todos, err := b.store.ListTodos(ctx)
	if err != nil {
		b.logger.Warn("todo listing failed", zap.Error(err))
		return
	}
	lastSubmit := make(map[string]time.Time, len(todos))
	for _, entry := range todos {
		lastSubmit[entry.UserID] = entry.LastSubmit
	}

	pingAfter := time.Duration(b.cfg.Todo.PingAfterHours) * time.Hour
	stripAfter := time.Duration(b.cfg.Todo.RoleStripAfterDays) * 24 * time.Hour

	for _, action := range todo.Evaluate(active, lastSubmit, time.Now(), pingAfter, stripAfter) {
		if action.StripRole && b.cfg.Todo.RoleID != "" {
			err := b.session.GuildMemberRoleRemove(b.cfg.GuildID, action.UserID, b.cfg.Todo.RoleID)
			if err != nil {
				b.logger.Warn("todo role strip failed", zap.String("user_id", action.UserID), zap.Error(err))
			}
			if err := b.store.RemoveActiveMember(ctx, action.UserID); err != nil {
				b.logger.Warn("active member removal failed", zap.String("user_id", action.UserID), zap.Error(err))
			}
			b.todoMessage("<@%s> lost the active role: no todo submitted for %d days.", action.UserID, b.cfg.Todo.RoleStripAfterDays)
			continue
		}
		if action.Ping {
			b.todoMessage("<@%s> reminder: submit your daily todo with /todo.", action.UserID)
		}
	}
}

func (b *Bot) todoMessage(format string, args ...interface{}) {
	channelID := b.cfg.Channels.Todo
	if channelID == "" {
		channelID = b.cfg.Channels.Alert
	}
	if channelID == "" {
		return
	}
	if _, err := b.session.ChannelMessageSend(channelID, fmt.Sprintf(format, args...)); err != nil {
		b.logger.Warn("todo message send failed", zap.Error(err))
	}
}

// runDaily posts the automatic leaderboard at 23:55 local time and performs
// the daily reset at midnight.
func (b *Bot) runDaily() {
	defer b.wg.Done()
	for {
		now := time.Now().In(b.location)
		boardAt := nextDailyTick(now, 23, 55, b.location)
		resetAt := nextDailyTick(now, 0, 0, b.location)

		next := boardAt
		isReset := false
		if resetAt.Before(boardAt) {
			next = resetAt
			isReset = true
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-timer.C:
			if isReset {
				b.dailyReset(context.Background())
			} else {
				b.postAutoLeaderboard(context.Background())
			}
		case <-b.stop:
			timer.Stop()
			return
		}
	}
}

func nextDailyTick(now time.Time, hour, minute int, location *time.Location) time.Time {
	tick := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, location)
	if !tick.After(now) {
		tick = tick.Add(24 * time.Hour)
	}
	return tick
}

func (b *Bot) postAutoLeaderboard(ctx context.Context) {
	if b.cfg.Channels.Leaderboard == "" {
		return
	}
	// Flush first so the posted board includes minutes still sitting in open
	// sessions.
	b.reconcileVoice(ctx)

	text, err := b.renderBoards(ctx, false)
	if err != nil {
		b.logger.Warn("auto leaderboard render failed", zap.Error(err))
		return
	}
	if _, err := b.session.ChannelMessageSend(b.cfg.Channels.Leaderboard, text); err != nil {
		b.logger.Warn("auto leaderboard post failed", zap.Error(err))
	}
}

func (b *Bot) renderBoards(ctx context.Context, yesterday bool) (string, error) {
	day := "Today"
	if yesterday {
		day = "Yesterday"
	}
	camOn, err := b.board.Top(ctx, true, yesterday, 10)
	if err != nil {
		return "", err
	}
	camOff, err := b.board.Top(ctx, false, yesterday, 10)
	if err != nil {
		return "", err
	}
	return leaderboard.Render("Study Leaderboard ("+day+", camera on)", camOn) +
		"\n\n" +
		leaderboard.Render("Study Leaderboard ("+day+", camera off)", camOff), nil
}

func (b *Bot) dailyReset(ctx context.Context) {
	// Settle open sessions so the outgoing day gets its final minutes before
	// the counters roll over.
	b.reconcileVoice(ctx)

	if err := b.store.DailyReset(ctx); err != nil {
		b.logger.Error("daily reset failed", zap.Error(err))
		return
	}
	b.board.Rotate(ctx)
	b.logger.Info("daily study counters rolled over")
}
