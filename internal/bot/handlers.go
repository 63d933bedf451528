package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"studyguard/internal/moderation"
	"studyguard/internal/utils"
	"studyguard/internal/voice"
)

func (b *Bot) onVoiceStateUpdate(session *discordgo.Session, event *discordgo.VoiceStateUpdate) {
	if event.GuildID != b.cfg.GuildID || event.UserID == b.botUserID() {
		return
	}
	if event.Member != nil && event.Member.User != nil && event.Member.User.Bot {
		return
	}

	ctx := context.Background()

	// Streaming without a camera does not count as camera-on.
	cameraOn := event.SelfVideo

	b.ledger.HandlePresence(ctx, event.UserID, voice.State{ChannelID: event.ChannelID, CameraOn: cameraOn})
	b.enforcer.HandleVoice(event.UserID, event.ChannelID, cameraOn)

	if event.BeforeUpdate != nil && event.BeforeUpdate.ChannelID != "" &&
		event.ChannelID != "" && event.ChannelID != event.BeforeUpdate.ChannelID {
		b.recordHop(ctx, event.UserID)
	}
}

// recordHop counts channel moves; crossing the threshold disconnects the
// member and times them out.
func (b *Bot) recordHop(ctx context.Context, userID string) {
	_ = ctx
	b.hopsMu.Lock()
	window, ok := b.hops[userID]
	if !ok {
		window = utils.NewSlidingWindow(time.Duration(b.cfg.Voice.HopWindowSeconds) * time.Second)
		b.hops[userID] = window
	}
	b.hopsMu.Unlock()

	if window.Add(time.Now()) <= b.cfg.Voice.HopThreshold {
		return
	}
	window.Clear()

	if err := b.session.GuildMemberMove(b.cfg.GuildID, userID, nil); err != nil {
		b.logger.Warn("hop disconnect failed", zap.String("user_id", userID), zap.Error(err))
	}
	until := time.Now().Add(time.Duration(b.cfg.Voice.HopTimeoutMinutes) * time.Minute)
	if err := b.session.GuildMemberTimeout(b.cfg.GuildID, userID, &until); err != nil {
		b.logger.Warn("hop timeout failed", zap.String("user_id", userID), zap.Error(err))
	}
	b.alert("<@%s> disconnected for voice channel hopping.", userID)
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.GuildID == "" {
		b.forwardDirectMessage(msg)
		return
	}
	if msg.GuildID != b.cfg.GuildID {
		return
	}
	if msg.WebhookID != "" {
		b.handleWebhookMessage(session, msg)
		return
	}
	if msg.Author == nil || msg.Author.Bot {
		return
	}

	ctx := context.Background()

	if err := b.store.IncrementMessageCount(ctx, msg.Author.ID); err != nil {
		b.logger.Warn("message count increment failed", zap.Error(err))
	}

	attachments := make([]string, 0, len(msg.Attachments))
	for _, attachment := range msg.Attachments {
		attachments = append(attachments, attachment.Filename)
	}

	finding := b.detector.Inspect(moderation.Message{
		AuthorID:         msg.Author.ID,
		Content:          msg.Content,
		MentionCount:     len(msg.Mentions),
		MentionsEveryone: msg.MentionEveryone || len(msg.MentionRoles) > 0,
		Attachments:      attachments,
	}, time.Now())
	if finding == moderation.Clean {
		return
	}
	if b.strikes.Exempt(msg.Author.ID) {
		return
	}

	if err := session.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
		b.logger.Warn("message delete failed", zap.Error(err))
	}

	if finding == moderation.DangerousAttachment {
		if err := session.GuildBanCreateWithReason(b.cfg.GuildID, msg.Author.ID, "dangerous attachment", 1); err != nil {
			b.logger.Error("threat ban failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
			return
		}
		b.alert("Banned <@%s>: dangerous attachment.", msg.Author.ID)
		return
	}

	switch b.strikes.Record(msg.Author.ID, time.Now()) {
	case moderation.PenaltyTimeout:
		until := time.Now().Add(time.Duration(b.cfg.Strikes.TimeoutSeconds) * time.Second)
		if err := session.GuildMemberTimeout(b.cfg.GuildID, msg.Author.ID, &until); err != nil {
			b.logger.Warn("strike timeout failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
		}
		b.alert("<@%s> timed out: %s.", msg.Author.ID, finding)
	case moderation.PenaltyBan:
		if err := session.GuildBanCreateWithReason(b.cfg.GuildID, msg.Author.ID, "repeated abuse: "+finding.String(), 1); err != nil {
			b.logger.Error("strike ban failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
			return
		}
		b.alert("Banned <@%s>: repeated abuse.", msg.Author.ID)
	}
}

// forwardDirectMessage relays member DMs to the alert channel so the owner
// sees them without sharing their own DMs.
func (b *Bot) forwardDirectMessage(msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot || msg.Author.ID == b.cfg.OwnerID {
		return
	}
	if msg.Content == "" {
		return
	}
	b.alert("DM from %s (<@%s>):\n%s", msg.Author.Username, msg.Author.ID, truncate(msg.Content, 1800))
}

// handleWebhookMessage removes ghost-webhook content: any message posted by
// a webhook that is not on the trusted list is deleted along with the
// webhook itself.
func (b *Bot) handleWebhookMessage(session *discordgo.Session, msg *discordgo.MessageCreate) {
	for _, id := range b.cfg.Nuke.TrustedWebhooks {
		if id == msg.WebhookID {
			return
		}
	}
	if err := session.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
		b.logger.Warn("webhook message delete failed", zap.Error(err))
	}
	if err := session.WebhookDelete(msg.WebhookID); err != nil {
		b.logger.Warn("rogue webhook delete failed", zap.String("webhook_id", msg.WebhookID), zap.Error(err))
	}
	b.alert("Deleted untrusted webhook message in <#%s>.", msg.ChannelID)
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.GuildID != b.cfg.GuildID || event.User == nil {
		return
	}

	ctx := context.Background()

	listed, err := b.store.IsRedlisted(ctx, event.User.ID)
	if err != nil {
		b.logger.Warn("redlist lookup failed", zap.Error(err))
	}
	if listed {
		if err := session.GuildBanCreateWithReason(b.cfg.GuildID, event.User.ID, "redlisted", 0); err != nil {
			b.logger.Error("redlist ban failed", zap.String("user_id", event.User.ID), zap.Error(err))
		}
		return
	}

	if event.User.Bot {
		if !b.botWhitelisted(event.User.ID) {
			if err := session.GuildBanCreateWithReason(b.cfg.GuildID, event.User.ID, "unauthorized bot", 0); err != nil {
				b.logger.Error("bot ban failed", zap.String("user_id", event.User.ID), zap.Error(err))
			}
			b.alert("Banned unauthorized bot <@%s>.", event.User.ID)
		}
		return
	}

	fresh, cohort := b.raid.RecordJoin(event.User.ID, time.Now())
	if len(cohort) == 0 {
		return
	}
	if fresh {
		if _, err := b.lockdown.Engage(ctx, "join raid"); err != nil {
			b.logger.Error("raid lockdown failed", zap.Error(err))
		}
		b.alert("Join raid detected, banning %d accounts. Guild locked down.", len(cohort))
	}
	for _, userID := range cohort {
		if err := session.GuildBanCreateWithReason(b.cfg.GuildID, userID, "join raid", 0); err != nil {
			b.logger.Warn("raid ban failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

func (b *Bot) botWhitelisted(userID string) bool {
	for _, id := range b.cfg.WhitelistedBots {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *Bot) onChannelDelete(session *discordgo.Session, event *discordgo.ChannelDelete) {
	if event.Channel == nil || event.Channel.GuildID != b.cfg.GuildID {
		return
	}
	b.judgeAudit(discordgo.AuditLogActionChannelDelete)
}

func (b *Bot) onGuildRoleDelete(session *discordgo.Session, event *discordgo.GuildRoleDelete) {
	if event.GuildID != b.cfg.GuildID {
		return
	}
	b.judgeAudit(discordgo.AuditLogActionRoleDelete)
}

func (b *Bot) onGuildBanAdd(session *discordgo.Session, event *discordgo.GuildBanAdd) {
	if event.GuildID != b.cfg.GuildID {
		return
	}
	b.judgeAudit(discordgo.AuditLogActionMemberBanAdd)
}

func (b *Bot) onWebhooksUpdate(session *discordgo.Session, event *discordgo.WebhooksUpdate) {
	if event.GuildID != b.cfg.GuildID {
		return
	}
	b.judgeAudit(discordgo.AuditLogActionWebhookCreate)
}

// judgeAudit resolves the latest audit entry of the given kind and runs it
// through the nuke classifier. The poll sweep feeds the same entries again;
// classifier dedup keeps that harmless.
func (b *Bot) judgeAudit(auditAction discordgo.AuditLogAction) {
	entries, err := b.fetchAuditEntries(auditAction, 1)
	if err != nil {
		b.logger.Warn("audit log fetch failed", zap.Error(err))
		return
	}
	for _, entry := range entries {
		b.executeDecision(entry, b.classifier.Classify(entry, time.Now()))
	}
}

func (b *Bot) fetchAuditEntries(auditAction discordgo.AuditLogAction, limit int) ([]moderation.AuditEntry, error) {
	log, err := b.session.GuildAuditLog(b.cfg.GuildID, "", "", int(auditAction), limit)
	if err != nil {
		return nil, err
	}
	entries := make([]moderation.AuditEntry, 0, len(log.AuditLogEntries))
	for _, raw := range log.AuditLogEntries {
		if raw.UserID == b.botUserID() {
			continue
		}
		action, ok := mapAuditAction(raw.ActionType)
		if !ok {
			continue
		}
		entries = append(entries, moderation.AuditEntry{
			ID:       raw.ID,
			Action:   action,
			ActorID:  raw.UserID,
			TargetID: raw.TargetID,
		})
	}
	return entries, nil
}

func mapAuditAction(action *discordgo.AuditLogAction) (moderation.AuditAction, bool) {
	if action == nil {
		return 0, false
	}
	switch *action {
	case discordgo.AuditLogActionChannelDelete:
		return moderation.ActionChannelDelete, true
	case discordgo.AuditLogActionRoleDelete:
		return moderation.ActionRoleDelete, true
	case discordgo.AuditLogActionMemberBanAdd:
		return moderation.ActionBanAdd, true
	case discordgo.AuditLogActionWebhookCreate:
		return moderation.ActionWebhookCreate, true
	default:
		return 0, false
	}
}

func (b *Bot) executeDecision(entry moderation.AuditEntry, decision moderation.Decision) {
	ctx := context.Background()

	if decision.BanActor {
		err := b.session.GuildBanCreateWithReason(b.cfg.GuildID, entry.ActorID, decision.Reason, 0)
		if err != nil {
			b.logger.Error("nuker ban failed, engaging lockdown",
				zap.String("actor_id", entry.ActorID), zap.Error(err))
			if _, lockErr := b.lockdown.Engage(ctx, "nuker ban failed"); lockErr != nil {
				b.logger.Error("lockdown engage failed", zap.Error(lockErr))
			}
			b.alert("Could not ban <@%s> (%s). Guild locked down.", entry.ActorID, decision.Reason)
		} else {
			b.alert("Banned <@%s>: %s.", entry.ActorID, decision.Reason)
		}
	}

	if decision.UnbanTarget {
		if err := b.session.GuildBanDelete(b.cfg.GuildID, entry.TargetID); err != nil {
			b.logger.Warn("victim unban failed", zap.String("user_id", entry.TargetID), zap.Error(err))
		}
	}

	if decision.DeleteWebhook {
		if err := b.session.WebhookDelete(entry.TargetID); err != nil {
			b.logger.Warn("webhook delete failed", zap.String("webhook_id", entry.TargetID), zap.Error(err))
		}
	}
}
