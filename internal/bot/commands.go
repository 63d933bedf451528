package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"studyguard/internal/leaderboard"
	"studyguard/internal/moderation"
	"studyguard/internal/storage"
)

func (b *Bot) registerCommands() error {
	userOption := func(name, description string, required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        name,
			Description: description,
			Required:    required,
		}
	}

	commands := []*discordgo.ApplicationCommand{
		{Name: "lb", Description: "Show today's study leaderboard"},
		{Name: "ylb", Description: "Show yesterday's study leaderboard"},
		{
			Name:        "mystatus",
			Description: "Show your study time and rank for today",
		},
		{
			Name:        "yst",
			Description: "Show yesterday's study time",
			Options:     []*discordgo.ApplicationCommandOption{userOption("user", "Member to look up (defaults to you)", false)},
		},
		{
			Name:        "redban",
			Description: "Redlist and ban a user",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "User to redlist", true),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Ban reason",
					Required:    false,
				},
			},
		},
		{
			Name:        "removeredban",
			Description: "Remove a user from the redlist and unban them",
			Options:     []*discordgo.ApplicationCommandOption{userOption("user", "User to clear", true)},
		},
		{Name: "redlist", Description: "Show the redlist"},
		{
			Name:        "addh",
			Description: "Add a member to the active list and grant the role",
			Options:     []*discordgo.ApplicationCommandOption{userOption("user", "Member to add", true)},
		},
		{
			Name:        "remh",
			Description: "Remove a member from the active list and strip the role",
			Options:     []*discordgo.ApplicationCommandOption{userOption("user", "Member to remove", true)},
		},
		{Name: "members", Description: "List active members"},
		{
			Name:        "todo",
			Description: "Submit your daily todo",
			Options:     []*discordgo.ApplicationCommandOption{userOption("user", "Submit on behalf of a member (owner only)", false)},
		},
		{Name: "listtodo", Description: "Show your current todo"},
		{Name: "deltodo", Description: "Clear your current todo"},
		{Name: "todostatus", Description: "Show submission status for all active members"},
		{Name: "liftlock", Description: "Lift the guild lockdown (owner only)"},
		{
			Name:        "ck",
			Description: "Disconnect a member from voice",
			Options:     []*discordgo.ApplicationCommandOption{userOption("user", "Member to disconnect", true)},
		},
		{
			Name:        "bn",
			Description: "Ban a member",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "Member to ban", true),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Ban reason",
					Required:    false,
				},
			},
		},
		{
			Name:        "msz",
			Description: "Post an announcement to a channel (owner only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Target channel",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "Announcement text",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role to ping",
					Required:    false,
				},
			},
		},
		{
			Name:        "mz",
			Description: "Send an anonymous DM to a member (owner only)",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "Member to message", true),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "Message text",
					Required:    true,
				},
			},
		},
		{
			Name:        "ud",
			Description: "Show a member's details (owner only)",
			Options:     []*discordgo.ApplicationCommandOption{userOption("user", "Member to look up", true)},
		},
	}

	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, commands)
	return err
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(session, interaction)
	case discordgo.InteractionModalSubmit:
		b.handleModal(session, interaction)
	}
}

func interactionUserID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

func (b *Bot) handleCommand(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.GuildID != b.cfg.GuildID {
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	callerID := interactionUserID(interaction)

	switch data.Name {
	case "lb":
		b.respondBoards(ctx, session, interaction, false)
	case "ylb":
		b.respondBoards(ctx, session, interaction, true)
	case "mystatus":
		b.respondStatus(ctx, session, interaction, callerID)
	case "yst":
		targetID := callerID
		if user := optionUser(data.Options, session, "user"); user != nil {
			targetID = user.ID
		}
		b.respondYesterday(ctx, session, interaction, targetID)
	case "redban":
		b.handleRedban(ctx, session, interaction, data, callerID)
	case "removeredban":
		b.handleRemoveRedban(ctx, session, interaction, data, callerID)
	case "redlist":
		b.respondRedlist(ctx, session, interaction)
	case "addh":
		b.handleAddActive(ctx, session, interaction, data, callerID)
	case "remh":
		b.handleRemoveActive(ctx, session, interaction, data, callerID)
	case "members":
		b.respondMembers(ctx, session, interaction)
	case "todo":
		targetID := callerID
		if user := optionUser(data.Options, session, "user"); user != nil && user.ID != callerID {
			if !b.requireOwner(session, interaction, callerID) {
				return
			}
			targetID = user.ID
		}
		b.openTodoModal(ctx, session, interaction, targetID)
	case "listtodo":
		b.respondTodo(ctx, session, interaction, callerID)
	case "deltodo":
		b.handleDeleteTodo(ctx, session, interaction, callerID)
	case "todostatus":
		b.respondTodoStatus(ctx, session, interaction, callerID)
	case "liftlock":
		b.handleLiftLock(ctx, session, interaction, callerID)
	case "ck":
		b.handleVoiceKick(session, interaction, data, callerID)
	case "bn":
		b.handleBan(session, interaction, data, callerID)
	case "msz":
		b.handleAnnounce(session, interaction, data, callerID)
	case "mz":
		b.handleAnonymousDM(session, interaction, data, callerID)
	case "ud":
		b.respondUserDetails(ctx, session, interaction, data, callerID)
	}
}

func optionUser(options []*discordgo.ApplicationCommandInteractionDataOption, session *discordgo.Session, name string) *discordgo.User {
	for _, option := range options {
		if option.Name == name && option.Type == discordgo.ApplicationCommandOptionUser {
			return option.UserValue(session)
		}
	}
	return nil
}

func optionString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, option := range options {
		if option.Name == name && option.Type == discordgo.ApplicationCommandOptionString {
			return option.StringValue()
		}
	}
	return ""
}

func optionChannel(options []*discordgo.ApplicationCommandInteractionDataOption, session *discordgo.Session, name string) *discordgo.Channel {
	for _, option := range options {
		if option.Name == name && option.Type == discordgo.ApplicationCommandOptionChannel {
			return option.ChannelValue(session)
		}
	}
	return nil
}

func optionRole(options []*discordgo.ApplicationCommandInteractionDataOption, session *discordgo.Session, guildID, name string) *discordgo.Role {
	for _, option := range options {
		if option.Name == name && option.Type == discordgo.ApplicationCommandOptionRole {
			return option.RoleValue(session, guildID)
		}
	}
	return nil
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: flags},
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) requireOwner(session *discordgo.Session, interaction *discordgo.InteractionCreate, callerID string) bool {
	if callerID == b.cfg.OwnerID {
		return true
	}
	b.respond(session, interaction, "Only the guild owner can use this command.", true)
	return false
}

func (b *Bot) respondBoards(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, yesterday bool) {
	if !yesterday {
		// Flush open sessions so the board reflects time up to this moment.
		b.reconcileVoice(ctx)
	}
	text, err := b.renderBoards(ctx, yesterday)
	if err != nil {
		b.respond(session, interaction, "Leaderboard is unavailable right now.", true)
		return
	}
	b.respond(session, interaction, text, false)
}

func (b *Bot) respondStatus(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, userID string) {
	b.reconcileVoice(ctx)

	account, err := b.store.GetAccount(ctx, userID)
	if err != nil {
		b.respond(session, interaction, "Could not load your study record.", true)
		return
	}
	rank, err := b.board.Rank(ctx, userID)
	if err != nil {
		b.respond(session, interaction, "Could not load your study record.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf(
		"Today: %s camera on, %s camera off. Rank #%d. Messages sent: %d.",
		leaderboard.FormatMinutes(account.CamOnMinutes),
		leaderboard.FormatMinutes(account.CamOffMinutes),
		rank,
		account.MessageCount,
	), true)
}

func (b *Bot) respondYesterday(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, userID string) {
	account, err := b.store.GetAccount(ctx, userID)
	if err != nil {
		b.respond(session, interaction, "Could not load the study record.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf(
		"<@%s> yesterday: %s camera on, %s camera off.",
		userID,
		leaderboard.FormatMinutes(account.YesterdayCamOn),
		leaderboard.FormatMinutes(account.YesterdayCamOff),
	), true)
}

func (b *Bot) handleRedban(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, callerID string) {
	if !b.requireOwner(session, interaction, callerID) {
		return
	}
	target := optionUser(data.Options, session, "user")
	if target == nil {
		b.respond(session, interaction, "User option is required.", true)
		return
	}
	reason := optionString(data.Options, "reason")
	if reason == "" {
		reason = "redlisted"
	}
	if err := b.store.AddRedlist(ctx, target.ID); err != nil {
		b.respond(session, interaction, "Failed to update the redlist.", true)
		return
	}
	if err := session.GuildBanCreateWithReason(b.cfg.GuildID, target.ID, reason, 0); err != nil {
		b.logger.Warn("redban ban failed", zap.String("user_id", target.ID), zap.Error(err))
		b.respond(session, interaction, fmt.Sprintf("<@%s> redlisted, but the ban failed. They will be banned on next join.", target.ID), false)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("<@%s> redlisted and banned: %s.", target.ID, reason), false)
}

func (b *Bot) handleRemoveRedban(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, callerID string) {
	if !b.requireOwner(session, interaction, callerID) {
		return
	}
	target := optionUser(data.Options, session, "user")
	if target == nil {
		b.respond(session, interaction, "User option is required.", true)
		return
	}
	if err := b.store.RemoveRedlist(ctx, target.ID); err != nil {
		b.respond(session, interaction, "Failed to update the redlist.", true)
		return
	}
	if err := session.GuildBanDelete(b.cfg.GuildID, target.ID); err != nil {
		b.logger.Warn("redban unban failed", zap.String("user_id", target.ID), zap.Error(err))
	}
	b.respond(session, interaction, fmt.Sprintf("<@%s> removed from the redlist and unbanned.", target.ID), false)
}

func (b *Bot) respondRedlist(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ids, err := b.store.ListRedlist(ctx)
	if err != nil {
		b.respond(session, interaction, "Failed to load the redlist.", true)
		return
	}
	if len(ids) == 0 {
		b.respond(session, interaction, "The redlist is empty.", true)
		return
	}
	b.respond(session, interaction, "Redlist: "+mentionList(ids), true)
}

func (b *Bot) handleAddActive(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, callerID string) {
	if !b.requireOwner(session, interaction, callerID) {
		return
	}
	target := optionUser(data.Options, session, "user")
	if target == nil {
		b.respond(session, interaction, "User option is required.", true)
		return
	}
	if err := b.store.AddActiveMember(ctx, target.ID); err != nil {
		b.respond(session, interaction, "Failed to update the active list.", true)
		return
	}
	if b.cfg.Todo.RoleID != "" {
		if err := session.GuildMemberRoleAdd(b.cfg.GuildID, target.ID, b.cfg.Todo.RoleID); err != nil {
			b.logger.Warn("active role grant failed", zap.String("user_id", target.ID), zap.Error(err))
		}
	}
	b.respond(session, interaction, fmt.Sprintf("<@%s> added to the active list.", target.ID), false)
}

func (b *Bot) handleRemoveActive(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, callerID string) {
	if !b.requireOwner(session, interaction, callerID) {
		return
	}
	target := optionUser(data.Options, session, "user")
	if target == nil {
		b.respond(session, interaction, "User option is required.", true)
		return
	}
	if err := b.store.RemoveActiveMember(ctx, target.ID); err != nil {
		b.respond(session, interaction, "Failed to update the active list.", true)
		return
	}
	if b.cfg.Todo.RoleID != "" {
		if err := session.GuildMemberRoleRemove(b.cfg.GuildID, target.ID, b.cfg.Todo.RoleID); err != nil {
			b.logger.Warn("active role strip failed", zap.String("user_id", target.ID), zap.Error(err))
		}
	}
	b.respond(session, interaction, fmt.Sprintf("<@%s> removed from the active list.", target.ID), false)
}

func (b *Bot) respondMembers(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ids, err := b.store.ListActiveMembers(ctx)
	if err != nil {
		b.respond(session, interaction, "Failed to load the active list.", true)
		return
	}
	if len(ids) == 0 {
		b.respond(session, interaction, "No active members yet.", true)
		return
	}
	b.respond(session, interaction, "Active members: "+mentionList(ids), true)
}

const todoModalID = "todo_submit"

// openTodoModal opens the submission form for targetID. The target rides in
// the modal custom ID so the submit handler credits the right member when
// the owner submits on someone's behalf.
func (b *Bot) openTodoModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, targetID string) {
	active, err := b.store.IsActiveMember(ctx, targetID)
	if err != nil {
		b.respond(session, interaction, "Could not check the active list.", true)
		return
	}
	if !active {
		b.respond(session, interaction, "Only active members can submit todos. Ask to be added with /addh.", true)
		return
	}

	textInput := func(customID, label, placeholder string, required bool, style discordgo.TextInputStyle) discordgo.ActionsRow {
		return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    customID,
				Label:       label,
				Placeholder: placeholder,
				Required:    required,
				Style:       style,
			},
		}}
	}

	err = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: todoModalID + ":" + targetID,
			Title:    "Daily Todo",
			Components: []discordgo.MessageComponent{
				textInput("name", "Name", "Your name", true, discordgo.TextInputShort),
				textInput("due_date", "Due date", "DD/MM/YYYY", true, discordgo.TextInputShort),
				textInput("must_do", "Must do", "Non-negotiable tasks", true, discordgo.TextInputParagraph),
				textInput("can_do", "Can do", "Nice-to-have tasks", false, discordgo.TextInputParagraph),
				textInput("dont_do", "Don't do", "Things to avoid", false, discordgo.TextInputParagraph),
			},
		},
	})
	if err != nil {
		b.logger.Warn("todo modal open failed", zap.Error(err))
	}
}

func (b *Bot) handleModal(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ModalSubmitData()
	if !strings.HasPrefix(data.CustomID, todoModalID+":") {
		return
	}
	targetID := strings.TrimPrefix(data.CustomID, todoModalID+":")

	ctx := context.Background()

	values := make(map[string]string)
	for _, component := range data.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok || len(row.Components) == 0 {
			continue
		}
		if input, ok := row.Components[0].(*discordgo.TextInput); ok {
			values[input.CustomID] = input.Value
		}
	}

	entry := storage.Todo{
		UserID:     targetID,
		LastSubmit: time.Now(),
		Name:       values["name"],
		DueDate:    values["due_date"],
		MustDo:     values["must_do"],
		CanDo:      values["can_do"],
		DontDo:     values["dont_do"],
	}
	if err := b.store.UpsertTodo(ctx, entry); err != nil {
		b.respond(session, interaction, "Failed to save your todo.", true)
		return
	}

	b.todoMessage("**Todo from <@%s>** (due %s)\nMust do: %s\nCan do: %s\nDon't do: %s",
		targetID, entry.DueDate, entry.MustDo, orDash(entry.CanDo), orDash(entry.DontDo))
	b.respond(session, interaction, "Todo submitted.", true)
}

func (b *Bot) respondTodo(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, userID string) {
	entry, found, err := b.store.GetTodo(ctx, userID)
	if err != nil {
		b.respond(session, interaction, "Failed to load your todo.", true)
		return
	}
	if !found || entry.MustDo == "" {
		b.respond(session, interaction, "You have no todo on file. Submit one with /todo.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf(
		"Your todo (submitted %s, due %s)\nMust do: %s\nCan do: %s\nDon't do: %s",
		entry.LastSubmit.In(b.location).Format("02/01 15:04"),
		entry.DueDate, entry.MustDo, orDash(entry.CanDo), orDash(entry.DontDo),
	), true)
}

func (b *Bot) handleDeleteTodo(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, userID string) {
	if err := b.store.ClearTodo(ctx, userID); err != nil {
		b.respond(session, interaction, "Failed to clear your todo.", true)
		return
	}
	b.respond(session, interaction, "Your todo has been cleared.", true)
}

func (b *Bot) respondTodoStatus(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, callerID string) {
	if !b.requireOwner(session, interaction, callerID) {
		return
	}
	active, err := b.store.ListActiveMembers(ctx)
	if err != nil {
		b.respond(session, interaction, "Failed to load the active list.", true)
		return
	}
	todos, err := b.store.ListTodos(ctx)
	if err != nil {
		b.respond(session, interaction, "Failed to load todos.", true)
		return
	}
	lastSubmit := make(map[string]time.Time, len(todos))
	for _, entry := range todos {
		lastSubmit[entry.UserID] = entry.LastSubmit
	}

	var sb strings.Builder
	sb.WriteString("**Todo status**\n")
	for _, userID := range active {
		submitted, ok := lastSubmit[userID]
		if !ok {
			sb.WriteString(fmt.Sprintf("<@%s>: never submitted\n", userID))
			continue
		}
		age := time.Since(submitted).Round(time.Hour)
		sb.WriteString(fmt.Sprintf("<@%s>: %s ago\n", userID, age))
	}
	if len(active) == 0 {
		sb.WriteString("No active members.")
	}
	b.respond(session, interaction, strings.TrimRight(sb.String(), "\n"), true)
}

func (b *Bot) handleLiftLock(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, callerID string) {
	err := b.lockdown.Lift(ctx, callerID)
	if errors.Is(err, moderation.ErrNotOwner) {
		b.respond(session, interaction, "Only the guild owner can lift a lockdown.", true)
		return
	}
	if err != nil {
		b.respond(session, interaction, "Failed to lift the lockdown.", true)
		return
	}
	b.respond(session, interaction, "Lockdown lifted.", false)
}

func (b *Bot) handleVoiceKick(session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, callerID string) {
	if !b.requireOwner(session, interaction, callerID) {
		return
	}
	target := optionUser(data.Options, session, "user")
	if target == nil {
		b.respond(session, interaction, "User option is required.", true)
		return
	}
	if err := session.GuildMemberMove(b.cfg.GuildID, target.ID, nil); err != nil {
		b.respond(session, interaction, "Failed to disconnect the member.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("<@%s> disconnected from voice.", target.ID), false)
}

func (b *Bot) handleBan(session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, callerID string) {
	if !b.requireOwner(session, interaction, callerID) {
		return
	}
	target := optionUser(data.Options, session, "user")
	if target == nil {
		b.respond(session, interaction, "User option is required.", true)
		return
	}
	reason := optionString(data.Options, "reason")
	if reason == "" {
		reason = "banned by owner"
	}
	if err := session.GuildBanCreateWithReason(b.cfg.GuildID, target.ID, reason, 0); err != nil {
		b.respond(session, interaction, "Failed to ban the member.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("<@%s> banned: %s.", target.ID, reason), false)
}

func (b *Bot) handleAnnounce(session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, callerID string) {
	if !b.requireOwner(session, interaction, callerID) {
		return
	}
	channel := optionChannel(data.Options, session, "channel")
	message := optionString(data.Options, "message")
	if channel == nil || message == "" {
		b.respond(session, interaction, "Channel and message options are required.", true)
		return
	}
	content := "**Server Announcement**\n" + message
	if role := optionRole(data.Options, session, b.cfg.GuildID, "role"); role != nil {
		content += "\n<@&" + role.ID + ">"
	}
	if _, err := session.ChannelMessageSend(channel.ID, content); err != nil {
		b.logger.Warn("announcement send failed", zap.String("channel_id", channel.ID), zap.Error(err))
		b.respond(session, interaction, "Failed to post the announcement.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Announcement posted in <#%s>.", channel.ID), true)
}

// handleAnonymousDM relays a message to a member from the server, without
// revealing who sent it.
func (b *Bot) handleAnonymousDM(session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, callerID string) {
	if !b.requireOwner(session, interaction, callerID) {
		return
	}
	target := optionUser(data.Options, session, "user")
	message := optionString(data.Options, "message")
	if target == nil || message == "" {
		b.respond(session, interaction, "User and message options are required.", true)
		return
	}
	channel, err := session.UserChannelCreate(target.ID)
	if err == nil {
		_, err = session.ChannelMessageSend(channel.ID, "**Message from the server**\n"+message)
	}
	if err != nil {
		b.respond(session, interaction, "DM failed. The member may have DMs disabled.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Sent anonymously to <@%s>.", target.ID), true)
}

func (b *Bot) respondUserDetails(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, callerID string) {
	if !b.requireOwner(session, interaction, callerID) {
		return
	}
	target := optionUser(data.Options, session, "user")
	if target == nil {
		b.respond(session, interaction, "User option is required.", true)
		return
	}

	var joined time.Time
	if member, err := session.GuildMember(b.cfg.GuildID, target.ID); err == nil {
		joined = member.JoinedAt
	}
	account, err := b.store.GetAccount(ctx, target.ID)
	if err != nil {
		b.respond(session, interaction, "Could not load the member's record.", true)
		return
	}
	var lastTodo time.Time
	entry, found, err := b.store.GetTodo(ctx, target.ID)
	if err == nil && found {
		lastTodo = entry.LastSubmit
	}

	b.respond(session, interaction, formatUserDetails(target.ID, joined, account, lastTodo, b.location), true)
}

func formatUserDetails(userID string, joined time.Time, account storage.StudyAccount, lastTodo time.Time, location *time.Location) string {
	joinedText := "Unknown"
	if !joined.IsZero() {
		joinedText = joined.In(location).Format("02/01/2006 15:04")
	}
	todoText := "never"
	if !lastTodo.IsZero() {
		todoText = lastTodo.In(location).Format("02/01/2006 15:04")
	}
	return fmt.Sprintf(
		"**<@%s>**\nID: %s\nJoined: %s\nToday: %s camera on, %s camera off\nYesterday: %s camera on, %s camera off\nMessages sent: %d\nLast todo: %s",
		userID, userID, joinedText,
		leaderboard.FormatMinutes(account.CamOnMinutes),
		leaderboard.FormatMinutes(account.CamOffMinutes),
		leaderboard.FormatMinutes(account.YesterdayCamOn),
		leaderboard.FormatMinutes(account.YesterdayCamOff),
		account.MessageCount,
		todoText,
	)
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}

func mentionList(ids []string) string {
	mentions := make([]string, 0, len(ids))
	for _, id := range ids {
		mentions = append(mentions, "<@"+id+">")
	}
	return strings.Join(mentions, ", ")
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
