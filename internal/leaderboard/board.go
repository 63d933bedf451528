package leaderboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"studyguard/internal/storage"
)

const (
	keyCamOnToday      = "study:camon:today"
	keyCamOffToday     = "study:camoff:today"
	keyCamOnYesterday  = "study:camon:yesterday"
	keyCamOffYesterday = "study:camoff:yesterday"
)

// Entry is one leaderboard row.
type Entry struct {
	UserID  string
	Minutes int
}

// AccountSource is the sqlite view of the same totals, used when redis is
// disabled or unreachable.
type AccountSource interface {
	TopAccounts(ctx context.Context, cameraOn, yesterday bool, limit int) ([]storage.StudyAccount, error)
	Rank(ctx context.Context, userID string) (int, error)
}

// Board serves ranked study-time listings. Redis sorted sets are the fast
// path; every read falls back to the sqlite accumulator when redis is not
// configured or a call fails, so the board is never blank just because the
// cache is down.
type Board struct {
	client *redis.Client
	source AccountSource
	logger *zap.Logger
}

// New builds a Board. client may be nil, in which case all reads come from
// source.
func New(client *redis.Client, source AccountSource, logger *zap.Logger) *Board {
	return &Board{client: client, source: source, logger: logger}
}

func key(cameraOn, yesterday bool) string {
	switch {
	case cameraOn && yesterday:
		return keyCamOnYesterday
	case cameraOn:
		return keyCamOnToday
	case yesterday:
		return keyCamOffYesterday
	default:
		return keyCamOffToday
	}
}

// AddMinutes mirrors a credit into the sorted set. The sqlite accumulator is
// the source of truth; a redis failure here is logged and swallowed.
func (b *Board) AddMinutes(ctx context.Context, userID string, cameraOn bool, minutes int) {
	if b.client == nil || minutes <= 0 {
		return
	}
	if err := b.client.ZIncrBy(ctx, key(cameraOn, false), float64(minutes), userID).Err(); err != nil {
		b.logger.Warn("redis leaderboard increment failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Top returns the highest-ranked entries for the requested bucket.
func (b *Board) Top(ctx context.Context, cameraOn, yesterday bool, limit int) ([]Entry, error) {
	if b.client != nil {
		rows, err := b.client.ZRevRangeWithScores(ctx, key(cameraOn, yesterday), 0, int64(limit-1)).Result()
		if err == nil {
			entries := make([]Entry, 0, len(rows))
			for _, row := range rows {
				member, ok := row.Member.(string)
				if !ok {
					continue
				}
				entries = append(entries, Entry{UserID: member, Minutes: int(row.Score)})
			}
			return entries, nil
		}
		b.logger.Warn("redis leaderboard read failed, falling back to sqlite", zap.Error(err))
	}

	accounts, err := b.source.TopAccounts(ctx, cameraOn, yesterday, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(accounts))
	for _, account := range accounts {
		minutes := account.CamOffMinutes
		switch {
		case cameraOn && yesterday:
			minutes = account.YesterdayCamOn
		case cameraOn:
			minutes = account.CamOnMinutes
		case yesterday:
			minutes = account.YesterdayCamOff
		}
		entries = append(entries, Entry{UserID: account.UserID, Minutes: minutes})
	}
	return entries, nil
}

// Rank returns the 1-based cam-on rank for userID today. Users with no
// recorded time rank after everyone on the board.
func (b *Board) Rank(ctx context.Context, userID string) (int, error) {
	if b.client != nil {
		rank, err := b.client.ZRevRank(ctx, keyCamOnToday, userID).Result()
		if err == nil {
			return int(rank) + 1, nil
		}
		if err == redis.Nil {
			size, err := b.client.ZCard(ctx, keyCamOnToday).Result()
			if err == nil {
				return int(size) + 1, nil
			}
		}
		b.logger.Warn("redis rank read failed, falling back to sqlite", zap.Error(err))
	}
	return b.source.Rank(ctx, userID)
}

// Rotate moves today's sets into the yesterday slots and clears today,
// matching the sqlite daily reset.
func (b *Board) Rotate(ctx context.Context) {
	if b.client == nil {
		return
	}
	pairs := [][2]string{
		{keyCamOnToday, keyCamOnYesterday},
		{keyCamOffToday, keyCamOffYesterday},
	}
	for _, pair := range pairs {
		if err := b.client.Del(ctx, pair[1]).Err(); err != nil {
			b.logger.Warn("redis rotate delete failed", zap.String("key", pair[1]), zap.Error(err))
			continue
		}
		err := b.client.Rename(ctx, pair[0], pair[1]).Err()
		if err != nil && !strings.Contains(err.Error(), "no such key") {
			b.logger.Warn("redis rotate rename failed", zap.String("key", pair[0]), zap.Error(err))
		}
	}
}

// FormatMinutes renders a minute total the way the boards display it.
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// Render builds the text block posted to the leaderboard channel.
func Render(title string, entries []Entry) string {
	var sb strings.Builder
	sb.WriteString("**" + title + "**\n")
	if len(entries) == 0 {
		sb.WriteString("No study time recorded yet.")
		return sb.String()
	}
	for i, entry := range entries {
		sb.WriteString(fmt.Sprintf("%d. <@%s>: %s\n", i+1, entry.UserID, FormatMinutes(entry.Minutes)))
	}
	return strings.TrimRight(sb.String(), "\n")
}
