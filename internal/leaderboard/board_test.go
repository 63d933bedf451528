package leaderboard

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"studyguard/internal/storage"
)

type fakeSource struct {
	accounts []storage.StudyAccount
}

func (s *fakeSource) TopAccounts(_ context.Context, cameraOn, yesterday bool, limit int) ([]storage.StudyAccount, error) {
	if limit > len(s.accounts) {
		limit = len(s.accounts)
	}
	return s.accounts[:limit], nil
}

func (s *fakeSource) Rank(_ context.Context, userID string) (int, error) {
	for i, account := range s.accounts {
		if account.UserID == userID {
			return i + 1, nil
		}
	}
	return len(s.accounts) + 1, nil
}

func newRedisBoard(t *testing.T) (*Board, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, &fakeSource{}, zap.NewNop()), server
}

func TestBoardTopAndRank(t *testing.T) {
	board, _ := newRedisBoard(t)
	ctx := context.Background()

	board.AddMinutes(ctx, "a", true, 30)
	board.AddMinutes(ctx, "b", true, 60)
	board.AddMinutes(ctx, "b", true, 15)
	board.AddMinutes(ctx, "c", false, 90)

	top, err := board.Top(ctx, true, false, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "b" || top[0].Minutes != 75 || top[1].UserID != "a" {
		t.Fatalf("unexpected top: %v", top)
	}

	rank, err := board.Rank(ctx, "a")
	if err != nil || rank != 2 {
		t.Fatalf("expected rank 2, got %d err=%v", rank, err)
	}

	// Unknown users rank after the whole board.
	rank, err = board.Rank(ctx, "nobody")
	if err != nil || rank != 3 {
		t.Fatalf("expected rank 3 for unknown user, got %d err=%v", rank, err)
	}
}

func TestBoardRotate(t *testing.T) {
	board, _ := newRedisBoard(t)
	ctx := context.Background()

	board.AddMinutes(ctx, "a", true, 45)
	board.Rotate(ctx)

	today, err := board.Top(ctx, true, false, 10)
	if err != nil || len(today) != 0 {
		t.Fatalf("today should be empty after rotate, got %v err=%v", today, err)
	}

	yesterday, err := board.Top(ctx, true, true, 10)
	if err != nil || len(yesterday) != 1 || yesterday[0].Minutes != 45 {
		t.Fatalf("yesterday should hold rotated totals, got %v err=%v", yesterday, err)
	}

	// Rotating again with an empty today clears yesterday too.
	board.Rotate(ctx)
	yesterday, _ = board.Top(ctx, true, true, 10)
	if len(yesterday) != 0 {
		t.Fatalf("second rotate should clear yesterday, got %v", yesterday)
	}
}

func TestBoardSqliteFallback(t *testing.T) {
	source := &fakeSource{accounts: []storage.StudyAccount{
		{UserID: "a", CamOnMinutes: 120},
		{UserID: "b", CamOnMinutes: 60},
	}}
	board := New(nil, source, zap.NewNop())
	ctx := context.Background()

	top, err := board.Top(ctx, true, false, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "a" || top[0].Minutes != 120 {
		t.Fatalf("unexpected fallback top: %v", top)
	}

	rank, err := board.Rank(ctx, "b")
	if err != nil || rank != 2 {
		t.Fatalf("expected fallback rank 2, got %d err=%v", rank, err)
	}
}

func TestFormatMinutes(t *testing.T) {
	if got := FormatMinutes(125); got != "2h 5m" {
		t.Fatalf("got %q", got)
	}
	if got := FormatMinutes(0); got != "0h 0m" {
		t.Fatalf("got %q", got)
	}
}

func TestRender(t *testing.T) {
	text := Render("Top Today", []Entry{{UserID: "a", Minutes: 75}})
	if !strings.Contains(text, "Top Today") || !strings.Contains(text, "<@a>: 1h 15m") {
		t.Fatalf("unexpected render: %q", text)
	}

	empty := Render("Top Today", nil)
	if !strings.Contains(empty, "No study time recorded yet.") {
		t.Fatalf("unexpected empty render: %q", empty)
	}
}
