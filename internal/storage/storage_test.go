package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestAddVoiceMinutes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddVoiceMinutes(ctx, "u1", true, 10); err != nil {
		t.Fatalf("add cam on: %v", err)
	}
	if err := store.AddVoiceMinutes(ctx, "u1", false, 3); err != nil {
		t.Fatalf("add cam off: %v", err)
	}
	if err := store.AddVoiceMinutes(ctx, "u1", true, 5); err != nil {
		t.Fatalf("add cam on again: %v", err)
	}

	account, err := store.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.CamOnMinutes != 15 || account.CamOffMinutes != 3 {
		t.Fatalf("unexpected totals: on=%d off=%d", account.CamOnMinutes, account.CamOffMinutes)
	}
	if account.TotalMinutes() != 18 {
		t.Fatalf("expected total 18, got %d", account.TotalMinutes())
	}
}

func TestGetAccountMissing(t *testing.T) {
	store := newTestStore(t)

	account, err := store.GetAccount(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("get missing account: %v", err)
	}
	if account.UserID != "nobody" || account.TotalMinutes() != 0 {
		t.Fatalf("expected zero account, got %+v", account)
	}
}

func TestDailyReset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.AddVoiceMinutes(ctx, "u1", true, 90)
	_ = store.AddVoiceMinutes(ctx, "u1", false, 20)

	if err := store.DailyReset(ctx); err != nil {
		t.Fatalf("daily reset: %v", err)
	}

	account, _ := store.GetAccount(ctx, "u1")
	if account.CamOnMinutes != 0 || account.CamOffMinutes != 0 {
		t.Fatalf("expected zeroed today, got on=%d off=%d", account.CamOnMinutes, account.CamOffMinutes)
	}
	if account.YesterdayCamOn != 90 || account.YesterdayCamOff != 20 {
		t.Fatalf("expected yesterday snapshot, got on=%d off=%d", account.YesterdayCamOn, account.YesterdayCamOff)
	}
}

func TestTopAccountsAndRank(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.AddVoiceMinutes(ctx, "a", true, 30)
	_ = store.AddVoiceMinutes(ctx, "b", true, 60)
	_ = store.AddVoiceMinutes(ctx, "c", true, 10)
	_ = store.AddVoiceMinutes(ctx, "d", false, 45)

	top, err := store.TopAccounts(ctx, true, false, 10)
	if err != nil {
		t.Fatalf("top accounts: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 cam-on rows, got %d", len(top))
	}
	if top[0].UserID != "b" || top[1].UserID != "a" || top[2].UserID != "c" {
		t.Fatalf("unexpected order: %v", top)
	}

	rank, err := store.Rank(ctx, "a")
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if rank != 2 {
		t.Fatalf("expected rank 2, got %d", rank)
	}
}

func TestRedlistRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddRedlist(ctx, "bad"); err != nil {
		t.Fatalf("add redlist: %v", err)
	}
	listed, err := store.IsRedlisted(ctx, "bad")
	if err != nil || !listed {
		t.Fatalf("expected redlisted, err=%v", err)
	}
	if err := store.RemoveRedlist(ctx, "bad"); err != nil {
		t.Fatalf("remove redlist: %v", err)
	}
	listed, _ = store.IsRedlisted(ctx, "bad")
	if listed {
		t.Fatalf("expected removed from redlist")
	}
}

func TestTodoRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	submitted := time.Unix(1700000000, 0)

	todo := Todo{
		UserID:     "u1",
		LastSubmit: submitted,
		Name:       "Alex",
		DueDate:    "01/02/2026",
		MustDo:     "math",
		CanDo:      "reading",
		DontDo:     "gaming",
	}
	if err := store.UpsertTodo(ctx, todo); err != nil {
		t.Fatalf("upsert todo: %v", err)
	}

	got, found, err := store.GetTodo(ctx, "u1")
	if err != nil || !found {
		t.Fatalf("get todo: found=%t err=%v", found, err)
	}
	if got.MustDo != "math" || !got.LastSubmit.Equal(submitted) {
		t.Fatalf("unexpected todo: %+v", got)
	}

	if err := store.ClearTodo(ctx, "u1"); err != nil {
		t.Fatalf("clear todo: %v", err)
	}
	got, found, _ = store.GetTodo(ctx, "u1")
	if !found || got.MustDo != "" {
		t.Fatalf("expected cleared content with row kept, got %+v", got)
	}
	if !got.LastSubmit.Equal(submitted) {
		t.Fatalf("clear must not touch the submission timestamp")
	}
}

func TestLockdownFlag(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	locked, err := store.GetLockdown(ctx, "g1")
	if err != nil || locked {
		t.Fatalf("expected unlocked default, locked=%t err=%v", locked, err)
	}
	if err := store.SetLockdown(ctx, "g1", true); err != nil {
		t.Fatalf("set lockdown: %v", err)
	}
	locked, _ = store.GetLockdown(ctx, "g1")
	if !locked {
		t.Fatalf("expected locked")
	}
}
