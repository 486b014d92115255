package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-feedback-bot/internal/domain"
)

func TestUnansweredStats(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	n, latest, err := UnansweredStats(ctx, db)
	if err != nil || n != 0 || latest != nil {
		t.Fatalf("empty: n=%d latest=%v err=%v", n, latest, err)
	}

	seedUser(t, db, domain.User{ID: 1})
	t0 := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	seedMessage(t, db, 1, domain.CategoryMessage, "a", t0, false)
	seedMessage(t, db, 1, domain.CategoryMessage, "b", t0.Add(time.Minute), false)
	seedMessage(t, db, 1, domain.CategoryMessage, "c", t0.Add(time.Hour), true)

	n, latest, err = UnansweredStats(ctx, db)
	if err != nil {
		t.Fatalf("UnansweredStats: %v", err)
	}
	if n != 2 || latest == nil || !latest.Equal(t0.Add(time.Minute)) {
		t.Fatalf("n=%d latest=%v", n, latest)
	}
}

func TestHistoryStats_ReplyMovesLatest(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedUser(t, db, domain.User{ID: 1})

	if n, latest, err := HistoryStats(ctx, db, 1); err != nil || n != 0 || latest != nil {
		t.Fatalf("empty: n=%d latest=%v err=%v", n, latest, err)
	}

	t0 := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	id := seedMessage(t, db, 1, domain.CategoryMessage, "a", t0, false)

	n, before, err := HistoryStats(ctx, db, 1)
	if err != nil || n != 1 || !before.Equal(t0) {
		t.Fatalf("n=%d latest=%v err=%v", n, before, err)
	}

	if err := db.Create(&domain.Reply{MessageID: id, Body: "ok", CreatedAt: t0.Add(time.Hour)}).Error; err != nil {
		t.Fatalf("seed reply: %v", err)
	}
	_, after, err := HistoryStats(ctx, db, 1)
	if err != nil || !after.Equal(t0.Add(time.Hour)) {
		t.Fatalf("reply should move latest: %v, %v", after, err)
	}
}

func TestDirectoryStats(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedUser(t, db, domain.User{ID: 1})
	seedUser(t, db, domain.User{ID: 2})

	t0 := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	seedMessage(t, db, 1, domain.CategoryMessage, "a", t0, true)
	seedMessage(t, db, 2, domain.CategoryMessage, "b", t0.Add(time.Second), false)

	n, latest, err := DirectoryStats(ctx, db)
	if err != nil || n != 2 || !latest.Equal(t0.Add(time.Second)) {
		t.Fatalf("n=%d latest=%v err=%v", n, latest, err)
	}
}
