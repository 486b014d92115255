package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-feedback-bot/internal/domain"
)

func TestUpsertUser_InsertsOnceAndNeverOverwrites(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if err := UpsertUser(ctx, db, domain.User{ID: 1, FirstName: "Ann", Locale: "xx"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	u, err := GetUser(ctx, db, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Locale != domain.DefaultLocale || u.HasActiveMessage || u.CreatedAt.IsZero() {
		t.Fatalf("unexpected defaults: %+v", u)
	}

	if err := SetUserLocale(ctx, db, 1, domain.LocaleEN); err != nil {
		t.Fatalf("SetUserLocale: %v", err)
	}
	// A second upsert with different fields is a no-op.
	if err := UpsertUser(ctx, db, domain.User{ID: 1, FirstName: "Changed", HasActiveMessage: true}); err != nil {
		t.Fatalf("UpsertUser again: %v", err)
	}
	u, _ = GetUser(ctx, db, 1)
	if u.FirstName != "Ann" || u.Locale != domain.LocaleEN || u.HasActiveMessage {
		t.Fatalf("existing row overwritten: %+v", u)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newRepoDB(t)
	if _, err := GetUser(context.Background(), db, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetUserLocale_Defaults(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	l, err := GetUserLocale(ctx, db, 7)
	if err != nil || l != domain.LocaleRU {
		t.Fatalf("unknown user: got %q, %v", l, err)
	}

	_ = UpsertUser(ctx, db, domain.User{ID: 7})
	if err := db.Model(&domain.User{}).Where("id = ?", 7).Update("locale", "de").Error; err != nil {
		t.Fatalf("force locale: %v", err)
	}
	if l, _ := GetUserLocale(ctx, db, 7); l != domain.LocaleRU {
		t.Fatalf("unsupported stored locale should fall back, got %q", l)
	}

	_ = SetUserLocale(ctx, db, 7, domain.LocaleEN)
	if l, _ := GetUserLocale(ctx, db, 7); l != domain.LocaleEN {
		t.Fatalf("got %q; want en", l)
	}
}

func TestActiveFlag_GetSet(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if on, err := GetActiveFlag(ctx, db, 5); err != nil || on {
		t.Fatalf("unknown user: got %v, %v", on, err)
	}
	if err := SetActiveFlag(ctx, db, 5, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetActiveFlag on unknown user: want ErrNotFound, got %v", err)
	}

	_ = UpsertUser(ctx, db, domain.User{ID: 5})
	if err := SetActiveFlag(ctx, db, 5, true); err != nil {
		t.Fatalf("SetActiveFlag: %v", err)
	}
	if on, _ := GetActiveFlag(ctx, db, 5); !on {
		t.Fatalf("flag not persisted")
	}
	// Writing the same value again still matches the row.
	if err := SetActiveFlag(ctx, db, 5, true); err != nil {
		t.Fatalf("SetActiveFlag idempotent: %v", err)
	}
}
