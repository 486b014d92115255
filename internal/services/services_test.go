package services

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-feedback-bot/internal/domain"
	"github.com/tbourn/go-feedback-bot/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection keeps the shared in-memory database alive and avoids
	// table-lock contention between pooled connections.
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func register(t *testing.T, db *gorm.DB, users ...domain.User) {
	t.Helper()
	acc := &AccountService{DB: db}
	for _, u := range users {
		if err := acc.Register(context.Background(), u); err != nil {
			t.Fatalf("register %d: %v", u.ID, err)
		}
	}
}

// assertInvariant checks that the persisted flag equals the derived state.
func assertInvariant(t *testing.T, db *gorm.DB, userID int64) {
	t.Helper()
	ctx := context.Background()
	flag, err := repo.GetActiveFlag(ctx, db, userID)
	if err != nil {
		t.Fatalf("GetActiveFlag: %v", err)
	}
	derived, err := repo.HasUnanswered(ctx, db, userID)
	if err != nil {
		t.Fatalf("HasUnanswered: %v", err)
	}
	if flag != derived {
		t.Fatalf("user %d: flag=%v but has unanswered=%v", userID, flag, derived)
	}
}
