package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(User{}).TableName():            "users",
		(Message{}).TableName():         "messages",
		(Reply{}).TableName():           "replies",
		(ProcessedUpdate{}).TableName(): "processed_updates",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestCategoryAndLocaleValid(t *testing.T) {
	for _, c := range Categories {
		if !c.Valid() {
			t.Fatalf("%q should be valid", c)
		}
	}
	if Category("praise").Valid() {
		t.Fatalf("unknown category reported valid")
	}
	for _, l := range Locales {
		if !l.Valid() {
			t.Fatalf("%q should be valid", l)
		}
	}
	if Locale("de").Valid() || Locale("").Valid() {
		t.Fatalf("unsupported locale reported valid")
	}
}

func TestUserDisplayNameAndHandle(t *testing.T) {
	u := User{ID: 42, Username: "neo", FirstName: "Thomas"}
	if got := u.DisplayName(); got != "Thomas" {
		t.Fatalf("DisplayName = %q", got)
	}
	if got := u.Handle(); got != "@neo" {
		t.Fatalf("Handle = %q", got)
	}

	u.FirstName = ""
	if got := u.DisplayName(); got != "neo" {
		t.Fatalf("DisplayName without first name = %q", got)
	}

	u.Username = ""
	if got := u.DisplayName(); got != "" {
		t.Fatalf("DisplayName without any name = %q", got)
	}
	if got := u.Handle(); got != "ID: 42" {
		t.Fatalf("Handle without username = %q", got)
	}
}

func TestReplyTargets(t *testing.T) {
	if tg := ToMessage(7); tg.MessageID != 7 || tg.UserID != 0 {
		t.Fatalf("ToMessage = %+v", tg)
	}
	if tg := ToUser(9); tg.UserID != 9 || tg.MessageID != 0 {
		t.Fatalf("ToUser = %+v", tg)
	}
}

func TestMigrations_Indexes_Constraints_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&User{}, &Message{}, &Reply{}, &ProcessedUpdate{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&User{}, &Message{}, &Reply{}, &ProcessedUpdate{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	for _, idx := range []string{"idx_messages_user", "idx_messages_answered", "idx_messages_created"} {
		if !m.HasIndex(&Message{}, idx) {
			t.Fatalf("expected index %s on messages", idx)
		}
	}
	if !m.HasIndex(&Reply{}, "idx_replies_message") {
		t.Fatalf("expected index idx_replies_message on replies")
	}

	now := time.Now().UTC()
	u := &User{ID: 1001, FirstName: "Ann", Locale: LocaleEN, CreatedAt: now}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}

	// Locale default applies when omitted.
	u2 := &User{ID: 1002, FirstName: "Bob"}
	if err := db.Create(u2).Error; err != nil {
		t.Fatalf("insert user2: %v", err)
	}
	var got User
	if err := db.First(&got, "id = ?", 1002).Error; err != nil {
		t.Fatalf("load user2: %v", err)
	}
	if got.Locale != LocaleRU || got.HasActiveMessage {
		t.Fatalf("defaults not applied: %+v", got)
	}

	// CHECK constraint rejects unknown categories.
	bad := &Message{UserID: 1001, Category: "praise", Body: "x", CreatedAt: now}
	if err := db.Omit("User", "Replies").Create(bad).Error; err == nil {
		t.Fatalf("expected CHECK constraint failure for unknown category")
	}

	msg := &Message{UserID: 1001, Category: CategoryComplaint, Body: "broken", CreatedAt: now}
	if err := db.Omit("User", "Replies").Create(msg).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}
	if msg.ID == 0 {
		t.Fatalf("expected autoincrement id")
	}
	rp := &Reply{MessageID: msg.ID, Body: "fixed", CreatedAt: now.Add(time.Second)}
	if err := db.Create(rp).Error; err != nil {
		t.Fatalf("insert reply: %v", err)
	}

	// FK: a reply to a missing message fails.
	if err := db.Create(&Reply{MessageID: 999999, Body: "x"}).Error; err == nil {
		t.Fatalf("expected foreign key failure for orphan reply")
	}

	// CASCADE: deleting the message removes its reply.
	if err := db.Delete(&Message{}, "id = ?", msg.ID).Error; err != nil {
		t.Fatalf("delete message: %v", err)
	}
	var cnt int64
	if err := db.Model(&Reply{}).Where("message_id = ?", msg.ID).Count(&cnt).Error; err != nil {
		t.Fatalf("count replies: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected replies to cascade-delete, got %d", cnt)
	}
}

func TestProcessedUpdate_PrimaryKeyRejectsDuplicates(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&ProcessedUpdate{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	now := time.Now().UTC()
	rec := &ProcessedUpdate{UpdateID: 77, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	dup := &ProcessedUpdate{UpdateID: 77, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected primary key violation")
	}
}
