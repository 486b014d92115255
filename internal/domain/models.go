// Package domain defines the persistence models for users, their feedback
// messages, and the administrator's replies. These types are mapped with GORM
// and form the core data layer of the feedback bot.
package domain

import (
	"strconv"
	"time"
)

// Category classifies a feedback message. The set is closed and enforced by a
// CHECK constraint on the messages table.
type Category string

const (
	CategorySuggestion Category = "suggestion"
	CategoryComplaint  Category = "complaint"
	CategoryMessage    Category = "message"
)

// Categories lists every category in the order they are offered to users.
var Categories = []Category{CategorySuggestion, CategoryComplaint, CategoryMessage}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySuggestion, CategoryComplaint, CategoryMessage:
		return true
	}
	return false
}

// Locale is the language a user reads the bot in.
type Locale string

const (
	LocaleRU Locale = "ru"
	LocaleEN Locale = "en"

	// DefaultLocale is assigned to new users and used when a lookup misses.
	DefaultLocale = LocaleRU
)

// Locales lists the supported locales in menu order.
var Locales = []Locale{LocaleRU, LocaleEN}

// Valid reports whether l is a supported locale.
func (l Locale) Valid() bool { return l == LocaleRU || l == LocaleEN }

// User is a chat participant, keyed by the transport's numeric id.
//
// Fields:
//   - ID: externally assigned, stable identifier (Telegram user id).
//   - Username / FirstName / LastName: optional display fields, not unique.
//   - Locale: preferred language, defaults to "ru".
//   - HasActiveMessage: true while the user owns an unanswered message.
//     Only the lifecycle service writes it.
type User struct {
	ID               int64     `json:"id"                 gorm:"primaryKey;autoIncrement:false"`
	Username         string    `json:"username,omitempty" gorm:"type:varchar(64)"`
	FirstName        string    `json:"first_name,omitempty" gorm:"type:varchar(128)"`
	LastName         string    `json:"last_name,omitempty"  gorm:"type:varchar(128)"`
	Locale           Locale    `json:"locale"             gorm:"type:varchar(8);not null;default:'ru'"`
	HasActiveMessage bool      `json:"has_active_message" gorm:"not null;default:false"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// DisplayName returns the first name, else the username, else "". Callers
// render a localized placeholder for the empty case.
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}

// Handle returns "@username" when known, otherwise "ID: <id>".
func (u User) Handle() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return "ID: " + strconv.FormatInt(u.ID, 10)
}

// Message is a single categorized submission. Everything except IsAnswered
// is immutable after insert; IsAnswered only ever flips false→true.
type Message struct {
	ID         int64     `json:"id"          gorm:"primaryKey"`
	UserID     int64     `json:"user_id"     gorm:"not null;index:idx_messages_user"`
	Category   Category  `json:"category"    gorm:"type:varchar(16);not null;check:category IN ('suggestion','complaint','message')"`
	Body       string    `json:"body"        gorm:"type:text;not null"`
	IsAnswered bool      `json:"is_answered" gorm:"not null;default:false;index:idx_messages_answered"`
	CreatedAt  time.Time `json:"created_at"  gorm:"index:idx_messages_created"`

	// User is the author. Messages are kept when users are updated.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	// Replies holds the administrator's answers (at most one in practice).
	Replies []Reply `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Reply is the administrator's answer to a message.
type Reply struct {
	ID        int64     `json:"id"         gorm:"primaryKey"`
	MessageID int64     `json:"message_id" gorm:"not null;index:idx_replies_message"`
	Body      string    `json:"body"       gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Reply.
func (Reply) TableName() string { return "replies" }

// ReplyTarget selects which message an administrator reply binds to: a
// specific message, or the latest unanswered message of a user. Exactly one
// of the fields is non-zero.
type ReplyTarget struct {
	MessageID int64
	UserID    int64
}

// ToMessage targets a specific message.
func ToMessage(id int64) ReplyTarget { return ReplyTarget{MessageID: id} }

// ToUser targets the user's most recent unanswered message.
func ToUser(id int64) ReplyTarget { return ReplyTarget{UserID: id} }

// MessageSummary is a message joined with its author's display fields, as
// shown in the triage queue.
type MessageSummary struct {
	MessageID int64     `json:"message_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Category  Category  `json:"category"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryEntry pairs a message with its reply, if any.
type HistoryEntry struct {
	MessageID  int64      `json:"message_id"`
	Category   Category   `json:"category"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"created_at"`
	IsAnswered bool       `json:"is_answered"`
	ReplyBody  *string    `json:"reply,omitempty"`
	RepliedAt  *time.Time `json:"replied_at,omitempty"`
}
