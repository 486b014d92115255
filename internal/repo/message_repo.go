// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model and the read queries behind the administrator's triage views.
//
// Ordering is always deterministic: ties on created_at are broken by id.
package repo

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/text/cases"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-feedback-bot/internal/domain"
)

// InsertMessage inserts a new message for userID and sets the user's
// has_active_message flag in the same statement sequence. Callers that need
// atomicity must pass a transaction handle.
//
// It returns ErrNotFound when the user row does not exist.
func InsertMessage(ctx context.Context, db *gorm.DB, userID int64, category domain.Category, body string) (*domain.Message, error) {
	m := &domain.Message{
		UserID:    userID,
		Category:  category,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := SetActiveFlag(ctx, db, userID, true); err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessage fetches a message by id.
func GetMessage(ctx context.Context, db *gorm.DB, id int64) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMessageSummary fetches a message joined with its author's display
// fields.
func GetMessageSummary(ctx context.Context, db *gorm.DB, id int64) (*domain.MessageSummary, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Preload("User").Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	s := summarize(m)
	return &s, nil
}

// FindMessageOwner returns the author of messageID, or ErrNotFound.
func FindMessageOwner(ctx context.Context, db *gorm.DB, messageID int64) (int64, error) {
	var row struct{ UserID int64 }
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("user_id").
		Where("id = ?", messageID).
		Take(&row).Error
	if err != nil {
		return 0, err
	}
	return row.UserID, nil
}

// FindLatestUnansweredForUser returns the id of the user's most recent
// unanswered message (created_at DESC, id DESC), or ErrNotFound.
func FindLatestUnansweredForUser(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	var row struct{ ID int64 }
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("id").
		Where("user_id = ? AND is_answered = ?", userID, false).
		Order("created_at DESC, id DESC").
		Limit(1).
		Take(&row).Error
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

// HasUnanswered reports whether the user owns at least one unanswered
// message. This is the derived form of the has_active_message flag.
func HasUnanswered(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("user_id = ? AND is_answered = ?", userID, false).
		Count(&n).Error
	return n > 0, err
}

// FindUnanswered returns every unanswered message joined with its author,
// oldest first (created_at ASC, id ASC).
func FindUnanswered(ctx context.Context, db *gorm.DB) ([]domain.MessageSummary, error) {
	var rows []domain.Message
	err := db.WithContext(ctx).
		Preload("User").
		Where("is_answered = ?", false).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.MessageSummary, 0, len(rows))
	for _, m := range rows {
		out = append(out, summarize(m))
	}
	return out, nil
}

// FindUserMessages returns the user's messages left-joined with their
// replies, in chronological order. When a message has several replies the
// earliest one is reported.
func FindUserMessages(ctx context.Context, db *gorm.DB, userID int64) ([]domain.HistoryEntry, error) {
	var rows []domain.Message
	err := db.WithContext(ctx).
		Preload("Replies", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		}).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.HistoryEntry, 0, len(rows))
	for _, m := range rows {
		e := domain.HistoryEntry{
			MessageID:  m.ID,
			Category:   m.Category,
			Body:       m.Body,
			CreatedAt:  m.CreatedAt,
			IsAnswered: m.IsAnswered,
		}
		if len(m.Replies) > 0 {
			r := m.Replies[0]
			body, at := r.Body, r.CreatedAt
			e.ReplyBody, e.RepliedAt = &body, &at
		}
		out = append(out, e)
	}
	return out, nil
}

// FindDistinctUsersWithMessages returns every user who has submitted at least
// one message, ordered by display name: first name, else username; the
// comparison is case-folded. Users with neither come last. Ties are broken by
// id so the order is stable across calls.
func FindDistinctUsersWithMessages(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var users []domain.User
	err := db.WithContext(ctx).
		Where("EXISTS (SELECT 1 FROM messages m WHERE m.user_id = users.id)").
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	SortByDisplayName(users)
	return users, nil
}

// SortByDisplayName orders users in place the way the history directory
// shows them.
func SortByDisplayName(users []domain.User) {
	fold := cases.Fold()
	keys := make(map[int64]string, len(users))
	for _, u := range users {
		keys[u.ID] = fold.String(u.DisplayName())
	}
	sort.SliceStable(users, func(i, j int) bool {
		ki, kj := keys[users[i].ID], keys[users[j].ID]
		switch {
		case ki == "" && kj != "":
			return false
		case ki != "" && kj == "":
			return true
		case ki != kj:
			return ki < kj
		}
		return users[i].ID < users[j].ID
	})
}

func summarize(m domain.Message) domain.MessageSummary {
	return domain.MessageSummary{
		MessageID: m.ID,
		UserID:    m.UserID,
		Username:  m.User.Username,
		FirstName: m.User.FirstName,
		LastName:  m.User.LastName,
		Category:  m.Category,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}

// IsNotFound reports whether err is the repository's not-found sentinel.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
