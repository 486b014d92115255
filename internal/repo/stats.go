// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (ETag generation) in the admin HTTP API.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-feedback-bot/internal/domain"
)

// UnansweredStats returns the number of unanswered messages and the newest
// created_at among them. When there are none, count is 0 and latest is nil.
//
// Answering a message removes it from the count, so the pair changes on every
// submit and every reply.
func UnansweredStats(ctx context.Context, db *gorm.DB) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("is_answered = ?", false)
	return countAndLatest(q)
}

// HistoryStats returns aggregate metadata for a user's messages: the number
// of rows, plus the newest created_at across both the messages and their
// replies so that a reply invalidates the history ETag.
func HistoryStats(ctx context.Context, db *gorm.DB, userID int64) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("user_id = ?", userID)
	count, latest, err = countAndLatest(q)
	if err != nil || count == 0 {
		return count, latest, err
	}

	var row struct {
		CreatedAt time.Time
	}
	res := db.WithContext(ctx).
		Model(&domain.Reply{}).
		Select("replies.created_at").
		Joins("JOIN messages ON messages.id = replies.message_id").
		Where("messages.user_id = ?", userID).
		Order("replies.created_at DESC").
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return 0, nil, res.Error
	}
	if res.RowsAffected > 0 && row.CreatedAt.After(*latest) {
		latest = &row.CreatedAt
	}
	return count, latest, nil
}

// DirectoryStats returns the number of messages overall and the newest
// created_at. The history directory only changes when a message is added, so
// this pair is enough to validate it.
func DirectoryStats(ctx context.Context, db *gorm.DB) (count int64, latest *time.Time, err error) {
	return countAndLatest(db.WithContext(ctx).Model(&domain.Message{}))
}

func countAndLatest(q *gorm.DB) (int64, *time.Time, error) {
	var count int64
	if err := q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err := q.Session(&gorm.Session{}).Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
