// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the repository function that binds an
// administrator reply to a message.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-feedback-bot/internal/domain"
)

// ErrAlreadyAnswered is returned by InsertReply when the message exists but
// its is_answered flag is already set.
var ErrAlreadyAnswered = errors.New("message already answered")

// InsertReply stores a reply for messageID, flips the message to answered,
// and rewrites the owner's has_active_message flag from the derived query
// (false unless the owner still has another unanswered message). It returns
// the reply and the owner's id.
//
// The three writes are only atomic when db is a transaction handle; the
// lifecycle service always calls it that way.
//
// Errors: ErrNotFound when the message does not exist, ErrAlreadyAnswered
// when it was answered before, raw DB errors otherwise.
func InsertReply(ctx context.Context, db *gorm.DB, messageID int64, body string) (*domain.Reply, int64, error) {
	ownerID, err := FindMessageOwner(ctx, db, messageID)
	if err != nil {
		return nil, 0, err
	}

	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND is_answered = ?", messageID, false).
		Update("is_answered", true)
	if res.Error != nil {
		return nil, 0, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, 0, ErrAlreadyAnswered
	}

	r := &domain.Reply{
		MessageID: messageID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, 0, err
	}

	still, err := HasUnanswered(ctx, db, ownerID)
	if err != nil {
		return nil, 0, err
	}
	if err := SetActiveFlag(ctx, db, ownerID, still); err != nil {
		return nil, 0, err
	}
	return r, ownerID, nil
}
