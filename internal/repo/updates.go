// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file records processed transport update ids so that a
// re-delivered update (webhook retry, poller restart) is dispatched once.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-feedback-bot/internal/domain"
)

// ErrDuplicateUpdate is returned by MarkUpdateProcessed when the update id was
// already recorded and has not expired.
var ErrDuplicateUpdate = errors.New("update already processed")

// MarkUpdateProcessed records updateID with a time-to-live. It returns
// ErrDuplicateUpdate when an unexpired record exists. An expired record is
// replaced, so ids can be reused after ttl.
func MarkUpdateProcessed(ctx context.Context, db *gorm.DB, updateID int64, ttl time.Duration) error {
	now := time.Now().UTC()
	rec := domain.ProcessedUpdate{
		UpdateID:  updateID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("update_id = ? AND expires_at <= ?", updateID, now).
			Delete(&domain.ProcessedUpdate{}).Error; err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDuplicateUpdate
		}
		return nil
	})
}

// PurgeExpiredUpdates deletes records whose TTL elapsed before now and
// returns the number of rows removed.
func PurgeExpiredUpdates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}
