// Update deduplication.
//
// Telegram redelivers an update when a webhook call fails or a poll is
// retried. StoreDeduper records each update id in processed_updates with an
// expiry so a redelivered update is recognised and skipped.
package bot

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-feedback-bot/internal/repo"
)

// Deduper reports whether an update id was already dispatched. The first
// call for an id returns false and records it.
type Deduper interface {
	Seen(ctx context.Context, updateID int64) (bool, error)
}

// StoreDeduper records update ids in the processed_updates table so
// re-deliveries are dropped across restarts.
type StoreDeduper struct {
	DB  *gorm.DB
	TTL time.Duration
}

// Seen implements Deduper.
func (s *StoreDeduper) Seen(ctx context.Context, updateID int64) (bool, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	err := repo.MarkUpdateProcessed(ctx, s.DB, updateID, ttl)
	if errors.Is(err, repo.ErrDuplicateUpdate) {
		return true, nil
	}
	return false, err
}

// Purge removes expired records and returns how many were deleted.
func (s *StoreDeduper) Purge(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredUpdates(ctx, s.DB, time.Now())
}
