// Package services – TriageService
//
// This file implements TriageService, the read side used by the
// administrator: the queue of unanswered messages, the directory of users who
// ever wrote, a single user's history, and a single message's detail. Results
// are returned whole and ordered; pagination is applied by the caller with
// utils.Paginate so chat and HTTP views share one rule.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-feedback-bot/internal/domain"
	"github.com/tbourn/go-feedback-bot/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TriageService serves the administrator's read-only views.
type TriageService struct {
	DB *gorm.DB
}

// ListUnanswered returns every unanswered message with its author's display
// fields, oldest first.
func (s *TriageService) ListUnanswered(ctx context.Context) ([]domain.MessageSummary, error) {
	ctx, span := otel.Tracer("services/TriageService").Start(ctx, "ListUnanswered")
	defer span.End()

	items, err := repo.FindUnanswered(ctx, s.DB)
	if err != nil {
		return nil, storeErr(err)
	}
	span.SetAttributes(attribute.Int("result.count", len(items)))
	return items, nil
}

// UserHistory returns userID's messages with their replies, oldest first.
// An unknown user simply has an empty history.
func (s *TriageService) UserHistory(ctx context.Context, userID int64) ([]domain.HistoryEntry, error) {
	ctx, span := otel.Tracer("services/TriageService").Start(ctx, "UserHistory",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	items, err := repo.FindUserMessages(ctx, s.DB, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

// Directory returns the users who submitted at least one message, ordered by
// display name (case-folded, nameless users last, ties by id).
func (s *TriageService) Directory(ctx context.Context) ([]domain.User, error) {
	ctx, span := otel.Tracer("services/TriageService").Start(ctx, "Directory")
	defer span.End()

	users, err := repo.FindDistinctUsersWithMessages(ctx, s.DB)
	if err != nil {
		return nil, storeErr(err)
	}
	return users, nil
}

// Message returns one message with its author's display fields, or
// ErrMessageNotFound.
func (s *TriageService) Message(ctx context.Context, id int64) (*domain.MessageSummary, error) {
	ctx, span := otel.Tracer("services/TriageService").Start(ctx, "Message",
		trace.WithAttributes(attribute.Int64("message.id", id)),
	)
	defer span.End()

	m, err := repo.GetMessageSummary(ctx, s.DB, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrMessageNotFound
		}
		return nil, storeErr(err)
	}
	return m, nil
}

// User returns a user row, or ErrUserNotFound.
func (s *TriageService) User(ctx context.Context, id int64) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, storeErr(err)
	}
	return u, nil
}

// UnansweredStats returns the version pair (count, latest created_at) of the
// unanswered queue for conditional responses.
func (s *TriageService) UnansweredStats(ctx context.Context) (int64, *time.Time, error) {
	return repo.UnansweredStats(ctx, s.DB)
}

// HistoryStats returns the version pair of userID's history.
func (s *TriageService) HistoryStats(ctx context.Context, userID int64) (int64, *time.Time, error) {
	return repo.HistoryStats(ctx, s.DB, userID)
}

// DirectoryStats returns the version pair of the user directory.
func (s *TriageService) DirectoryStats(ctx context.Context) (int64, *time.Time, error) {
	return repo.DirectoryStats(ctx, s.DB)
}
