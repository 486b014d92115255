// Package services – LifecycleService
//
// This file implements LifecycleService, the only component allowed to move a
// message through its lifecycle and the only writer of a user's
// has_active_message flag.
//
// Per user the lifecycle is a two-state machine:
//
//	IDLE --Submit--> PENDING --Reply--> IDLE
//
// Submit in PENDING fails with ErrActiveMessage; Reply with nothing pending
// fails with ErrNoUnanswered. Every write sequence runs in one transaction,
// so after each call the flag equals "the user owns an unanswered message".
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-feedback-bot/internal/domain"
	"github.com/tbourn/go-feedback-bot/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxTextRunes bounds message and reply bodies when MaxTextRunes is
// not configured. It matches the chat transport's own limit.
const DefaultMaxTextRunes = 4000

// LifecycleService creates messages, binds administrator replies, and keeps
// the active flag consistent.
type LifecycleService struct {
	DB *gorm.DB

	// MaxTextRunes caps message and reply bodies; <= 0 means
	// DefaultMaxTextRunes.
	MaxTextRunes int
}

// Submit stores body as a new message of the given category for userID and
// marks the user as having an active message. It returns the new message id.
//
// Errors: ErrInvalidCategory, ErrEmptyText, ErrTooLong (validation);
// ErrActiveMessage (conflict); ErrUserNotFound (not found); anything else is
// wrapped with ErrStore and nothing was written.
func (s *LifecycleService) Submit(ctx context.Context, userID int64, category domain.Category, body string) (int64, error) {
	tr := otel.Tracer("services/LifecycleService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.String("message.category", string(category)),
		),
	)
	defer span.End()

	if !category.Valid() {
		return 0, ErrInvalidCategory
	}
	body, err := s.validate(body)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := repo.GetUser(ctx, tx, userID)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrUserNotFound
			}
			return err
		}
		if u.HasActiveMessage {
			return ErrActiveMessage
		}
		m, err := repo.InsertMessage(ctx, tx, userID, category, body)
		if err != nil {
			return err
		}
		id = m.ID
		return nil
	})
	if err != nil {
		err = classified(err)
		recordErr(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("message.id", id))
	return id, nil
}

// Reply binds text as the administrator's answer to target and returns the
// id of the user who should be notified.
//
// With target.MessageID set, that message must exist (ErrMessageNotFound) and
// be unanswered (ErrNoUnanswered). With target.UserID set, the user's most
// recent unanswered message is used (ErrNoUnanswered when there is none).
// The reply insert, the answered flip, and the owner's flag recompute happen
// in one transaction.
func (s *LifecycleService) Reply(ctx context.Context, target domain.ReplyTarget, text string) (int64, error) {
	tr := otel.Tracer("services/LifecycleService")
	ctx, span := tr.Start(ctx, "Reply",
		trace.WithAttributes(
			attribute.Int64("target.message_id", target.MessageID),
			attribute.Int64("target.user_id", target.UserID),
		),
	)
	defer span.End()

	if target.MessageID == 0 && target.UserID == 0 {
		return 0, ErrInvalidTarget
	}
	text, err := s.validate(text)
	if err != nil {
		return 0, err
	}

	var owner int64
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		messageID := target.MessageID
		if messageID == 0 {
			id, err := repo.FindLatestUnansweredForUser(ctx, tx, target.UserID)
			if err != nil {
				if repo.IsNotFound(err) {
					return ErrNoUnanswered
				}
				return err
			}
			messageID = id
		}

		_, uid, err := repo.InsertReply(ctx, tx, messageID, text)
		switch {
		case repo.IsNotFound(err):
			return ErrMessageNotFound
		case errors.Is(err, repo.ErrAlreadyAnswered):
			return ErrNoUnanswered
		case err != nil:
			return err
		}
		owner = uid
		return nil
	})
	if err != nil {
		err = classified(err)
		recordErr(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("user.id", owner))
	return owner, nil
}

// Reconcile rewrites userID's active flag from the messages table. It is the
// compensating step after a store failure so a user is never left unable to
// submit. Unknown users are ignored.
func (s *LifecycleService) Reconcile(ctx context.Context, userID int64) error {
	tr := otel.Tracer("services/LifecycleService")
	ctx, span := tr.Start(ctx, "Reconcile",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		has, err := repo.HasUnanswered(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := repo.SetActiveFlag(ctx, tx, userID, has); err != nil && !repo.IsNotFound(err) {
			return err
		}
		return nil
	})
	if err != nil {
		err = storeErr(err)
		recordErr(span, err)
	}
	return err
}

// HasActive reports the persisted active flag for userID; false for unknown
// users.
func (s *LifecycleService) HasActive(ctx context.Context, userID int64) (bool, error) {
	on, err := repo.GetActiveFlag(ctx, s.DB, userID)
	if err != nil {
		return false, storeErr(err)
	}
	return on, nil
}

func (s *LifecycleService) validate(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	limit := s.MaxTextRunes
	if limit <= 0 {
		limit = DefaultMaxTextRunes
	}
	if utf8.RuneCountInString(text) > limit {
		return "", ErrTooLong
	}
	return text, nil
}

func recordErr(span trace.Span, err error) {
	span.SetAttributes(attribute.String("error.kind", KindOf(err)))
	if errors.Is(err, ErrStore) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
