// Package services defines the business logic of the feedback bot: the
// message lifecycle, the administrator's triage views, and user accounts.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Every sentinel wraps exactly one of four kinds (ErrValidation, ErrConflict,
// ErrNotFound, ErrStore). Callers branch on the kind with errors.Is and pick
// the user-facing text from the specific sentinel. Translation into chat
// replies or HTTP status codes is performed at the bot/handler layer.
package services

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	// ErrValidation marks input that was rejected before touching the store.
	// Session intents survive it so the user can simply try again.
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks an operation forbidden by the current lifecycle state.
	ErrConflict = errors.New("conflict")

	// ErrNotFound marks a missing user, message, or reply target.
	ErrNotFound = errors.New("not found")

	// ErrStore marks a persistence failure. The transaction was rolled back.
	ErrStore = errors.New("store failure")
)

// Validation errors.
var (
	// ErrEmptyText is returned when a message or reply is blank after
	// trimming.
	ErrEmptyText = fmt.Errorf("%w: text is empty", ErrValidation)

	// ErrTooLong is returned when a message or reply exceeds the configured
	// maximum rune count.
	ErrTooLong = fmt.Errorf("%w: text too long", ErrValidation)

	// ErrInvalidCategory is returned for a category outside the closed set.
	ErrInvalidCategory = fmt.Errorf("%w: unknown category", ErrValidation)

	// ErrInvalidLocale is returned when a user picks an unsupported language.
	ErrInvalidLocale = fmt.Errorf("%w: unsupported locale", ErrValidation)

	// ErrInvalidTarget is returned when a reply target names neither a
	// message nor a user.
	ErrInvalidTarget = fmt.Errorf("%w: empty reply target", ErrValidation)
)

// Conflict errors.
var (
	// ErrActiveMessage is returned when a user submits while a previous
	// message is still unanswered.
	ErrActiveMessage = fmt.Errorf("%w: user already has an unanswered message", ErrConflict)
)

// Not-found errors.
var (
	// ErrUserNotFound indicates the user row does not exist (never registered).
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

	// ErrMessageNotFound indicates the requested message does not exist.
	ErrMessageNotFound = fmt.Errorf("%w: message", ErrNotFound)

	// ErrNoUnanswered is returned when a reply targets a message that was
	// already answered, or a user with no unanswered message.
	ErrNoUnanswered = fmt.Errorf("%w: no unanswered message", ErrNotFound)
)

// storeErr wraps a raw persistence error with ErrStore.
func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStore, err)
}

// classified passes through errors that already carry a kind and wraps the
// rest as store failures.
func classified(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrStore} {
		if errors.Is(err, k) {
			return err
		}
	}
	return storeErr(err)
}

// KindOf returns a short, stable label for err's kind, suitable for metric
// labels and structured log fields. Nil maps to "ok".
func KindOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "store"
	}
}
