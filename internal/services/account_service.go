// Package services – AccountService
//
// This file implements AccountService: first-contact registration and the
// per-user language preference. It never touches the active flag.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-feedback-bot/internal/domain"
	"github.com/tbourn/go-feedback-bot/internal/repo"
)

// AccountService manages user rows.
type AccountService struct {
	DB *gorm.DB
}

// Register inserts u on first contact. Existing users, including their
// locale and lifecycle state, are left as they are.
func (s *AccountService) Register(ctx context.Context, u domain.User) error {
	if err := repo.UpsertUser(ctx, s.DB, u); err != nil {
		return storeErr(err)
	}
	return nil
}

// Locale returns the user's language, defaulting to domain.DefaultLocale.
// On a store failure the default is returned together with the error so
// callers can still render something.
func (s *AccountService) Locale(ctx context.Context, userID int64) (domain.Locale, error) {
	l, err := repo.GetUserLocale(ctx, s.DB, userID)
	if err != nil {
		return domain.DefaultLocale, storeErr(err)
	}
	return l, nil
}

// SetLocale stores the user's language choice.
func (s *AccountService) SetLocale(ctx context.Context, userID int64, l domain.Locale) error {
	if !l.Valid() {
		return ErrInvalidLocale
	}
	if err := repo.SetUserLocale(ctx, s.DB, userID, l); err != nil {
		return storeErr(err)
	}
	return nil
}
