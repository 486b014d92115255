// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business rules, only persistence and query composition.
//
// Error semantics:
//   - Lookups that default (locale, active flag) never return ErrNotFound;
//     they return the documented default instead.
//   - On DB errors the raw gorm error is propagated.
//
// Functions:
//
//   - UpsertUser(ctx, db, user) -> error
//     Inserts the user if absent; never overwrites an existing row.
//
//   - GetUser(ctx, db, id) -> *domain.User, error
//
//   - GetUserLocale / SetUserLocale
//
//   - GetActiveFlag / SetActiveFlag
//     The flag is owned by services.LifecycleService; no other caller may
//     write it.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-feedback-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertUser inserts u if no row with u.ID exists. Existing rows (including
// their locale and active flag) are left untouched.
func UpsertUser(ctx context.Context, db *gorm.DB, u domain.User) error {
	if !u.Locale.Valid() {
		u.Locale = domain.DefaultLocale
	}
	u.HasActiveMessage = false
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&u).Error
}

// GetUser fetches a user by id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserLocale returns the stored locale, or domain.DefaultLocale when the
// user is unknown or the stored value is not supported.
func GetUserLocale(ctx context.Context, db *gorm.DB, id int64) (domain.Locale, error) {
	var row struct{ Locale string }
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Select("locale").
		Where("id = ?", id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DefaultLocale, nil
	}
	if err != nil {
		return domain.DefaultLocale, err
	}
	if l := domain.Locale(row.Locale); l.Valid() {
		return l, nil
	}
	return domain.DefaultLocale, nil
}

// SetUserLocale stores the user's locale. Unknown users are a no-op.
func SetUserLocale(ctx context.Context, db *gorm.DB, id int64, l domain.Locale) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("locale", l).Error
}

// GetActiveFlag returns the persisted has_active_message flag; false when the
// user is unknown.
func GetActiveFlag(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	var row struct{ HasActiveMessage bool }
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Select("has_active_message").
		Where("id = ?", id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return row.HasActiveMessage, err
}

// SetActiveFlag writes the has_active_message flag. It returns ErrNotFound
// when the user row does not exist.
func SetActiveFlag(ctx context.Context, db *gorm.DB, id int64, active bool) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("has_active_message", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
