// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Trackpoint
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - When a trackpoint is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - A second insert for the same (datalogger_id, time) pair returns
//     ErrDuplicate, whichever driver reported the unique violation.
//   - Other DB errors are propagated unchanged.
//
// Times are always normalized to UTC before they reach the database so that
// equality on the dedup key does not depend on the caller's location.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-location-broker/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a row with the same unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// FindTrackpoint fetches the trackpoint stored for dataloggerID at ts, or
// ErrNotFound.
func FindTrackpoint(ctx context.Context, db *gorm.DB, dataloggerID uint, ts time.Time) (*domain.Trackpoint, error) {
	var tp domain.Trackpoint
	err := db.WithContext(ctx).
		Where("datalogger_id = ? AND time = ?", dataloggerID, ts.UTC()).
		First(&tp).Error
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

// CreateTrackpoint inserts tp. A unique-key violation on
// (datalogger_id, time) is reported as ErrDuplicate.
func CreateTrackpoint(ctx context.Context, db *gorm.DB, tp *domain.Trackpoint) error {
	tp.Time = tp.Time.UTC()
	if err := db.WithContext(ctx).Omit("Datalogger", "User").Create(tp).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateTrackpoint writes every column of an existing trackpoint except
// created_at, which is set once on insert.
func UpdateTrackpoint(ctx context.Context, db *gorm.DB, tp *domain.Trackpoint) error {
	tp.Time = tp.Time.UTC()
	return db.WithContext(ctx).
		Model(tp).
		Select("*").
		Omit("CreatedAt", "Datalogger", "User").
		Updates(tp).Error
}

// CountTrackpoints returns the number of trackpoints ever stored for a datalogger.
func CountTrackpoints(ctx context.Context, db *gorm.DB, dataloggerID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Trackpoint{}).
		Where("datalogger_id = ?", dataloggerID).
		Count(&n).Error
	return n, err
}

// ListTrackpointsBetween returns the trackpoints of a datalogger with
// start <= time <= end, ordered by time ascending.
func ListTrackpointsBetween(ctx context.Context, db *gorm.DB, dataloggerID uint, start, end time.Time) ([]domain.Trackpoint, error) {
	var out []domain.Trackpoint
	err := db.WithContext(ctx).
		Where("datalogger_id = ? AND time >= ? AND time <= ?", dataloggerID, start.UTC(), end.UTC()).
		Order("time ASC, id ASC").
		Find(&out).Error
	return out, err
}

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite: "UNIQUE constraint failed"; Postgres: "duplicate key value violates unique constraint"
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
