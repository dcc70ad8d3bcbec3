// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries over stored
// trackpoints, used by the datalogger listing and the export CLI.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-location-broker/internal/domain"
)

// TrackpointStats returns aggregate metadata for one datalogger's
// trackpoints: the number of rows and the times of the earliest and latest
// point.
//
// When the datalogger has no trackpoints, the returned count is 0 and both
// times are nil.
func TrackpointStats(ctx context.Context, db *gorm.DB, dataloggerID uint) (count int64, first, last *time.Time, err error) {
	q := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Trackpoint{}).Where("datalogger_id = ?", dataloggerID)
	}

	if err = q().Count(&count).Error; err != nil {
		return 0, nil, nil, err
	}
	if count == 0 {
		return 0, nil, nil, nil
	}

	// Order + limit instead of MIN()/MAX(), which come back as TEXT in SQLite.
	var lo, hi struct {
		Time time.Time
	}
	if err = q().Select("time").Order("time ASC").Limit(1).Scan(&lo).Error; err != nil {
		return 0, nil, nil, err
	}
	if err = q().Select("time").Order("time DESC").Limit(1).Scan(&hi).Error; err != nil {
		return 0, nil, nil, err
	}
	f, l := lo.Time.UTC(), hi.Time.UTC()
	return count, &f, &l, nil
}
