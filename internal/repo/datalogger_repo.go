package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-location-broker/internal/domain"
)

// DataloggerSummary is a datalogger row joined with its trackpoint count.
type DataloggerSummary struct {
	ID         uint       `json:"id"`
	DevID      string     `json:"devid"`
	Decoder    string     `json:"decoder"`
	ActivityAt *time.Time `json:"activity_at,omitempty"`
	Points     int64      `json:"points"`
}

// GetOrCreateDatalogger returns the datalogger identified by devid, creating
// it (with the given decoder) when absent. When touch is true the activity
// timestamp is set to now. The boolean result reports whether a row was created.
//
// Two concurrent first sightings of the same devid race on the unique index;
// the loser re-reads the winner's row.
func GetOrCreateDatalogger(ctx context.Context, db *gorm.DB, devid, decoder string, touch bool, now time.Time) (*domain.Datalogger, bool, error) {
	now = now.UTC()
	tx := db.WithContext(ctx)

	var dl domain.Datalogger
	err := tx.Where("dev_id = ?", devid).First(&dl).Error
	switch {
	case err == nil:
		if touch {
			if err := tx.Model(&dl).Update("activity_at", now).Error; err != nil {
				return nil, false, err
			}
			dl.ActivityAt = &now
		}
		return &dl, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, err
	}

	dl = domain.Datalogger{DevID: devid, Decoder: decoder}
	if touch {
		dl.ActivityAt = &now
	}
	if err := tx.Create(&dl).Error; err != nil {
		if !isUniqueViolation(err) {
			return nil, false, err
		}
		var existing domain.Datalogger
		if err := tx.Where("dev_id = ?", devid).First(&existing).Error; err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}
	return &dl, true, nil
}

// GetDatalogger fetches a datalogger by primary key, or ErrNotFound.
func GetDatalogger(ctx context.Context, db *gorm.DB, id uint) (*domain.Datalogger, error) {
	var dl domain.Datalogger
	if err := db.WithContext(ctx).First(&dl, id).Error; err != nil {
		return nil, err
	}
	return &dl, nil
}

// CountDataloggers returns the total number of dataloggers.
func CountDataloggers(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Datalogger{}).Count(&n).Error
	return n, err
}

// ListDataloggersPage returns a page of dataloggers ordered by id, each with
// its trackpoint count.
func ListDataloggersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]DataloggerSummary, error) {
	var out []DataloggerSummary
	err := summaryQuery(ctx, db).
		Order("dataloggers.id ASC").
		Offset(offset).
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// ListDataloggersWithTrackpoints returns every datalogger that has at least
// one stored trackpoint, ordered by id.
func ListDataloggersWithTrackpoints(ctx context.Context, db *gorm.DB) ([]DataloggerSummary, error) {
	var out []DataloggerSummary
	err := summaryQuery(ctx, db).
		Having("COUNT(trackpoints.id) > 0").
		Order("dataloggers.id ASC").
		Scan(&out).Error
	return out, err
}

func summaryQuery(ctx context.Context, db *gorm.DB) *gorm.DB {
	return db.WithContext(ctx).
		Model(&domain.Datalogger{}).
		Select("dataloggers.id, dataloggers.dev_id, dataloggers.decoder, dataloggers.activity_at, COUNT(trackpoints.id) AS points").
		Joins("LEFT JOIN trackpoints ON trackpoints.datalogger_id = dataloggers.id").
		Group("dataloggers.id, dataloggers.dev_id, dataloggers.decoder, dataloggers.activity_at")
}
