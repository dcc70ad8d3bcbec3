package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-location-broker/internal/domain"
)

// Store adapts the repository free functions to the method sets the services
// expect (TrackpointRepo, DataloggerRepo, TrackRepo, UserRepo), keeping
// services decoupled from this package while reusing the functions as-is.
type Store struct{}

// FindTrackpoint proxies FindTrackpoint.
func (Store) FindTrackpoint(ctx context.Context, db *gorm.DB, dataloggerID uint, ts time.Time) (*domain.Trackpoint, error) {
	return FindTrackpoint(ctx, db, dataloggerID, ts)
}

// CreateTrackpoint proxies CreateTrackpoint.
func (Store) CreateTrackpoint(ctx context.Context, db *gorm.DB, tp *domain.Trackpoint) error {
	return CreateTrackpoint(ctx, db, tp)
}

// UpdateTrackpoint proxies UpdateTrackpoint.
func (Store) UpdateTrackpoint(ctx context.Context, db *gorm.DB, tp *domain.Trackpoint) error {
	return UpdateTrackpoint(ctx, db, tp)
}

// CountTrackpoints proxies CountTrackpoints.
func (Store) CountTrackpoints(ctx context.Context, db *gorm.DB, dataloggerID uint) (int64, error) {
	return CountTrackpoints(ctx, db, dataloggerID)
}

// ListTrackpointsBetween proxies ListTrackpointsBetween.
func (Store) ListTrackpointsBetween(ctx context.Context, db *gorm.DB, dataloggerID uint, start, end time.Time) ([]domain.Trackpoint, error) {
	return ListTrackpointsBetween(ctx, db, dataloggerID, start, end)
}

// TrackpointStats proxies TrackpointStats.
func (Store) TrackpointStats(ctx context.Context, db *gorm.DB, dataloggerID uint) (int64, *time.Time, *time.Time, error) {
	return TrackpointStats(ctx, db, dataloggerID)
}

// GetOrCreateDatalogger proxies GetOrCreateDatalogger.
func (Store) GetOrCreateDatalogger(ctx context.Context, db *gorm.DB, devid, decoder string, touch bool, now time.Time) (*domain.Datalogger, bool, error) {
	return GetOrCreateDatalogger(ctx, db, devid, decoder, touch, now)
}

// GetDatalogger proxies GetDatalogger.
func (Store) GetDatalogger(ctx context.Context, db *gorm.DB, id uint) (*domain.Datalogger, error) {
	return GetDatalogger(ctx, db, id)
}

// CountDataloggers proxies CountDataloggers.
func (Store) CountDataloggers(ctx context.Context, db *gorm.DB) (int64, error) {
	return CountDataloggers(ctx, db)
}

// ListDataloggersPage proxies ListDataloggersPage.
func (Store) ListDataloggersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]DataloggerSummary, error) {
	return ListDataloggersPage(ctx, db, offset, limit)
}

// ListDataloggersWithTrackpoints proxies ListDataloggersWithTrackpoints.
func (Store) ListDataloggersWithTrackpoints(ctx context.Context, db *gorm.DB) ([]DataloggerSummary, error) {
	return ListDataloggersWithTrackpoints(ctx, db)
}

// CreateUser proxies CreateUser.
func (Store) CreateUser(ctx context.Context, db *gorm.DB, username, passwordHash string) (*domain.User, error) {
	return CreateUser(ctx, db, username, passwordHash)
}

// GetUserByUsername proxies GetUserByUsername.
func (Store) GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return GetUserByUsername(ctx, db, username)
}
