// Package services – DeviceService
//
// This file implements DeviceService, which resolves the composite device
// identity taken from request headers into a stored datalogger and exposes
// read access to the known devices for listings and exports.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-location-broker/internal/domain"
	"github.com/tbourn/go-location-broker/internal/repo"
)

// DataloggerRepo defines the repository contract required by DeviceService.
type DataloggerRepo interface {
	// GetOrCreateDatalogger returns the datalogger for devid, creating it when absent.
	GetOrCreateDatalogger(ctx context.Context, db *gorm.DB, devid, decoder string, touch bool, now time.Time) (*domain.Datalogger, bool, error)

	// GetDatalogger fetches a datalogger by id or returns repo.ErrNotFound.
	GetDatalogger(ctx context.Context, db *gorm.DB, id uint) (*domain.Datalogger, error)

	// CountDataloggers returns the total number of dataloggers.
	CountDataloggers(ctx context.Context, db *gorm.DB) (int64, error)

	// ListDataloggersPage returns one page of dataloggers with point counts.
	ListDataloggersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]repo.DataloggerSummary, error)

	// ListDataloggersWithTrackpoints returns the dataloggers that have stored points.
	ListDataloggersWithTrackpoints(ctx context.Context, db *gorm.DB) ([]repo.DataloggerSummary, error)

	// TrackpointStats returns the point count and first/last point times.
	TrackpointStats(ctx context.Context, db *gorm.DB, dataloggerID uint) (int64, *time.Time, *time.Time, error)
}

// DeviceStats summarizes a datalogger and its stored trackpoints.
type DeviceStats struct {
	Datalogger *domain.Datalogger `json:"datalogger"`
	Points     int64              `json:"points"`
	First      *time.Time         `json:"first,omitempty"`
	Last       *time.Time         `json:"last,omitempty"`
}

// DeviceService resolves and lists dataloggers.
type DeviceService struct {
	DB   *gorm.DB
	Repo DataloggerRepo

	// Now is the clock used for activity timestamps.
	Now func() time.Time
}

// NewDeviceService constructs a DeviceService using the wall clock.
func NewDeviceService(db *gorm.DB, r DataloggerRepo) *DeviceService {
	return &DeviceService{DB: db, Repo: r, Now: time.Now}
}

// Resolve returns the datalogger for devid, creating it under decoder on
// first sight, and records the current time as its last activity.
func (s *DeviceService) Resolve(ctx context.Context, devid, decoder string) (*domain.Datalogger, error) {
	tr := otel.Tracer("services/DeviceService")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(
			attribute.String("datalogger.devid", devid),
			attribute.String("decoder", decoder),
		),
	)
	defer span.End()

	dl, created, err := s.Repo.GetOrCreateDatalogger(ctx, s.DB, devid, decoder, true, s.Now())
	if err != nil {
		span.RecordError(err)
		return nil, depErr("resolve datalogger", err)
	}
	if created {
		logFor(ctx).Info().Str("devid", devid).Uint("datalogger_id", dl.ID).Str("decoder", decoder).Msg("datalogger created")
	}
	return dl, nil
}

// Get fetches a datalogger by id.
func (s *DeviceService) Get(ctx context.Context, id uint) (*domain.Datalogger, error) {
	dl, err := s.Repo.GetDatalogger(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, depErr("get datalogger", err)
	}
	return dl, nil
}

// Stats returns a datalogger with the count and time range of its points.
func (s *DeviceService) Stats(ctx context.Context, id uint) (*DeviceStats, error) {
	dl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n, first, last, err := s.Repo.TrackpointStats(ctx, s.DB, id)
	if err != nil {
		return nil, depErr("trackpoint stats", err)
	}
	return &DeviceStats{Datalogger: dl, Points: n, First: first, Last: last}, nil
}

// ListPage returns a page of dataloggers (paginated).
// It applies defaults for invalid page/pageSize and returns the total count.
func (s *DeviceService) ListPage(ctx context.Context, page, pageSize int) ([]repo.DataloggerSummary, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountDataloggers(ctx, s.DB)
	if err != nil {
		return nil, 0, depErr("count dataloggers", err)
	}
	if total == 0 {
		return []repo.DataloggerSummary{}, 0, nil
	}

	items, err := s.Repo.ListDataloggersPage(ctx, s.DB, offset, pageSize)
	if err != nil {
		return nil, 0, depErr("list dataloggers", err)
	}
	return items, total, nil
}

// Known returns every datalogger that has at least one stored trackpoint.
func (s *DeviceService) Known(ctx context.Context) ([]repo.DataloggerSummary, error) {
	items, err := s.Repo.ListDataloggersWithTrackpoints(ctx, s.DB)
	if err != nil {
		return nil, depErr("list dataloggers", err)
	}
	return items, nil
}
