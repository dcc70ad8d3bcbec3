// Package services – IngestService
//
// This file implements IngestService, which turns one decoded location
// payload into at most one stored trackpoint. It validates the timestamp and
// coordinates, deduplicates on (datalogger, time), copies the optional fields
// named by the decoder profile, and persists the record.
//
// Each call performs exactly one read and at most one write. Concurrent
// duplicates are resolved by the store's unique index: the loser observes
// repo.ErrDuplicate and is treated as "already stored".
package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-location-broker/internal/config"
	"github.com/tbourn/go-location-broker/internal/domain"
	"github.com/tbourn/go-location-broker/internal/repo"
)

// Bounds of a representable timestamp: 0001-01-01T00:00:00Z .. 9999-12-31T23:59:59Z.
const (
	minUnix = -62135596800
	maxUnix = 253402300799
)

// TrackpointRepo defines the repository contract required by IngestService.
type TrackpointRepo interface {
	// FindTrackpoint returns the stored trackpoint at (dataloggerID, ts) or repo.ErrNotFound.
	FindTrackpoint(ctx context.Context, db *gorm.DB, dataloggerID uint, ts time.Time) (*domain.Trackpoint, error)

	// CreateTrackpoint inserts tp, reporting repo.ErrDuplicate on a unique violation.
	CreateTrackpoint(ctx context.Context, db *gorm.DB, tp *domain.Trackpoint) error

	// UpdateTrackpoint overwrites an existing trackpoint in one write.
	UpdateTrackpoint(ctx context.Context, db *gorm.DB, tp *domain.Trackpoint) error
}

// IngestService validates and stores trackpoints for one decoder profile.
type IngestService struct {
	DB      *gorm.DB
	Repo    TrackpointRepo
	Profile Profile

	// DedupPolicy is config.DedupDrop (keep the first record) or
	// config.DedupMerge (overwrite it with the newer payload).
	DedupPolicy string
}

// NewIngestService constructs an IngestService with the drop policy.
func NewIngestService(db *gorm.DB, r TrackpointRepo, p Profile) *IngestService {
	return &IngestService{DB: db, Repo: r, Profile: p, DedupPolicy: config.DedupDrop}
}

// Ingest stores the trackpoint described by payload for datalogger dl and
// returns it together with whether a new row was created.
//
// Outcomes:
//   - invalid tst: ErrInvalidTimestamp, nothing written
//   - invalid lat/lon: ErrInvalidCoordinates, nothing written
//   - duplicate (drop policy): the stored record, created=false
//   - duplicate (merge policy): the stored record updated in place, created=false
//   - lost insert race: (nil, false, nil)
//   - store failure: a *DependencyError
func (s *IngestService) Ingest(ctx context.Context, dl *domain.Datalogger, payload map[string]any, user *domain.User) (*domain.Trackpoint, bool, error) {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "Ingest",
		trace.WithAttributes(
			attribute.String("decoder", s.Profile.ID()),
			attribute.String("datalogger.devid", dl.DevID),
		),
	)
	defer span.End()

	lg := logFor(ctx)
	decoder := s.Profile.ID()

	ts, ok := parseTimestamp(payload["tst"])
	if !ok {
		invalidTotal.WithLabelValues("timestamp").Inc()
		lg.Warn().Str("devid", dl.DevID).Interface("tst", payload["tst"]).Msg("trackpoint rejected: invalid timestamp")
		return nil, false, ErrInvalidTimestamp
	}
	lat, lon, ok := parseCoordinates(payload)
	if !ok {
		invalidTotal.WithLabelValues("coordinates").Inc()
		lg.Warn().Str("devid", dl.DevID).Interface("lat", payload["lat"]).Interface("lon", payload["lon"]).
			Msg("trackpoint rejected: invalid coordinates")
		return nil, false, ErrInvalidCoordinates
	}
	span.SetAttributes(attribute.String("trackpoint.time", ts.Format(time.RFC3339Nano)))

	existing, err := s.Repo.FindTrackpoint(ctx, s.DB, dl.ID, ts)
	switch {
	case err == nil:
		duplicateTotal.WithLabelValues(decoder).Inc()
		if s.DedupPolicy != config.DedupMerge {
			lg.Debug().Str("devid", dl.DevID).Time("time", ts).Msg("trackpoint already stored")
			return existing, false, nil
		}
		existing.Lat, existing.Lon = lat, lon
		s.applyFields(existing, payload, user)
		if err := s.Repo.UpdateTrackpoint(ctx, s.DB, existing); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "update failed")
			return nil, false, depErr("update trackpoint", err)
		}
		lg.Debug().Str("devid", dl.DevID).Time("time", ts).Msg("trackpoint merged")
		return existing, false, nil
	case !errors.Is(err, repo.ErrNotFound):
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, false, depErr("find trackpoint", err)
	}

	tp := &domain.Trackpoint{
		DataloggerID: dl.ID,
		Time:         ts,
		Lat:          lat,
		Lon:          lon,
		Status:       domain.StatusActive,
	}
	s.applyFields(tp, payload, user)

	if err := s.Repo.CreateTrackpoint(ctx, s.DB, tp); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			duplicateTotal.WithLabelValues(decoder).Inc()
			lg.Debug().Str("devid", dl.DevID).Time("time", ts).Msg("trackpoint stored concurrently")
			return nil, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, false, depErr("create trackpoint", err)
	}
	ingestTotal.WithLabelValues(decoder).Inc()
	return tp, true, nil
}

// applyFields copies the profile's optional fields and the owner onto tp.
func (s *IngestService) applyFields(tp *domain.Trackpoint, payload map[string]any, user *domain.User) {
	for _, m := range s.Profile.Numeric {
		SetFloatField(tp, payload, m.Key, m.Field)
	}
	for _, m := range s.Profile.Strings {
		SetStringField(tp, payload, m.Key, m.Field)
	}
	if user != nil {
		uid := user.ID
		tp.UserID = &uid
	}
}

// parseTimestamp accepts only JSON numbers: epoch seconds, fractional
// seconds kept to the nanosecond.
func parseTimestamp(v any) (time.Time, bool) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			if n < minUnix || n > maxUnix {
				return time.Time{}, false
			}
			return time.Unix(n, 0).UTC(), true
		}
		var err error
		if f, err = x.Float64(); err != nil {
			return time.Time{}, false
		}
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	default:
		return time.Time{}, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < minUnix || f > maxUnix {
		return time.Time{}, false
	}
	sec := math.Floor(f)
	nsec := math.Round((f - sec) * 1e9)
	return time.Unix(int64(sec), int64(nsec)).UTC(), true
}

func parseCoordinates(payload map[string]any) (lat, lon float64, ok bool) {
	lat, ok = CoerceFloat(payload["lat"])
	if !ok || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return 0, 0, false
	}
	lon, ok = CoerceFloat(payload["lon"])
	if !ok || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}
