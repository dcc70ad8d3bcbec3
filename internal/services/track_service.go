// Package services – TrackService
//
// This file implements TrackService, which rebuilds a device's route over a
// closed time window. Points are read in ascending time order and split into
// segments wherever two consecutive points are further apart than the gap
// threshold, so that exports do not draw a straight line across an outage.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-location-broker/internal/domain"
	"github.com/tbourn/go-location-broker/internal/repo"
)

// DefaultGapThreshold is the largest gap between consecutive points that
// still belongs to one segment.
const DefaultGapThreshold = 5 * time.Minute

// TrackPoint is one position of a reconstructed track.
type TrackPoint struct {
	Time time.Time
	Lat  float64
	Lon  float64
	Ele  *float64
}

// Track is a device's route within [Start, End], split into segments.
type Track struct {
	DataloggerID uint
	DevID        string
	Start        time.Time
	End          time.Time
	Segments     [][]TrackPoint
}

// PointCount returns the number of points across all segments.
func (t *Track) PointCount() int {
	n := 0
	for _, seg := range t.Segments {
		n += len(seg)
	}
	return n
}

// TrackRepo defines the repository contract required by TrackService.
type TrackRepo interface {
	CountTrackpoints(ctx context.Context, db *gorm.DB, dataloggerID uint) (int64, error)
	ListTrackpointsBetween(ctx context.Context, db *gorm.DB, dataloggerID uint, start, end time.Time) ([]domain.Trackpoint, error)
	GetDatalogger(ctx context.Context, db *gorm.DB, id uint) (*domain.Datalogger, error)
}

// TrackService reconstructs segmented tracks from stored trackpoints.
type TrackService struct {
	DB           *gorm.DB
	Repo         TrackRepo
	GapThreshold time.Duration
}

// NewTrackService constructs a TrackService with DefaultGapThreshold.
func NewTrackService(db *gorm.DB, r TrackRepo) *TrackService {
	return &TrackService{DB: db, Repo: r, GapThreshold: DefaultGapThreshold}
}

// Reconstruct returns the track of a datalogger between start and end,
// both inclusive. A datalogger that never stored a point yields
// ErrDeviceNotFound; an empty window yields a track with no segments.
func (s *TrackService) Reconstruct(ctx context.Context, dataloggerID uint, start, end time.Time) (*Track, error) {
	tr := otel.Tracer("services/TrackService")
	ctx, span := tr.Start(ctx, "Reconstruct",
		trace.WithAttributes(
			attribute.Int64("datalogger.id", int64(dataloggerID)),
			attribute.String("window.start", start.UTC().Format(time.RFC3339)),
			attribute.String("window.end", end.UTC().Format(time.RFC3339)),
		),
	)
	defer span.End()

	if end.Before(start) {
		return nil, fmt.Errorf("%w: window end %s is before start %s", ErrValidation,
			end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339))
	}

	n, err := s.Repo.CountTrackpoints(ctx, s.DB, dataloggerID)
	if err != nil {
		span.RecordError(err)
		return nil, depErr("count trackpoints", err)
	}
	if n == 0 {
		return nil, ErrDeviceNotFound
	}

	dl, err := s.Repo.GetDatalogger(ctx, s.DB, dataloggerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		span.RecordError(err)
		return nil, depErr("get datalogger", err)
	}

	points, err := s.Repo.ListTrackpointsBetween(ctx, s.DB, dataloggerID, start, end)
	if err != nil {
		span.RecordError(err)
		return nil, depErr("list trackpoints", err)
	}

	gap := s.GapThreshold
	if gap <= 0 {
		gap = DefaultGapThreshold
	}
	t := &Track{
		DataloggerID: dataloggerID,
		DevID:        dl.DevID,
		Start:        start.UTC(),
		End:          end.UTC(),
		Segments:     Segment(points, gap),
	}
	span.SetAttributes(
		attribute.Int("track.points", t.PointCount()),
		attribute.Int("track.segments", len(t.Segments)),
	)
	return t, nil
}

// Segment splits time-ordered points into runs whose consecutive gaps do
// not exceed gap. Empty input yields no segments.
func Segment(points []domain.Trackpoint, gap time.Duration) [][]TrackPoint {
	var (
		out [][]TrackPoint
		cur []TrackPoint
	)
	for i, p := range points {
		if i > 0 && p.Time.Sub(points[i-1].Time) > gap {
			out = append(out, cur)
			cur = nil
		}
		cur = append(cur, TrackPoint{Time: p.Time.UTC(), Lat: p.Lat, Lon: p.Lon, Ele: p.Ele})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
