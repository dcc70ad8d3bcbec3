package services

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tbourn/go-location-broker/internal/domain"
)

func ingestAt(t *testing.T, s *IngestService, dl *domain.Datalogger, ts time.Time) {
	t.Helper()
	p := map[string]any{
		"tst": json.Number(strconv.FormatInt(ts.Unix(), 10)),
		"lat": json.Number("60.1"),
		"lon": json.Number("24.9"),
	}
	if _, _, err := s.Ingest(context.Background(), dl, p, nil); err != nil {
		t.Fatalf("ingest %v: %v", ts, err)
	}
}

func TestReconstruct_GapSegmentation(t *testing.T) {
	cases := []struct {
		name     string
		gap      time.Duration
		segments int
	}{
		{"ten minutes apart", 10 * time.Minute, 2},
		{"two minutes apart", 2 * time.Minute, 1},
		{"exactly threshold", 5 * time.Minute, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := newServiceDB(t)
			dl := seedLogger(t, db, "alice_phone")
			ing := NewIngestService(db, storeShim{}, Profiles["gpslocation.owntracks"])
			base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			ingestAt(t, ing, dl, base)
			ingestAt(t, ing, dl, base.Add(tc.gap))

			ts := NewTrackService(db, storeShim{})
			tr, err := ts.Reconstruct(context.Background(), dl.ID, base.Add(-time.Hour), base.Add(time.Hour))
			if err != nil {
				t.Fatalf("Reconstruct: %v", err)
			}
			if len(tr.Segments) != tc.segments {
				t.Fatalf("segments = %d, want %d", len(tr.Segments), tc.segments)
			}
			if tr.PointCount() != 2 || tr.DevID != "alice_phone" {
				t.Fatalf("unexpected track: %+v", tr)
			}
		})
	}
}

func TestReconstruct_UnknownDevice(t *testing.T) {
	db := newServiceDB(t)
	dl := seedLogger(t, db, "never_reported")
	ts := NewTrackService(db, storeShim{})

	for _, id := range []uint{dl.ID, 999} {
		_, err := ts.Reconstruct(context.Background(), id, time.Now().Add(-time.Hour), time.Now())
		if !errors.Is(err, ErrDeviceNotFound) || !errors.Is(err, ErrNotFound) {
			t.Fatalf("id %d: err = %v, want ErrDeviceNotFound", id, err)
		}
	}
}

func TestReconstruct_EmptyWindow(t *testing.T) {
	db := newServiceDB(t)
	dl := seedLogger(t, db, "alice_phone")
	ing := NewIngestService(db, storeShim{}, Profiles["gpslocation.owntracks"])
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ingestAt(t, ing, dl, base)

	tr, err := NewTrackService(db, storeShim{}).Reconstruct(context.Background(), dl.ID,
		base.Add(24*time.Hour), base.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if len(tr.Segments) != 0 {
		t.Fatalf("segments = %d, want 0", len(tr.Segments))
	}
}

func TestReconstruct_InclusiveBounds(t *testing.T) {
	db := newServiceDB(t)
	dl := seedLogger(t, db, "alice_phone")
	ing := NewIngestService(db, storeShim{}, Profiles["gpslocation.owntracks"])
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ingestAt(t, ing, dl, base)
	ingestAt(t, ing, dl, base.Add(time.Minute))

	tr, err := NewTrackService(db, storeShim{}).Reconstruct(context.Background(), dl.ID, base, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if tr.PointCount() != 2 {
		t.Fatalf("points = %d, want 2", tr.PointCount())
	}
}

func TestReconstruct_EndBeforeStart(t *testing.T) {
	ts := NewTrackService(nil, nil)
	now := time.Now()
	if _, err := ts.Reconstruct(context.Background(), 1, now, now.Add(-time.Hour)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSegment(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(mins ...int) []domain.Trackpoint {
		out := make([]domain.Trackpoint, len(mins))
		for i, m := range mins {
			out[i] = domain.Trackpoint{Time: base.Add(time.Duration(m) * time.Minute)}
		}
		return out
	}
	cases := []struct {
		name string
		in   []domain.Trackpoint
		want []int
	}{
		{"empty", nil, nil},
		{"single", at(0), []int{1}},
		{"continuous", at(0, 1, 2, 7), []int{4}},
		{"two breaks", at(0, 1, 10, 11, 30), []int{2, 2, 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Segment(tc.in, DefaultGapThreshold)
			if len(got) != len(tc.want) {
				t.Fatalf("segments = %d, want %d", len(got), len(tc.want))
			}
			for i, n := range tc.want {
				if len(got[i]) != n {
					t.Fatalf("segment %d has %d points, want %d", i, len(got[i]), n)
				}
			}
		})
	}
}
