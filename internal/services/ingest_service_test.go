package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"

	"github.com/tbourn/go-location-broker/internal/config"
	"github.com/tbourn/go-location-broker/internal/domain"
	"github.com/tbourn/go-location-broker/internal/repo"
)

// ----- Fake repo -----

type fakeTrackpointRepo struct {
	reads, writes int

	existing  *domain.Trackpoint
	findErr   error
	createErr error
	updateErr error

	created *domain.Trackpoint
	updated *domain.Trackpoint
}

func (r *fakeTrackpointRepo) FindTrackpoint(ctx context.Context, db *gorm.DB, id uint, ts time.Time) (*domain.Trackpoint, error) {
	r.reads++
	if r.findErr != nil {
		return nil, r.findErr
	}
	if r.existing == nil {
		return nil, repo.ErrNotFound
	}
	return r.existing, nil
}

func (r *fakeTrackpointRepo) CreateTrackpoint(ctx context.Context, db *gorm.DB, tp *domain.Trackpoint) error {
	r.writes++
	r.created = tp
	return r.createErr
}

func (r *fakeTrackpointRepo) UpdateTrackpoint(ctx context.Context, db *gorm.DB, tp *domain.Trackpoint) error {
	r.writes++
	r.updated = tp
	return r.updateErr
}

func owntracksProfile() Profile { return Profiles["gpslocation.owntracks"] }

func examplePayload() map[string]any {
	return map[string]any{
		"tst": json.Number("1556008153"),
		"lat": json.Number("60.171661"),
		"lon": json.Number("24.9448"),
		"acc": json.Number("25"),
		"alt": json.Number("39"),
		"vel": json.Number("0"),
	}
}

// ----- Tests -----

func TestIngest_ExamplePayload(t *testing.T) {
	r := &fakeTrackpointRepo{}
	s := NewIngestService(nil, r, owntracksProfile())
	dl := &domain.Datalogger{ID: 3, DevID: "alice_phone"}

	tp, created, err := s.Ingest(context.Background(), dl, examplePayload(), nil)
	if err != nil || !created {
		t.Fatalf("Ingest: created=%v err=%v", created, err)
	}
	want := time.Date(2019, 4, 23, 8, 29, 13, 0, time.UTC)
	if !tp.Time.Equal(want) || tp.Time.Location() != time.UTC {
		t.Fatalf("time = %v, want %v", tp.Time, want)
	}
	if tp.Lat != 60.171661 || tp.Lon != 24.9448 {
		t.Fatalf("coords = %v,%v", tp.Lat, tp.Lon)
	}
	if tp.HAcc == nil || *tp.HAcc != 25 || tp.Ele == nil || *tp.Ele != 39 || tp.Speed == nil || *tp.Speed != 0 {
		t.Fatalf("optional fields wrong: hacc=%v ele=%v speed=%v", tp.HAcc, tp.Ele, tp.Speed)
	}
	if tp.VAcc != nil || tp.Course != nil || tp.Batt != nil || tp.Conn != nil {
		t.Fatalf("absent fields must stay nil: %+v", tp)
	}
	if tp.DataloggerID != 3 || tp.Status != domain.StatusActive || tp.UserID != nil {
		t.Fatalf("unexpected record: %+v", tp)
	}
	if r.reads != 1 || r.writes != 1 {
		t.Fatalf("reads=%d writes=%d, want 1/1", r.reads, r.writes)
	}
}

func TestIngest_FractionalTimestamp(t *testing.T) {
	r := &fakeTrackpointRepo{}
	s := NewIngestService(nil, r, owntracksProfile())
	p := examplePayload()
	p["tst"] = json.Number("1556008153.25")

	tp, _, err := s.Ingest(context.Background(), &domain.Datalogger{ID: 1}, p, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if tp.Time.Nanosecond() != 250000000 {
		t.Fatalf("nanos = %d, want 250000000", tp.Time.Nanosecond())
	}
}

func TestIngest_AttachesUser(t *testing.T) {
	r := &fakeTrackpointRepo{}
	s := NewIngestService(nil, r, owntracksProfile())
	tp, _, err := s.Ingest(context.Background(), &domain.Datalogger{ID: 1}, examplePayload(), &domain.User{ID: 9})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if tp.UserID == nil || *tp.UserID != 9 {
		t.Fatalf("user not attached: %v", tp.UserID)
	}
}

func TestIngest_ValidationFailures_NoWrites(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(p map[string]any)
		want   error
	}{
		{"missing tst", func(p map[string]any) { delete(p, "tst") }, ErrInvalidTimestamp},
		{"string tst", func(p map[string]any) { p["tst"] = "1556008153" }, ErrInvalidTimestamp},
		{"word tst", func(p map[string]any) { p["tst"] = "yesterday" }, ErrInvalidTimestamp},
		{"bool tst", func(p map[string]any) { p["tst"] = true }, ErrInvalidTimestamp},
		{"huge tst", func(p map[string]any) { p["tst"] = json.Number("1e20") }, ErrInvalidTimestamp},
		{"missing lat", func(p map[string]any) { delete(p, "lat") }, ErrInvalidCoordinates},
		{"missing lon", func(p map[string]any) { delete(p, "lon") }, ErrInvalidCoordinates},
		{"word lat", func(p map[string]any) { p["lat"] = "north" }, ErrInvalidCoordinates},
		{"null lon", func(p map[string]any) { p["lon"] = nil }, ErrInvalidCoordinates},
		{"lat out of range", func(p map[string]any) { p["lat"] = json.Number("91") }, ErrInvalidCoordinates},
		{"lon out of range", func(p map[string]any) { p["lon"] = json.Number("-180.5") }, ErrInvalidCoordinates},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeTrackpointRepo{}
			s := NewIngestService(nil, r, owntracksProfile())
			p := examplePayload()
			tc.mutate(p)

			tp, created, err := s.Ingest(context.Background(), &domain.Datalogger{ID: 1}, p, nil)
			if !errors.Is(err, tc.want) || !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if tp != nil || created {
				t.Fatalf("expected no record, got %+v created=%v", tp, created)
			}
			if r.writes != 0 || r.reads != 0 {
				t.Fatalf("reads=%d writes=%d, want 0/0", r.reads, r.writes)
			}
		})
	}
}

func TestIngest_NumericStringCoordinatesAccepted(t *testing.T) {
	r := &fakeTrackpointRepo{}
	s := NewIngestService(nil, r, owntracksProfile())
	p := examplePayload()
	p["lat"], p["lon"] = "60.5", " 24.25 "
	tp, _, err := s.Ingest(context.Background(), &domain.Datalogger{ID: 1}, p, nil)
	if err != nil || tp.Lat != 60.5 || tp.Lon != 24.25 {
		t.Fatalf("tp=%+v err=%v", tp, err)
	}
}

func TestIngest_PartialOptionalFailure(t *testing.T) {
	r := &fakeTrackpointRepo{}
	s := NewIngestService(nil, r, owntracksProfile())
	p := examplePayload()
	p["acc"] = "unknown"
	tp, created, err := s.Ingest(context.Background(), &domain.Datalogger{ID: 1}, p, nil)
	if err != nil || !created {
		t.Fatalf("created=%v err=%v", created, err)
	}
	if tp.HAcc != nil {
		t.Fatalf("hacc should be skipped, got %v", *tp.HAcc)
	}
	if tp.Ele == nil || *tp.Ele != 39 {
		t.Fatalf("ele should still be set")
	}
}

func TestIngest_DuplicateDrop_ReturnsExistingUnchanged(t *testing.T) {
	ele := 10.0
	existing := &domain.Trackpoint{ID: 5, DataloggerID: 1, Lat: 1, Lon: 2, Ele: &ele}
	r := &fakeTrackpointRepo{existing: existing}
	s := NewIngestService(nil, r, owntracksProfile())

	before := testutil.ToFloat64(duplicateTotal.WithLabelValues("gpslocation.owntracks"))
	tp, created, err := s.Ingest(context.Background(), &domain.Datalogger{ID: 1}, examplePayload(), nil)
	if err != nil || created {
		t.Fatalf("created=%v err=%v", created, err)
	}
	if tp != existing || tp.Lat != 1 || *tp.Ele != 10 || tp.HAcc != nil {
		t.Fatalf("existing record modified: %+v", tp)
	}
	if r.writes != 0 {
		t.Fatalf("writes = %d, want 0", r.writes)
	}
	if got := testutil.ToFloat64(duplicateTotal.WithLabelValues("gpslocation.owntracks")); got != before+1 {
		t.Fatalf("duplicate counter = %v, want %v", got, before+1)
	}
}

func TestIngest_DuplicateMerge_SingleUpdate(t *testing.T) {
	ele := 10.0
	course := 90.0
	existing := &domain.Trackpoint{ID: 5, DataloggerID: 1, Lat: 1, Lon: 2, Ele: &ele, Course: &course}
	r := &fakeTrackpointRepo{existing: existing}
	s := NewIngestService(nil, r, owntracksProfile())
	s.DedupPolicy = config.DedupMerge

	tp, created, err := s.Ingest(context.Background(), &domain.Datalogger{ID: 1}, examplePayload(), nil)
	if err != nil || created {
		t.Fatalf("created=%v err=%v", created, err)
	}
	if r.writes != 1 || r.updated != existing {
		t.Fatalf("expected one update of the existing row, writes=%d", r.writes)
	}
	if tp.Lat != 60.171661 || *tp.Ele != 39 || tp.HAcc == nil || *tp.HAcc != 25 {
		t.Fatalf("merge did not overwrite: %+v", tp)
	}
	if tp.Course == nil || *tp.Course != 90 {
		t.Fatalf("fields absent from payload must be kept")
	}
}

func TestIngest_InsertRace_IsBenign(t *testing.T) {
	r := &fakeTrackpointRepo{createErr: repo.ErrDuplicate}
	s := NewIngestService(nil, r, owntracksProfile())
	tp, created, err := s.Ingest(context.Background(), &domain.Datalogger{ID: 1}, examplePayload(), nil)
	if err != nil || tp != nil || created {
		t.Fatalf("want (nil, false, nil), got (%v, %v, %v)", tp, created, err)
	}
}

func TestIngest_StoreFailures_AreDependencyErrors(t *testing.T) {
	boom := errors.New("disk full")
	for name, r := range map[string]*fakeTrackpointRepo{
		"find":   {findErr: boom},
		"create": {createErr: boom},
		"update": {existing: &domain.Trackpoint{ID: 1}, updateErr: boom},
	} {
		t.Run(name, func(t *testing.T) {
			s := NewIngestService(nil, r, owntracksProfile())
			s.DedupPolicy = config.DedupMerge
			_, _, err := s.Ingest(context.Background(), &domain.Datalogger{ID: 1}, examplePayload(), nil)
			if !errors.Is(err, ErrDependency) || !errors.Is(err, boom) {
				t.Fatalf("err = %v, want dependency error wrapping %v", err, boom)
			}
			var de *DependencyError
			if !errors.As(err, &de) || de.Op == "" {
				t.Fatalf("expected *DependencyError with op, got %T", err)
			}
		})
	}
}

func TestIngest_GPXProfile_SameNameMapping(t *testing.T) {
	r := &fakeTrackpointRepo{}
	s := NewIngestService(nil, r, Profiles["gpslocation.gpx"])
	p := map[string]any{
		"tst": json.Number("1556008153"), "lat": json.Number("1"), "lon": json.Number("2"),
		"ele": json.Number("12"), "hdop": json.Number("0.9"), "sat": json.Number("7"),
		"conn": "m", "acc": json.Number("25"),
	}
	tp, _, err := s.Ingest(context.Background(), &domain.Datalogger{ID: 1}, p, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if *tp.Ele != 12 || *tp.HDOP != 0.9 || *tp.Sat != 7 || *tp.Conn != "m" {
		t.Fatalf("same-name mapping failed: %+v", tp)
	}
	if tp.HAcc != nil {
		t.Fatalf("acc is not a gpx key, hacc must stay nil")
	}
}

func TestIngest_Idempotent_AgainstStore(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	dl := seedLogger(t, db, "alice_phone")
	s := NewIngestService(db, storeShim{}, owntracksProfile())

	first, created, err := s.Ingest(ctx, dl, examplePayload(), nil)
	if err != nil || !created {
		t.Fatalf("first: created=%v err=%v", created, err)
	}

	p := examplePayload()
	p["acc"] = json.Number("99")
	p["lat"] = json.Number("10")
	second, created, err := s.Ingest(ctx, dl, p, nil)
	if err != nil || created {
		t.Fatalf("second: created=%v err=%v", created, err)
	}
	if second.ID != first.ID || *second.HAcc != 25 || second.Lat != 60.171661 {
		t.Fatalf("duplicate overwrote the stored record: %+v", second)
	}

	n, _ := repo.CountTrackpoints(ctx, db, dl.ID)
	if n != 1 {
		t.Fatalf("stored %d trackpoints, want 1", n)
	}
}
