package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-location-broker/internal/domain"
	"github.com/tbourn/go-location-broker/internal/repo"
)

type fakeDataloggerRepo struct {
	storeShim

	getOrCreateErr error
	countTotal     int64
	countErr       error
	pageOffset     int
	pageLimit      int
	pageCalled     bool
}

func (r *fakeDataloggerRepo) GetOrCreateDatalogger(ctx context.Context, db *gorm.DB, devid, decoder string, touch bool, now time.Time) (*domain.Datalogger, bool, error) {
	if r.getOrCreateErr != nil {
		return nil, false, r.getOrCreateErr
	}
	return &domain.Datalogger{ID: 1, DevID: devid, Decoder: decoder, ActivityAt: &now}, true, nil
}

func (r *fakeDataloggerRepo) CountDataloggers(ctx context.Context, db *gorm.DB) (int64, error) {
	return r.countTotal, r.countErr
}

func (r *fakeDataloggerRepo) ListDataloggersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]repo.DataloggerSummary, error) {
	r.pageCalled = true
	r.pageOffset, r.pageLimit = offset, limit
	return []repo.DataloggerSummary{{ID: 1}}, nil
}

func TestDeviceResolve_UsesClockAndDecoder(t *testing.T) {
	now := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	s := NewDeviceService(nil, &fakeDataloggerRepo{})
	s.Now = func() time.Time { return now }

	dl, err := s.Resolve(context.Background(), "alice_phone", "gpslocation.owntracks")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if dl.DevID != "alice_phone" || dl.Decoder != "gpslocation.owntracks" || !dl.ActivityAt.Equal(now) {
		t.Fatalf("unexpected datalogger: %+v", dl)
	}
}

func TestDeviceResolve_StoreFailure(t *testing.T) {
	s := NewDeviceService(nil, &fakeDataloggerRepo{getOrCreateErr: errors.New("down")})
	if _, err := s.Resolve(context.Background(), "a_b", "d"); !errors.Is(err, ErrDependency) {
		t.Fatalf("expected ErrDependency, got %v", err)
	}
}

func TestDeviceListPage_DefaultsAndOffset(t *testing.T) {
	r := &fakeDataloggerRepo{countTotal: 50}
	s := NewDeviceService(nil, r)

	items, total, err := s.ListPage(context.Background(), 3, 10)
	if err != nil || total != 50 || len(items) != 1 {
		t.Fatalf("items=%v total=%d err=%v", items, total, err)
	}
	if r.pageOffset != 20 || r.pageLimit != 10 {
		t.Fatalf("offset/limit = %d/%d, want 20/10", r.pageOffset, r.pageLimit)
	}

	if _, _, err := s.ListPage(context.Background(), 0, 0); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if r.pageOffset != 0 || r.pageLimit != 20 {
		t.Fatalf("default offset/limit = %d/%d, want 0/20", r.pageOffset, r.pageLimit)
	}
}

func TestDeviceListPage_EmptySkipsQuery(t *testing.T) {
	r := &fakeDataloggerRepo{}
	items, total, err := NewDeviceService(nil, r).ListPage(context.Background(), 1, 10)
	if err != nil || total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("items=%v total=%d err=%v", items, total, err)
	}
	if r.pageCalled {
		t.Fatalf("page query should be skipped when there are no rows")
	}
}

func TestDeviceListPage_CountError(t *testing.T) {
	r := &fakeDataloggerRepo{countErr: errors.New("down")}
	if _, _, err := NewDeviceService(nil, r).ListPage(context.Background(), 1, 10); !errors.Is(err, ErrDependency) {
		t.Fatalf("expected ErrDependency, got %v", err)
	}
}

func TestDeviceGetAndKnown_AgainstStore(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	s := NewDeviceService(db, storeShim{})

	dl, err := s.Resolve(ctx, "alice_phone", "gpslocation.owntracks")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got, err := s.Get(ctx, dl.ID)
	if err != nil || got.DevID != "alice_phone" {
		t.Fatalf("Get: %+v %v", got, err)
	}
	if _, err := s.Get(ctx, dl.ID+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	st, err := s.Stats(ctx, dl.ID)
	if err != nil || st.Points != 0 || st.First != nil {
		t.Fatalf("Stats before ingest: %+v %v", st, err)
	}

	known, err := s.Known(ctx)
	if err != nil || len(known) != 0 {
		t.Fatalf("no trackpoints yet, got %v err=%v", known, err)
	}
	ingestAt(t, NewIngestService(db, storeShim{}, Profiles["gpslocation.owntracks"]), dl, time.Now())
	known, err = s.Known(ctx)
	if err != nil || len(known) != 1 || known[0].Points != 1 {
		t.Fatalf("known = %+v err=%v", known, err)
	}
	st, err = s.Stats(ctx, dl.ID)
	if err != nil || st.Points != 1 || st.First == nil || st.Last == nil || !st.First.Equal(*st.Last) {
		t.Fatalf("Stats after ingest: %+v %v", st, err)
	}
	if _, err := s.Stats(ctx, dl.ID+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Stats unknown: %v", err)
	}
}
