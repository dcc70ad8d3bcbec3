package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-location-broker/internal/config"
	"github.com/tbourn/go-location-broker/internal/domain"
	"github.com/tbourn/go-location-broker/internal/repo"
)

var t0 = time.Date(2019, 4, 23, 8, 29, 13, 0, time.UTC)

func newTestCLI(t *testing.T) (*CLI, *gorm.DB, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	var stdout, stderr bytes.Buffer
	c := &CLI{
		Program: "trackctl",
		Stdout:  &stdout,
		Stderr:  &stderr,
		Now:     func() time.Time { return t0.Add(time.Hour) },
		Open: func() (*Store, error) {
			return &Store{
				DB:     db,
				Config: config.Config{DefaultLength: "1d", TrackGap: 5 * time.Minute},
				Close:  func() error { return nil },
			}, nil
		},
	}
	return c, db, &stdout, &stderr
}

func seedTrack(t *testing.T, db *gorm.DB, devid string, offsets ...time.Duration) *domain.Datalogger {
	t.Helper()
	ctx := context.Background()
	dl, _, err := repo.GetOrCreateDatalogger(ctx, db, devid, "owntracks.owntracks", true, t0)
	if err != nil {
		t.Fatalf("datalogger: %v", err)
	}
	for i, off := range offsets {
		tp := &domain.Trackpoint{DataloggerID: dl.ID, Status: 1, Time: t0.Add(off), Lat: 60 + float64(i)/1000, Lon: 24.9}
		if err := repo.CreateTrackpoint(ctx, db, tp); err != nil {
			t.Fatalf("trackpoint: %v", err)
		}
	}
	return dl
}

func TestRun_Usage(t *testing.T) {
	c, _, _, _ := newTestCLI(t)
	for _, args := range [][]string{nil, {"frobnicate"}, {"export", "-h"}} {
		var usage UsageError
		if err := c.Run(args); !errors.As(err, &usage) {
			t.Fatalf("%v: expected UsageError, got %v", args, err)
		}
	}
	if lines := (UsageError{}).UsageLines(); len(lines) != 4 {
		t.Fatalf("usage lines = %v", lines)
	}
	if got := (UsageError{}).Error(); got != "Usage: trackctl <command> [options]" {
		t.Fatalf("usage = %q", got)
	}
}

func TestExport_GPXToStdout(t *testing.T) {
	c, db, stdout, _ := newTestCLI(t)
	dl := seedTrack(t, db, "alice_phone", 0, time.Minute, 20*time.Minute)

	if err := c.Run([]string{"export", "-dl", itoa(dl.ID), "-tl", "2h"}); err != nil {
		t.Fatalf("export: %v", err)
	}
	out := stdout.String()
	if strings.Count(out, "<trkseg>") != 2 || strings.Count(out, "<trkpt") != 3 {
		t.Fatalf("gpx output:\n%s", out)
	}
}

func TestExport_WindowAndFile(t *testing.T) {
	c, db, stdout, stderr := newTestCLI(t)
	dl := seedTrack(t, db, "alice_phone", 0, time.Minute, 20*time.Minute)
	path := filepath.Join(t.TempDir(), "out.csv")

	err := c.Run([]string{"export", "--datalogger", itoa(dl.ID),
		"--starttime", "2019-04-23T08:00:00Z", "--endtime", "2019-04-23T08:35:00Z",
		"-o", "csv", "-O", path})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout must stay empty with -O, got %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "wrote 2 points in 1 segments") {
		t.Fatalf("stderr = %q", stderr.String())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(b)), "\n"); len(lines) != 3 {
		t.Fatalf("csv lines = %d:\n%s", len(lines), b)
	}
}

func TestExport_UnknownDataloggerListsKnown(t *testing.T) {
	c, db, _, stderr := newTestCLI(t)
	dl := seedTrack(t, db, "alice_phone", 0)

	err := c.Run([]string{"export", "-dl", "999"})
	if !errors.Is(err, ErrUnknownDatalogger) {
		t.Fatalf("expected ErrUnknownDatalogger, got %v", err)
	}
	out := stderr.String()
	for _, want := range []string{"Datalogger id 999 does not exist", itoa(dl.ID) + " alice_phone"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stderr missing %q:\n%s", want, out)
		}
	}
}

func TestExport_BadInput(t *testing.T) {
	c, db, _, _ := newTestCLI(t)
	dl := seedTrack(t, db, "alice_phone", 0)
	id := itoa(dl.ID)

	for _, args := range [][]string{
		{"export"},
		{"export", "-dl", id, "-o", "kml"},
		{"export", "-dl", id, "--starttime", "2019-04-23T08:00:00"},
		{"export", "-dl", id, "-tl", "5y"},
	} {
		if err := c.Run(args); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
}

func TestDevices(t *testing.T) {
	c, db, stdout, _ := newTestCLI(t)
	seedTrack(t, db, "alice_phone", 0, time.Minute)
	seedTrack(t, db, "bob_tablet")

	if err := c.Run([]string{"devices"}); err != nil {
		t.Fatalf("devices: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "alice_phone") || strings.Contains(out, "bob_tablet") {
		t.Fatalf("devices output:\n%s", out)
	}
}

func TestAddUser(t *testing.T) {
	c, db, stdout, _ := newTestCLI(t)

	if err := c.Run([]string{"adduser", "--username", "alice", "--password", "pw-123456"}); err != nil {
		t.Fatalf("adduser: %v", err)
	}
	if !strings.Contains(stdout.String(), "created user alice") {
		t.Fatalf("stdout = %q", stdout.String())
	}
	u, err := repo.GetUserByUsername(context.Background(), db, "alice")
	if err != nil || u.PasswordHash == "pw-123456" {
		t.Fatalf("user = %+v err=%v", u, err)
	}

	if err := c.Run([]string{"adduser", "--username", "alice", "--password", "other"}); err == nil {
		t.Fatalf("duplicate username must fail")
	}
	if err := c.Run([]string{"adduser", "--username", "bob", "--password", ""}); err == nil {
		t.Fatalf("empty password must fail")
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
