package services

import (
	"context"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-location-broker/internal/domain"
	"github.com/tbourn/go-location-broker/internal/repo"
)

// storeShim is the production adapter; the alias keeps test call sites short.
type storeShim = repo.Store

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedLogger(t *testing.T, db *gorm.DB, devid string) *domain.Datalogger {
	t.Helper()
	dl, _, err := repo.GetOrCreateDatalogger(context.Background(), db, devid, "gpslocation.owntracks", false, time.Now())
	if err != nil {
		t.Fatalf("seed datalogger: %v", err)
	}
	return dl
}
