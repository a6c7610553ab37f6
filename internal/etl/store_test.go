package etl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Datastream{}, &models.Observation{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createStream(t *testing.T, db *gorm.DB) *models.Datastream {
	t.Helper()
	ds := models.Datastream{
		ThingID:            uuid.New(),
		SensorID:           uuid.New(),
		ObservedPropertyID: uuid.New(),
		UnitID:             uuid.New(),
		ProcessingLevelID:  uuid.New(),
		Name:               "stream",
	}
	if err := db.Create(&ds).Error; err != nil {
		t.Fatalf("create datastream: %v", err)
	}
	return &ds
}

func somePoints(start time.Time, n int) []Point {
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = Point{Time: start.Add(time.Duration(i) * time.Minute), Result: float64(i)}
	}
	return pts
}

func TestLatestTime_EmptyStream(t *testing.T) {
	db := setupStoreDB(t)
	store := NewObservationStore(db)

	_, ok, err := store.LatestTime(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for a stream with no observations")
	}
}

func TestAppendChunk_RecordsAndReportsLatest(t *testing.T) {
	db := setupStoreDB(t)
	store := NewObservationStore(db)
	ds := createStream(t, db)
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	if err := store.AppendChunk(context.Background(), ds.ID, somePoints(start, 5)); err != nil {
		t.Fatalf("append: %v", err)
	}

	latest, ok, err := store.LatestTime(context.Background(), ds.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true after append")
	}
	if !latest.Equal(start.Add(4 * time.Minute)) {
		t.Errorf("expected latest %v, got %v", start.Add(4*time.Minute), latest)
	}
}

func TestAppendChunk_DuplicateTimestampIsConflict(t *testing.T) {
	db := setupStoreDB(t)
	store := NewObservationStore(db)
	ds := createStream(t, db)
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	if err := store.AppendChunk(context.Background(), ds.ID, somePoints(start, 3)); err != nil {
		t.Fatalf("first append: %v", err)
	}

	err := store.AppendChunk(context.Background(), ds.ID, somePoints(start.Add(2*time.Minute), 3))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// The conflicting chunk rolled back whole; count unchanged.
	var count int64
	db.Model(&models.Observation{}).Where("datastream_id = ?", ds.ID).Count(&count)
	if count != 3 {
		t.Errorf("expected 3 observations after rollback, got %d", count)
	}
}

func TestAppendChunk_SameTimeDifferentStreams(t *testing.T) {
	db := setupStoreDB(t)
	store := NewObservationStore(db)
	ds1 := createStream(t, db)
	ds2 := createStream(t, db)
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	if err := store.AppendChunk(context.Background(), ds1.ID, somePoints(start, 2)); err != nil {
		t.Fatalf("append ds1: %v", err)
	}
	if err := store.AppendChunk(context.Background(), ds2.ID, somePoints(start, 2)); err != nil {
		t.Fatalf("identical times on another stream should not conflict: %v", err)
	}
}

func TestAppendChunk_RefreshesRollup(t *testing.T) {
	db := setupStoreDB(t)
	store := NewObservationStore(db)
	ds := createStream(t, db)
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	if err := store.AppendChunk(context.Background(), ds.ID, somePoints(start, 10)); err != nil {
		t.Fatalf("append: %v", err)
	}

	var got models.Datastream
	if err := db.First(&got, "id = ?", ds.ID).Error; err != nil {
		t.Fatalf("reload datastream: %v", err)
	}
	if got.ValueCount != 10 {
		t.Errorf("expected value_count=10, got %d", got.ValueCount)
	}
	if got.PhenomenonBeginTime == nil || !got.PhenomenonBeginTime.Equal(start) {
		t.Errorf("expected begin time %v, got %v", start, got.PhenomenonBeginTime)
	}
	if got.PhenomenonEndTime == nil || !got.PhenomenonEndTime.Equal(start.Add(9*time.Minute)) {
		t.Errorf("expected end time %v, got %v", start.Add(9*time.Minute), got.PhenomenonEndTime)
	}
}

func TestAppendChunk_EmptyIsNoOp(t *testing.T) {
	db := setupStoreDB(t)
	store := NewObservationStore(db)

	if err := store.AppendChunk(context.Background(), uuid.New(), nil); err != nil {
		t.Fatalf("empty append should succeed: %v", err)
	}
}
