package etl

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
)

// stubStore records appended chunks and can inject a conflict or failure
// on a specific append call.
type stubStore struct {
	latest      map[uuid.UUID]time.Time
	latestCalls int

	chunks        map[uuid.UUID][][]Point
	appendCalls   int
	conflictAt    int // 1-based append call that returns ErrConflict, 0 = never
	failAt        int // 1-based append call that returns a hard error, 0 = never
}

func newStubStore() *stubStore {
	return &stubStore{
		latest: make(map[uuid.UUID]time.Time),
		chunks: make(map[uuid.UUID][][]Point),
	}
}

func (s *stubStore) LatestTime(ctx context.Context, datastreamID uuid.UUID) (time.Time, bool, error) {
	s.latestCalls++
	t, ok := s.latest[datastreamID]
	return t, ok, nil
}

func (s *stubStore) AppendChunk(ctx context.Context, datastreamID uuid.UUID, points []Point) error {
	s.appendCalls++
	if s.conflictAt > 0 && s.appendCalls == s.conflictAt {
		return ErrConflict
	}
	if s.failAt > 0 && s.appendCalls == s.failAt {
		return errors.New("disk on fire")
	}
	s.chunks[datastreamID] = append(s.chunks[datastreamID], points)
	return nil
}

func (s *stubStore) total(datastreamID uuid.UUID) int {
	n := 0
	for _, c := range s.chunks[datastreamID] {
		n += len(c)
	}
	return n
}

// taskFor builds a task whose mapping paths target the given datastreams.
func taskFor(name string, dsIDs ...uuid.UUID) *models.Task {
	task := &models.Task{Name: name}
	for _, id := range dsIDs {
		task.Mappings = append(task.Mappings, models.TaskMapping{
			SourceIdentifier: "field-" + id.String()[:8],
			Paths:            []models.TaskMappingPath{{DatastreamID: id}},
		})
	}
	return task
}

// frameFor builds a single-column frame with n rows starting at start,
// spaced one minute apart.
func frameFor(t *testing.T, column string, start time.Time, n int) *Frame {
	t.Helper()
	ts := make([]time.Time, n)
	vals := make([]float64, n)
	for i := range ts {
		ts[i] = start.Add(time.Duration(i) * time.Minute)
		vals[i] = float64(i)
	}
	frame := NewFrame(ts)
	if err := frame.AddColumn(column, vals); err != nil {
		t.Fatalf("add column: %v", err)
	}
	return frame
}

func TestCutoff_MinimumAcrossStreams(t *testing.T) {
	store := newStubStore()
	ds1, ds2 := uuid.New(), uuid.New()
	store.latest[ds1] = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	store.latest[ds2] = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	loader := NewDatastreamLoader(store, 100, nil)
	cutoff, err := loader.Cutoff(context.Background(), taskFor("t", ds1, ds2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cutoff.Equal(store.latest[ds2]) {
		t.Errorf("expected cutoff %v (lagging stream), got %v", store.latest[ds2], cutoff)
	}
}

func TestCutoff_EmptyStreamPullsToEpoch(t *testing.T) {
	store := newStubStore()
	ds1, ds2 := uuid.New(), uuid.New()
	store.latest[ds1] = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	// ds2 has no observations.

	loader := NewDatastreamLoader(store, 100, nil)
	cutoff, err := loader.Cutoff(context.Background(), taskFor("t", ds1, ds2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cutoff.Equal(epoch) {
		t.Errorf("expected epoch cutoff for empty stream, got %v", cutoff)
	}
}

func TestCutoff_CachedPerTask(t *testing.T) {
	store := newStubStore()
	ds := uuid.New()
	store.latest[ds] = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	loader := NewDatastreamLoader(store, 100, nil)
	task := taskFor("t", ds)

	if _, err := loader.Cutoff(context.Background(), task); err != nil {
		t.Fatalf("first cutoff: %v", err)
	}
	if _, err := loader.Cutoff(context.Background(), task); err != nil {
		t.Fatalf("second cutoff: %v", err)
	}
	if store.latestCalls != 1 {
		t.Errorf("expected 1 store query, got %d", store.latestCalls)
	}
}

func TestLoad_CutoffFiltersOldRows(t *testing.T) {
	store := newStubStore()
	ds := uuid.New()
	cutoff := time.Date(2026, 1, 1, 0, 10, 0, 0, time.UTC)
	store.latest[ds] = cutoff

	// 20 rows starting at midnight; rows 0..10 are at or before the cutoff.
	frame := frameFor(t, ds.String(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 20)

	loader := NewDatastreamLoader(store, 100, nil)
	stats, err := loader.Load(context.Background(), frame, taskFor("t", ds))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.FilteredByCutoff != 11 {
		t.Errorf("expected 11 rows filtered by cutoff, got %d", stats.FilteredByCutoff)
	}
	if stats.Loaded != 9 {
		t.Errorf("expected 9 rows loaded, got %d", stats.Loaded)
	}
	if got := store.total(ds); got != 9 {
		t.Errorf("expected 9 rows in store, got %d", got)
	}
}

func TestLoad_RerunIsNoOp(t *testing.T) {
	store := newStubStore()
	ds := uuid.New()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	frame := frameFor(t, ds.String(), start, 10)

	loader := NewDatastreamLoader(store, 100, nil)
	if _, err := loader.Load(context.Background(), frame, taskFor("t", ds)); err != nil {
		t.Fatalf("first load: %v", err)
	}

	// Second run: the store now reports the last loaded timestamp, and the
	// cache is fresh, as it would be for a new run.
	store.latest[ds] = start.Add(9 * time.Minute)
	loader = NewDatastreamLoader(store, 100, nil)
	stats, err := loader.Load(context.Background(), frame, taskFor("t", ds))
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if stats.Loaded != 0 {
		t.Errorf("expected 0 rows loaded on rerun, got %d", stats.Loaded)
	}
	if stats.FilteredByCutoff != 10 {
		t.Errorf("expected all 10 rows filtered on rerun, got %d", stats.FilteredByCutoff)
	}
}

func TestLoad_Chunking(t *testing.T) {
	store := newStubStore()
	ds := uuid.New()
	frame := frameFor(t, ds.String(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 12000)

	loader := NewDatastreamLoader(store, 5000, nil)
	stats, err := loader.Load(context.Background(), frame, taskFor("t", ds))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Loaded != 12000 {
		t.Errorf("expected 12000 rows loaded, got %d", stats.Loaded)
	}
	chunks := store.chunks[ds]
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, want := range []int{5000, 5000, 2000} {
		if len(chunks[i]) != want {
			t.Errorf("chunk %d: expected %d rows, got %d", i, want, len(chunks[i]))
		}
	}
}

func TestLoad_ConflictAbandonsColumn(t *testing.T) {
	store := newStubStore()
	ds := uuid.New()
	frame := frameFor(t, ds.String(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 12000)
	store.conflictAt = 2

	loader := NewDatastreamLoader(store, 5000, nil)
	stats, err := loader.Load(context.Background(), frame, taskFor("t", ds))
	if err != nil {
		t.Fatalf("conflict should not fail the run: %v", err)
	}

	col := stats.Columns[ds.String()]
	if !col.Conflicted {
		t.Error("expected column marked conflicted")
	}
	if col.Loaded != 5000 {
		t.Errorf("expected 5000 rows loaded before conflict, got %d", col.Loaded)
	}
	if col.Skipped != 7000 {
		t.Errorf("expected 7000 rows skipped after conflict, got %d", col.Skipped)
	}
	// The first chunk stays committed.
	if got := store.total(ds); got != 5000 {
		t.Errorf("expected 5000 rows in store, got %d", got)
	}
}

func TestLoad_ConflictDoesNotAffectOtherColumns(t *testing.T) {
	store := newStubStore()
	ds1, ds2 := uuid.New(), uuid.New()
	store.conflictAt = 1 // first column's only chunk conflicts

	ts := []time.Time{time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)}
	frame := NewFrame(ts)
	frame.AddColumn(ds1.String(), []float64{1})
	frame.AddColumn(ds2.String(), []float64{2})

	loader := NewDatastreamLoader(store, 100, nil)
	stats, err := loader.Load(context.Background(), frame, taskFor("t", ds1, ds2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stats.Columns[ds1.String()].Conflicted {
		t.Error("expected first column conflicted")
	}
	if stats.Columns[ds2.String()].Loaded != 1 {
		t.Errorf("expected second column loaded, got %+v", stats.Columns[ds2.String()])
	}
}

func TestLoad_HardErrorAbortsRun(t *testing.T) {
	store := newStubStore()
	ds := uuid.New()
	frame := frameFor(t, ds.String(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 10)
	store.failAt = 1

	loader := NewDatastreamLoader(store, 100, nil)
	_, err := loader.Load(context.Background(), frame, taskFor("t", ds))
	if err == nil {
		t.Fatal("expected load to abort on storage error")
	}
}

func TestLoad_MissingValuesDropped(t *testing.T) {
	store := newStubStore()
	ds := uuid.New()

	ts := []time.Time{
		time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 2, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 3, 0, 0, time.UTC),
	}
	frame := NewFrame(ts)
	frame.AddColumn(ds.String(), []float64{1, math.NaN(), 3})

	loader := NewDatastreamLoader(store, 100, nil)
	stats, err := loader.Load(context.Background(), frame, taskFor("t", ds))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Loaded != 2 {
		t.Errorf("expected 2 rows loaded, got %d", stats.Loaded)
	}
	if stats.Columns[ds.String()].DroppedMissing != 1 {
		t.Errorf("expected 1 missing row dropped, got %d", stats.Columns[ds.String()].DroppedMissing)
	}
	if stats.DroppedMissing != 1 {
		t.Errorf("expected aggregate dropped_missing=1, got %d", stats.DroppedMissing)
	}
	// Every input row is accounted for in the aggregate counters.
	total := stats.Loaded + stats.Skipped + stats.FilteredByCutoff + stats.DroppedMissing
	if total != stats.Available {
		t.Errorf("aggregate counters sum to %d, expected available=%d", total, stats.Available)
	}
}

func TestLoad_UnsortedFrameLoadsInTimeOrder(t *testing.T) {
	store := newStubStore()
	ds := uuid.New()

	ts := []time.Time{
		time.Date(2026, 1, 1, 0, 3, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 2, 0, 0, time.UTC),
	}
	frame := NewFrame(ts)
	frame.AddColumn(ds.String(), []float64{3, 1, 2})

	loader := NewDatastreamLoader(store, 100, nil)
	if _, err := loader.Load(context.Background(), frame, taskFor("t", ds)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	points := store.chunks[ds][0]
	for i := 1; i < len(points); i++ {
		if points[i].Time.Before(points[i-1].Time) {
			t.Fatalf("points not in ascending time order: %v", points)
		}
	}
}

func TestLoad_NonDatastreamColumnSkipped(t *testing.T) {
	store := newStubStore()

	ts := []time.Time{time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)}
	frame := NewFrame(ts)
	frame.AddColumn("not-a-uuid", []float64{1})

	loader := NewDatastreamLoader(store, 100, nil)
	stats, err := loader.Load(context.Background(), frame, taskFor("t"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Loaded != 0 || store.appendCalls != 0 {
		t.Errorf("expected nothing loaded for non-datastream column, got %+v", stats)
	}
}
