package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
)

// DefaultChunkSize is the number of rows submitted per bulk append.
const DefaultChunkSize = 5000

// epoch is the default watermark for datastreams with no data yet.
var epoch = time.Unix(0, 0).UTC()

// CutoffCache holds the per-task load watermark for the lifetime of one
// run. The runner creates a fresh cache per run and discards it at run
// end, so the cutoff is computed once per task and never recomputed per
// chunk.
type CutoffCache struct {
	mu sync.Mutex
	m  map[string]time.Time
}

// NewCutoffCache creates an empty run-scoped cutoff cache.
func NewCutoffCache() *CutoffCache {
	return &CutoffCache{m: make(map[string]time.Time)}
}

func (c *CutoffCache) get(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.m[key]
	return t, ok
}

func (c *CutoffCache) put(key string, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = t
}

// ColumnStats reports what happened to one target datastream column.
type ColumnStats struct {
	Available        int  `json:"available"`
	Loaded           int  `json:"loaded"`
	Skipped          int  `json:"skipped"`
	FilteredByCutoff int  `json:"filtered_by_cutoff"`
	DroppedMissing   int  `json:"dropped_missing"`
	Conflicted       bool `json:"conflicted,omitempty"`
}

// LoadStats aggregates per-column and whole-frame load statistics. The
// aggregate counters account for every input row: available = loaded +
// skipped + filtered_by_cutoff + dropped_missing.
type LoadStats struct {
	Cutoff           time.Time               `json:"cutoff"`
	Available        int                     `json:"available"`
	Loaded           int                     `json:"loaded"`
	Skipped          int                     `json:"skipped"`
	FilteredByCutoff int                     `json:"filtered_by_cutoff"`
	DroppedMissing   int                     `json:"dropped_missing"`
	Columns          map[string]*ColumnStats `json:"columns"`
}

// DatastreamLoader appends frame columns to their target datastreams with
// cutoff-filtered, chunked, append-only semantics. Rows at or before the
// cutoff are dropped, which makes re-running an overlapping extract window
// a no-op for already-loaded points. A duplicate-timestamp conflict on a
// chunk abandons the remaining chunks for that column only; prior chunks
// stay committed. Any other storage error aborts the run.
type DatastreamLoader struct {
	store     ObservationStore
	chunkSize int
	cache     *CutoffCache
}

// NewDatastreamLoader creates a loader over the given store. A nil cache
// gets a private one; the runner passes a shared run-scoped cache.
func NewDatastreamLoader(store ObservationStore, chunkSize int, cache *CutoffCache) *DatastreamLoader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if cache == nil {
		cache = NewCutoffCache()
	}
	return &DatastreamLoader{store: store, chunkSize: chunkSize, cache: cache}
}

func init() {
	RegisterLoader("hydroserve", func(settings map[string]interface{}, deps Deps) (Loader, error) {
		if deps.Store == nil {
			return nil, &ConfigError{Message: "hydroserve loader requires an observation store"}
		}
		return NewDatastreamLoader(deps.Store, deps.ChunkSize, deps.Cache), nil
	})
}

// Cutoff computes the load watermark for the task: the minimum over all
// target datastreams of each stream's latest phenomenon time, defaulting
// to the Unix epoch for streams with no data. The value is cached per task
// name for the lifetime of the cache.
func (l *DatastreamLoader) Cutoff(ctx context.Context, task *models.Task) (time.Time, error) {
	if t, ok := l.cache.get(task.Name); ok {
		return t, nil
	}

	ids := targetDatastreamIDs(task)
	cutoff := time.Time{}
	for i, id := range ids {
		latest, ok, err := l.store.LatestTime(ctx, id)
		if err != nil {
			return time.Time{}, fmt.Errorf("latest time for datastream %s: %w", id, err)
		}
		if !ok {
			latest = epoch
		}
		if i == 0 || latest.Before(cutoff) {
			cutoff = latest
		}
	}
	if len(ids) == 0 {
		cutoff = epoch
	}

	l.cache.put(task.Name, cutoff)
	return cutoff, nil
}

// Load appends the frame's columns to their datastreams. Column names are
// datastream UUIDs; unparseable names are skipped with a warning.
func (l *DatastreamLoader) Load(ctx context.Context, frame *Frame, task *models.Task) (*LoadStats, error) {
	cutoff, err := l.Cutoff(ctx, task)
	if err != nil {
		return nil, err
	}

	frame.SortByTime()

	stats := &LoadStats{
		Cutoff:  cutoff,
		Columns: make(map[string]*ColumnStats),
	}

	for _, name := range frame.Columns() {
		col := &ColumnStats{}
		stats.Columns[name] = col

		dsID, err := uuid.Parse(name)
		if err != nil {
			slog.Warn("Skipping column with non-datastream name", "task", task.Name, "column", name)
			continue
		}

		points := l.filterColumn(frame, name, cutoff, col)
		if len(points) == 0 {
			slog.Info("No loadable rows for datastream", "task", task.Name, "datastream", dsID)
		} else if err := l.loadColumn(ctx, task, dsID, points, col); err != nil {
			return nil, err
		}

		stats.Available += col.Available
		stats.Loaded += col.Loaded
		stats.Skipped += col.Skipped
		stats.FilteredByCutoff += col.FilteredByCutoff
		stats.DroppedMissing += col.DroppedMissing
	}

	return stats, nil
}

// filterColumn drops rows at or before the cutoff, then rows with missing
// results, recording counts for both.
func (l *DatastreamLoader) filterColumn(frame *Frame, name string, cutoff time.Time, col *ColumnStats) []Point {
	ts := frame.Timestamps()
	vals := frame.Column(name)
	col.Available = len(vals)

	points := make([]Point, 0, len(vals))
	for i, v := range vals {
		if !ts[i].After(cutoff) {
			col.FilteredByCutoff++
			continue
		}
		if IsMissing(v) {
			col.DroppedMissing++
			continue
		}
		points = append(points, Point{Time: ts[i], Result: v})
	}
	return points
}

// loadColumn submits the column's points in fixed-size chunks. On a
// conflict the remaining chunks for this column are abandoned and the rows
// counted as skipped; on any other error the run aborts.
func (l *DatastreamLoader) loadColumn(ctx context.Context, task *models.Task, dsID uuid.UUID, points []Point, col *ColumnStats) error {
	for start := 0; start < len(points); start += l.chunkSize {
		end := start + l.chunkSize
		if end > len(points) {
			end = len(points)
		}
		chunk := points[start:end]

		if err := l.store.AppendChunk(ctx, dsID, chunk); err != nil {
			if errors.Is(err, ErrConflict) {
				col.Conflicted = true
				col.Skipped = len(points) - start
				slog.Warn("Timestamp conflict, abandoning remaining chunks for datastream",
					"task", task.Name,
					"datastream", dsID,
					"loaded", col.Loaded,
					"skipped", col.Skipped)
				return nil
			}
			return fmt.Errorf("append chunk to datastream %s: %w", dsID, err)
		}
		col.Loaded += len(chunk)
	}
	return nil
}

// targetDatastreamIDs collects the distinct datastreams referenced by the
// task's mapping paths, preserving first-reference order.
func targetDatastreamIDs(task *models.Task) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, m := range task.Mappings {
		for _, p := range m.Paths {
			if !seen[p.DatastreamID] {
				seen[p.DatastreamID] = true
				ids = append(ids, p.DatastreamID)
			}
		}
	}
	return ids
}
