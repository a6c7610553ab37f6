package etl

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Frame is the tabular unit passed between pipeline stages: a shared
// timestamp column plus named float64 value columns. NaN marks a missing
// cell. Column order is preserved; the loader processes columns in the
// order they were added.
type Frame struct {
	timestamps []time.Time
	order      []string
	values     map[string][]float64
}

// NewFrame creates a frame over the given timestamps.
func NewFrame(timestamps []time.Time) *Frame {
	return &Frame{
		timestamps: timestamps,
		values:     make(map[string][]float64),
	}
}

// AddColumn appends a value column. The column must match the timestamp
// column length; re-adding an existing name overwrites in place.
func (f *Frame) AddColumn(name string, vals []float64) error {
	if len(vals) != len(f.timestamps) {
		return fmt.Errorf("column %q has %d values for %d timestamps", name, len(vals), len(f.timestamps))
	}
	if _, exists := f.values[name]; !exists {
		f.order = append(f.order, name)
	}
	f.values[name] = vals
	return nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.timestamps)
}

// Empty reports whether the frame has no rows or no value columns.
func (f *Frame) Empty() bool {
	return f.Len() == 0 || len(f.order) == 0
}

// Columns returns the value column names in insertion order.
func (f *Frame) Columns() []string {
	return f.order
}

// Column returns the values for a column, or nil if absent.
func (f *Frame) Column(name string) []float64 {
	return f.values[name]
}

// Timestamps returns the shared timestamp column.
func (f *Frame) Timestamps() []time.Time {
	return f.timestamps
}

// SortByTime reorders all rows into ascending timestamp order. The loader
// relies on this so chunks within a column load oldest first.
func (f *Frame) SortByTime() {
	idx := make([]int, len(f.timestamps))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return f.timestamps[idx[a]].Before(f.timestamps[idx[b]])
	})

	ts := make([]time.Time, len(f.timestamps))
	for i, j := range idx {
		ts[i] = f.timestamps[j]
	}
	f.timestamps = ts

	for name, vals := range f.values {
		sorted := make([]float64, len(vals))
		for i, j := range idx {
			sorted[i] = vals[j]
		}
		f.values[name] = sorted
	}
}

// IsMissing reports whether a cell value marks a missing observation.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}
