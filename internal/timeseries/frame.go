// Package timeseries handles the tabular time-series files the pipeline
// moves between: CAMS csv_expert raw downloads, processed 10-minute CSVs and
// ground measurement exports. Values are kept columnar with NaN for gaps.
package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Frame is a column-oriented time series. Every column slice has the same
// length as Times. Missing values are NaN.
type Frame struct {
	Times   []time.Time
	Columns []string
	Values  map[string][]float64
}

func NewFrame() *Frame {
	return &Frame{Values: make(map[string][]float64)}
}

func (f *Frame) Len() int {
	return len(f.Times)
}

// Column returns the values for a named column.
func (f *Frame) Column(name string) ([]float64, bool) {
	v, ok := f.Values[name]
	return v, ok
}

// HasColumn reports whether the frame carries the named column.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.Values[name]
	return ok
}

// Rename moves a column to a new name, preserving column order.
func (f *Frame) Rename(from, to string) error {
	v, ok := f.Values[from]
	if !ok {
		return fmt.Errorf("rename: no column %q", from)
	}
	delete(f.Values, from)
	f.Values[to] = v
	for i, c := range f.Columns {
		if c == from {
			f.Columns[i] = to
		}
	}
	return nil
}

// Resample aggregates the frame into fixed clock-aligned buckets of the
// given width, taking the mean of each column within a bucket. NaN values do
// not contribute to the mean; a bucket with no finite values stays NaN.
// The result is ordered by bucket time.
func (f *Frame) Resample(interval time.Duration) *Frame {
	type acc struct {
		sum   map[string]float64
		count map[string]int
	}

	buckets := make(map[int64]*acc)
	for i, t := range f.Times {
		key := t.Truncate(interval).Unix()
		a, ok := buckets[key]
		if !ok {
			a = &acc{sum: make(map[string]float64), count: make(map[string]int)}
			buckets[key] = a
		}
		for _, col := range f.Columns {
			v := f.Values[col][i]
			if math.IsNaN(v) {
				continue
			}
			a.sum[col] += v
			a.count[col]++
		}
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := NewFrame()
	out.Columns = append(out.Columns, f.Columns...)
	for _, col := range out.Columns {
		out.Values[col] = make([]float64, 0, len(keys))
	}
	for _, k := range keys {
		out.Times = append(out.Times, time.Unix(k, 0).UTC())
		a := buckets[k]
		for _, col := range out.Columns {
			if n := a.count[col]; n > 0 {
				out.Values[col] = append(out.Values[col], a.sum[col]/float64(n))
			} else {
				out.Values[col] = append(out.Values[col], math.NaN())
			}
		}
	}
	return out
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.0",
	"2006-01-02T15:04:05.0",
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a timestamp in the formats the upstream files use.
// Timezone-naive values are taken as UTC; aware values are converted to UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
