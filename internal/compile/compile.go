// Package compile merges per-station processed CSVs and station metadata
// into one NetCDF dataset keyed by (station, time).
package compile

import (
	"fmt"
	"log"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/wetsa/solrad/internal/metrics"
	"github.com/wetsa/solrad/internal/stations"
	"github.com/wetsa/solrad/internal/timeseries"
)

var processedFileRe = regexp.MustCompile(`processed_10min_(.*?)_observed_cloud\.csv`)

type Options struct {
	LocationFile   string
	Pattern        string
	OutputFile     string
	ExcludeStation string
}

// Dataset is the pivoted (station x time) grid ready for NetCDF output.
// Grids are indexed [station][time] with NaN for missing cells. TimeLocal
// holds epoch seconds of the station-local time, NaN where the station has
// no observation at that instant.
type Dataset struct {
	Stations  []stations.Station
	Times     []time.Time
	GHI       [][]float64
	DHI       [][]float64
	DNI       [][]float64
	TimeLocal [][]float64
}

// Run executes the compile step. Missing location table, zero matching
// files and zero surviving files abort; individual file failures are logged
// and skipped.
func Run(opts Options) error {
	table, err := stations.LoadTable(opts.LocationFile)
	if err != nil {
		return err
	}

	files, err := filepath.Glob(opts.Pattern)
	if err != nil {
		return fmt.Errorf("bad file pattern %q: %w", opts.Pattern, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found matching %q", opts.Pattern)
	}
	sort.Strings(files)

	ds, err := BuildDataset(table, files, opts.ExcludeStation)
	if err != nil {
		return err
	}

	log.Printf("compile: writing %d stations x %d timestamps to %s", len(ds.Stations), len(ds.Times), opts.OutputFile)
	if err := writeNetCDF(opts.OutputFile, ds, opts.Pattern); err != nil {
		return fmt.Errorf("write %s: %w", opts.OutputFile, err)
	}
	log.Printf("compile: created %s", opts.OutputFile)
	return nil
}

type stationSeries struct {
	station stations.Station
	rows    map[int64][3]float64 // unix time -> GHI, DHI, DNI
}

// BuildDataset reads every matching file, resolves its station against the
// metadata table through the normalizer, and pivots the union of rows into
// a (station x time) grid. Files that cannot be matched or read are skipped
// with a warning.
func BuildDataset(table *stations.Table, files []string, excludeStation string) (*Dataset, error) {
	excludeKey := stations.NormalizeName(excludeStation)

	var order []string
	series := make(map[string]*stationSeries)

	for _, path := range files {
		if err := addFile(table, series, &order, path, excludeKey); err != nil {
			metrics.FilesCompiledTotal.WithLabelValues("skipped").Inc()
			log.Printf("compile: %s: %v (skipping)", path, err)
			continue
		}
		metrics.FilesCompiledTotal.WithLabelValues("ok").Inc()
	}

	if len(order) == 0 {
		return nil, fmt.Errorf("no station files were successfully processed")
	}

	timeSet := make(map[int64]struct{})
	for _, key := range order {
		for t := range series[key].rows {
			timeSet[t] = struct{}{}
		}
	}
	unixTimes := make([]int64, 0, len(timeSet))
	for t := range timeSet {
		unixTimes = append(unixTimes, t)
	}
	sort.Slice(unixTimes, func(i, j int) bool { return unixTimes[i] < unixTimes[j] })

	ds := &Dataset{}
	for _, u := range unixTimes {
		ds.Times = append(ds.Times, time.Unix(u, 0).UTC())
	}
	for _, key := range order {
		ss := series[key]
		ds.Stations = append(ds.Stations, ss.station)
		ghi := nanRow(len(unixTimes))
		dhi := nanRow(len(unixTimes))
		dni := nanRow(len(unixTimes))
		local := nanRow(len(unixTimes))
		offset := int64(ss.station.UTCOffset) * 3600
		for i, u := range unixTimes {
			if row, ok := ss.rows[u]; ok {
				ghi[i], dhi[i], dni[i] = row[0], row[1], row[2]
				local[i] = float64(u + offset)
			}
		}
		ds.GHI = append(ds.GHI, ghi)
		ds.DHI = append(ds.DHI, dhi)
		ds.DNI = append(ds.DNI, dni)
		ds.TimeLocal = append(ds.TimeLocal, local)
	}
	return ds, nil
}

func addFile(table *stations.Table, series map[string]*stationSeries, order *[]string, path, excludeKey string) error {
	name := filepath.Base(path)
	m := processedFileRe.FindStringSubmatch(name)
	if m == nil {
		return fmt.Errorf("could not extract station name from %q", name)
	}
	key := stations.NormalizeName(m[1])

	if excludeKey != "" && key == excludeKey {
		return fmt.Errorf("station %q is excluded", m[1])
	}

	st, ok := table.Lookup(key)
	if !ok {
		return fmt.Errorf("no location info for station %q", m[1])
	}

	frame, err := timeseries.ReadCSV(path, "time")
	if err != nil {
		return err
	}
	if frame.Len() == 0 {
		return fmt.Errorf("file is empty")
	}
	if err := frame.RequireColumns("GHI", "DHI", "BNI"); err != nil {
		return err
	}
	if err := frame.Rename("BNI", "DNI"); err != nil {
		return err
	}

	ss, seen := series[key]
	if !seen {
		ss = &stationSeries{station: st, rows: make(map[int64][3]float64)}
		series[key] = ss
		*order = append(*order, key)
	}
	ghi, _ := frame.Column("GHI")
	dhi, _ := frame.Column("DHI")
	dni, _ := frame.Column("DNI")
	for i, t := range frame.Times {
		ss.rows[t.Unix()] = [3]float64{ghi[i], dhi[i], dni[i]}
	}
	log.Printf("compile: processed %s (%d rows)", st.Name, frame.Len())
	return nil
}

func nanRow(n int) []float64 {
	row := make([]float64, n)
	for i := range row {
		row[i] = math.NaN()
	}
	return row
}
