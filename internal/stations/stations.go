// Package stations loads the ground-station location table and provides the
// name normalization used to match stations across metadata and filenames.
package stations

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Station is one row of the location table. Key is the normalized form of
// Name and is the identity used for all matching.
type Station struct {
	Name      string
	Key       string
	Latitude  float64
	Longitude float64
	Elevation float64
	UTCOffset int // signed hours added to UTC for local time
}

var (
	nonAlnumRe   = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	requiredCols = []string{"station", "latitude", "longitude", "elevation", "timezone"}
)

// NormalizeName produces the canonical matching key for a station name:
// underscores become spaces, anything outside [A-Za-z0-9] and whitespace is
// stripped, the result is lowercased and internal whitespace is collapsed.
// Never fails; fully non-alphanumeric input yields the empty string.
func NormalizeName(name string) string {
	s := strings.ReplaceAll(name, "_", " ")
	s = nonAlnumRe.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ParseUTCOffset parses timezone strings of the form "UTC+7" or "UTC-3"
// into signed integer hours.
func ParseUTCOffset(tz string) (int, error) {
	s := strings.TrimSpace(tz)
	if !strings.HasPrefix(s, "UTC") {
		return 0, fmt.Errorf("timezone %q: expected UTC±N format", tz)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "UTC"))
	if err != nil {
		return 0, fmt.Errorf("timezone %q: %w", tz, err)
	}
	return n, nil
}

// Table holds the location table indexed by normalized station key.
type Table struct {
	stations []Station
	byKey    map[string]Station
}

// LoadTable reads the station location CSV. The required columns are
// station, latitude, longitude, elevation and timezone; missing columns are
// reported by name. Two rows normalizing to the same key are an error.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open location table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read location table header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}
	var missing []string
	for _, col := range requiredCols {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("location table %s: missing required columns: %s", path, strings.Join(missing, ", "))
	}

	t := &Table{byKey: make(map[string]Station)}
	line := 1
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		line++

		name := strings.TrimSpace(record[idx["station"]])
		key := NormalizeName(name)
		if key == "" {
			return nil, fmt.Errorf("location table line %d: station name %q normalizes to empty key", line, name)
		}
		if prev, ok := t.byKey[key]; ok {
			return nil, fmt.Errorf("location table line %d: station %q duplicates key %q (already used by %q)", line, name, key, prev.Name)
		}

		lat, err := cast.ToFloat64E(record[idx["latitude"]])
		if err != nil {
			return nil, fmt.Errorf("location table line %d: latitude: %w", line, err)
		}
		lon, err := cast.ToFloat64E(record[idx["longitude"]])
		if err != nil {
			return nil, fmt.Errorf("location table line %d: longitude: %w", line, err)
		}
		elev, err := cast.ToFloat64E(record[idx["elevation"]])
		if err != nil {
			return nil, fmt.Errorf("location table line %d: elevation: %w", line, err)
		}
		offset, err := ParseUTCOffset(record[idx["timezone"]])
		if err != nil {
			return nil, fmt.Errorf("location table line %d: %w", line, err)
		}

		st := Station{
			Name:      name,
			Key:       key,
			Latitude:  lat,
			Longitude: lon,
			Elevation: elev,
			UTCOffset: offset,
		}
		t.stations = append(t.stations, st)
		t.byKey[key] = st
	}

	if len(t.stations) == 0 {
		return nil, fmt.Errorf("location table %s: no station rows", path)
	}
	return t, nil
}

// Lookup returns the station for a normalized key.
func (t *Table) Lookup(key string) (Station, bool) {
	st, ok := t.byKey[key]
	return st, ok
}

// Stations returns all stations in table order.
func (t *Table) Stations() []Station {
	return t.stations
}
