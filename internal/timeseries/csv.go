package timeseries

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

const obsPeriodColumn = "Observation period"

// ParseExpertCSV reads a CAMS csv_expert download: metadata and the header
// row are '#'-prefixed comment lines (the header is the last comment line),
// data rows are semicolon-delimited. The observation period column holds
// "start/end"; the start instant becomes the row timestamp. Columns with no
// numeric values are dropped; rows whose timestamp does not parse are
// dropped.
func ParseExpertCSV(r io.Reader) (*Frame, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var headerLine string
	var dataLines []string
	inHeader := true
	for scanner.Scan() {
		line := scanner.Text()
		if inHeader && strings.HasPrefix(line, "#") {
			headerLine = line
			continue
		}
		inHeader = false
		if strings.TrimSpace(line) == "" {
			continue
		}
		dataLines = append(dataLines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read raw file: %w", err)
	}
	if headerLine == "" {
		return nil, fmt.Errorf("no header line found in commented preamble")
	}

	var columns []string
	for _, col := range strings.Split(strings.TrimPrefix(strings.TrimSpace(headerLine), "#"), ";") {
		columns = append(columns, strings.TrimSpace(col))
	}

	timeIdx := -1
	for i, col := range columns {
		if col == obsPeriodColumn {
			timeIdx = i
			break
		}
	}
	if timeIdx < 0 {
		return nil, fmt.Errorf("header has no %q column", obsPeriodColumn)
	}

	f := NewFrame()
	raw := make(map[string][]float64)
	numeric := make(map[string]bool)
	for i, col := range columns {
		if i == timeIdx {
			continue
		}
		raw[col] = nil
	}

	for _, line := range dataLines {
		fields := strings.Split(line, ";")
		if len(fields) != len(columns) {
			continue
		}
		period := strings.TrimSpace(fields[timeIdx])
		start := period
		if slash := strings.IndexByte(period, '/'); slash >= 0 {
			start = period[:slash]
		}
		t, err := ParseTime(start)
		if err != nil {
			continue
		}
		f.Times = append(f.Times, t)
		for i, col := range columns {
			if i == timeIdx {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
			if err != nil {
				raw[col] = append(raw[col], math.NaN())
				continue
			}
			raw[col] = append(raw[col], v)
			numeric[col] = true
		}
	}

	for i, col := range columns {
		if i == timeIdx || !numeric[col] {
			continue
		}
		f.Columns = append(f.Columns, col)
		f.Values[col] = raw[col]
	}
	return f, nil
}

// WriteCSV writes the frame with a leading "time" column. NaN values are
// written as empty cells.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	header := append([]string{"time"}, f.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for i, t := range f.Times {
		record[0] = t.UTC().Format("2006-01-02 15:04:05")
		for j, col := range f.Columns {
			v := f.Values[col][i]
			if math.IsNaN(v) {
				record[j+1] = ""
			} else {
				record[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the frame to path, creating or truncating it.
func WriteCSVFile(path string, f *Frame) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(out, f); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

// ReadCSV reads a plain comma-delimited file with a header row into a frame.
// timeCol names the timestamp column; all other columns are carried as
// float64 with NaN for cells that do not parse. Rows with unparseable
// timestamps are dropped.
func ReadCSV(path, timeCol string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return NewFrame(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	timeIdx := -1
	for i, col := range header {
		header[i] = strings.TrimSpace(col)
		if header[i] == timeCol {
			timeIdx = i
		}
	}
	if timeIdx < 0 {
		return nil, fmt.Errorf("%s: no %q column", path, timeCol)
	}

	f := NewFrame()
	for i, col := range header {
		if i == timeIdx {
			continue
		}
		f.Columns = append(f.Columns, col)
		f.Values[col] = nil
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if len(record) != len(header) {
			continue
		}
		t, err := ParseTime(strings.TrimSpace(record[timeIdx]))
		if err != nil {
			continue
		}
		f.Times = append(f.Times, t)
		for i, col := range header {
			if i == timeIdx {
				continue
			}
			v, err := cast.ToFloat64E(strings.TrimSpace(record[i]))
			if err != nil {
				v = math.NaN()
			}
			f.Values[col] = append(f.Values[col], v)
		}
	}
	return f, nil
}

// RequireColumns returns an error naming every requested column the frame
// does not carry.
func (f *Frame) RequireColumns(cols ...string) error {
	var missing []string
	for _, col := range cols {
		if !f.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}
