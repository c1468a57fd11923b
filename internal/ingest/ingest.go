// Package ingest drives the fetch pipeline: retrieve raw 1-minute CAMS time
// series per station and sky type, aggregate to 10-minute means, write the
// processed CSV and archive the raw download.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/wetsa/solrad/internal/cams"
	"github.com/wetsa/solrad/internal/metrics"
	"github.com/wetsa/solrad/internal/stations"
	"github.com/wetsa/solrad/internal/store"
	"github.com/wetsa/solrad/internal/timeseries"
)

const resampleInterval = 10 * time.Minute

var filenameUnsafeRe = regexp.MustCompile(`[^\w.-]`)

// SanitizeName makes a station name safe for use in file names.
func SanitizeName(name string) string {
	return filenameUnsafeRe.ReplaceAllString(name, "_")
}

type Runner struct {
	Client    *cams.Client
	Store     *store.Store // nil disables the run ledger
	OutDir    string
	Dataset   string
	DateRange string
	SkyTypes  []string
}

// Run fetches every station x sky-type combination. A failure in one unit is
// logged and the loop continues; only an unusable output directory aborts.
func (r *Runner) Run(ctx context.Context, sts []stations.Station) error {
	if err := os.MkdirAll(r.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, st := range sts {
		for _, skyType := range r.SkyTypes {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("fetch: station %s, sky type %s", st.Name, skyType)
			if err := r.processOne(ctx, st, skyType); err != nil {
				metrics.CAMSAPICallsTotal.WithLabelValues(st.Name, skyType, "error").Inc()
				log.Printf("fetch: station %s, sky type %s: %v (continuing)", st.Name, skyType, err)
				continue
			}
			metrics.CAMSAPICallsTotal.WithLabelValues(st.Name, skyType, "ok").Inc()
		}
	}
	return nil
}

func (r *Runner) processOne(ctx context.Context, st stations.Station, skyType string) error {
	safe := SanitizeName(st.Name)
	rawPath := filepath.Join(r.OutDir, fmt.Sprintf("raw_1min_%s_%s.csv", safe, skyType))
	processedPath := filepath.Join(r.OutDir, fmt.Sprintf("processed_10min_%s_%s.csv", safe, skyType))

	run := store.FetchRun{
		Station:   st.Name,
		SkyType:   skyType,
		StartedAt: time.Now().UTC(),
	}
	err := r.fetchAndAggregate(ctx, st, skyType, rawPath, processedPath, &run)
	run.CompletedAt = time.Now().UTC()
	run.Success = err == nil
	if err != nil {
		run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}
	r.recordRun(run)
	return err
}

func (r *Runner) fetchAndAggregate(ctx context.Context, st stations.Station, skyType, rawPath, processedPath string, run *store.FetchRun) error {
	req := cams.Request{
		SkyType:       skyType,
		Location:      cams.Location{Latitude: st.Latitude, Longitude: st.Longitude},
		Altitude:      strconv.FormatFloat(st.Elevation, 'f', -1, 64),
		Date:          r.DateRange,
		TimeStep:      "1minute",
		TimeReference: "universal_time",
		Format:        "csv_expert",
	}
	if err := r.Client.Retrieve(ctx, r.Dataset, req, rawPath); err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}
	if info, err := os.Stat(rawPath); err == nil {
		run.RawBytes = sql.NullInt64{Int64: info.Size(), Valid: true}
	}

	parsed, written, err := AggregateFile(rawPath, processedPath)
	if err != nil {
		return err
	}
	run.RecordsParsed = sql.NullInt64{Int64: int64(parsed), Valid: true}
	run.RecordsWritten = sql.NullInt64{Int64: int64(written), Valid: true}
	metrics.RecordsResampledTotal.Add(float64(parsed))
	log.Printf("fetch: wrote %d aggregated rows to %s", written, processedPath)

	if err := ZipAndRemove(rawPath); err != nil {
		return fmt.Errorf("archive raw file: %w", err)
	}
	return nil
}

// AggregateFile reads a csv_expert raw file, resamples it to 10-minute mean
// buckets and writes the processed CSV. It returns the number of raw rows
// parsed and aggregated rows written. An empty raw file is an error so the
// raw download is kept for inspection.
func AggregateFile(rawPath, processedPath string) (parsed, written int, err error) {
	f, err := os.Open(rawPath)
	if err != nil {
		return 0, 0, fmt.Errorf("open raw file: %w", err)
	}
	frame, err := timeseries.ParseExpertCSV(f)
	f.Close()
	if err != nil {
		return 0, 0, fmt.Errorf("parse %s: %w", rawPath, err)
	}
	if frame.Len() == 0 {
		return 0, 0, fmt.Errorf("raw file %s has no data rows", rawPath)
	}

	resampled := frame.Resample(resampleInterval)
	if err := timeseries.WriteCSVFile(processedPath, resampled); err != nil {
		return frame.Len(), 0, err
	}
	return frame.Len(), resampled.Len(), nil
}

func (r *Runner) recordRun(run store.FetchRun) {
	if r.Store == nil {
		return
	}
	if err := r.Store.InsertFetchRun(run); err != nil {
		log.Printf("fetch: record run for %s/%s: %v", run.Station, run.SkyType, err)
	}
}
