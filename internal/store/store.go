// Package store is the optional run ledger: a small SQLite database that
// records fetch outcomes and comparison statistics across batch runs.
package store

import (
	"database/sql"
	"time"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// FetchRun records the outcome of one station x sky-type retrieval.
type FetchRun struct {
	ID             int64
	Station        string
	SkyType        string
	StartedAt      time.Time
	CompletedAt    time.Time
	Success        bool
	RecordsParsed  sql.NullInt64
	RecordsWritten sql.NullInt64
	RawBytes       sql.NullInt64
	ErrorMessage   sql.NullString
}

func (s *Store) InsertFetchRun(run FetchRun) error {
	_, err := s.db.Exec(`
		INSERT INTO fetch_runs (station, sky_type, started_at, completed_at, success, records_parsed, records_written, raw_bytes, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Station, run.SkyType, run.StartedAt, run.CompletedAt, run.Success,
		run.RecordsParsed, run.RecordsWritten, run.RawBytes, run.ErrorMessage)
	return err
}

func (s *Store) GetFetchRuns(station string) ([]FetchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, station, sky_type, started_at, completed_at, success, records_parsed, records_written, raw_bytes, error_message
		FROM fetch_runs
		WHERE station = ?
		ORDER BY started_at ASC
	`, station)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []FetchRun
	for rows.Next() {
		var r FetchRun
		if err := rows.Scan(&r.ID, &r.Station, &r.SkyType, &r.StartedAt, &r.CompletedAt,
			&r.Success, &r.RecordsParsed, &r.RecordsWritten, &r.RawBytes, &r.ErrorMessage); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ComparisonStats is one component's summary from a ground/model comparison.
type ComparisonStats struct {
	Location  string
	Component string
	N         int
	MeanBias  float64
	MAE       float64
	RMSE      float64
	Slope     float64
	Intercept float64
	RSquared  float64
	CreatedAt time.Time
}

func (s *Store) UpsertComparisonStats(cs ComparisonStats) error {
	_, err := s.db.Exec(`
		INSERT INTO comparison_stats (location, component, n, mean_bias, mae, rmse, slope, intercept, r_squared, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location, component) DO UPDATE SET
			n = excluded.n,
			mean_bias = excluded.mean_bias,
			mae = excluded.mae,
			rmse = excluded.rmse,
			slope = excluded.slope,
			intercept = excluded.intercept,
			r_squared = excluded.r_squared,
			created_at = excluded.created_at
	`, cs.Location, cs.Component, cs.N, cs.MeanBias, cs.MAE, cs.RMSE,
		cs.Slope, cs.Intercept, cs.RSquared, cs.CreatedAt)
	return err
}

func (s *Store) GetComparisonStats(location string) ([]ComparisonStats, error) {
	rows, err := s.db.Query(`
		SELECT location, component, n, mean_bias, mae, rmse, slope, intercept, r_squared, created_at
		FROM comparison_stats
		WHERE location = ?
		ORDER BY component ASC
	`, location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []ComparisonStats
	for rows.Next() {
		var cs ComparisonStats
		if err := rows.Scan(&cs.Location, &cs.Component, &cs.N, &cs.MeanBias, &cs.MAE,
			&cs.RMSE, &cs.Slope, &cs.Intercept, &cs.RSquared, &cs.CreatedAt); err != nil {
			return nil, err
		}
		stats = append(stats, cs)
	}
	return stats, rows.Err()
}
