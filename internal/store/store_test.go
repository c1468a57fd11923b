package store

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestInsertAndGetFetchRuns(t *testing.T) {
	store := setupTestStore(t)

	started := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	run := FetchRun{
		Station:        "Bone_Bolango",
		SkyType:        "observed_cloud",
		StartedAt:      started,
		CompletedAt:    started.Add(90 * time.Second),
		Success:        true,
		RecordsParsed:  sql.NullInt64{Int64: 527040, Valid: true},
		RecordsWritten: sql.NullInt64{Int64: 52704, Valid: true},
		RawBytes:       sql.NullInt64{Int64: 41_234_567, Valid: true},
	}
	if err := store.InsertFetchRun(run); err != nil {
		t.Fatalf("InsertFetchRun: %v", err)
	}

	failed := FetchRun{
		Station:      "Bone_Bolango",
		SkyType:      "clear",
		StartedAt:    started.Add(2 * time.Minute),
		CompletedAt:  started.Add(3 * time.Minute),
		Success:      false,
		ErrorMessage: sql.NullString{String: "job ended failed: no data", Valid: true},
	}
	if err := store.InsertFetchRun(failed); err != nil {
		t.Fatalf("InsertFetchRun failed run: %v", err)
	}

	runs, err := store.GetFetchRuns("Bone_Bolango")
	if err != nil {
		t.Fatalf("GetFetchRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if !runs[0].Success || runs[0].SkyType != "observed_cloud" {
		t.Errorf("runs[0] = %+v, want successful observed_cloud run first", runs[0])
	}
	if runs[0].RecordsWritten.Int64 != 52704 {
		t.Errorf("RecordsWritten = %d, want 52704", runs[0].RecordsWritten.Int64)
	}
	if runs[1].Success || !runs[1].ErrorMessage.Valid {
		t.Errorf("runs[1] = %+v, want failed run with message", runs[1])
	}

	other, err := store.GetFetchRuns("Sleman")
	if err != nil {
		t.Fatalf("GetFetchRuns other: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("len(other) = %d, want 0", len(other))
	}
}

func TestUpsertComparisonStats(t *testing.T) {
	store := setupTestStore(t)

	cs := ComparisonStats{
		Location:  "Bone Bolango",
		Component: "GHI",
		N:         12345,
		MeanBias:  -12.3,
		MAE:       45.6,
		RMSE:      78.9,
		Slope:     0.97,
		Intercept: 5.1,
		RSquared:  0.93,
		CreatedAt: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.UpsertComparisonStats(cs); err != nil {
		t.Fatalf("UpsertComparisonStats: %v", err)
	}

	cs.RSquared = 0.95
	cs.N = 20000
	if err := store.UpsertComparisonStats(cs); err != nil {
		t.Fatalf("UpsertComparisonStats update: %v", err)
	}

	stats, err := store.GetComparisonStats("Bone Bolango")
	if err != nil {
		t.Fatalf("GetComparisonStats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("len(stats) = %d, want 1 (upsert must replace)", len(stats))
	}
	if stats[0].RSquared != 0.95 || stats[0].N != 20000 {
		t.Errorf("stats[0] = %+v, want updated values", stats[0])
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}
