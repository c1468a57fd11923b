package compare

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/wetsa/solrad/internal/stations"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadGround_FlagFiltering(t *testing.T) {
	dir := t.TempDir()
	// Only flag_ghi and flag_comp1 are present; absent flags are ignored.
	path := writeFile(t, dir, "ground.csv", `Datetime (UTC),GHI,DHI,DNI,flag_ghi,flag_comp1
2024-01-01 00:00:00,100,50,60,0,0
2024-01-01 00:10:00,200,100,120,1,0
2024-01-01 00:20:00,300,150,180,0,2
2024-01-01 00:30:00,400,200,240,0,0
`)

	f, err := loadGround(path)
	if err != nil {
		t.Fatalf("loadGround: %v", err)
	}
	if f.Len() != 2 {
		t.Fatalf("rows = %d, want 2 (flagged rows dropped)", f.Len())
	}
	ghi, _ := f.Column("GHI")
	if ghi[0] != 100 || ghi[1] != 400 {
		t.Errorf("GHI = %v, want [100 400]", ghi)
	}
	for _, flag := range []string{"flag_ghi", "flag_comp1"} {
		if f.HasColumn(flag) {
			t.Errorf("flag column %s must not survive filtering", flag)
		}
	}
}

func TestLoadGround_MissingComponent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ground.csv", `Datetime (UTC),GHI,DHI
2024-01-01 00:00:00,100,50
`)
	if _, err := loadGround(path); err == nil {
		t.Fatal("expected error for ground file without DNI column")
	}
}

func TestLoadModel_Conversion(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "model.csv", `time,GHI,DHI,BNI,Cloud coverage
2024-01-01 00:00:00,10,5,4,0.25
`)

	f, err := loadModel(path, 60)
	if err != nil {
		t.Fatalf("loadModel: %v", err)
	}
	ghi, _ := f.Column("GHI")
	if ghi[0] != 600 {
		t.Errorf("GHI = %v, want 600 after x60 conversion", ghi[0])
	}
	if f.HasColumn("BNI") {
		t.Error("BNI must be renamed to DNI")
	}
	dni, _ := f.Column("DNI")
	if dni[0] != 240 {
		t.Errorf("DNI = %v, want 240", dni[0])
	}
	cloud, _ := f.Column("Cloud coverage")
	if cloud[0] != 0.25 {
		t.Errorf("cloud coverage = %v, must not be scaled", cloud[0])
	}
}

func TestJoin_DropsUnmatchedAndNaN(t *testing.T) {
	dir := t.TempDir()
	groundPath := writeFile(t, dir, "ground.csv", `Datetime (UTC),GHI,DHI,DNI
2024-01-01 00:00:00,100,50,60
2024-01-01 00:10:00,200,100,120
2024-01-01 00:20:00,,150,180
`)
	modelPath := writeFile(t, dir, "model.csv", `time,GHI,DHI,BNI
2024-01-01 00:10:00,210,105,125
2024-01-01 00:20:00,310,155,185
2024-01-01 00:30:00,410,205,245
`)

	ground, err := loadGround(groundPath)
	if err != nil {
		t.Fatal(err)
	}
	model, err := loadModel(modelPath, 1)
	if err != nil {
		t.Fatal(err)
	}

	// 00:00 has no model row, 00:20 has a NaN ground GHI, 00:30 has no
	// ground row. Only 00:10 survives.
	cmp, err := join(ground, model)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(cmp.Times) != 1 {
		t.Fatalf("matched rows = %d, want 1", len(cmp.Times))
	}
	if cmp.Ground["GHI"][0] != 200 || cmp.Model["GHI"][0] != 210 {
		t.Errorf("joined GHI = %v/%v, want 200/210", cmp.Ground["GHI"][0], cmp.Model["GHI"][0])
	}
	if bias := cmp.Bias("GHI"); bias[0] != 10 {
		t.Errorf("bias = %v, want 10 (model minus ground)", bias[0])
	}
	if cmp.Cloud != nil {
		t.Error("Cloud must be nil when the model file has no cloud column")
	}
}

func TestJoin_NoOverlap(t *testing.T) {
	dir := t.TempDir()
	groundPath := writeFile(t, dir, "ground.csv", `Datetime (UTC),GHI,DHI,DNI
2024-01-01 00:00:00,100,50,60
`)
	modelPath := writeFile(t, dir, "model.csv", `time,GHI,DHI,BNI
2024-06-01 00:00:00,100,50,60
`)
	ground, _ := loadGround(groundPath)
	model, _ := loadModel(modelPath, 1)
	if _, err := join(ground, model); err == nil {
		t.Fatal("expected error when no timestamps overlap")
	}
}

func TestRatio_ZeroDenominator(t *testing.T) {
	got := ratio([]float64{10, 20, 30}, []float64{5, 0, 10})
	if got[0] != 2 || got[2] != 3 {
		t.Errorf("ratio = %v", got)
	}
	if !math.IsNaN(got[1]) {
		t.Errorf("ratio with zero denominator = %v, want NaN", got[1])
	}
}

func TestRunner_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "QC_Test_Station_2024_flagged.csv", `Datetime (UTC),GHI,DHI,DNI,flag_ghi
2024-01-01 00:00:00,120,60,72,0
2024-01-01 00:10:00,240,120,144,1
2024-01-01 00:20:00,360,180,216,0
2024-01-01 00:30:00,480,240,288,0
`)
	writeFile(t, dir, "processed_10min_Test_Station_observed_cloud.csv", `time,GHI,DHI,BNI,Cloud coverage
2024-01-01 00:00:00,2,1,1.2,0.1
2024-01-01 00:20:00,6,3,3.6,0.5
2024-01-01 00:30:00,8,4,4.8,0.9
2024-01-01 00:40:00,10,5,6,0.2
`)

	r := &Runner{
		GroundDir: dir,
		ModelDir:  dir,
		OutDir:    dir,
		Factor:    60,
		Year:      "2024",
	}
	sts := []stations.Station{{Name: "Test Station", Key: "test station"}}
	if err := r.Run(sts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	figPath := filepath.Join(dir, "solar_radiation_comparison_Test_Station.png")
	info, err := os.Stat(figPath)
	if err != nil {
		t.Fatalf("expected comparison figure: %v", err)
	}
	if info.Size() == 0 {
		t.Error("comparison figure is empty")
	}
}

func TestRunner_MissingInputsSkipped(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{GroundDir: dir, ModelDir: dir, OutDir: dir, Factor: 60, Year: "2024"}
	err := r.Run([]stations.Station{{Name: "Nowhere"}})
	if err == nil {
		t.Fatal("expected error when every station is skipped")
	}
}
