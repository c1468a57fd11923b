package stations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"underscores become spaces", "Bone_Bolango", "bone bolango"},
		{"already normalized", "bone bolango", "bone bolango"},
		{"special characters stripped", "BONE-BOLANGO!", "bone bolango"},
		{"collapses internal whitespace", "Padang   Pariaman", "padang pariaman"},
		{"trims surrounding whitespace", "  Sleman  ", "sleman"},
		{"digits preserved", "Station 2", "station 2"},
		{"fully non-alphanumeric", "!!!---", ""},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.in); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeName_MatchesAcrossSources(t *testing.T) {
	// Names from the metadata table and names extracted from filenames must
	// resolve to the same key.
	variants := []string{"Bone_Bolango", "bone bolango", "BONE-BOLANGO!", "Bone Bolango"}
	want := "bone bolango"
	for _, v := range variants {
		if got := NormalizeName(v); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", v, got, want)
		}
	}
}

func TestParseUTCOffset(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"UTC+7", 7, false},
		{"UTC+9", 9, false},
		{"UTC-3", -3, false},
		{"UTC+0", 0, false},
		{" UTC+8 ", 8, false},
		{"GMT+7", 0, true},
		{"UTC", 0, true},
		{"UTC+", 0, true},
		{"+7", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUTCOffset(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseUTCOffset(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseUTCOffset(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func writeTable(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locations.csv")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	return path
}

func TestLoadTable(t *testing.T) {
	path := writeTable(t, strings.Join([]string{
		"station,latitude,longitude,elevation,timezone",
		"Bone_Bolango,0.55,123.25,35,UTC+8",
		"Sleman,-7.72,110.35,200,UTC+7",
	}, "\n"))

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if len(table.Stations()) != 2 {
		t.Fatalf("len(Stations) = %d, want 2", len(table.Stations()))
	}

	st, ok := table.Lookup("bone bolango")
	if !ok {
		t.Fatal("Lookup(bone bolango) not found")
	}
	if st.Name != "Bone_Bolango" {
		t.Errorf("Name = %q, want Bone_Bolango", st.Name)
	}
	if st.Latitude != 0.55 || st.Longitude != 123.25 || st.Elevation != 35 {
		t.Errorf("coordinates = (%v, %v, %v), want (0.55, 123.25, 35)", st.Latitude, st.Longitude, st.Elevation)
	}
	if st.UTCOffset != 8 {
		t.Errorf("UTCOffset = %d, want 8", st.UTCOffset)
	}

	if sleman, _ := table.Lookup("sleman"); sleman.UTCOffset != 7 {
		t.Errorf("sleman UTCOffset = %d, want 7", sleman.UTCOffset)
	}
}

func TestLoadTable_MissingColumns(t *testing.T) {
	path := writeTable(t, "station,latitude,longitude\nSleman,-7.72,110.35\n")

	_, err := LoadTable(path)
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
	if !strings.Contains(err.Error(), "elevation") || !strings.Contains(err.Error(), "timezone") {
		t.Errorf("error %q should name the missing columns", err)
	}
}

func TestLoadTable_DuplicateKey(t *testing.T) {
	path := writeTable(t, strings.Join([]string{
		"station,latitude,longitude,elevation,timezone",
		"Bone_Bolango,0.55,123.25,35,UTC+8",
		"bone bolango,0.56,123.26,36,UTC+8",
	}, "\n"))

	_, err := LoadTable(path)
	if err == nil {
		t.Fatal("expected error for duplicate normalized key")
	}
	if !strings.Contains(err.Error(), "duplicates key") {
		t.Errorf("error = %q, want duplicate key message", err)
	}
}

func TestLoadTable_BadTimezone(t *testing.T) {
	path := writeTable(t, strings.Join([]string{
		"station,latitude,longitude,elevation,timezone",
		"Sleman,-7.72,110.35,200,WIB",
	}, "\n"))

	if _, err := LoadTable(path); err == nil {
		t.Fatal("expected error for malformed timezone")
	}
}

func TestLoadTable_NotFound(t *testing.T) {
	if _, err := LoadTable(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
