package record

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTrackLogRowsAndHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.csv")

	track, err := NewTrackLog(path)
	if err != nil {
		t.Fatalf("NewTrackLog: %v", err)
	}
	if err := track.Append(testFrame(1)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := track.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening appends without repeating the header.
	track, err = NewTrackLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := track.Append(testFrame(2)); err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	track.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	want := [][]string{
		{"timestamp", "latitude", "longitude", "heading", "speed"},
		{"2026-08-31T12:00:01Z", "25.7589000", "-80.3730000", "84.4", "1.50"},
		{"2026-08-31T12:00:02Z", "25.7589000", "-80.3730000", "84.4", "1.50"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("track rows mismatch (-want +got):\n%s", diff)
	}
}
