package record

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/openwaters/helmsman/internal/mission"
)

func testFrame(seq uint64) Frame {
	return Frame{
		Seq:        seq,
		Image:      []byte{0x01, 0x02, 0x03},
		Angles:     []float64{-10, 0, 10},
		Distances:  []float64{5.5, 3.2, 8.1},
		Latitude:   25.7589,
		Longitude:  -80.3730,
		HeadingDeg: 84.4,
		SpeedMps:   1.5,
		Timestamp:  time.Date(2026, 8, 31, 12, 0, int(seq), 0, time.UTC),
	}
}

func TestStoreFrameRoundTrip(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "mission.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	want := []Frame{testFrame(1), testFrame(2)}
	want[1].Stale = true
	for _, f := range want {
		if err := store.RecordFrame(f); err != nil {
			t.Fatalf("RecordFrame(%d): %v", f.Seq, err)
		}
	}

	got, err := store.ReadFrames()
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreReadableWhileGrowing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mission.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	if err := store.RecordFrame(testFrame(1)); err != nil {
		t.Fatalf("RecordFrame: %v", err)
	}

	// A second connection reads the live database without closing the
	// writer first.
	reader, err := NewStore(path)
	if err != nil {
		t.Fatalf("reader NewStore: %v", err)
	}
	defer reader.Close()

	n, err := reader.FrameCount()
	if err != nil {
		t.Fatalf("FrameCount: %v", err)
	}
	if n != 1 {
		t.Errorf("FrameCount = %d, want 1", n)
	}

	if err := store.RecordFrame(testFrame(2)); err != nil {
		t.Fatalf("RecordFrame: %v", err)
	}
	if n, err = reader.FrameCount(); err != nil || n != 2 {
		t.Errorf("FrameCount after growth = %d, %v; want 2, nil", n, err)
	}
}

func TestStoreRecordArrival(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "mission.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	arrival := mission.Arrival{
		Index:     0,
		Waypoint:  mission.Waypoint{Latitude: 25.76, Longitude: -80.37},
		ReachedAt: time.Date(2026, 8, 31, 12, 5, 0, 0, time.UTC),
	}
	if err := store.RecordArrival(arrival); err != nil {
		t.Fatalf("RecordArrival: %v", err)
	}

	var idx int
	var lat, lon float64
	var ns int64
	err = store.QueryRow(`SELECT waypoint_index, latitude, longitude, reached_at_ns FROM waypoint_arrivals`).
		Scan(&idx, &lat, &lon, &ns)
	if err != nil {
		t.Fatalf("query arrival: %v", err)
	}
	if idx != 0 || lat != 25.76 || lon != -80.37 || ns != arrival.ReachedAt.UnixNano() {
		t.Errorf("arrival row = (%d, %v, %v, %d)", idx, lat, lon, ns)
	}
}
