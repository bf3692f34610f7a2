package record

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openwaters/helmsman/internal/mission"
)

// Store is the on-disk mission log. WAL mode keeps the database
// readable by analysis tools while the mission is still writing to it.
type Store struct {
	*sql.DB
}

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
		PRAGMA synchronous = NORMAL;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS frames (
			seq               BIGINT PRIMARY KEY,
			latitude          DOUBLE,
			longitude         DOUBLE,
			heading_deg       DOUBLE,
			speed_mps         DOUBLE,
			angles            TEXT,
			distances         TEXT,
			image             BLOB,
			stale             INTEGER DEFAULT 0,
			captured_at_ns    BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS waypoint_arrivals (
			waypoint_index    BIGINT,
			latitude          DOUBLE,
			longitude         DOUBLE,
			reached_at_ns     BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db}, nil
}

// RecordFrame persists one synchronized frame. Scan arrays are stored
// as JSON so the schema survives scans of varying point counts.
func (s *Store) RecordFrame(frame Frame) error {
	angles, err := json.Marshal(frame.Angles)
	if err != nil {
		return fmt.Errorf("failed to encode angles: %v", err)
	}
	distances, err := json.Marshal(frame.Distances)
	if err != nil {
		return fmt.Errorf("failed to encode distances: %v", err)
	}

	_, err = s.Exec(`
		INSERT INTO frames (seq, latitude, longitude, heading_deg, speed_mps, angles, distances, image, stale, captured_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		frame.Seq, frame.Latitude, frame.Longitude, frame.HeadingDeg, frame.SpeedMps,
		string(angles), string(distances), frame.Image, frame.Stale, frame.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert frame: %v", err)
	}
	return nil
}

// RecordArrival logs a reached waypoint.
func (s *Store) RecordArrival(a mission.Arrival) error {
	_, err := s.Exec(`
		INSERT INTO waypoint_arrivals (waypoint_index, latitude, longitude, reached_at_ns)
		VALUES (?, ?, ?, ?)`,
		a.Index, a.Waypoint.Latitude, a.Waypoint.Longitude, a.ReachedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert arrival: %v", err)
	}
	return nil
}

// ReadFrames returns every persisted frame in sequence order. Usable
// on a live database thanks to WAL.
func (s *Store) ReadFrames() ([]Frame, error) {
	rows, err := s.Query(`
		SELECT seq, latitude, longitude, heading_deg, speed_mps, angles, distances, image, stale, captured_at_ns
		FROM frames ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %v", err)
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		var angles, distances string
		var capturedAtNs int64
		if err := rows.Scan(&f.Seq, &f.Latitude, &f.Longitude, &f.HeadingDeg, &f.SpeedMps,
			&angles, &distances, &f.Image, &f.Stale, &capturedAtNs); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %v", err)
		}
		if err := json.Unmarshal([]byte(angles), &f.Angles); err != nil {
			return nil, fmt.Errorf("failed to decode angles: %v", err)
		}
		if err := json.Unmarshal([]byte(distances), &f.Distances); err != nil {
			return nil, fmt.Errorf("failed to decode distances: %v", err)
		}
		f.Timestamp = time.Unix(0, capturedAtNs).UTC()
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// FrameCount reports how many frames the log holds.
func (s *Store) FrameCount() (int, error) {
	var n int
	if err := s.QueryRow(`SELECT COUNT(*) FROM frames`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count frames: %v", err)
	}
	return n, nil
}
