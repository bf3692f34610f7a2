package record

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// TrackLog is the flat CSV position log, one row per recorded frame.
// It is deliberately redundant with the mission log database so a track
// can be pulled into a plotting tool without SQL.
type TrackLog struct {
	path string
	file *os.File
	csv  *csv.Writer
}

var trackHeader = []string{"timestamp", "latitude", "longitude", "heading", "speed"}

// NewTrackLog opens or creates the CSV at path, writing the header only
// when the file is new.
func NewTrackLog(path string) (*TrackLog, error) {
	t := &TrackLog{path: path}
	if err := t.open(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TrackLog) open() error {
	info, statErr := os.Stat(t.path)
	fresh := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open track log: %v", err)
	}

	t.file = f
	t.csv = csv.NewWriter(f)
	if fresh {
		if err := t.csv.Write(trackHeader); err != nil {
			f.Close()
			return fmt.Errorf("failed to write track header: %v", err)
		}
		t.csv.Flush()
	}
	return nil
}

// Reopen discards the current file handle and reopens the log at the
// same path, appending after whatever was already flushed.
func (t *TrackLog) Reopen() error {
	t.file.Close()
	return t.open()
}

// Append writes one track row and flushes it to the file.
func (t *TrackLog) Append(frame Frame) error {
	row := []string{
		frame.Timestamp.UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(frame.Latitude, 'f', 7, 64),
		strconv.FormatFloat(frame.Longitude, 'f', 7, 64),
		strconv.FormatFloat(frame.HeadingDeg, 'f', 1, 64),
		strconv.FormatFloat(frame.SpeedMps, 'f', 2, 64),
	}
	if err := t.csv.Write(row); err != nil {
		return fmt.Errorf("failed to write track row: %v", err)
	}
	t.csv.Flush()
	return t.csv.Error()
}

func (t *TrackLog) Close() error {
	t.csv.Flush()
	if err := t.csv.Error(); err != nil {
		t.file.Close()
		return err
	}
	return t.file.Close()
}
