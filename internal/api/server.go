// Package api exposes the live mission state over HTTP: a JSON status
// endpoint, Prometheus metrics, and a websocket feed for dashboards.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openwaters/helmsman/internal/monitoring"
	"github.com/openwaters/helmsman/internal/pilot"
	"github.com/openwaters/helmsman/internal/record"
	"github.com/openwaters/helmsman/internal/units"
)

// ANSI escape codes for request log coloring
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// StatusSource supplies the latest mission snapshot.
type StatusSource interface {
	Snapshot() pilot.Snapshot
}

// Server serves mission status to operators. All endpoints are
// read-only; the vehicle takes no commands over HTTP.
type Server struct {
	status   StatusSource
	queue    *record.Queue
	sync     *record.Synchronizer
	writer   *record.Writer
	units    string
	upgrader websocket.Upgrader

	// LiveInterval is the websocket push cadence.
	LiveInterval time.Duration
}

// NewServer creates a status server reporting speeds in displayUnits
// (the runtime itself always works in m/s).
func NewServer(status StatusSource, queue *record.Queue, sync *record.Synchronizer, writer *record.Writer, displayUnits string) *Server {
	if !units.IsValid(displayUnits) {
		displayUnits = units.MPS
	}
	return &Server{
		status:       status,
		queue:        queue,
		sync:         sync,
		writer:       writer,
		units:        displayUnits,
		upgrader:     websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		LiveInterval: time.Second,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/recording", s.showRecording)
	mux.HandleFunc("/api/live", s.serveLive)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// statusPayload is the /api/status and websocket document. Speeds are
// converted to the server's display units.
type statusPayload struct {
	pilot.Snapshot
	SpeedUnits string         `json:"speed_units"`
	Recording  recordingStats `json:"recording"`
}

type recordingStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Gaps    uint64 `json:"gaps"`
}

func (s *Server) payload() statusPayload {
	p := statusPayload{Snapshot: s.status.Snapshot(), SpeedUnits: s.units}
	p.Pose.Speed = units.ConvertSpeed(p.Pose.Speed, s.units)
	p.LastCommand.Speed = units.ConvertSpeed(p.LastCommand.Speed, s.units)
	if s.writer != nil {
		p.Recording.Written = s.writer.Written()
	}
	if s.queue != nil {
		p.Recording.Dropped = s.queue.Dropped()
	}
	if s.sync != nil {
		p.Recording.Gaps = s.sync.Gaps()
	}
	return p
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	json.NewEncoder(w).Encode(s.payload())
}

func (s *Server) showRecording(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	json.NewEncoder(w).Encode(s.payload().Recording)
}

// serveLive upgrades to a websocket and pushes the status document on
// the live interval until the client goes away.
func (s *Server) serveLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("api: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reads are discarded; a read error is how we learn the client left.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.LiveInterval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(s.payload()); err != nil {
			return
		}
		select {
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
