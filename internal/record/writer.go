package record

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/openwaters/helmsman/internal/monitoring"
	"github.com/openwaters/helmsman/internal/timeutil"
)

// Writer is the sole consumer of the frame queue. It drains frames into
// the mission log store and the CSV track log. Persistence failures are
// tolerated up to a limit, after which the failing sink is disabled and
// the writer keeps draining so the queue never backs up into capture.
type Writer struct {
	queue    *Queue
	store    *Store
	track    *TrackLog
	clock    timeutil.Clock
	interval time.Duration

	failLimit     int
	storeFailures int
	trackFailures int
	storeDisabled bool
	trackDisabled bool

	written atomic.Uint64
}

// WriterOptions configure a Writer. Store and Track may each be nil to
// record to only one sink.
type WriterOptions struct {
	Store         *Store
	Track         *TrackLog
	Clock         timeutil.Clock
	ReportEvery   time.Duration
	WriteFailures int
}

func NewWriter(queue *Queue, opts WriterOptions) *Writer {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Writer{
		queue:     queue,
		store:     opts.Store,
		track:     opts.Track,
		clock:     clock,
		interval:  opts.ReportEvery,
		failLimit: opts.WriteFailures,
	}
}

// Written reports how many frames reached at least one sink.
func (w *Writer) Written() uint64 { return w.written.Load() }

// Run consumes frames until the queue closes or the context is
// canceled. On cancellation it drains whatever the queue still holds
// before returning, so shutdown does not lose buffered frames.
func (w *Writer) Run(ctx context.Context) {
	var reportC <-chan time.Time
	if w.interval > 0 {
		report := w.clock.NewTicker(w.interval)
		defer report.Stop()
		reportC = report.C()
	}

	for {
		select {
		case frame, ok := <-w.queue.Frames():
			if !ok {
				return
			}
			w.persist(frame)
		case <-reportC:
			monitoring.Logf("recorder: %d frames written, %d dropped", w.written.Load(), w.queue.Dropped())
		case <-ctx.Done():
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	for {
		select {
		case frame, ok := <-w.queue.Frames():
			if !ok {
				return
			}
			w.persist(frame)
		default:
			return
		}
	}
}

func (w *Writer) persist(frame Frame) {
	recorded := false

	if w.store != nil && !w.storeDisabled {
		// No explicit reopen for the sqlite sink: database/sql discards a
		// failed connection and dials a fresh one on the next call, so
		// retrying the next frame is the reopen attempt.
		if err := w.store.RecordFrame(frame); err != nil {
			w.storeFailures++
			monitoring.Logf("recorder: mission log write failed (%d/%d): %v", w.storeFailures, w.failLimit, err)
			if w.failLimit > 0 && w.storeFailures >= w.failLimit {
				w.storeDisabled = true
				monitoring.Logf("recorder: mission log disabled after %d failures", w.storeFailures)
			}
		} else {
			w.storeFailures = 0
			recorded = true
		}
	}

	if w.track != nil && !w.trackDisabled {
		if err := w.track.Append(frame); err != nil {
			w.trackFailures++
			monitoring.Logf("recorder: track log write failed (%d/%d): %v", w.trackFailures, w.failLimit, err)
			if reopenErr := w.track.Reopen(); reopenErr != nil {
				monitoring.Logf("recorder: track log reopen failed: %v", reopenErr)
			}
			if w.failLimit > 0 && w.trackFailures >= w.failLimit {
				w.trackDisabled = true
				monitoring.Logf("recorder: track log disabled after %d failures", w.trackFailures)
			}
		} else {
			w.trackFailures = 0
			recorded = true
		}
	}

	if recorded {
		w.written.Add(1)
		monitoring.FramesRecorded.Inc()
	}
}
