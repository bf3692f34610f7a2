package record

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openwaters/helmsman/internal/monitoring"
	"github.com/openwaters/helmsman/internal/sensors"
	"github.com/openwaters/helmsman/internal/timeutil"
)

// PoseSource supplies the most recent vehicle pose without blocking.
// The control loop publishes its latest telemetry through this.
type PoseSource interface {
	// LatestPose returns the newest pose and whether one exists yet.
	LatestPose() (sensors.Pose, bool)
}

// SynchronizerOptions configure capture cadence and alignment.
type SynchronizerOptions struct {
	Interval      time.Duration // capture cadence
	Deadline      time.Duration // per-modality capture budget
	SyncTolerance time.Duration // max pose age relative to the cadence tick
	AllowStale    bool          // reuse the previous pose when fresh telemetry misses tolerance
	Clock         timeutil.Clock
}

// Synchronizer captures one aligned frame per cadence tick: scan and
// image are fetched concurrently under a shared deadline, the pose is
// snapshotted from the control loop, and the whole is either pushed to
// the queue or counted as a gap. A tick never produces a partial frame.
type Synchronizer struct {
	ranging sensors.RangingProvider
	camera  sensors.ImageProvider
	pose    PoseSource
	queue   *Queue
	opts    SynchronizerOptions
	clock   timeutil.Clock

	seq  uint64
	gaps atomic.Uint64

	mu       sync.Mutex
	lastPose sensors.Pose
	havePose bool
}

func NewSynchronizer(ranging sensors.RangingProvider, camera sensors.ImageProvider, pose PoseSource, queue *Queue, opts SynchronizerOptions) *Synchronizer {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Synchronizer{
		ranging: ranging,
		camera:  camera,
		pose:    pose,
		queue:   queue,
		opts:    opts,
		clock:   clock,
	}
}

// Gaps reports how many cadence ticks failed to produce a frame.
func (s *Synchronizer) Gaps() uint64 { return s.gaps.Load() }

// Run captures frames until the context is canceled.
func (s *Synchronizer) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			s.CaptureOnce(ctx, now)
		}
	}
}

// CaptureOnce attempts one synchronized capture for the cadence tick at
// now. Exported for deterministic tests.
func (s *Synchronizer) CaptureOnce(ctx context.Context, now time.Time) {
	captureCtx := ctx
	var cancel context.CancelFunc
	if s.opts.Deadline > 0 {
		captureCtx, cancel = context.WithTimeout(ctx, s.opts.Deadline)
		defer cancel()
	}

	var (
		wg      sync.WaitGroup
		scan    sensors.ScanSample
		scanErr error
		image   sensors.Image
		imgErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		scan, scanErr = s.ranging.Scan(captureCtx)
	}()
	go func() {
		defer wg.Done()
		image, imgErr = s.camera.Capture(captureCtx)
	}()
	wg.Wait()

	if scanErr != nil {
		s.gap("scan failed: %v", scanErr)
		return
	}
	if imgErr != nil {
		s.gap("image capture failed: %v", imgErr)
		return
	}

	// Every modality must carry a capture timestamp within tolerance of
	// the cadence tick, or the frame is dropped whole. A dead camera
	// daemon re-serving an old spool image fails here.
	if !s.withinTolerance(now, scan.Timestamp) {
		s.gap("scan timestamp %v outside %v of tick", scan.Timestamp, s.opts.SyncTolerance)
		return
	}
	if !s.withinTolerance(now, image.Timestamp) {
		s.gap("image timestamp %v outside %v of tick", image.Timestamp, s.opts.SyncTolerance)
		return
	}

	pose, stale, ok := s.alignedPose(now)
	if !ok {
		s.gap("no pose within %v of tick", s.opts.SyncTolerance)
		return
	}

	s.seq++
	s.queue.Push(Frame{
		Seq:        s.seq,
		Image:      image.Data,
		Angles:     scanAngles(scan),
		Distances:  scanDistances(scan),
		Latitude:   pose.Latitude,
		Longitude:  pose.Longitude,
		HeadingDeg: pose.Heading,
		SpeedMps:   pose.Speed,
		Timestamp:  now,
		Stale:      stale,
	})
}

// withinTolerance reports whether a sample timestamp is close enough to
// the cadence tick to belong in its frame.
func (s *Synchronizer) withinTolerance(now, sample time.Time) bool {
	skew := now.Sub(sample)
	if skew < 0 {
		skew = -skew
	}
	return skew <= s.opts.SyncTolerance
}

// alignedPose returns the pose to attach to a frame captured at now.
// A pose older than the sync tolerance is only usable when stale reuse
// is enabled and a previous pose exists.
func (s *Synchronizer) alignedPose(now time.Time) (pose sensors.Pose, stale, ok bool) {
	current, have := s.pose.LatestPose()
	if have {
		if s.withinTolerance(now, current.Timestamp) {
			s.mu.Lock()
			s.lastPose = current
			s.havePose = true
			s.mu.Unlock()
			return current, false, true
		}
	}

	if !s.opts.AllowStale {
		return sensors.Pose{}, false, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.havePose {
		return sensors.Pose{}, false, false
	}
	return s.lastPose, true, true
}

func (s *Synchronizer) gap(format string, args ...any) {
	s.gaps.Add(1)
	monitoring.SyncGaps.Inc()
	monitoring.Logf("synchronizer: gap: "+format, args...)
}

func scanAngles(scan sensors.ScanSample) []float64 {
	out := make([]float64, len(scan.Points))
	for i, p := range scan.Points {
		out[i] = p.Angle
	}
	return out
}

func scanDistances(scan sensors.ScanSample) []float64 {
	out := make([]float64, len(scan.Points))
	for i, p := range scan.Points {
		out[i] = p.Distance
	}
	return out
}
