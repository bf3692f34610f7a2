// Package pilot runs the mission control loop: one goroutine driving
// telemetry, obstacle avoidance, navigation, and actuation on a fixed
// cadence until the route is exhausted or the mission fails.
package pilot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/openwaters/helmsman/internal/mission"
	"github.com/openwaters/helmsman/internal/monitoring"
	"github.com/openwaters/helmsman/internal/nav"
	"github.com/openwaters/helmsman/internal/obstacle"
	"github.com/openwaters/helmsman/internal/record"
	"github.com/openwaters/helmsman/internal/sensors"
	"github.com/openwaters/helmsman/internal/timeutil"
)

// State is the mission loop lifecycle state.
type State int

const (
	// Initializing covers mission load, sensor connect, and the optional
	// start countdown.
	Initializing State = iota
	// Running is the normal control loop.
	Running
	// Completing is the terminal state of a finished route: arrivals
	// flushed, a stop command issued.
	Completing
	// Aborted is the terminal state after an unrecoverable failure or an
	// operator abort.
	Aborted
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Completing:
		return "completing"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Snapshot is the immutable view of the loop published after every tick
// for the status API and the recording synchronizer.
type Snapshot struct {
	State         State        `json:"-"`
	StateName     string       `json:"state"`
	MissionID     string       `json:"mission_id"`
	MissionStatus string       `json:"mission_status"`
	WaypointIndex int          `json:"waypoint_index"`
	WaypointCount int          `json:"waypoint_count"`
	Pose          sensors.Pose `json:"pose"`
	HavePose      bool         `json:"have_pose"`
	Avoidance     string       `json:"avoidance"`
	LastCommand   nav.Command  `json:"last_command"`
	Ticks         uint64       `json:"ticks"`
	AbortReason   string       `json:"abort_reason,omitempty"`
}

// Options wires a MissionLoop. Store may be nil to skip arrival logging.
type Options struct {
	Mission   *mission.Mission
	Sequencer *mission.Sequencer
	Nav       *nav.Controller
	Monitor   *obstacle.Monitor
	Arbiter   *obstacle.Arbiter
	Telemetry sensors.TelemetryProvider
	Ranging   sensors.RangingProvider
	Actuator  sensors.ActuationSink
	Store     *record.Store
	Clock     timeutil.Clock

	ControlInterval time.Duration
	StartDelay      time.Duration
	SensorTimeout   time.Duration
	TelemetryLimit  int // consecutive telemetry timeouts before abort
	ActuationLimit  int // consecutive actuation failures before abort
	RecoverySpeed   float64
	ArrivalRadius   float64
}

// MissionLoop drives one mission from start to a terminal state. All
// mutable state is owned by the loop goroutine; outsiders observe it
// only through the published snapshot.
type MissionLoop struct {
	opts Options

	state State

	pose     sensors.Pose
	havePose bool

	telemetryMisses int
	actuationMisses int
	ticks           uint64
	lastCommand     nav.Command
	abortReason     string

	snapshot atomic.Pointer[Snapshot]
}

func New(opts Options) *MissionLoop {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	l := &MissionLoop{opts: opts}
	l.publish()
	return l
}

// Snapshot returns the loop's latest published state.
func (l *MissionLoop) Snapshot() Snapshot {
	return *l.snapshot.Load()
}

// LatestPose implements record.PoseSource.
func (l *MissionLoop) LatestPose() (sensors.Pose, bool) {
	snap := l.snapshot.Load()
	return snap.Pose, snap.HavePose
}

// Run executes the mission until the route completes, a failure limit
// trips, or the context is canceled. Cancellation with a configured
// recovery waypoint triggers the recovery leg before stopping.
func (l *MissionLoop) Run(ctx context.Context) error {
	if err := l.countdown(ctx); err != nil {
		l.abort("canceled before start")
		return err
	}

	l.state = Running
	l.opts.Mission.SetStatus(mission.StatusActive)
	monitoring.MissionState.Set(1)
	monitoring.Logf("mission %s: running, %d waypoints", l.opts.Mission.ID, l.opts.Sequencer.Count())
	l.publish()

	ticker := l.opts.Clock.NewTicker(l.opts.ControlInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.operatorAbort()
			return ctx.Err()
		case now := <-ticker.C():
			done, err := l.tick(ctx, now)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// countdown delays the start, announcing each remaining second.
func (l *MissionLoop) countdown(ctx context.Context) error {
	remaining := l.opts.StartDelay
	for remaining > 0 {
		step := time.Second
		if remaining < step {
			step = remaining
		}
		monitoring.Logf("mission %s: starting in %v", l.opts.Mission.ID, remaining)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.opts.Clock.After(step):
		}
		remaining -= step
	}
	return nil
}

// tick runs one control cycle. It returns done=true when the mission
// reached a terminal state.
func (l *MissionLoop) tick(ctx context.Context, now time.Time) (bool, error) {
	started := l.opts.Clock.Now()
	l.ticks++
	monitoring.TicksTotal.Inc()
	defer func() {
		monitoring.TickSeconds.Observe(l.opts.Clock.Since(started).Seconds())
		l.publish()
	}()

	if err := l.readTelemetry(ctx); err != nil {
		l.abort(err.Error())
		return true, err
	}
	if !l.havePose {
		// Nothing to navigate by yet.
		return false, nil
	}

	// Arrival check before steering, so spawning on a waypoint counts
	// immediately.
	for l.opts.Sequencer.Advance(l.pose.Latitude, l.pose.Longitude, now) {
		monitoring.WaypointsReached.Inc()
		monitoring.Logf("mission %s: reached waypoint %d/%d",
			l.opts.Mission.ID, l.opts.Sequencer.Index(), l.opts.Sequencer.Count())
	}
	if l.opts.Sequencer.Exhausted() {
		l.complete()
		return true, nil
	}

	decision := l.updateAvoidance(ctx)

	target, _ := l.opts.Sequencer.Current()
	cmd := l.opts.Nav.Compute(l.pose, target)
	if decision.Override {
		if decision.OverrideHeading {
			cmd.Heading = decision.HeadingDeg
		}
		cmd.Speed = decision.SpeedMps
	}

	if err := l.actuate(cmd); err != nil {
		l.abort(err.Error())
		return true, err
	}
	return false, nil
}

// readTelemetry refreshes the pose, tolerating timeouts up to the
// consecutive limit. The previous pose is reused on a miss.
func (l *MissionLoop) readTelemetry(ctx context.Context) error {
	readCtx := ctx
	var cancel context.CancelFunc
	if l.opts.SensorTimeout > 0 {
		readCtx, cancel = context.WithTimeout(ctx, l.opts.SensorTimeout)
		defer cancel()
	}

	pose, err := l.opts.Telemetry.Read(readCtx)
	if err != nil {
		l.telemetryMisses++
		monitoring.TelemetryTimeouts.Inc()
		if l.telemetryMisses >= l.opts.TelemetryLimit {
			return fmt.Errorf("telemetry lost: %d consecutive failures: %v", l.telemetryMisses, err)
		}
		monitoring.Logf("pilot: telemetry miss (%d/%d), holding last pose: %v",
			l.telemetryMisses, l.opts.TelemetryLimit, err)
		return nil
	}
	l.telemetryMisses = 0
	l.pose = pose
	l.havePose = true
	return nil
}

// updateAvoidance feeds the latest scan to the arbiter. A scan failure
// holds the current avoidance state rather than treating it as clear.
func (l *MissionLoop) updateAvoidance(ctx context.Context) obstacle.Decision {
	scanCtx := ctx
	var cancel context.CancelFunc
	if l.opts.SensorTimeout > 0 {
		scanCtx, cancel = context.WithTimeout(ctx, l.opts.SensorTimeout)
		defer cancel()
	}

	scan, err := l.opts.Ranging.Scan(scanCtx)
	if err != nil {
		monitoring.Logf("pilot: ranging miss, holding avoidance state: %v", err)
		return l.opts.Arbiter.Hold(l.pose.Heading)
	}
	return l.opts.Arbiter.Update(l.pose.Heading, l.opts.Monitor.Evaluate(scan))
}

// actuate sends the command, tolerating failures up to the consecutive
// limit. The previous command stays in effect on the vehicle meanwhile.
func (l *MissionLoop) actuate(cmd nav.Command) error {
	if err := l.opts.Actuator.Command(cmd.Heading, cmd.Speed); err != nil {
		l.actuationMisses++
		if l.actuationMisses >= l.opts.ActuationLimit {
			return fmt.Errorf("actuation lost: %d consecutive failures: %v", l.actuationMisses, err)
		}
		monitoring.Logf("pilot: actuation failure (%d/%d): %v", l.actuationMisses, l.opts.ActuationLimit, err)
		return nil
	}
	l.actuationMisses = 0
	l.lastCommand = cmd
	return nil
}

func (l *MissionLoop) complete() {
	l.state = Completing
	l.opts.Mission.SetStatus(mission.StatusCompleted)
	monitoring.MissionState.Set(2)
	l.stopVehicle()
	l.flushArrivals()
	monitoring.Logf("mission %s: complete, %d waypoints reached", l.opts.Mission.ID, l.opts.Sequencer.Index())
}

func (l *MissionLoop) abort(reason string) {
	l.state = Aborted
	l.abortReason = reason
	l.opts.Mission.SetStatus(mission.StatusAborted)
	monitoring.MissionState.Set(3)
	l.stopVehicle()
	l.flushArrivals()
	monitoring.Logf("mission %s: aborted: %s", l.opts.Mission.ID, reason)
	l.publish()
}

// operatorAbort handles context cancellation. With a recovery waypoint
// configured and sensors still healthy the vehicle first steers to the
// recovery point, then stops.
func (l *MissionLoop) operatorAbort() {
	if l.opts.Mission.Recovery != nil && l.havePose && l.actuationMisses == 0 {
		l.runRecovery()
	}
	l.abort("operator abort")
}

// recoveryBudget bounds the post-abort recovery leg so a mission never
// refuses to die.
const recoveryBudget = 2 * time.Minute

// runRecovery steers toward the recovery waypoint at conservative speed
// until arrival or the budget expires. The parent context is already
// canceled, so the leg runs on its own deadline.
func (l *MissionLoop) runRecovery() {
	target := *l.opts.Mission.Recovery
	monitoring.Logf("mission %s: steering to recovery point (%.5f, %.5f)",
		l.opts.Mission.ID, target.Latitude, target.Longitude)

	ctx, cancel := context.WithTimeout(context.Background(), recoveryBudget)
	defer cancel()

	ticker := l.opts.Clock.NewTicker(l.opts.ControlInterval)
	defer ticker.Stop()

	seq := mission.NewSequencer(mustMission([]mission.Waypoint{target}), l.opts.ArrivalRadius)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("mission %s: recovery budget expired", l.opts.Mission.ID)
			return
		case now := <-ticker.C():
			if err := l.readTelemetry(ctx); err != nil || !l.havePose {
				return
			}
			if seq.Advance(l.pose.Latitude, l.pose.Longitude, now) {
				monitoring.Logf("mission %s: recovery point reached", l.opts.Mission.ID)
				return
			}
			cmd := l.opts.Nav.Compute(l.pose, target)
			cmd.Speed = l.opts.RecoverySpeed
			if err := l.actuate(cmd); err != nil {
				return
			}
			l.publish()
		}
	}
}

// stopVehicle issues a best-effort zero-speed command holding the
// current heading.
func (l *MissionLoop) stopVehicle() {
	heading := l.pose.Heading
	if err := l.opts.Actuator.Command(heading, 0); err != nil {
		monitoring.Logf("pilot: stop command failed: %v", err)
	}
	l.lastCommand = nav.Command{Heading: heading, Speed: 0}
}

// flushArrivals writes the batched waypoint arrivals to the mission log.
func (l *MissionLoop) flushArrivals() {
	if l.opts.Store == nil {
		return
	}
	for _, a := range l.opts.Sequencer.Arrivals() {
		if err := l.opts.Store.RecordArrival(a); err != nil {
			monitoring.Logf("pilot: failed to log arrival %d: %v", a.Index, err)
			return
		}
	}
}

func (l *MissionLoop) publish() {
	l.snapshot.Store(&Snapshot{
		State:         l.state,
		StateName:     l.state.String(),
		MissionID:     l.opts.Mission.ID,
		MissionStatus: l.opts.Mission.Status().String(),
		WaypointIndex: l.opts.Sequencer.Index(),
		WaypointCount: l.opts.Sequencer.Count(),
		Pose:          l.pose,
		HavePose:      l.havePose,
		Avoidance:     l.opts.Arbiter.State().String(),
		LastCommand:   l.lastCommand,
		Ticks:         l.ticks,
		AbortReason:   l.abortReason,
	})
}

func mustMission(wps []mission.Waypoint) *mission.Mission {
	m, err := mission.New(wps)
	if err != nil {
		panic(err)
	}
	return m
}
