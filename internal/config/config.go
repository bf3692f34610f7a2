// Package config loads mission tuning parameters from JSON.
//
// All fields are pointers so a partial config file merges over the
// compiled defaults: fields omitted from the JSON keep their default
// values, returned by the Get* accessors.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/helmsman.defaults.json"

// ZoneConfig describes one obstacle detection zone: an angular sector
// relative to the vehicle heading (0 = dead ahead, positive = starboard)
// with its own distance threshold.
type ZoneConfig struct {
	ID              string  `json:"id"`
	MinAngleDeg     float64 `json:"min_angle_deg"`
	MaxAngleDeg     float64 `json:"max_angle_deg"`
	ThresholdMeters float64 `json:"threshold_m"`
}

// Config is the root mission configuration. The schema is shared between
// the startup config file and the /api/status configuration echo.
type Config struct {
	// Waypoint arrival
	ArrivalRadiusMeters *float64 `json:"arrival_radius_m,omitempty"`

	// Control loop
	ControlRateHz  *float64 `json:"control_rate_hz,omitempty"`
	StartDelay     *string  `json:"start_delay,omitempty"` // duration string like "5s"
	SensorTimeout  *string  `json:"sensor_timeout,omitempty"`
	TelemetryLimit *int     `json:"telemetry_failure_limit,omitempty"`
	ActuationLimit *int     `json:"actuation_failure_limit,omitempty"`

	// Steering
	SteeringGain        *float64 `json:"steering_gain,omitempty"`
	MaxTurnRateDeg      *float64 `json:"max_turn_rate_deg,omitempty"`
	CruiseSpeedMps      *float64 `json:"cruise_speed_mps,omitempty"`
	MinSpeedMps         *float64 `json:"min_speed_mps,omitempty"`
	DecelDistanceMeters *float64 `json:"decel_distance_m,omitempty"`

	// Obstacle avoidance
	Zones             []ZoneConfig `json:"zones,omitempty"`
	IgnoreDistanceM   *float64     `json:"ignore_distance_m,omitempty"`
	AdaptiveFrontZone *bool        `json:"adaptive_front_zone,omitempty"`
	SeverityThreshold *float64     `json:"severity_threshold,omitempty"`
	PersistenceTicks  *int         `json:"persistence_ticks,omitempty"`
	SettleTicks       *int         `json:"settle_ticks,omitempty"`
	EvadeTurnDeg      *float64     `json:"evade_turn_deg,omitempty"`
	CrawlSpeedMps     *float64     `json:"crawl_speed_mps,omitempty"`
	RecoverySpeedMps  *float64     `json:"recovery_speed_mps,omitempty"`

	// Recording
	RecordRateHz   *float64 `json:"record_rate_hz,omitempty"`
	SyncTolerance  *string  `json:"sync_tolerance,omitempty"` // duration string like "150ms"
	QueueCapacity  *int     `json:"queue_capacity,omitempty"`
	AllowStale     *bool    `json:"allow_stale,omitempty"`
	FlushInterval  *string  `json:"flush_interval,omitempty"`
	WriteFailLimit *int     `json:"write_failure_limit,omitempty"`
}

// Empty returns a Config with all fields unset so every accessor
// returns its compiled default.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. Fields omitted from the file
// retain their defaults, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks ranges and duration strings on every set field.
func (c *Config) Validate() error {
	if c.ArrivalRadiusMeters != nil && *c.ArrivalRadiusMeters <= 0 {
		return fmt.Errorf("arrival_radius_m must be positive, got %v", *c.ArrivalRadiusMeters)
	}
	if c.ControlRateHz != nil && (*c.ControlRateHz < 1 || *c.ControlRateHz > 50) {
		return fmt.Errorf("control_rate_hz must be in [1, 50], got %v", *c.ControlRateHz)
	}
	if c.RecordRateHz != nil && *c.RecordRateHz <= 0 {
		return fmt.Errorf("record_rate_hz must be positive, got %v", *c.RecordRateHz)
	}
	if c.PersistenceTicks != nil && *c.PersistenceTicks < 1 {
		return fmt.Errorf("persistence_ticks must be at least 1, got %d", *c.PersistenceTicks)
	}
	if c.SettleTicks != nil && *c.SettleTicks < 0 {
		return fmt.Errorf("settle_ticks must be non-negative, got %d", *c.SettleTicks)
	}
	if c.QueueCapacity != nil && *c.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", *c.QueueCapacity)
	}
	if c.TelemetryLimit != nil && *c.TelemetryLimit < 1 {
		return fmt.Errorf("telemetry_failure_limit must be at least 1, got %d", *c.TelemetryLimit)
	}
	if c.ActuationLimit != nil && *c.ActuationLimit < 1 {
		return fmt.Errorf("actuation_failure_limit must be at least 1, got %d", *c.ActuationLimit)
	}
	if c.SeverityThreshold != nil && (*c.SeverityThreshold < 0 || *c.SeverityThreshold > 1) {
		return fmt.Errorf("severity_threshold must be in [0, 1], got %v", *c.SeverityThreshold)
	}

	for _, field := range []struct {
		name  string
		value *string
	}{
		{"start_delay", c.StartDelay},
		{"sensor_timeout", c.SensorTimeout},
		{"sync_tolerance", c.SyncTolerance},
		{"flush_interval", c.FlushInterval},
	} {
		if field.value != nil && *field.value != "" {
			if _, err := time.ParseDuration(*field.value); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", field.name, *field.value, err)
			}
		}
	}

	for i, z := range c.Zones {
		if z.ID == "" {
			return fmt.Errorf("zone %d: id is required", i)
		}
		if z.MinAngleDeg >= z.MaxAngleDeg {
			return fmt.Errorf("zone %q: min_angle_deg must be below max_angle_deg", z.ID)
		}
		if z.ThresholdMeters <= 0 {
			return fmt.Errorf("zone %q: threshold_m must be positive", z.ID)
		}
	}

	return nil
}

// GetArrivalRadiusMeters returns the arrival radius or the default.
func (c *Config) GetArrivalRadiusMeters() float64 {
	if c.ArrivalRadiusMeters == nil {
		return 2.5 // matches the surveyor's waypoint tolerance
	}
	return *c.ArrivalRadiusMeters
}

// GetControlInterval returns the control tick period derived from
// control_rate_hz.
func (c *Config) GetControlInterval() time.Duration {
	rate := 10.0
	if c.ControlRateHz != nil {
		rate = *c.ControlRateHz
	}
	return time.Duration(float64(time.Second) / rate)
}

// GetStartDelay parses and returns the start delay.
func (c *Config) GetStartDelay() time.Duration {
	return c.duration(c.StartDelay, 0)
}

// GetSensorTimeout returns the per-call acquisition deadline.
func (c *Config) GetSensorTimeout() time.Duration {
	return c.duration(c.SensorTimeout, 80*time.Millisecond)
}

// GetTelemetryLimit returns the consecutive telemetry failure limit.
func (c *Config) GetTelemetryLimit() int {
	if c.TelemetryLimit == nil {
		return 10
	}
	return *c.TelemetryLimit
}

// GetActuationLimit returns the consecutive actuation failure limit.
func (c *Config) GetActuationLimit() int {
	if c.ActuationLimit == nil {
		return 20
	}
	return *c.ActuationLimit
}

// GetSteeringGain returns the proportional heading gain.
func (c *Config) GetSteeringGain() float64 {
	if c.SteeringGain == nil {
		return 0.8
	}
	return *c.SteeringGain
}

// GetMaxTurnRateDeg returns the per-tick heading change clamp in degrees.
func (c *Config) GetMaxTurnRateDeg() float64 {
	if c.MaxTurnRateDeg == nil {
		return 15
	}
	return *c.MaxTurnRateDeg
}

// GetCruiseSpeedMps returns the cruise speed.
func (c *Config) GetCruiseSpeedMps() float64 {
	if c.CruiseSpeedMps == nil {
		return 1.5
	}
	return *c.CruiseSpeedMps
}

// GetMinSpeedMps returns the minimum commanded speed while under way.
func (c *Config) GetMinSpeedMps() float64 {
	if c.MinSpeedMps == nil {
		return 0.4
	}
	return *c.MinSpeedMps
}

// GetDecelDistanceMeters returns the deceleration zone radius.
func (c *Config) GetDecelDistanceMeters() float64 {
	if c.DecelDistanceMeters == nil {
		return 10
	}
	return *c.DecelDistanceMeters
}

// GetZones returns the configured detection zones or the default
// front-left / front-center / front-right layout.
func (c *Config) GetZones() []ZoneConfig {
	if len(c.Zones) > 0 {
		return c.Zones
	}
	return []ZoneConfig{
		{ID: "front-left", MinAngleDeg: -60, MaxAngleDeg: -15, ThresholdMeters: 1.5},
		{ID: "front-center", MinAngleDeg: -15, MaxAngleDeg: 15, ThresholdMeters: 2.0},
		{ID: "front-right", MinAngleDeg: 15, MaxAngleDeg: 60, ThresholdMeters: 1.5},
	}
}

// GetIgnoreDistanceM returns the floor below which scan returns are
// treated as sensor self-reflection and ignored.
func (c *Config) GetIgnoreDistanceM() float64 {
	if c.IgnoreDistanceM == nil {
		return 0.25
	}
	return *c.IgnoreDistanceM
}

// GetAdaptiveFrontZone reports whether the front zone widens as the
// nearest obstacle closes.
func (c *Config) GetAdaptiveFrontZone() bool {
	if c.AdaptiveFrontZone == nil {
		return false
	}
	return *c.AdaptiveFrontZone
}

// GetSeverityThreshold returns the minimum event severity that counts
// toward the avoidance debounce.
func (c *Config) GetSeverityThreshold() float64 {
	if c.SeverityThreshold == nil {
		return 0.2
	}
	return *c.SeverityThreshold
}

// GetPersistenceTicks returns the avoidance debounce length in ticks.
func (c *Config) GetPersistenceTicks() int {
	if c.PersistenceTicks == nil {
		return 3
	}
	return *c.PersistenceTicks
}

// GetSettleTicks returns the recovery settle period in ticks.
func (c *Config) GetSettleTicks() int {
	if c.SettleTicks == nil {
		return 10
	}
	return *c.SettleTicks
}

// GetEvadeTurnDeg returns the heading offset commanded while evading.
func (c *Config) GetEvadeTurnDeg() float64 {
	if c.EvadeTurnDeg == nil {
		return 45
	}
	return *c.EvadeTurnDeg
}

// GetCrawlSpeedMps returns the speed commanded while evading.
func (c *Config) GetCrawlSpeedMps() float64 {
	if c.CrawlSpeedMps == nil {
		return 0.3
	}
	return *c.CrawlSpeedMps
}

// GetRecoverySpeedMps returns the conservative speed used during the
// recovery settle period.
func (c *Config) GetRecoverySpeedMps() float64 {
	if c.RecoverySpeedMps == nil {
		return 0.8
	}
	return *c.RecoverySpeedMps
}

// GetRecordInterval returns the recording cadence period derived from
// record_rate_hz.
func (c *Config) GetRecordInterval() time.Duration {
	rate := 2.0
	if c.RecordRateHz != nil {
		rate = *c.RecordRateHz
	}
	return time.Duration(float64(time.Second) / rate)
}

// GetSyncTolerance returns the maximum skew among samples in one frame.
func (c *Config) GetSyncTolerance() time.Duration {
	return c.duration(c.SyncTolerance, 150*time.Millisecond)
}

// GetQueueCapacity returns the record queue capacity in frames.
func (c *Config) GetQueueCapacity() int {
	if c.QueueCapacity == nil {
		return 64
	}
	return *c.QueueCapacity
}

// GetAllowStale reports whether the synchronizer may reuse the last
// sample when a sensor misses its deadline.
func (c *Config) GetAllowStale() bool {
	if c.AllowStale == nil {
		return true
	}
	return *c.AllowStale
}

// GetFlushInterval returns the storage flush period.
func (c *Config) GetFlushInterval() time.Duration {
	return c.duration(c.FlushInterval, 5*time.Second)
}

// GetWriteFailLimit returns the consecutive storage-write failure count
// after which recording is disabled for the rest of the mission.
func (c *Config) GetWriteFailLimit() int {
	if c.WriteFailLimit == nil {
		return 5
	}
	return *c.WriteFailLimit
}

func (c *Config) duration(field *string, def time.Duration) time.Duration {
	if field == nil || *field == "" {
		return def
	}
	d, err := time.ParseDuration(*field)
	if err != nil {
		return def
	}
	return d
}
