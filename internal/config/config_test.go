package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "helmsman.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := Empty()

	if got := cfg.GetArrivalRadiusMeters(); got != 2.5 {
		t.Errorf("GetArrivalRadiusMeters() = %v, want 2.5", got)
	}
	if got := cfg.GetControlInterval(); got != 100*time.Millisecond {
		t.Errorf("GetControlInterval() = %v, want 100ms", got)
	}
	if got := cfg.GetPersistenceTicks(); got != 3 {
		t.Errorf("GetPersistenceTicks() = %v, want 3", got)
	}
	if got := cfg.GetSyncTolerance(); got != 150*time.Millisecond {
		t.Errorf("GetSyncTolerance() = %v, want 150ms", got)
	}
	if !cfg.GetAllowStale() {
		t.Error("GetAllowStale() = false, want true by default")
	}
	if got := len(cfg.GetZones()); got != 3 {
		t.Errorf("default zone count = %d, want 3", got)
	}
}

func TestLoadPartialConfigMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `{"arrival_radius_m": 5.0, "persistence_ticks": 7}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5.0, cfg.GetArrivalRadiusMeters())
	assert.Equal(t, 7, cfg.GetPersistenceTicks())
	// Unset fields keep defaults.
	assert.Equal(t, 1.5, cfg.GetCruiseSpeedMps())
}

func TestLoadZones(t *testing.T) {
	path := writeConfig(t, `{
		"zones": [
			{"id": "ahead", "min_angle_deg": -30, "max_angle_deg": 30, "threshold_m": 1.0}
		]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want := []ZoneConfig{{ID: "ahead", MinAngleDeg: -30, MaxAngleDeg: 30, ThresholdMeters: 1.0}}
	if diff := cmp.Diff(want, cfg.GetZones()); diff != "" {
		t.Errorf("GetZones() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	if _, err := Load("mission.yaml"); err == nil {
		t.Error("Load() accepted a non-.json file")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{name: "negative arrival radius", json: `{"arrival_radius_m": -1}`},
		{name: "control rate too high", json: `{"control_rate_hz": 100}`},
		{name: "zero persistence", json: `{"persistence_ticks": 0}`},
		{name: "bad duration", json: `{"sync_tolerance": "fast"}`},
		{name: "zone without id", json: `{"zones": [{"min_angle_deg": 0, "max_angle_deg": 10, "threshold_m": 1}]}`},
		{name: "zone inverted angles", json: `{"zones": [{"id": "x", "min_angle_deg": 20, "max_angle_deg": 10, "threshold_m": 1}]}`},
		{name: "zone zero threshold", json: `{"zones": [{"id": "x", "min_angle_deg": 0, "max_angle_deg": 10, "threshold_m": 0}]}`},
		{name: "severity above one", json: `{"severity_threshold": 1.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.json)
			if _, err := Load(path); err == nil {
				t.Error("Load() accepted an invalid config")
			}
		})
	}
}

func TestDefaultsFileMatchesCompiledDefaults(t *testing.T) {
	// The canonical defaults file must not silently diverge from the
	// compiled fallbacks.
	cfg, err := Load(filepath.Join("..", "..", DefaultConfigPath))
	if err != nil {
		t.Skipf("defaults file not found: %v", err)
	}

	empty := Empty()
	if got, want := cfg.GetArrivalRadiusMeters(), empty.GetArrivalRadiusMeters(); got != want {
		t.Errorf("arrival_radius_m: file %v, compiled %v", got, want)
	}
	if got, want := cfg.GetPersistenceTicks(), empty.GetPersistenceTicks(); got != want {
		t.Errorf("persistence_ticks: file %v, compiled %v", got, want)
	}
	if got, want := cfg.GetQueueCapacity(), empty.GetQueueCapacity(); got != want {
		t.Errorf("queue_capacity: file %v, compiled %v", got, want)
	}
	if diff := cmp.Diff(empty.GetZones(), cfg.GetZones()); diff != "" {
		t.Errorf("zones mismatch (-compiled +file):\n%s", diff)
	}
}
