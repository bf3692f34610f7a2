package main

import (
	"context"
	"sync"
	"testing"

	"github.com/openwaters/helmsman/internal/mission"
	"github.com/openwaters/helmsman/internal/sensors"
)

func TestBuildSensorsDevMode(t *testing.T) {
	old := *devMode
	*devMode = true
	defer func() { *devMode = old }()

	m, err := mission.New([]mission.Waypoint{{Latitude: 25.76, Longitude: -80.37}})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	telemetry, ranging, camera, actuator, err := buildSensors(context.Background(), &wg, m)
	if err != nil {
		t.Fatalf("buildSensors: %v", err)
	}

	vehicle, ok := telemetry.(*sensors.SimVehicle)
	if !ok {
		t.Fatalf("telemetry = %T, want *sensors.SimVehicle", telemetry)
	}
	if actuator != sensors.ActuationSink(vehicle) {
		t.Error("actuator is not the simulated vehicle")
	}
	if _, ok := ranging.(*sensors.SimRanging); !ok {
		t.Errorf("ranging = %T", ranging)
	}
	if _, ok := camera.(*sensors.SimCamera); !ok {
		t.Errorf("camera = %T", camera)
	}

	// The simulator spawns short of the first waypoint, not on it.
	pose, err := vehicle.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pose.Latitude >= 25.76 {
		t.Errorf("spawn latitude %v not south of first waypoint", pose.Latitude)
	}
}
