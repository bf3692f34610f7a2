package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLoggerCapture(t *testing.T) {
	defer SetLogger(nil)

	var captured []string
	SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})

	Logf("tick %d", 42)
	if len(captured) != 1 || captured[0] != "tick 42" {
		t.Errorf("captured = %v, want [tick 42]", captured)
	}
}

func TestSetLoggerNil(t *testing.T) {
	SetLogger(nil)
	// Must not panic.
	Logf("discarded %s", "message")
}
