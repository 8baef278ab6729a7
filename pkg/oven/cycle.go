package oven

import (
	"time"

	"github.com/itohio/goreflow/pkg/control"
	"github.com/itohio/goreflow/pkg/ws2812"
)

// Status is what the status LED shows.
type Status int

const (
	// StatusIdle means the heater is off and the run is not finished.
	StatusIdle Status = iota
	// StatusHeating means the heater is on.
	StatusHeating
	// StatusComplete means the cooling time has been reached.
	StatusComplete
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusHeating:
		return "heating"
	case StatusComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Color maps the status to the LED colour.
func (s Status) Color() ws2812.Color {
	switch s {
	case StatusHeating:
		return ws2812.Red
	case StatusComplete:
		return ws2812.Green
	default:
		return ws2812.Off
	}
}

// StatusFor decides the heater and LED state. Past the cooling time the heater
// stays off whatever the controller asks for.
func StatusFor(runtime time.Duration, output float32, coolingTime time.Duration) Status {
	switch {
	case runtime >= coolingTime:
		return StatusComplete
	case output > 0:
		return StatusHeating
	default:
		return StatusIdle
	}
}

// Cycle is the outcome of one control cycle.
type Cycle struct {
	Runtime  time.Duration
	Desired  float32 // profile setpoint, °C
	Current  float32 // published thermocouple reading, °C
	Output   float32 // actuator command in [0, 100]
	Phase    control.Phase
	Status   Status
	Heating  bool
	RampRate float32 // °C/s over the ramp window
}
