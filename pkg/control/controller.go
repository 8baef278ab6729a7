// Package control binds a reflow profile to a gain-scheduled PID loop.
package control

import (
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/goreflow/pkg/pid"
)

const (
	// MinOutput and MaxOutput bound the actuator command.
	MinOutput float32 = 0
	MaxOutput float32 = 100
)

// Setpointer gives the target temperature for a runtime.
type Setpointer interface {
	DesiredAt(runtime time.Duration) float32
}

// Result is one controller evaluation.
type Result struct {
	Phase    Phase
	Setpoint float32
	Terms    pid.Output
	Output   float32 // actuator command in [MinOutput, MaxOutput]
}

// Controller maps (runtime, temperature) to a clamped actuator command.
// It is not safe for concurrent use; the control worker owns it.
type Controller struct {
	profile Setpointer
	gains   GainTable
	loop    *pid.Controller
	phase   Phase
	started bool
}

// New creates a Controller for profile using gains. A nil table uses DefaultGains.
func New(profile Setpointer, gains GainTable) *Controller {
	if gains == nil {
		gains = DefaultGains
	}
	return &Controller{
		profile: profile,
		gains:   gains,
		loop:    pid.New(0, MaxOutput, gains[Preheat]),
		phase:   Preheat,
	}
}

// Phase returns the phase used by the last call to Update.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Output is Update returning only the actuator command.
func (c *Controller) Output(runtime time.Duration, current float32) float32 {
	return c.Update(runtime, current).Output
}

// Update runs one control step.
func (c *Controller) Update(runtime time.Duration, current float32) Result {
	phase := PhaseAt(runtime)
	if !c.started || phase != c.phase {
		if phase == Cooling {
			c.loop.Reset()
		}
		c.loop.SetGains(c.gains[phase])
		c.phase = phase
		c.started = true
	}

	setpoint := c.profile.DesiredAt(runtime)
	c.loop.Setpoint = setpoint

	if !finite(current) || !finite(setpoint) {
		return Result{Phase: phase, Setpoint: setpoint}
	}

	terms := c.loop.Next(current)
	return Result{
		Phase:    phase,
		Setpoint: setpoint,
		Terms:    terms,
		Output:   clamp(terms.Value, MinOutput, MaxOutput),
	}
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo || math32.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
