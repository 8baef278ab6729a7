// Package pid implements a discrete PID loop where every term carries its own
// output limit.
//
// The integral accumulator stores the already-scaled term (sum of Ki*error),
// so the I limit bounds exactly what the integral contributes. The derivative
// acts on the measurement rather than the error, which avoids output spikes
// when the setpoint moves every cycle.
package pid

import "github.com/chewxy/math32"

// Term is a gain and the symmetric limit on that term's contribution.
type Term struct {
	Gain  float32
	Limit float32
}

// Gains groups the proportional, integral and derivative terms.
type Gains struct {
	P Term
	I Term
	D Term
}

// Output is the result of one PID step.
type Output struct {
	P     float32 // proportional contribution
	I     float32 // integral contribution
	D     float32 // derivative contribution
	Value float32 // sum of the terms, limited to the output limit
}

// Controller holds PID state between steps. It is not safe for concurrent use.
type Controller struct {
	// Setpoint is the target the measurement is driven towards.
	Setpoint float32
	// OutputLimit bounds the summed output symmetrically.
	OutputLimit float32

	gains           Gains
	integral        float32
	prevMeasurement float32
	hasPrev         bool
}

// New creates a Controller.
func New(setpoint, outputLimit float32, gains Gains) *Controller {
	return &Controller{
		Setpoint:    setpoint,
		OutputLimit: outputLimit,
		gains:       gains,
	}
}

// SetGains replaces the gains. The integral accumulator is kept and is
// clamped to the new I limit on the next step.
func (c *Controller) SetGains(g Gains) {
	c.gains = g
}

// Reset clears the integral accumulator and the derivative history.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevMeasurement = 0
	c.hasPrev = false
}

// Next computes the control output for a new measurement.
func (c *Controller) Next(measurement float32) Output {
	e := c.Setpoint - measurement

	p := limit(c.gains.P.Gain*e, c.gains.P.Limit)

	c.integral = limit(c.integral+c.gains.I.Gain*e, c.gains.I.Limit)

	var d float32
	if c.hasPrev {
		d = limit(-(measurement-c.prevMeasurement)*c.gains.D.Gain, c.gains.D.Limit)
	}
	c.prevMeasurement = measurement
	c.hasPrev = true

	return Output{
		P:     p,
		I:     c.integral,
		D:     d,
		Value: limit(p+c.integral+d, c.OutputLimit),
	}
}

// limit clamps v to [-|l|, |l|]. NaN maps to 0.
func limit(v, l float32) float32 {
	if math32.IsNaN(v) {
		return 0
	}
	l = math32.Abs(l)
	if v > l {
		return l
	}
	if v < -l {
		return -l
	}
	return v
}
