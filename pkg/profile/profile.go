package profile

import (
	"errors"
	"fmt"
	"time"

	"github.com/chewxy/math32"
)

var (
	// ErrTooFewKeyframes is returned when a profile has no room for padding.
	ErrTooFewKeyframes = errors.New("profile needs at least 4 keyframes")
	// ErrNotIncreasing is returned when keyframe times do not strictly increase.
	ErrNotIncreasing = errors.New("keyframe times must strictly increase")
)

// Keyframe is a target temperature at a point in time.
type Keyframe struct {
	Time        float32 // seconds since the start of the run
	Temperature float32 // degrees Celsius
}

// Profile is a reflow curve sampled with a Catmull-Rom spline.
//
// The first and last keyframes are padding: they shape the tangents at the
// ends of the curve but lie outside the sampled domain.
type Profile struct {
	name      string
	keyframes []Keyframe
	clamp     bool

	// HeatSoakTemperature is the soak plateau temperature in degrees Celsius.
	HeatSoakTemperature float32
	// CoolingTime is the runtime after which the heater is forced off. It
	// defaults to the end of the domain.
	CoolingTime time.Duration
}

// Option configures a Profile.
type Option func(*Profile)

// WithBoundaryClamp makes out-of-domain queries return the nearest boundary
// target instead of 0.
func WithBoundaryClamp() Option {
	return func(p *Profile) {
		p.clamp = true
	}
}

// WithThresholds sets the heat-soak temperature and cooling-time targets.
func WithThresholds(heatSoak float32, cooling time.Duration) Option {
	return func(p *Profile) {
		p.HeatSoakTemperature = heatSoak
		p.CoolingTime = cooling
	}
}

// New validates keyframes and builds a Profile.
func New(name string, keyframes []Keyframe, opts ...Option) (*Profile, error) {
	if len(keyframes) < 4 {
		return nil, fmt.Errorf("%s: %w (got %d)", name, ErrTooFewKeyframes, len(keyframes))
	}
	for i := 1; i < len(keyframes); i++ {
		if keyframes[i].Time <= keyframes[i-1].Time {
			return nil, fmt.Errorf("%s: %w at index %d (%v after %v)",
				name, ErrNotIncreasing, i, keyframes[i].Time, keyframes[i-1].Time)
		}
	}

	kf := make([]Keyframe, len(keyframes))
	copy(kf, keyframes)

	p := &Profile{
		name:      name,
		keyframes: kf,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.CoolingTime <= 0 {
		_, end := p.Domain()
		p.CoolingTime = time.Duration(float64(end) * float64(time.Second))
	}
	return p, nil
}

// Name returns the profile name.
func (p *Profile) Name() string {
	return p.name
}

// Domain returns the first and last sampled times in seconds.
func (p *Profile) Domain() (start, end float32) {
	return p.keyframes[1].Time, p.keyframes[len(p.keyframes)-2].Time
}

// DesiredTemperature samples the curve at t seconds. Outside the domain it
// returns 0, or the boundary target when clamping is enabled.
func (p *Profile) DesiredTemperature(t float32) float32 {
	first, last := 1, len(p.keyframes)-2
	start, end := p.keyframes[first], p.keyframes[last]

	switch {
	case math32.IsNaN(t):
		return 0
	case t < start.Time:
		if p.clamp {
			return start.Temperature
		}
		return 0
	case t > end.Time:
		if p.clamp {
			return end.Temperature
		}
		return 0
	case t == end.Time:
		return end.Temperature
	}

	// Find segment [k[i], k[i+1]) containing t.
	i := first
	for i < last-1 && t >= p.keyframes[i+1].Time {
		i++
	}

	k0, k1, k2, k3 := p.keyframes[i-1], p.keyframes[i], p.keyframes[i+1], p.keyframes[i+2]
	u := (t - k1.Time) / (k2.Time - k1.Time)
	return catmullRom(k0.Temperature, k1.Temperature, k2.Temperature, k3.Temperature, u)
}

// DesiredAt is DesiredTemperature for a runtime duration.
func (p *Profile) DesiredAt(runtime time.Duration) float32 {
	return p.DesiredTemperature(float32(runtime.Seconds()))
}

// catmullRom evaluates a uniform Catmull-Rom segment between p1 and p2 at u in [0,1].
func catmullRom(p0, p1, p2, p3, u float32) float32 {
	u2 := u * u
	u3 := u2 * u
	return 0.5 * ((2 * p1) +
		(-p0+p2)*u +
		(2*p0-5*p1+4*p2-p3)*u2 +
		(-p0+3*p1-3*p2+p3)*u3)
}
