package control

import (
	"time"

	"github.com/itohio/goreflow/pkg/pid"
)

// Phase is a reflow control phase.
type Phase int

const (
	Preheat Phase = iota
	Soak
	ReflowRamp
	Cooling
)

// Phase start times in the reference schedule.
const (
	SoakStart    = 30 * time.Second
	ReflowStart  = 120 * time.Second
	CoolingStart = 210 * time.Second
)

func (p Phase) String() string {
	switch p {
	case Preheat:
		return "preheat"
	case Soak:
		return "soak"
	case ReflowRamp:
		return "reflow_ramp"
	case Cooling:
		return "cooling"
	default:
		return "unknown"
	}
}

// PhaseAt selects the phase for an elapsed runtime. Negative runtimes map to Preheat.
func PhaseAt(runtime time.Duration) Phase {
	switch {
	case runtime < SoakStart:
		return Preheat
	case runtime < ReflowStart:
		return Soak
	case runtime < CoolingStart:
		return ReflowRamp
	default:
		return Cooling
	}
}

// GainTable maps each phase to its PID gains.
type GainTable map[Phase]pid.Gains

// DefaultGains is the reference gain schedule. Cooling has every gain and
// limit at zero, so it contributes nothing.
var DefaultGains = GainTable{
	Preheat: {
		P: pid.Term{Gain: 2.0, Limit: 10},
		I: pid.Term{Gain: 0.005, Limit: 0.3},
		D: pid.Term{Gain: 1.0, Limit: 1.0},
	},
	Soak: {
		P: pid.Term{Gain: 2.0, Limit: 10},
		I: pid.Term{Gain: 0.01, Limit: 0.8},
		D: pid.Term{Gain: 2.0, Limit: 1.0},
	},
	ReflowRamp: {
		P: pid.Term{Gain: 2.5, Limit: 10},
		I: pid.Term{Gain: 0.005, Limit: 0.5},
		D: pid.Term{Gain: 3.0, Limit: 1.0},
	},
	Cooling: {},
}
