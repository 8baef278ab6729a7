// Package oven runs the reflow oven: a sensor worker publishing the
// thermocouple reading and a control worker driving the heater and the status
// LED from the profile and the gain-scheduled controller.
package oven

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/itohio/goreflow/pkg/config"
	"github.com/itohio/goreflow/pkg/control"
	"github.com/itohio/goreflow/pkg/profile"
	"github.com/itohio/goreflow/pkg/ramp"
	"github.com/itohio/goreflow/pkg/ws2812"
)

// Sensor is the temperature source shared between the workers.
type Sensor interface {
	InitializeOffset()
	Offset() float32
	ReadContinuous(ctx context.Context, interval time.Duration)
	CurrentReading() float32
	Ready() <-chan struct{}
}

// Switch is a binary output; true drives the heater on.
type Switch interface {
	Set(on bool) error
}

// Indicator shows a colour on the status LED.
type Indicator interface {
	Show(ctx context.Context, c ws2812.Color) error
}

// Oven sequences startup and owns the two workers.
type Oven struct {
	cfg        *config.Config
	profile    *profile.Profile
	sensor     Sensor
	heater     Switch
	led        Indicator
	controller *control.Controller
	ramp       *ramp.Monitor
	recorders  []Recorder
	log        zerolog.Logger

	soakReached  bool
	rampExceeded bool
}

// Option configures an Oven.
type Option func(*Oven)

// WithRecorder adds a recorder for control cycles.
func WithRecorder(r Recorder) Option {
	return func(o *Oven) {
		o.recorders = append(o.recorders, r)
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Oven) {
		o.log = l
	}
}

// WithGains replaces the compiled-in gain schedule.
func WithGains(g control.GainTable) Option {
	return func(o *Oven) {
		o.controller = control.New(o.profile, g)
	}
}

// New creates an Oven. The LED indicator must already be initialized,
// including its warm-up.
func New(cfg *config.Config, p *profile.Profile, sensor Sensor, heater Switch, led Indicator, opts ...Option) *Oven {
	o := &Oven{
		cfg:        cfg,
		profile:    p,
		sensor:     sensor,
		heater:     heater,
		led:        led,
		controller: control.New(p, nil),
		ramp:       ramp.New(cfg.Control.RampWindow, cfg.Control.MaxRampRate),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With().Str("component", "oven").Str("profile", p.Name()).Logger()
	return o
}

// Run calibrates the sensor, starts both workers and blocks until ctx is
// cancelled. On return the heater is off and the LED is dark.
func (o *Oven) Run(ctx context.Context) error {
	if err := o.led.Show(ctx, ws2812.Blue); err != nil {
		o.log.Debug().Err(err).Msg("status LED update failed")
	}

	o.sensor.InitializeOffset()
	o.beginRun()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o.sensor.ReadContinuous(gctx, o.cfg.Sensor.Interval)
		return nil
	})
	g.Go(func() error {
		o.controlLoop(gctx)
		return nil
	})

	return g.Wait()
}

// beginRun tells run recorders that a new run started.
func (o *Oven) beginRun() {
	offset := o.sensor.Offset()
	for _, r := range o.recorders {
		rr, ok := r.(RunRecorder)
		if !ok {
			continue
		}
		if err := rr.BeginRun(o.profile.Name(), offset); err != nil {
			o.log.Warn().Err(err).Msg("failed to begin run")
		}
	}
}

// controlLoop waits for the first reading and then runs one Step per
// control interval.
func (o *Oven) controlLoop(ctx context.Context) {
	defer o.shutdown()

	if !o.awaitFirstReading(ctx) {
		return
	}

	start := time.Now()
	o.log.Info().
		Dur("interval", o.cfg.Control.Interval).
		Float32("start_temperature", o.sensor.CurrentReading()).
		Msg("control loop started")

	ticker := time.NewTicker(o.cfg.Control.Interval)
	defer ticker.Stop()

	for {
		o.Step(ctx, time.Since(start))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// awaitFirstReading blocks until the sensor has published, the timeout
// passes, or ctx is cancelled. It returns false only on cancellation.
func (o *Oven) awaitFirstReading(ctx context.Context) bool {
	timer := time.NewTimer(o.cfg.Control.FirstReadingTimeout)
	defer timer.Stop()

	select {
	case <-o.sensor.Ready():
		return true
	case <-timer.C:
		o.log.Warn().
			Dur("timeout", o.cfg.Control.FirstReadingTimeout).
			Msg("no temperature reading yet, starting control on the default value")
		return true
	case <-ctx.Done():
		return false
	}
}

// Step runs one control cycle at the given runtime.
func (o *Oven) Step(ctx context.Context, runtime time.Duration) Cycle {
	current := o.sensor.CurrentReading()
	res := o.controller.Update(runtime, current)
	status := StatusFor(runtime, res.Output, o.profile.CoolingTime)

	c := Cycle{
		Runtime:  runtime,
		Desired:  res.Setpoint,
		Current:  current,
		Output:   res.Output,
		Phase:    res.Phase,
		Status:   status,
		Heating:  status == StatusHeating,
		RampRate: o.ramp.Add(ramp.Sample{Runtime: runtime, Temperature: current}),
	}

	o.log.Debug().
		Float64("runtime", runtime.Seconds()).
		Float32("desired_temperature", c.Desired).
		Float32("current_temperature", c.Current).
		Float32("control_output", c.Output).
		Str("phase", c.Phase.String()).
		Msg("cycle")

	if err := o.heater.Set(c.Heating); err != nil {
		o.log.Error().Err(err).Bool("on", c.Heating).Msg("heater output failed")
	}

	// Best effort: a failed LED update never holds up the loop.
	if err := o.led.Show(ctx, status.Color()); err != nil {
		o.log.Debug().Err(err).Msg("status LED update failed")
	}

	o.observe(c)

	for _, r := range o.recorders {
		if err := r.Record(c); err != nil {
			o.log.Warn().Err(err).Msg("failed to record cycle")
		}
	}

	return c
}

// observe logs one-shot and edge-triggered events for a cycle.
func (o *Oven) observe(c Cycle) {
	if !o.soakReached && o.profile.HeatSoakTemperature > 0 && c.Current >= o.profile.HeatSoakTemperature {
		o.soakReached = true
		o.log.Info().
			Float64("runtime", c.Runtime.Seconds()).
			Float32("temperature", c.Current).
			Msg("heat soak temperature reached")
	}

	exceeded := o.ramp.Exceeded()
	if exceeded && !o.rampExceeded {
		o.log.Warn().
			Float32("rate", c.RampRate).
			Float32("limit", o.cfg.Control.MaxRampRate).
			Msg("ramp rate above limit")
	}
	o.rampExceeded = exceeded
}

// shutdown leaves the oven safe.
func (o *Oven) shutdown() {
	if err := o.heater.Set(false); err != nil {
		o.log.Error().Err(err).Msg("failed to switch heater off")
	}
	if err := o.led.Show(context.Background(), ws2812.Off); err != nil {
		o.log.Debug().Err(err).Msg("status LED update failed")
	}
	o.log.Info().Float32("peak_ramp_rate", o.ramp.Peak()).Msg("control loop stopped")
}
