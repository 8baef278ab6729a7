// Package sim simulates the oven hardware: a first-order thermal model behind
// the thermocouple bus, the heater switch and the status LED channel.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/goreflow/pkg/config"
	"github.com/itohio/goreflow/pkg/thermocouple"
	"github.com/itohio/goreflow/pkg/ws2812"
)

// ErrNotConfigured is returned by Transmit before Configure.
var ErrNotConfigured = errors.New("LED channel not configured")

// Oven simulates the oven peripherals. It implements thermocouple.Bus,
// ws2812.Channel and the heater switch.
type Oven struct {
	cfg *config.MockConfig

	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	// Simulation state
	elapsed     time.Duration
	temperature float32
	heater      bool
	fault       error

	// LED state
	configured bool
	last       ws2812.Frame
	shown      bool
}

var (
	_ thermocouple.Bus = (*Oven)(nil)
	_ ws2812.Channel   = (*Oven)(nil)
)

// New creates a simulated oven at ambient temperature. A nil cfg selects the
// default mock parameters.
func New(cfg *config.MockConfig) *Oven {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Oven{
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
		temperature: cfg.Ambient,
	}
}

// Connect starts advancing the model in real time, one step per StepRate.
func (o *Oven) Connect() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.connected {
		return fmt.Errorf("already connected")
	}

	o.connected = true
	go o.run()

	return nil
}

// Close stops the real-time simulation. The model state is kept.
func (o *Oven) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.connected {
		return nil
	}

	o.cancel()
	o.connected = false

	return nil
}

// IsConnected returns whether the real-time simulation is running.
func (o *Oven) IsConnected() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.connected
}

func (o *Oven) run() {
	ticker := time.NewTicker(o.cfg.StepRate)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.Step(o.cfg.StepRate)
		}
	}
}

// Step advances the model by dt:
//
//	dT/dt = heat_rate·heater − (T − ambient)/time_constant
func (o *Oven) Step(dt time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var heating float32
	if o.heater {
		heating = o.cfg.HeatRate
	}

	loss := float32(0)
	if tau := float32(o.cfg.TimeConstant.Seconds()); tau > 0 {
		loss = (o.temperature - o.cfg.Ambient) / tau
	}

	o.temperature += (heating - loss) * float32(dt.Seconds())
	o.elapsed += dt
}

// Temperature returns the true oven temperature, without measurement noise.
func (o *Oven) Temperature() float32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.temperature
}

// Heater returns the heater state.
func (o *Oven) Heater() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.heater
}

// InjectFault makes the next thermocouple read fail with err.
func (o *Oven) InjectFault(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fault = err
}

// Tx reports the measured temperature as an amplifier frame. The cold junction
// sits at ambient.
func (o *Oven) Tx(w, r []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.fault != nil {
		err := o.fault
		o.fault = nil
		return err
	}

	b := thermocouple.Encode(o.temperature+o.noise(), o.cfg.Ambient).Bytes()
	copy(r, b[:])
	return nil
}

// noise is a deterministic disturbance bounded by NoiseLevel.
func (o *Oven) noise() float32 {
	e := float32(o.elapsed.Seconds())
	return (math32.Sin(e*7.3) + math32.Cos(e*3.1)) * o.cfg.NoiseLevel * 0.5
}

// Set switches the heater.
func (o *Oven) Set(on bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.heater = on
	return nil
}

// Configure prepares the LED channel.
func (o *Oven) Configure() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.configured = true
	return nil
}

// Transmit latches a frame on the simulated LED.
func (o *Oven) Transmit(ctx context.Context, f ws2812.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := ws2812.Decode(f); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.configured {
		return ErrNotConfigured
	}
	o.last = f
	o.shown = true
	return nil
}

// LastColor decodes the last frame sent to the LED. It returns false if
// nothing has been shown yet.
func (o *Oven) LastColor() (ws2812.Color, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if !o.shown {
		return ws2812.Color{}, false
	}
	c, err := ws2812.Decode(o.last)
	return c, err == nil
}
