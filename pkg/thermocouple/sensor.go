package thermocouple

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the polling cadence of ReadContinuous.
const DefaultInterval = 100 * time.Millisecond

// Bus is a read-capable serial bus. It matches the Tx method of TinyGo SPI
// peripherals; a nil w clocks out zeros while filling r.
type Bus interface {
	Tx(w, r []byte) error
}

// Sensor owns the thermocouple bus and publishes the latest reading.
//
// The sensor worker is the only writer. Readers get whole-value snapshots via
// CurrentReading. The value lock is never held across a bus transfer or a sleep.
type Sensor struct {
	bus   Bus
	busMu sync.Mutex

	mu          sync.Mutex
	value       float32
	offset      float32
	applyOffset bool

	ready     chan struct{}
	readyOnce sync.Once

	log zerolog.Logger
}

// Option configures a Sensor.
type Option func(*Sensor)

// WithOffsetCompensation adds the startup calibration offset to every
// published reading when enabled.
func WithOffsetCompensation(enabled bool) Option {
	return func(s *Sensor) {
		s.applyOffset = enabled
	}
}

// WithLogger sets the logger used for bus and decode errors.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Sensor) {
		s.log = l
	}
}

// New creates a Sensor reading from bus. The initial reading is 0.0.
func New(bus Bus, opts ...Option) *Sensor {
	s := &Sensor{
		bus:   bus,
		ready: make(chan struct{}),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "thermocouple").Logger()
	return s
}

// InitializeOffset reads one frame and stores cold junction minus
// thermocouple as the calibration offset. On failure the error is logged and
// the offset stays at 0.0; there is no retry.
func (s *Sensor) InitializeOffset() {
	tc, cj, err := s.read()
	if err != nil {
		s.log.Error().Err(err).Msg("calibration read failed, offset left at 0")
		return
	}

	offset := cj - tc

	s.mu.Lock()
	s.offset = offset
	s.mu.Unlock()

	s.log.Info().Float32("offset", offset).Msg("calibration offset initialized")
}

// ReadContinuous polls the bus every interval until ctx is cancelled.
// A failed read is logged and the previous reading is kept.
func (s *Sensor) ReadContinuous(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Poll(); err != nil {
			s.log.Error().Err(err).Msg("temperature read failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll performs a single read cycle and publishes the decoded temperature.
func (s *Sensor) Poll() error {
	value, _, err := s.read()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.applyOffset {
		value += s.offset
	}
	s.value = value
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
	return nil
}

// CurrentReading returns the last successfully decoded temperature in
// degrees Celsius. It never blocks on the bus.
func (s *Sensor) CurrentReading() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Offset returns the calibration offset computed at startup.
func (s *Sensor) Offset() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Ready is closed once the first reading has been published.
func (s *Sensor) Ready() <-chan struct{} {
	return s.ready
}

// read holds the bus for exactly one transfer and decodes the result.
func (s *Sensor) read() (thermocouple, coldJunction float32, err error) {
	var buf [FrameSize]byte

	s.busMu.Lock()
	err = s.bus.Tx(nil, buf[:])
	s.busMu.Unlock()
	if err != nil {
		return 0, 0, fmt.Errorf("bus transfer: %w", err)
	}

	return Decode(buf[:])
}
