package ws2812

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultWarmUp is the settle time between channel configuration and the
// first transmission.
const DefaultWarmUp = 50 * time.Microsecond

// Channel is a pulse-train transmitter. Transmit blocks until the frame has
// been clocked out.
type Channel interface {
	Configure() error
	Transmit(ctx context.Context, f Frame) error
}

// Encoder drives one LED through a Channel.
type Encoder struct {
	ch Channel

	mu   sync.Mutex
	last Color
}

// New configures ch and waits warmUp before returning.
//
// Warm-up contract: without a pause between configuration and the first
// transmission, the line has been seen driving every bit high for a moment
// before settling. The cause in the pulse peripheral is not confirmed; revisit
// this when the peripheral changes. A zero warmUp uses DefaultWarmUp.
func New(ch Channel, warmUp time.Duration) (*Encoder, error) {
	if warmUp <= 0 {
		warmUp = DefaultWarmUp
	}
	if err := ch.Configure(); err != nil {
		return nil, fmt.Errorf("failed to configure LED channel: %w", err)
	}
	time.Sleep(warmUp)

	return &Encoder{ch: ch}, nil
}

// Show transmits c and waits for completion.
func (e *Encoder) Show(ctx context.Context, c Color) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ch.Transmit(ctx, Encode(c)); err != nil {
		return fmt.Errorf("failed to transmit %s: %w", c, err)
	}
	e.last = c
	return nil
}

// Color returns the last colour transmitted successfully.
func (e *Encoder) Color() Color {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}
