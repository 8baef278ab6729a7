// Package ramp tracks the rate of temperature change over a sliding time window.
package ramp

import (
	"sync"
	"time"

	"github.com/chewxy/math32"
)

const (
	// DefaultWindow is the span over which the rate is measured.
	DefaultWindow = 2 * time.Second
	// DefaultMaxRate is the usual paste datasheet ramp limit in °C/s.
	DefaultMaxRate float32 = 3.0
)

// Sample is one temperature observation.
type Sample struct {
	Runtime     time.Duration
	Temperature float32
}

// Monitor keeps a FIFO of samples inside the window and reports dT/dt between
// the oldest and the newest one. Samples are removed by timestamp, not count.
// The rate stays 0 until the samples span at least half the window.
type Monitor struct {
	window  time.Duration
	maxRate float32

	mu      sync.RWMutex
	samples []Sample
	rate    float32
	peak    float32
}

// New creates a Monitor. Zero values use the defaults.
func New(window time.Duration, maxRate float32) *Monitor {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxRate <= 0 {
		maxRate = DefaultMaxRate
	}
	return &Monitor{
		window:  window,
		maxRate: maxRate,
		samples: make([]Sample, 0, 64),
	}
}

// Add appends a sample and returns the updated rate in °C/s. Samples that do
// not move forward in time are ignored.
func (m *Monitor) Add(s Sample) float32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.samples); n > 0 && s.Runtime <= m.samples[n-1].Runtime {
		return m.rate
	}
	m.samples = append(m.samples, s)

	// Drop samples older than the window, keeping the first one inside it.
	cutoff := s.Runtime - m.window
	drop := 0
	for drop < len(m.samples)-1 && m.samples[drop].Runtime < cutoff {
		drop++
	}
	if drop > 0 {
		m.samples = append(m.samples[:0], m.samples[drop:]...)
	}

	if len(m.samples) < 2 {
		m.rate = 0
		return 0
	}

	first, last := m.samples[0], m.samples[len(m.samples)-1]
	span := last.Runtime - first.Runtime
	if span < m.window/2 {
		m.rate = 0
		return 0
	}

	m.rate = (last.Temperature - first.Temperature) / float32(span.Seconds())
	if math32.Abs(m.rate) > math32.Abs(m.peak) {
		m.peak = m.rate
	}
	return m.rate
}

// Peak returns the largest-magnitude rate seen so far.
func (m *Monitor) Peak() float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peak
}

// Exceeded reports whether the latest rate is beyond the configured limit in
// either direction.
func (m *Monitor) Exceeded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return math32.Abs(m.rate) > m.maxRate
}
