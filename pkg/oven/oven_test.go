package oven

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goreflow/pkg/config"
	"github.com/itohio/goreflow/pkg/control"
	"github.com/itohio/goreflow/pkg/profile"
	"github.com/itohio/goreflow/pkg/ws2812"
)

type fakeSensor struct {
	mu          sync.Mutex
	value       float32
	calibrated  int
	ready       chan struct{}
	publishOnce sync.Once
	publish     bool
}

func newFakeSensor(value float32, publish bool) *fakeSensor {
	return &fakeSensor{value: value, ready: make(chan struct{}), publish: publish}
}

func (s *fakeSensor) InitializeOffset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calibrated++
}

func (s *fakeSensor) ReadContinuous(ctx context.Context, interval time.Duration) {
	if s.publish {
		s.publishOnce.Do(func() { close(s.ready) })
	}
	<-ctx.Done()
}

func (s *fakeSensor) Offset() float32 {
	return 0.5
}

func (s *fakeSensor) CurrentReading() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *fakeSensor) Ready() <-chan struct{} {
	return s.ready
}

type fakeSwitch struct {
	mu     sync.Mutex
	states []bool
	err    error
}

func (s *fakeSwitch) Set(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, on)
	return s.err
}

func (s *fakeSwitch) history() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.states...)
}

type fakeLED struct {
	mu     sync.Mutex
	colors []ws2812.Color
	err    error
}

func (l *fakeLED) Show(ctx context.Context, c ws2812.Color) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.colors = append(l.colors, c)
	return nil
}

func (l *fakeLED) history() []ws2812.Color {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ws2812.Color(nil), l.colors...)
}

type sliceRecorder struct {
	cycles []Cycle
}

func (r *sliceRecorder) Record(c Cycle) error {
	r.cycles = append(r.cycles, c)
	return nil
}

func newTestOven(sensor Sensor, opts ...Option) (*Oven, *fakeSwitch, *fakeLED) {
	heater := &fakeSwitch{}
	led := &fakeLED{}
	return New(config.Default(), profile.SMD291AX(), sensor, heater, led, opts...), heater, led
}

func TestStatusFor(t *testing.T) {
	cooling := 210 * time.Second

	tests := []struct {
		name    string
		runtime time.Duration
		output  float32
		want    Status
	}{
		{"idle", 10 * time.Second, 0, StatusIdle},
		{"heating", 10 * time.Second, 0.1, StatusHeating},
		{"cooling threshold overrides output", cooling, 50, StatusComplete},
		{"after cooling", time.Hour, 0, StatusComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.runtime, tt.output, cooling))
		})
	}
}

func TestStatus_Color(t *testing.T) {
	assert.Equal(t, ws2812.Off, StatusIdle.Color())
	assert.Equal(t, ws2812.Red, StatusHeating.Color())
	assert.Equal(t, ws2812.Green, StatusComplete.Color())
	assert.Equal(t, "heating", StatusHeating.String())
}

func TestStep_ZeroErrorAtStart(t *testing.T) {
	o, heater, led := newTestOven(newFakeSensor(25, true))

	c := o.Step(context.Background(), 0)

	assert.Equal(t, float32(25), c.Desired)
	assert.Equal(t, float32(25), c.Current)
	assert.Equal(t, float32(0), c.Output)
	assert.Equal(t, control.Preheat, c.Phase)
	assert.Equal(t, StatusIdle, c.Status)
	assert.Equal(t, []bool{false}, heater.history())
	assert.Equal(t, []ws2812.Color{ws2812.Off}, led.history())
}

func TestStep_Heating(t *testing.T) {
	o, heater, led := newTestOven(newFakeSensor(25, true))

	c := o.Step(context.Background(), 150*time.Second)

	assert.Equal(t, control.ReflowRamp, c.Phase)
	assert.Greater(t, c.Output, float32(0))
	assert.LessOrEqual(t, c.Output, float32(100))
	assert.True(t, c.Heating)
	assert.Equal(t, []bool{true}, heater.history())
	assert.Equal(t, []ws2812.Color{ws2812.Red}, led.history())
}

func TestStep_ProfileWithoutThresholdsHeats(t *testing.T) {
	p, err := profile.New("plain", profile.SMD291AXKeyframes)
	require.NoError(t, err)

	heater := &fakeSwitch{}
	o := New(config.Default(), p, newFakeSensor(25, true), heater, &fakeLED{})

	c := o.Step(context.Background(), 150*time.Second)
	assert.Equal(t, StatusHeating, c.Status)
	assert.Equal(t, []bool{true}, heater.history())

	c = o.Step(context.Background(), 240*time.Second)
	assert.Equal(t, StatusComplete, c.Status)
}

func TestStep_CoolingForcesHeaterOff(t *testing.T) {
	o, heater, led := newTestOven(newFakeSensor(25, true))

	for _, runtime := range []time.Duration{210 * time.Second, 230 * time.Second, time.Hour} {
		c := o.Step(context.Background(), runtime)
		assert.Equal(t, float32(0), c.Output)
		assert.False(t, c.Heating)
		assert.Equal(t, StatusComplete, c.Status)
	}
	for _, on := range heater.history() {
		assert.False(t, on)
	}
	for _, c := range led.history() {
		assert.Equal(t, ws2812.Green, c)
	}
}

func TestStep_LEDFailureIsIgnored(t *testing.T) {
	heater := &fakeSwitch{}
	led := &fakeLED{err: errors.New("rmt busy")}
	rec := &sliceRecorder{}
	o := New(config.Default(), profile.SMD291AX(), newFakeSensor(25, true), heater, led, WithRecorder(rec))

	o.Step(context.Background(), 150*time.Second)

	assert.Equal(t, []bool{true}, heater.history())
	assert.Len(t, rec.cycles, 1)
}

func TestStep_Recorders(t *testing.T) {
	var buf bytes.Buffer
	rec := &sliceRecorder{}
	o, _, _ := newTestOven(newFakeSensor(25, true), WithRecorder(rec), WithRecorder(NewCSVRecorder(&buf)))

	o.Step(context.Background(), 0)
	o.Step(context.Background(), 50*time.Millisecond)

	require.Len(t, rec.cycles, 2)
	assert.Equal(t, 50*time.Millisecond, rec.cycles[1].Runtime)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, DiagnosticHeader, lines[0])
	assert.Equal(t, "0,25,25,0", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "0.05,"))
}

func TestStep_HeatSoakLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	sensor := newFakeSensor(25, true)
	o, _, _ := newTestOven(sensor, WithLogger(zerolog.New(&buf)))

	o.Step(context.Background(), 60*time.Second)
	sensor.mu.Lock()
	sensor.value = 151
	sensor.mu.Unlock()
	o.Step(context.Background(), 61*time.Second)
	o.Step(context.Background(), 62*time.Second)

	assert.Equal(t, 1, strings.Count(buf.String(), "heat soak temperature reached"))
}

func TestRun_StartupAndShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.Sensor.Interval = time.Millisecond
	cfg.Control.Interval = time.Millisecond

	sensor := newFakeSensor(25, true)
	heater := &fakeSwitch{}
	led := &fakeLED{}
	rec := &sliceRecorder{}
	var mu sync.Mutex
	recorded := 0
	runs := &runRecorder{}
	o := New(cfg, profile.SMD291AX(), sensor, heater, led, WithRecorder(runs), WithRecorder(recorderFunc(func(c Cycle) error {
		mu.Lock()
		defer mu.Unlock()
		recorded++
		return rec.Record(c)
	})))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return recorded >= 5
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, 1, sensor.calibrated)
	assert.Equal(t, []string{"SMD291AX@0.5"}, runs.begun)

	colors := led.history()
	require.NotEmpty(t, colors)
	assert.Equal(t, ws2812.Blue, colors[0], "blue while booting")
	assert.Equal(t, ws2812.Off, colors[len(colors)-1], "dark after shutdown")

	states := heater.history()
	require.NotEmpty(t, states)
	assert.False(t, states[len(states)-1], "heater off after shutdown")
}

func TestRun_FirstReadingTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Control.Interval = time.Millisecond
	cfg.Control.FirstReadingTimeout = 20 * time.Millisecond

	var buf syncBuffer
	sensor := newFakeSensor(0, false)
	heater := &fakeSwitch{}
	o := New(cfg, profile.SMD291AX(), sensor, heater, &fakeLED{}, WithLogger(zerolog.New(&buf)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- o.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return len(heater.history()) > 0
	}, 2*time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), cfg.Control.FirstReadingTimeout)
	assert.Contains(t, buf.String(), "no temperature reading yet")

	cancel()
	assert.NoError(t, <-done)
}

func TestRun_CancelBeforeFirstReading(t *testing.T) {
	cfg := config.Default()
	cfg.Control.FirstReadingTimeout = time.Hour

	heater := &fakeSwitch{}
	o := New(cfg, profile.SMD291AX(), newFakeSensor(0, false), heater, &fakeLED{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []bool{false}, heater.history(), "only the shutdown write")
}

type runRecorder struct {
	begun []string
}

func (r *runRecorder) Record(c Cycle) error { return nil }

func (r *runRecorder) BeginRun(profile string, offset float32) error {
	r.begun = append(r.begun, fmt.Sprintf("%s@%g", profile, offset))
	return nil
}

type recorderFunc func(c Cycle) error

func (f recorderFunc) Record(c Cycle) error { return f(c) }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
