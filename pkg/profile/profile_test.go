package profile

import (
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		keyframes []Keyframe
		wantErr   error
	}{
		{
			name:      "too few",
			keyframes: []Keyframe{{0, 25}, {10, 50}, {20, 75}},
			wantErr:   ErrTooFewKeyframes,
		},
		{
			name:      "duplicate time",
			keyframes: []Keyframe{{-10, 25}, {0, 25}, {0, 50}, {20, 75}},
			wantErr:   ErrNotIncreasing,
		},
		{
			name:      "decreasing time",
			keyframes: []Keyframe{{-10, 25}, {0, 25}, {30, 50}, {20, 75}},
			wantErr:   ErrNotIncreasing,
		},
		{
			name:      "valid",
			keyframes: []Keyframe{{-10, 25}, {0, 25}, {10, 50}, {20, 75}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New("test", tt.keyframes)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "test", p.Name())
		})
	}
}

func TestNew_CopiesKeyframes(t *testing.T) {
	kf := []Keyframe{{-10, 25}, {0, 25}, {10, 50}, {20, 75}}
	p, err := New("copy", kf)
	require.NoError(t, err)

	kf[1].Temperature = 999
	assert.Equal(t, float32(25), p.DesiredTemperature(0))
}

func TestNew_DefaultCoolingTime(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want time.Duration
	}{
		{"no thresholds", nil, 240 * time.Second},
		{"zero cooling time", []Option{WithThresholds(150, 0)}, 240 * time.Second},
		{"explicit", []Option{WithThresholds(150, 200 * time.Second)}, 200 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New("test", SMD291AXKeyframes, tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.CoolingTime)
		})
	}
}

func TestSMD291AX(t *testing.T) {
	p := SMD291AX()

	assert.Equal(t, SMD291AXName, p.Name())
	assert.Equal(t, float32(150), p.HeatSoakTemperature)
	assert.Equal(t, 210*time.Second, p.CoolingTime)

	start, end := p.Domain()
	assert.Equal(t, float32(0), start)
	assert.Equal(t, float32(240), end)
	assert.Len(t, p.keyframes, len(SMD291AXKeyframes))
}

func TestDesiredTemperature_HitsKeyframes(t *testing.T) {
	p := SMD291AX()
	kf := p.keyframes

	// Padding entries are excluded.
	for _, k := range kf[1 : len(kf)-1] {
		assert.Equal(t, k.Temperature, p.DesiredTemperature(k.Time), "t=%v", k.Time)
	}
}

func TestDesiredTemperature_Continuous(t *testing.T) {
	p := SMD291AX()
	start, end := p.Domain()

	const step = float32(0.01)
	prev := p.DesiredTemperature(start)
	for ts := start + step; ts <= end; ts += step {
		cur := p.DesiredTemperature(ts)
		assert.Less(t, math32.Abs(cur-prev), float32(0.1), "jump at t=%v", ts)
		prev = cur
	}

	// Approaching each interior keyframe from the left lands on its target.
	kf := p.keyframes
	for _, k := range kf[2 : len(kf)-1] {
		assert.InDelta(t, k.Temperature, p.DesiredTemperature(k.Time-0.001), 0.05, "t=%v", k.Time)
	}
}

func TestDesiredTemperature_OutOfDomain(t *testing.T) {
	p := SMD291AX()

	tests := []struct {
		name string
		t    float32
	}{
		{"before start", -0.001},
		{"inside padding", -20},
		{"after end", 240.001},
		{"far after end", 1000},
		{"nan", math32.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, float32(0), p.DesiredTemperature(tt.t))
		})
	}
}

func TestDesiredTemperature_BoundaryClamp(t *testing.T) {
	p, err := New("clamped", SMD291AXKeyframes, WithBoundaryClamp())
	require.NoError(t, err)

	assert.Equal(t, float32(25), p.DesiredTemperature(-5))
	assert.Equal(t, float32(183), p.DesiredTemperature(300))
	assert.Equal(t, float32(0), p.DesiredTemperature(math32.NaN()))
}

func TestDesiredAt(t *testing.T) {
	p := SMD291AX()
	assert.Equal(t, float32(100), p.DesiredAt(30*time.Second))
	assert.Equal(t, p.DesiredTemperature(75.5), p.DesiredAt(75500*time.Millisecond))
}
