package oven

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRow(t *testing.T) {
	tests := []struct {
		name  string
		cycle Cycle
		want  string
	}{
		{
			name:  "start",
			cycle: Cycle{Runtime: 0, Desired: 25, Current: 25, Output: 0},
			want:  "0,25,25,0",
		},
		{
			name:  "fractional",
			cycle: Cycle{Runtime: 150250 * time.Millisecond, Desired: 183, Current: 175.25, Output: 10.5},
			want:  "150.25,183,175.25,10.5",
		},
		{
			name:  "sub-millisecond runtime truncated",
			cycle: Cycle{Runtime: 1500*time.Microsecond + 50*time.Millisecond, Desired: 25.5, Current: 24, Output: 1},
			want:  "0.051,25.5,24,1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRow(tt.cycle))
		})
	}
}

func TestCSVRecorder(t *testing.T) {
	var buf bytes.Buffer
	r := NewCSVRecorder(&buf)

	require.NoError(t, r.Record(Cycle{Desired: 25, Current: 25}))
	require.NoError(t, r.Record(Cycle{Runtime: time.Second, Desired: 27.5, Current: 25, Output: 5}))

	assert.Equal(t, DiagnosticHeader+"\n0,25,25,0\n1,27.5,25,5\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestCSVRecorder_WriteError(t *testing.T) {
	r := NewCSVRecorder(failingWriter{})
	assert.Error(t, r.Record(Cycle{}))
}
