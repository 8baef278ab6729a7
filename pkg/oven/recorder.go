package oven

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// DiagnosticHeader is the first line of the diagnostic stream.
const DiagnosticHeader = "runtime,desired_temperature,current_temperature,control_output"

// Recorder receives every control cycle.
type Recorder interface {
	Record(c Cycle) error
}

// RunRecorder is a Recorder that groups cycles by run. BeginRun is called
// once per Run, after sensor calibration.
type RunRecorder interface {
	Recorder
	BeginRun(profile string, offset float32) error
}

// CSVRecorder writes the diagnostic stream: a header row, then one row per cycle.
type CSVRecorder struct {
	w io.Writer

	mu          sync.Mutex
	wroteHeader bool
}

// NewCSVRecorder creates a recorder writing to w.
func NewCSVRecorder(w io.Writer) *CSVRecorder {
	return &CSVRecorder{w: w}
}

// Record writes one row, preceded by the header on the first call.
func (r *CSVRecorder) Record(c Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.wroteHeader {
		if _, err := io.WriteString(r.w, DiagnosticHeader+"\n"); err != nil {
			return fmt.Errorf("failed to write diagnostic header: %w", err)
		}
		r.wroteHeader = true
	}

	if _, err := io.WriteString(r.w, FormatRow(c)+"\n"); err != nil {
		return fmt.Errorf("failed to write diagnostic row: %w", err)
	}
	return nil
}

// FormatRow renders runtime (seconds, millisecond resolution), desired
// temperature, current temperature and control output.
func FormatRow(c Cycle) string {
	runtime := float32(c.Runtime.Milliseconds()) / 1000

	var b strings.Builder
	b.WriteString(formatFloat(runtime))
	b.WriteByte(',')
	b.WriteString(formatFloat(c.Desired))
	b.WriteByte(',')
	b.WriteString(formatFloat(c.Current))
	b.WriteByte(',')
	b.WriteString(formatFloat(c.Output))
	return b.String()
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}
