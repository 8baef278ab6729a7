package thermocouple

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

// FrameSize is the number of bytes clocked out of the amplifier per read.
const FrameSize = 4

const (
	// ThermocoupleScale is degrees Celsius per thermocouple count (bits 31..18).
	ThermocoupleScale float32 = 0.25
	// ColdJunctionScale is degrees Celsius per cold-junction count (bits 15..4).
	ColdJunctionScale float32 = 0.0625
)

// Fault detail bits reported in the low nibble when the fault flag is set.
const (
	FaultOpenCircuit uint32 = 1 << 0
	FaultShortGND    uint32 = 1 << 1
	FaultShortVCC    uint32 = 1 << 2

	faultFlag uint32 = 1 << 16
)

var (
	// ErrShortFrame is returned when fewer than FrameSize bytes are available.
	ErrShortFrame = errors.New("short thermocouple frame")
	// ErrFault is returned when the amplifier flags a thermocouple fault.
	ErrFault = errors.New("thermocouple fault")
)

// Frame is one raw 32-bit read from the thermocouple amplifier.
//
// Layout (MSB first):
//
//	31..18  thermocouple temperature, 14-bit two's complement, 0.25 °C/count
//	16      fault flag
//	15..4   cold-junction temperature, 12-bit two's complement, 0.0625 °C/count
//	2..0    fault detail (short to VCC, short to GND, open circuit)
type Frame uint32

// ParseFrame assembles a big-endian frame from the bytes read off the bus.
func ParseFrame(b []byte) (Frame, error) {
	if len(b) < FrameSize {
		return 0, fmt.Errorf("%w: got %d bytes", ErrShortFrame, len(b))
	}
	return Frame(binary.BigEndian.Uint32(b)), nil
}

// Thermocouple returns the hot-junction temperature in degrees Celsius.
func (f Frame) Thermocouple() float32 {
	// Arithmetic shift keeps the sign of the 14-bit field.
	return float32(int32(f)>>18) * ThermocoupleScale
}

// ColdJunction returns the amplifier's reference junction temperature in degrees Celsius.
func (f Frame) ColdJunction() float32 {
	return float32(int32(uint32(f)<<16)>>20) * ColdJunctionScale
}

// Fault reports a flagged fault as an error wrapping ErrFault, or nil.
func (f Frame) Fault() error {
	if uint32(f)&faultFlag == 0 {
		return nil
	}
	detail := uint32(f) & 0x7
	switch {
	case detail&FaultOpenCircuit != 0:
		return fmt.Errorf("%w: open circuit", ErrFault)
	case detail&FaultShortGND != 0:
		return fmt.Errorf("%w: short to GND", ErrFault)
	case detail&FaultShortVCC != 0:
		return fmt.Errorf("%w: short to VCC", ErrFault)
	default:
		return ErrFault
	}
}

// Bytes returns the frame in wire order.
func (f Frame) Bytes() [FrameSize]byte {
	var b [FrameSize]byte
	binary.BigEndian.PutUint32(b[:], uint32(f))
	return b
}

// Decode parses raw bus bytes and returns the thermocouple and cold-junction
// temperatures. Faulted frames are reported as errors.
func Decode(b []byte) (thermocouple, coldJunction float32, err error) {
	f, err := ParseFrame(b)
	if err != nil {
		return 0, 0, err
	}
	if err := f.Fault(); err != nil {
		return 0, 0, err
	}
	return f.Thermocouple(), f.ColdJunction(), nil
}

// Encode builds the frame an amplifier would report for the given temperatures.
// Values are rounded to the field resolution and saturated to the field range.
func Encode(thermocouple, coldJunction float32) Frame {
	tc := quantize(thermocouple, ThermocoupleScale, 14)
	cj := quantize(coldJunction, ColdJunctionScale, 12)
	return Frame(uint32(tc)<<18 | (uint32(cj)&0xFFF)<<4)
}

// EncodeFault builds a frame with the fault flag and the given detail bits set.
func EncodeFault(detail uint32) Frame {
	return Frame(faultFlag | detail&0x7)
}

func quantize(v, scale float32, bits uint) int32 {
	maxCount := int32(1)<<(bits-1) - 1
	minCount := -maxCount - 1
	if math32.IsNaN(v) {
		return 0
	}
	c := math32.Round(v / scale)
	if c > float32(maxCount) {
		return maxCount
	}
	if c < float32(minCount) {
		return minCount
	}
	return int32(c)
}
