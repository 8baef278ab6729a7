// Package ws2812 encodes colours for one-wire addressable LEDs as pulse
// trains and drives them over a pulse-train channel.
package ws2812

import (
	"errors"
	"fmt"
)

// Level is the logic level of one half of a pulse code.
type Level uint8

const (
	Low Level = iota
	High
)

// PulseCode is a pair of (level, duration) halves. Durations are in channel
// ticks; at the reference 20 MHz tick clock one tick is 50 ns.
type PulseCode struct {
	Level1  Level
	Length1 uint16
	Level2  Level
	Length2 uint16
}

// Reference pulse shapes, in ticks.
var (
	// Bit1 is a long high followed by a short low.
	Bit1 = PulseCode{Level1: High, Length1: 14, Level2: Low, Length2: 12}
	// Bit0 is a short high followed by a long low.
	Bit0 = PulseCode{Level1: High, Length1: 7, Level2: Low, Length2: 16}
	// Reset holds the line low long enough for the LED to latch.
	Reset = PulseCode{Level1: Low, Length1: 20, Level2: Low, Length2: 20}
	// EndMarker terminates a frame.
	EndMarker = PulseCode{}
)

// FrameLen is 24 data bits, one reset pulse and one end marker.
const FrameLen = 26

// Frame is the pulse train for one LED.
type Frame [FrameLen]PulseCode

// ErrInvalidFrame is returned when a frame does not follow the bit layout.
var ErrInvalidFrame = errors.New("invalid pulse frame")

// Word packs the code in the RMT memory layout: length1 in bits 14..0,
// level1 in bit 15, length2 in bits 30..16, level2 in bit 31.
func (p PulseCode) Word() uint32 {
	return uint32(p.Length1&0x7FFF) |
		uint32(p.Level1&1)<<15 |
		uint32(p.Length2&0x7FFF)<<16 |
		uint32(p.Level2&1)<<31
}

// PulseFromWord unpacks an RMT memory word.
func PulseFromWord(w uint32) PulseCode {
	return PulseCode{
		Length1: uint16(w & 0x7FFF),
		Level1:  Level(w>>15) & 1,
		Length2: uint16(w>>16) & 0x7FFF,
		Level2:  Level(w>>31) & 1,
	}
}

// IsEnd reports whether the code terminates a transmission.
func (p PulseCode) IsEnd() bool {
	return p.Length1 == 0
}

// Encode converts a colour into a frame: green, red, blue, most significant
// bit first, then Reset and EndMarker.
func Encode(c Color) Frame {
	var f Frame
	i := 0
	for _, b := range [3]uint8{c.G, c.R, c.B} {
		for bit := 7; bit >= 0; bit-- {
			if b>>bit&1 == 1 {
				f[i] = Bit1
			} else {
				f[i] = Bit0
			}
			i++
		}
	}
	f[24] = Reset
	f[25] = EndMarker
	return f
}

// Decode is the inverse of Encode.
func Decode(f Frame) (Color, error) {
	var bytes [3]uint8
	for i := 0; i < 24; i++ {
		var bit uint8
		switch f[i] {
		case Bit1:
			bit = 1
		case Bit0:
		default:
			return Color{}, fmt.Errorf("%w: pulse %d is %+v", ErrInvalidFrame, i, f[i])
		}
		bytes[i/8] = bytes[i/8]<<1 | bit
	}
	if f[24] != Reset {
		return Color{}, fmt.Errorf("%w: missing reset pulse", ErrInvalidFrame)
	}
	if !f[25].IsEnd() {
		return Color{}, fmt.Errorf("%w: missing end marker", ErrInvalidFrame)
	}
	return Color{G: bytes[0], R: bytes[1], B: bytes[2]}, nil
}
