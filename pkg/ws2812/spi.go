package ws2812

import "context"

// SPI is a write-capable serial bus (TinyGo SPI shape).
type SPI interface {
	Tx(w, r []byte) error
}

// SPIChannel emulates a pulse-train peripheral on the data-out line of an SPI
// bus: each tick becomes one bit, so the bus must be clocked at the tick rate
// (20 MHz for the reference timings).
type SPIChannel struct {
	bus       SPI
	configure func() error
	buf       []byte
}

// NewSPIChannel creates a channel on bus. configure, if not nil, is called by
// Configure to set up the peripheral.
func NewSPIChannel(bus SPI, configure func() error) *SPIChannel {
	return &SPIChannel{
		bus:       bus,
		configure: configure,
		buf:       make([]byte, 0, 96),
	}
}

// Configure prepares the bus.
func (c *SPIChannel) Configure() error {
	if c.configure == nil {
		return nil
	}
	return c.configure()
}

// Transmit renders f and writes it to the bus.
func (c *SPIChannel) Transmit(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.buf = Render(c.buf[:0], f)
	return c.bus.Tx(c.buf, nil)
}

// Render appends the bit-stream for f to dst, MSB first, one bit per tick,
// stopping at the first end marker. The last byte is padded low.
func Render(dst []byte, f Frame) []byte {
	var (
		cur  byte
		nbit uint
	)
	put := func(level Level, n uint16) {
		for ; n > 0; n-- {
			cur <<= 1
			if level == High {
				cur |= 1
			}
			nbit++
			if nbit == 8 {
				dst = append(dst, cur)
				cur, nbit = 0, 0
			}
		}
	}

	for _, p := range f {
		if p.IsEnd() {
			break
		}
		put(p.Level1, p.Length1)
		put(p.Level2, p.Length2)
	}
	if nbit > 0 {
		dst = append(dst, cur<<(8-nbit))
	}
	return dst
}
