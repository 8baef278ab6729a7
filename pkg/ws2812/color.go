package ws2812

import "fmt"

// Color is an 8-bit RGB colour.
type Color struct {
	R, G, B uint8
}

// Status colours.
var (
	Off   = Color{}
	Red   = Color{R: 255}
	Green = Color{G: 255}
	Blue  = Color{B: 255}
)

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
