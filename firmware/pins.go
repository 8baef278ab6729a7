//go:build tinygo

package main

import "machine"

const (
	// Thermocouple amplifier on SPI0 (read-only, 32-bit frames)
	PIN_TC_SCK       = machine.GP2
	PIN_TC_SDO       = machine.GP3 // unused by the amplifier, claimed by SPI0
	PIN_TC_SDI       = machine.GP4
	PIN_TC_CS        = machine.GP5
	TC_SPI_FREQUENCY = 4_000_000 // amplifier maximum is 5 MHz

	// Status LED data line on SPI1. One SPI bit per 50 ns pulse tick.
	PIN_LED_SCK       = machine.GP10
	PIN_LED_SDO       = machine.GP11
	PIN_LED_SDI       = machine.GP12
	LED_SPI_FREQUENCY = 20_000_000

	// Heater solid-state relay
	PIN_HEATER = machine.GP15

	// USB serial console
	SERIAL_BAUD_RATE = 115200
)
