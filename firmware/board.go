//go:build tinygo

package main

import (
	"machine"
	"time"

	"github.com/itohio/goreflow/pkg/ws2812"
)

// chipSelect frames every transfer on the thermocouple bus with CS low.
type chipSelect struct {
	spi *machine.SPI
	cs  machine.Pin
}

func (c chipSelect) Tx(w, r []byte) error {
	c.cs.Low()
	err := c.spi.Tx(w, r)
	c.cs.High()
	return err
}

// heaterPin drives the heater relay.
type heaterPin machine.Pin

func (p heaterPin) Set(on bool) error {
	machine.Pin(p).Set(on)
	return nil
}

// console reads the USB serial port as a blocking stream.
type console struct {
	machine.Serialer
}

func (c console) Read(p []byte) (int, error) {
	for c.Buffered() == 0 {
		time.Sleep(time.Millisecond)
	}

	n := 0
	for n < len(p) && c.Buffered() > 0 {
		b, err := c.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}

type board struct {
	thermocouple chipSelect
	heater       heaterPin
	led          *ws2812.SPIChannel
	serial       console
}

// setupBoard configures the pins and buses. The LED bus is configured later
// through the channel so the warm-up pause follows it.
func setupBoard() (*board, error) {
	PIN_HEATER.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_HEATER.Low()

	PIN_TC_CS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_TC_CS.High()

	err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: TC_SPI_FREQUENCY,
		SCK:       PIN_TC_SCK,
		SDO:       PIN_TC_SDO,
		SDI:       PIN_TC_SDI,
		Mode:      0,
	})
	if err != nil {
		return nil, err
	}

	machine.Serial.Configure(machine.UARTConfig{BaudRate: SERIAL_BAUD_RATE})

	led := ws2812.NewSPIChannel(machine.SPI1, func() error {
		return machine.SPI1.Configure(machine.SPIConfig{
			Frequency: LED_SPI_FREQUENCY,
			SCK:       PIN_LED_SCK,
			SDO:       PIN_LED_SDO,
			SDI:       PIN_LED_SDI,
			Mode:      0,
		})
	})

	return &board{
		thermocouple: chipSelect{spi: machine.SPI0, cs: PIN_TC_CS},
		heater:       heaterPin(PIN_HEATER),
		led:          led,
		serial:       console{machine.Serial},
	}, nil
}

// halt keeps the heater off and reports err forever.
func halt(msg string, err error) {
	PIN_HEATER.Low()
	for {
		println(msg, err.Error())
		time.Sleep(time.Second)
	}
}
