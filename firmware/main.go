//go:build tinygo && !bridge

//go:generate tinygo flash -target=pico

package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/itohio/goreflow/pkg/config"
	"github.com/itohio/goreflow/pkg/oven"
	"github.com/itohio/goreflow/pkg/profile"
	"github.com/itohio/goreflow/pkg/thermocouple"
	"github.com/itohio/goreflow/pkg/ws2812"
)

// Standalone controller: runs the reference profile once per power-up and
// streams the diagnostic rows on the USB console.
func main() {
	b, err := setupBoard()
	if err != nil {
		halt("board setup failed:", err)
	}

	cfg := config.Default()

	// Warnings only, so the console stays a clean diagnostic stream
	logger := zerolog.New(b.serial).Level(zerolog.WarnLevel)

	sensor := thermocouple.New(b.thermocouple,
		thermocouple.WithOffsetCompensation(cfg.Sensor.ApplyOffset),
		thermocouple.WithLogger(logger),
	)

	led, err := ws2812.New(b.led, cfg.LED.WarmUp)
	if err != nil {
		halt("LED setup failed:", err)
	}

	o := oven.New(cfg, profile.SMD291AX(), sensor, b.heater, led,
		oven.WithLogger(logger),
		oven.WithRecorder(oven.NewCSVRecorder(b.serial)),
	)

	// Never cancelled: the run ends at power-off
	if err := o.Run(context.Background()); err != nil {
		halt("oven stopped:", err)
	}
	select {}
}
