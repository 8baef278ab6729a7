//go:build tinygo && bridge

//go:generate tinygo flash -target=pico -tags=bridge

package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/itohio/goreflow/pkg/bridge"
)

// I/O board for a host running the controller: serves the bridge line
// protocol on the USB console.
func main() {
	b, err := setupBoard()
	if err != nil {
		halt("board setup failed:", err)
	}

	srv := bridge.NewServer(b.thermocouple, b.heater, b.led, zerolog.Nop())

	for {
		if err := srv.Serve(context.Background(), b.serial); err != nil {
			println("bridge:", err.Error())
		}
		// a disconnected host must not leave the heater on
		b.heater.Set(false)
		time.Sleep(100 * time.Millisecond)
	}
}
