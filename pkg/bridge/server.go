package bridge

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/itohio/goreflow/pkg/thermocouple"
	"github.com/itohio/goreflow/pkg/ws2812"
)

// Switch is the heater output on the board.
type Switch interface {
	Set(on bool) error
}

// Server answers bridge requests using the board's own peripherals.
type Server struct {
	bus    thermocouple.Bus
	heater Switch
	led    ws2812.Channel
	log    zerolog.Logger
}

// NewServer creates a server for the given peripherals.
func NewServer(bus thermocouple.Bus, heater Switch, led ws2812.Channel, log zerolog.Logger) *Server {
	return &Server{
		bus:    bus,
		heater: heater,
		led:    led,
		log:    log.With().Str("component", "bridge").Logger(),
	}
}

// Serve handles requests from rw until EOF or until ctx is cancelled. A read
// blocked on the line is only interrupted by closing rw.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriter) error {
	scanner := bufio.NewScanner(rw)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if _, err := io.WriteString(rw, s.handle(ctx, line)+"\n"); err != nil {
			return fmt.Errorf("failed to write reply: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	return nil
}

// handle executes one request and returns the reply line.
func (s *Server) handle(ctx context.Context, line string) string {
	fields := strings.Fields(line)

	var err error
	switch fields[0] {
	case cmdRead:
		var b [thermocouple.FrameSize]byte
		if err = s.bus.Tx(nil, b[:]); err == nil {
			return fmt.Sprintf("F %08x", binary.BigEndian.Uint32(b[:]))
		}
	case cmdHeaterOn, cmdHeaterOff:
		err = s.heater.Set(fields[0] == cmdHeaterOn)
	case cmdConfigure:
		err = s.led.Configure()
	case cmdLED:
		var f ws2812.Frame
		if f, err = parseLED(fields[1:]); err == nil {
			err = s.led.Transmit(ctx, f)
		}
	default:
		err = fmt.Errorf("unknown command %q", fields[0])
	}

	if err != nil {
		s.log.Debug().Err(err).Str("request", fields[0]).Msg("request failed")
		return "E " + err.Error()
	}
	return "OK"
}
