// Package bridge drives the oven peripherals of a USB-attached I/O board over a
// line protocol. Serial is the host side; Server is the board side.
package bridge

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/itohio/goreflow/pkg/thermocouple"
	"github.com/itohio/goreflow/pkg/ws2812"
)

// DefaultBaudRate is the line rate of the I/O board.
const DefaultBaudRate = 115200

var (
	// ErrNotConnected is returned by every request while the port is closed.
	ErrNotConnected = errors.New("not connected")
	// ErrRemote wraps an `E <message>` reply.
	ErrRemote = errors.New("remote error")
	// ErrProtocol is returned for malformed requests or replies.
	ErrProtocol = errors.New("protocol error")
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Serial is the host side of the bridge. It implements thermocouple.Bus,
// oven.Switch and ws2812.Channel; requests are serialized on the line.
//
// A request blocks until the board replies; there is no read timeout. Close
// interrupts a pending request, which then fails.
type Serial struct {
	port     string
	baudRate int

	line sync.Mutex // one request on the wire at a time

	mu        sync.Mutex
	conn      io.ReadWriteCloser
	reader    *bufio.Reader
	connected bool
}

var (
	_ thermocouple.Bus = (*Serial)(nil)
	_ ws2812.Channel   = (*Serial)(nil)
)

// New creates a bridge for the given port. A zero baud rate selects
// DefaultBaudRate.
func New(port string, baudRate int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	return &Serial{port: port, baudRate: baudRate}
}

// Connect opens the serial port.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	conn, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}

	s.attach(conn)
	return nil
}

// attach adopts an open connection. Callers hold mu.
func (s *Serial) attach(conn io.ReadWriteCloser) {
	s.conn = conn
	s.reader = bufio.NewReader(conn)
	s.connected = true
}

// Close closes the port. A request waiting for its reply returns an error.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	s.reader = nil
	s.connected = false
	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// IsConnected returns whether the port is open.
func (s *Serial) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Tx reads one thermocouple frame into r. The thermocouple is read-only, so w
// is ignored.
func (s *Serial) Tx(w, r []byte) error {
	rep, err := s.exchange(cmdRead)
	if err != nil {
		return err
	}
	if rep.kind != replyFrame {
		return fmt.Errorf("%w: expected frame, got %q", ErrProtocol, rep.raw)
	}

	var b [thermocouple.FrameSize]byte
	binary.BigEndian.PutUint32(b[:], rep.frame)
	copy(r, b[:])
	return nil
}

// Set switches the heater.
func (s *Serial) Set(on bool) error {
	cmd := cmdHeaterOff
	if on {
		cmd = cmdHeaterOn
	}
	return s.expectOK(cmd)
}

// Configure prepares the LED channel on the board.
func (s *Serial) Configure() error {
	return s.expectOK(cmdConfigure)
}

// Transmit sends a frame to the LED.
func (s *Serial) Transmit(ctx context.Context, f ws2812.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.expectOK(formatLED(f))
}

func (s *Serial) expectOK(cmd string) error {
	rep, err := s.exchange(cmd)
	if err != nil {
		return err
	}
	if rep.kind != replyOK {
		return fmt.Errorf("%w: expected OK, got %q", ErrProtocol, rep.raw)
	}
	return nil
}

// exchange writes one request line and reads its reply. The state lock is not
// held across the I/O, so Close can interrupt it.
func (s *Serial) exchange(cmd string) (reply, error) {
	s.line.Lock()
	defer s.line.Unlock()

	s.mu.Lock()
	conn, reader, connected := s.conn, s.reader, s.connected
	s.mu.Unlock()

	if !connected {
		return reply{}, ErrNotConnected
	}

	if _, err := io.WriteString(conn, cmd+"\n"); err != nil {
		return reply{}, fmt.Errorf("failed to send %q: %w", cmd, err)
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return reply{}, fmt.Errorf("failed to read reply to %q: %w", cmd, err)
	}

	rep, err := parseReply(strings.TrimSpace(line))
	if err != nil {
		return reply{}, err
	}
	if rep.kind == replyError {
		return rep, fmt.Errorf("%w: %s", ErrRemote, rep.message)
	}
	return rep, nil
}

const (
	cmdRead      = "T"
	cmdHeaterOn  = "H1"
	cmdHeaterOff = "H0"
	cmdConfigure = "C"
	cmdLED       = "L"
)

type replyKind int

const (
	replyOK replyKind = iota
	replyFrame
	replyError
)

type reply struct {
	kind    replyKind
	frame   uint32
	message string
	raw     string
}

// parseReply parses one reply line.
// Format: OK | F <8 hex digits> | E <message>
func parseReply(line string) (reply, error) {
	switch {
	case line == "OK":
		return reply{kind: replyOK, raw: line}, nil
	case strings.HasPrefix(line, "F "):
		hex := strings.TrimSpace(line[2:])
		if len(hex) != 8 {
			return reply{}, fmt.Errorf("%w: frame %q: expected 8 hex digits", ErrProtocol, hex)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return reply{}, fmt.Errorf("%w: frame %q: %v", ErrProtocol, hex, err)
		}
		return reply{kind: replyFrame, frame: uint32(v), raw: line}, nil
	case line == "E" || strings.HasPrefix(line, "E "):
		return reply{kind: replyError, message: strings.TrimSpace(strings.TrimPrefix(line, "E")), raw: line}, nil
	default:
		return reply{}, fmt.Errorf("%w: unexpected reply %q", ErrProtocol, line)
	}
}

// formatLED renders an LED request: `L` followed by the frame's RMT words.
func formatLED(f ws2812.Frame) string {
	var b strings.Builder
	b.WriteString(cmdLED)
	for _, c := range f {
		fmt.Fprintf(&b, " %08x", c.Word())
	}
	return b.String()
}

// parseLED is the inverse of formatLED; args excludes the command.
func parseLED(args []string) (ws2812.Frame, error) {
	var f ws2812.Frame
	if len(args) != ws2812.FrameLen {
		return f, fmt.Errorf("%w: expected %d words, got %d", ErrProtocol, ws2812.FrameLen, len(args))
	}
	for i, a := range args {
		v, err := strconv.ParseUint(a, 16, 32)
		if err != nil {
			return f, fmt.Errorf("%w: word %d %q: %v", ErrProtocol, i, a, err)
		}
		f[i] = ws2812.PulseFromWord(uint32(v))
	}
	return f, nil
}
