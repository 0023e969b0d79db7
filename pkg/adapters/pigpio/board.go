// Package pigpio drives the Raspberry Pi GPIO through the pigpiod daemon socket.
//
// Each request is a 16-byte little-endian frame (cmd, p1, p2, p3) and pigpiod answers with
// the same frame where the last word carries the result. Negative results are errors.
package pigpio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/aretw0/cardsort/pkg/domain"
)

// DefaultAddr is where pigpiod listens by default.
const DefaultAddr = "localhost:8888"

// Command codes understood by pigpiod.
const (
	cmdModes uint32 = 0
	cmdPUD   uint32 = 2
	cmdRead  uint32 = 3
	cmdWrite uint32 = 4
	cmdServo uint32 = 8
	cmdBC1   uint32 = 10
	cmdBS1   uint32 = 12
)

// Pin modes.
const (
	modeInput  uint32 = 0
	modeOutput uint32 = 1
)

// Pull selects the pull resistor of an input pin.
type Pull uint32

const (
	PullOff  Pull = 0
	PullDown Pull = 1
	PullUp   Pull = 2
)

// ParsePull converts "off", "down" or "up".
func ParsePull(s string) (Pull, error) {
	switch s {
	case "", "off", "none":
		return PullOff, nil
	case "down":
		return PullDown, nil
	case "up":
		return PullUp, nil
	}
	return PullOff, fmt.Errorf("unknown pull %q", s)
}

// Servo pulse widths in microseconds for 0 and 180 degrees.
const (
	minPulse = 500
	maxPulse = 1500
)

// PulseWidth converts an angle to the servo pulse width in microseconds.
func PulseWidth(degrees float64) uint32 {
	return uint32(minPulse + degrees/180*(maxPulse-minPulse))
}

// Error is a negative status returned by pigpiod.
type Error struct {
	Cmd    uint32
	Status int32
}

func (e *Error) Error() string {
	return fmt.Sprintf("pigpio: command %d failed with status %d", e.Cmd, e.Status)
}

// Board implements ports.Board over a pigpiod connection. Safe for concurrent use.
type Board struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to pigpiod at addr.
func Dial(ctx context.Context, addr string) (*Board, error) {
	if addr == "" {
		addr = DefaultAddr
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pigpiod at %s: %w", addr, err)
	}
	return &Board{conn: conn, timeout: 2 * time.Second}, nil
}

// Close closes the connection.
func (b *Board) Close() error {
	return b.conn.Close()
}

// Setup drives outputs low and configures inputs with the given pull.
func (b *Board) Setup(outputs, inputs []int, pull Pull) error {
	for _, pin := range outputs {
		if _, err := b.do(cmdModes, uint32(pin), modeOutput); err != nil {
			return err
		}
		if _, err := b.do(cmdWrite, uint32(pin), 0); err != nil {
			return err
		}
	}
	for _, pin := range inputs {
		if _, err := b.do(cmdModes, uint32(pin), modeInput); err != nil {
			return err
		}
		if _, err := b.do(cmdPUD, uint32(pin), uint32(pull)); err != nil {
			return err
		}
	}
	return nil
}

// ReadLevel implements ports.Board.
func (b *Board) ReadLevel(pin int) (domain.Level, error) {
	res, err := b.do(cmdRead, uint32(pin), 0)
	if err != nil {
		return domain.Low, err
	}
	if res != 0 {
		return domain.High, nil
	}
	return domain.Low, nil
}

// WriteLevel implements ports.Board.
func (b *Board) WriteLevel(pin int, level domain.Level) error {
	_, err := b.do(cmdWrite, uint32(pin), uint32(level))
	return err
}

// Step implements ports.Board. Pins of bank 1 (0-31) are written with one clear and one set
// command so all coils of a motor change together.
func (b *Board) Step(pins []int, pattern []domain.Level) error {
	if len(pins) != len(pattern) {
		return fmt.Errorf("step: %d pins but %d levels", len(pins), len(pattern))
	}
	var set, clear uint32
	for i, pin := range pins {
		if pin < 0 || pin > 31 {
			return b.stepEach(pins, pattern)
		}
		if pattern[i] == domain.High {
			set |= 1 << uint(pin)
		} else {
			clear |= 1 << uint(pin)
		}
	}
	if clear != 0 {
		if _, err := b.do(cmdBC1, clear, 0); err != nil {
			return err
		}
	}
	if set != 0 {
		if _, err := b.do(cmdBS1, set, 0); err != nil {
			return err
		}
	}
	return nil
}

func (b *Board) stepEach(pins []int, pattern []domain.Level) error {
	for i, pin := range pins {
		if err := b.WriteLevel(pin, pattern[i]); err != nil {
			return err
		}
	}
	return nil
}

// SetServoAngle implements ports.Board.
func (b *Board) SetServoAngle(pin int, degrees float64) error {
	if degrees < 0 || degrees > 180 {
		return fmt.Errorf("servo angle %.1f outside 0-180", degrees)
	}
	_, err := b.do(cmdServo, uint32(pin), PulseWidth(degrees))
	return err
}

// ReleaseServo implements ports.Board.
func (b *Board) ReleaseServo(pin int) error {
	_, err := b.do(cmdServo, uint32(pin), 0)
	return err
}

func (b *Board) do(cmd, p1, p2 uint32) (int32, error) {
	var frame [16]byte
	binary.LittleEndian.PutUint32(frame[0:], cmd)
	binary.LittleEndian.PutUint32(frame[4:], p1)
	binary.LittleEndian.PutUint32(frame[8:], p2)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timeout > 0 {
		_ = b.conn.SetDeadline(time.Now().Add(b.timeout))
	}
	if _, err := b.conn.Write(frame[:]); err != nil {
		return 0, fmt.Errorf("pigpio: write command %d: %w", cmd, err)
	}
	var resp [16]byte
	if _, err := io.ReadFull(b.conn, resp[:]); err != nil {
		return 0, fmt.Errorf("pigpio: read response to command %d: %w", cmd, err)
	}
	res := int32(binary.LittleEndian.Uint32(resp[12:]))
	if res < 0 {
		return res, &Error{Cmd: cmd, Status: res}
	}
	return res, nil
}
