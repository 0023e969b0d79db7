package memory

import (
	"fmt"
	"sync"

	"github.com/aretw0/cardsort/pkg/domain"
)

// ServoCommand records one servo call on the simulated board.
// Released commands carry no angle.
type ServoCommand struct {
	Pin      int
	Degrees  float64
	Released bool
}

// Board implements ports.Board in memory.
// Inputs are set by the test (or a simulation script); outputs and servo calls are recorded.
// Safe for concurrent use.
type Board struct {
	mu       sync.Mutex
	inputs   map[int]domain.Level
	scripts  map[int]func() domain.Level
	outputs  map[int]domain.Level
	steps    map[int]int
	servos   []ServoCommand
	readErr  map[int]error
	servoErr map[int]error
}

// NewBoard creates a simulated board with every pin low.
func NewBoard() *Board {
	return &Board{
		inputs:   make(map[int]domain.Level),
		scripts:  make(map[int]func() domain.Level),
		outputs:  make(map[int]domain.Level),
		steps:    make(map[int]int),
		readErr:  make(map[int]error),
		servoErr: make(map[int]error),
	}
}

// SetInput fixes the level returned for an input pin.
func (b *Board) SetInput(pin int, level domain.Level) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.scripts, pin)
	b.inputs[pin] = level
}

// Script makes reads of pin return fn(). fn is called with the board lock released.
func (b *Board) Script(pin int, fn func() domain.Level) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts[pin] = fn
}

// FailRead makes reads of pin return err (nil clears it).
func (b *Board) FailRead(pin int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readErr[pin] = err
}

// FailServo makes servo calls on pin return err (nil clears it).
func (b *Board) FailServo(pin int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.servoErr[pin] = err
}

// ReadLevel implements ports.Board.
func (b *Board) ReadLevel(pin int) (domain.Level, error) {
	b.mu.Lock()
	if err := b.readErr[pin]; err != nil {
		b.mu.Unlock()
		return domain.Low, err
	}
	fn, scripted := b.scripts[pin]
	level := b.inputs[pin]
	b.mu.Unlock()

	if scripted {
		return fn(), nil
	}
	return level, nil
}

// WriteLevel implements ports.Board.
func (b *Board) WriteLevel(pin int, level domain.Level) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs[pin] = level
	return nil
}

// Step implements ports.Board.
func (b *Board) Step(pins []int, pattern []domain.Level) error {
	if len(pins) != len(pattern) {
		return fmt.Errorf("step: %d pins but %d levels", len(pins), len(pattern))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, pin := range pins {
		b.outputs[pin] = pattern[i]
	}
	if len(pins) > 0 {
		b.steps[pins[0]]++
	}
	return nil
}

// SetServoAngle implements ports.Board.
func (b *Board) SetServoAngle(pin int, degrees float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.servoErr[pin]; err != nil {
		return err
	}
	b.servos = append(b.servos, ServoCommand{Pin: pin, Degrees: degrees})
	return nil
}

// ReleaseServo implements ports.Board.
func (b *Board) ReleaseServo(pin int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.servos = append(b.servos, ServoCommand{Pin: pin, Released: true})
	return nil
}

// Output returns the last level written to pin.
func (b *Board) Output(pin int) domain.Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outputs[pin]
}

// Energized reports whether any of pins is currently driven high.
func (b *Board) Energized(pins ...int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, pin := range pins {
		if b.outputs[pin] == domain.High {
			return true
		}
	}
	return false
}

// StepCount returns how many pattern rows were written to the motor whose first pin is pin.
func (b *Board) StepCount(pin int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.steps[pin]
}

// ServoLog returns a copy of every servo command, in order.
func (b *Board) ServoLog() []ServoCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ServoCommand, len(b.servos))
	copy(out, b.servos)
	return out
}
