// Package dispense drops the card at the read station into its bin.
//
// Bins 1-9 sit behind a servo gate; bin 10 is the straight-through path. The sequence for
// each bin is a small typed command list built from a gate table validated at load time,
// so no bin is ever resolved by name at run time.
package dispense

import (
	"fmt"

	"github.com/aretw0/cardsort/pkg/domain"
)

// Servo is a positioned actuator with two calibrated angles.
type Servo struct {
	Pin          int     `json:"pin" yaml:"pin" mapstructure:"pin"`
	OpenDegrees  float64 `json:"open_degrees" yaml:"open_degrees" mapstructure:"open_degrees"`
	CloseDegrees float64 `json:"close_degrees" yaml:"close_degrees" mapstructure:"close_degrees"`
}

func (s Servo) validate(what string) error {
	for _, a := range []float64{s.OpenDegrees, s.CloseDegrees} {
		if a < 0 || a > 180 {
			return fmt.Errorf("%s: angle %.1f outside 0-180", what, a)
		}
	}
	if s.Pin < 0 {
		return fmt.Errorf("%s: invalid pin %d", what, s.Pin)
	}
	return nil
}

// Table maps every gated bin to its servo, plus the card release servo.
type Table struct {
	Gates map[int]Servo
	Card  Servo
}

// NewTable validates that bins 1 through 9 each have a gate with sane angles.
func NewTable(gates map[int]Servo, card Servo) (Table, error) {
	if err := card.validate("card servo"); err != nil {
		return Table{}, err
	}
	for bin := range gates {
		if bin < 1 || bin >= domain.DefaultBin {
			return Table{}, fmt.Errorf("%w: gate configured for bin %d", domain.ErrInvalidBin, bin)
		}
	}
	t := Table{Gates: make(map[int]Servo, len(gates)), Card: card}
	for bin := 1; bin < domain.DefaultBin; bin++ {
		g, ok := gates[bin]
		if !ok {
			return Table{}, fmt.Errorf("%w: no gate configured for bin %d", domain.ErrInvalidBin, bin)
		}
		if err := g.validate(fmt.Sprintf("gate %d", bin)); err != nil {
			return Table{}, err
		}
		t.Gates[bin] = g
	}
	return t, nil
}

// Op is the kind of a dispense command.
type Op string

const (
	OpOpenGate  Op = "open_gate"
	OpCloseGate Op = "close_gate"
	OpRelease   Op = "release"
	OpCapture   Op = "capture"
	OpSettle    Op = "settle"
)

// Command is one step of a dispense sequence.
type Command struct {
	Op      Op
	Pin     int
	Degrees float64
}

// Plan returns the command sequence that routes the card into bin.
func (t Table) Plan(bin int) ([]Command, error) {
	release := Command{Op: OpRelease, Pin: t.Card.Pin, Degrees: t.Card.OpenDegrees}
	settle := Command{Op: OpSettle}
	capture := Command{Op: OpCapture, Pin: t.Card.Pin, Degrees: t.Card.CloseDegrees}

	if bin == domain.DefaultBin {
		return []Command{release, settle, capture}, nil
	}
	gate, ok := t.Gates[bin]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidBin, bin)
	}
	return []Command{
		{Op: OpOpenGate, Pin: gate.Pin, Degrees: gate.OpenDegrees},
		release,
		settle,
		capture,
		{Op: OpCloseGate, Pin: gate.Pin, Degrees: gate.CloseDegrees},
	}, nil
}
