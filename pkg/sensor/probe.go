package sensor

import (
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/ports"
)

// Probe reads one sensor pin and interprets its polarity.
// With ActiveLow set, a raw Low level means the beam is blocked.
type Probe struct {
	Board     ports.Board
	Pin       int
	ActiveLow bool
}

// Read returns the raw level and whether it counts as triggered.
func (p Probe) Read() (domain.SensorReading, error) {
	raw, err := p.Board.ReadLevel(p.Pin)
	if err != nil {
		return domain.SensorReading{Pin: p.Pin}, err
	}
	return domain.SensorReading{
		Pin:       p.Pin,
		Raw:       raw,
		Triggered: p.triggered(raw),
	}, nil
}

// Triggered is a LevelFunc for WaitStable.
func (p Probe) Triggered() (bool, error) {
	r, err := p.Read()
	return r.Triggered, err
}

func (p Probe) triggered(raw domain.Level) bool {
	if p.ActiveLow {
		return raw == domain.Low
	}
	return raw == domain.High
}
