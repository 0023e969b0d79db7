package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/ports"
)

// motor runs one stepper in its own goroutine until halted.
type motor struct {
	name   string
	pins   []int
	board  ports.Board
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func newMotor(name string, pins []int, board ports.Board, logger *slog.Logger) *motor {
	return &motor{name: name, pins: pins, board: board, logger: logger}
}

// start energizes the motor. A running motor is halted first.
func (m *motor) start(ctx context.Context, pattern Pattern, delay time.Duration) {
	m.halt()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.err = nil

	go m.run(ctx, pattern, delay, m.done)
}

func (m *motor) run(ctx context.Context, pattern Pattern, delay time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for {
		for _, row := range pattern {
			if ctx.Err() != nil {
				return
			}
			if err := m.board.Step(m.pins, row); err != nil {
				m.err = fmt.Errorf("motor %s: %w", m.name, err)
				m.logger.Error("Stepper write failed", "motor", m.name, "err", err)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}

// halt signals the stepping goroutine, joins it and drives every pin low.
// Safe to call on a motor that was never started.
func (m *motor) halt() error {
	var stepErr error
	if m.cancel != nil {
		m.cancel()
		<-m.done
		stepErr = m.err
		m.cancel = nil
		m.done = nil
	}

	var errs []error
	if stepErr != nil {
		errs = append(errs, stepErr)
	}
	for _, pin := range m.pins {
		if err := m.board.WriteLevel(pin, domain.Low); err != nil {
			errs = append(errs, fmt.Errorf("motor %s: de-energize pin %d: %w", m.name, pin, err))
		}
	}
	return errors.Join(errs...)
}
