package dispense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/cardsort/internal/logging"
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/ports"
)

// Timing controls the pauses of a dispense.
type Timing struct {
	// Settle is the pause between release and capture.
	Settle time.Duration
	// Hold is how long a servo is driven before its pulse is released.
	Hold time.Duration
}

// DefaultTiming returns a 2s settle and a 1s servo hold.
func DefaultTiming() Timing {
	return Timing{Settle: 2 * time.Second, Hold: time.Second}
}

// Sequencer executes dispense plans on the board.
type Sequencer struct {
	board  ports.Board
	table  Table
	timing Timing
	logger *slog.Logger

	mu sync.Mutex
}

// Option configures the Sequencer.
type Option func(*Sequencer)

// WithTiming overrides DefaultTiming.
func WithTiming(t Timing) Option {
	return func(s *Sequencer) {
		s.timing = t
	}
}

// WithLogger configures a logger for the Sequencer.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

// New creates a dispense Sequencer.
func New(board ports.Board, table Table, opts ...Option) *Sequencer {
	s := &Sequencer{
		board:  board,
		table:  table,
		timing: DefaultTiming(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispense runs the plan for bin. Actuator errors are wrapped in domain.ErrDispenseFault.
// A gate opened by the plan is closed again when a later step fails.
func (s *Sequencer) Dispense(ctx context.Context, bin int) error {
	plan, err := s.table.Plan(bin)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var opened bool
	for i, cmd := range plan {
		if cmd.Op == OpOpenGate {
			opened = true
		}
		if err := s.exec(ctx, cmd); err != nil {
			err = fmt.Errorf("%w: bin %d step %d (%s): %v", domain.ErrDispenseFault, bin, i+1, cmd.Op, err)
			if opened && cmd.Op != OpCloseGate {
				err = errors.Join(err, s.closeGate(ctx, bin))
			}
			return err
		}
	}
	s.logger.Debug("Dispensed card", "bin", bin, "cycle_id", domain.CycleIDFrom(ctx))
	return nil
}

// closeGate is a best-effort return of the bin's gate to its closed angle.
func (s *Sequencer) closeGate(ctx context.Context, bin int) error {
	gate := s.table.Gates[bin]
	cmd := Command{Op: OpCloseGate, Pin: gate.Pin, Degrees: gate.CloseDegrees}
	if err := s.exec(context.WithoutCancel(ctx), cmd); err != nil {
		return fmt.Errorf("bin %d gate left open: %w", bin, err)
	}
	s.logger.Warn("Closed gate after dispense fault", "bin", bin, "cycle_id", domain.CycleIDFrom(ctx))
	return nil
}

func (s *Sequencer) exec(ctx context.Context, cmd Command) error {
	if cmd.Op == OpSettle {
		return pause(ctx, s.timing.Settle)
	}
	if err := s.board.SetServoAngle(cmd.Pin, cmd.Degrees); err != nil {
		return err
	}
	holdErr := pause(ctx, s.timing.Hold)
	// Always stop the pulse so the servo does not jitter, even if the hold was interrupted.
	if err := s.board.ReleaseServo(cmd.Pin); err != nil {
		return err
	}
	return holdErr
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
