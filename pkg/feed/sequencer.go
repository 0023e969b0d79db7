package feed

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
	"github.com/aretw0/cardsort/pkg/sensor"
)

// Timing holds the waits and speeds of a feed cycle.
type Timing struct {
	EntryTimeout time.Duration
	ClearTimeout time.Duration
	ExitTimeout  time.Duration
	StableWindow time.Duration
	PollInterval time.Duration
	ExtraFeed    time.Duration
	StepDelay    time.Duration
}

// DefaultTiming returns the timing the machine was tuned with.
func DefaultTiming() Timing {
	return Timing{
		EntryTimeout: 8 * time.Second,
		ClearTimeout: 5 * time.Second,
		ExitTimeout:  10 * time.Second,
		StableWindow: sensor.DefaultWindow,
		PollInterval: sensor.DefaultInterval,
		ExtraFeed:    1200 * time.Millisecond,
		StepDelay:    time.Millisecond,
	}
}

// Validate rejects timings that would make a wait meaningless.
func (t Timing) Validate() error {
	checks := []struct {
		name string
		d    time.Duration
	}{
		{"entry timeout", t.EntryTimeout},
		{"clear timeout", t.ClearTimeout},
		{"exit timeout", t.ExitTimeout},
		{"stable window", t.StableWindow},
		{"poll interval", t.PollInterval},
		{"step delay", t.StepDelay},
	}
	for _, c := range checks {
		if c.d <= 0 {
			return fmt.Errorf("feed timing: %s must be positive, got %s", c.name, c.d)
		}
	}
	if t.ExtraFeed < 0 {
		return fmt.Errorf("feed timing: extra feed must not be negative, got %s", t.ExtraFeed)
	}
	return nil
}

func (t Timing) policy(timeout time.Duration) sensor.Policy {
	return sensor.Policy{Window: t.StableWindow, Interval: t.PollInterval, Timeout: timeout}
}

// Motors lists the four coil pins of each stepper.
type Motors struct {
	Entry     []int
	Pinch     []int
	Transport []int
}

// Validate checks pin counts and rejects a pin shared by two coils.
func (m Motors) Validate() error {
	seen := make(map[int]string)
	for _, mot := range []struct {
		name string
		pins []int
	}{{"entry", m.Entry}, {"pinch", m.Pinch}, {"transport", m.Transport}} {
		if len(mot.pins) != len(FullSpeed[0]) {
			return fmt.Errorf("motor %s: need %d pins, got %d", mot.name, len(FullSpeed[0]), len(mot.pins))
		}
		for _, p := range mot.pins {
			if other, dup := seen[p]; dup {
				return fmt.Errorf("motor %s: pin %d already used by motor %s", mot.name, p, other)
			}
			seen[p] = mot.name
		}
	}
	return nil
}

// Sensors identifies the entry and exit beam sensors.
type Sensors struct {
	Entry     int
	Exit      int
	ActiveLow bool
}

// Sequencer runs feed cycles. Only one Feed executes at a time.
type Sequencer struct {
	board   ports.Board
	motors  Motors
	sensors Sensors
	hooks   domain.LifecycleHooks
	logger  *slog.Logger

	run sync.Mutex

	mu     sync.RWMutex
	timing Timing
	phase  domain.FeedPhase
}

// Option configures the Sequencer.
type Option func(*Sequencer)

// WithTiming overrides DefaultTiming.
func WithTiming(t Timing) Option {
	return func(s *Sequencer) {
		s.timing = t
	}
}

// WithHooks registers lifecycle hooks; only OnFeedPhase is used.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(s *Sequencer) {
		s.hooks = h
	}
}

// WithLogger configures a logger for the Sequencer.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

// New creates a Sequencer for the given board, motors and sensors.
func New(board ports.Board, motors Motors, sensors Sensors, opts ...Option) (*Sequencer, error) {
	if board == nil {
		return nil, errors.New("feed: board is required")
	}
	if err := motors.Validate(); err != nil {
		return nil, err
	}
	s := &Sequencer{
		board:   board,
		motors:  motors,
		sensors: sensors,
		timing:  DefaultTiming(),
		phase:   domain.PhaseIdle,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.timing.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Configure replaces the timing used by subsequent feeds.
// A feed already in progress keeps the timing it started with.
func (s *Sequencer) Configure(t Timing) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timing = t
	return nil
}

// Timing returns the current timing.
func (s *Sequencer) Timing() Timing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timing
}

// Phase returns the phase of the feed in progress, or PhaseIdle.
func (s *Sequencer) Phase() domain.FeedPhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Feed moves one card to the read station.
// It returns a *domain.FeedTimeoutError if a sensor wait expires.
func (s *Sequencer) Feed(ctx context.Context) (err error) {
	s.run.Lock()
	defer s.run.Unlock()

	t := s.Timing()
	entry := sensor.Probe{Board: s.board, Pin: s.sensors.Entry, ActiveLow: s.sensors.ActiveLow}
	exit := sensor.Probe{Board: s.board, Pin: s.sensors.Exit, ActiveLow: s.sensors.ActiveLow}

	m1 := newMotor("entry", s.motors.Entry, s.board, s.logger)
	m2 := newMotor("pinch", s.motors.Pinch, s.board, s.logger)
	m3 := newMotor("transport", s.motors.Transport, s.board, s.logger)

	haltAll := func() error {
		return errors.Join(m1.halt(), m2.halt(), m3.halt())
	}
	defer func() {
		if herr := haltAll(); herr != nil && err == nil {
			err = herr
		}
		s.setPhase(domain.PhaseIdle)
	}()

	// Phase 1: the pinch motor is mounted opposite, so it runs the reversed sequence.
	s.enter(ctx, domain.PhaseDrive)
	m1.start(ctx, FullSpeed, t.StepDelay)
	m2.start(ctx, HalfSpeed.Reversed(), t.StepDelay)
	m3.start(ctx, FullSpeed, t.StepDelay)

	ok, err := sensor.WaitStable(ctx, entry.Triggered, true, t.policy(t.EntryTimeout))
	if err != nil {
		return fmt.Errorf("feed: waiting for entry sensor: %w", err)
	}
	if !ok {
		return s.fail(ctx, haltAll, domain.PhaseTimeoutAtEntry)
	}

	// Stop pulling from the hopper at once; keep pushing the current card past the pinch.
	s.enter(ctx, domain.PhaseSettle)
	if err := m1.halt(); err != nil {
		return err
	}
	if err := sleep(ctx, t.ExtraFeed); err != nil {
		return err
	}
	if err := m2.halt(); err != nil {
		return err
	}

	// Phase 2: entry and pinch flip direction to push a trailing card back.
	s.enter(ctx, domain.PhaseReverse)
	m1.start(ctx, HalfSpeed.Reversed(), t.StepDelay)
	m2.start(ctx, HalfSpeed, t.StepDelay)

	s.enter(ctx, domain.PhaseWaitEntryClear)
	ok, err = sensor.WaitStable(ctx, entry.Triggered, false, t.policy(t.ClearTimeout))
	if err != nil {
		return fmt.Errorf("feed: waiting for entry sensor to clear: %w", err)
	}
	if !ok {
		return s.fail(ctx, haltAll, domain.PhaseTimeoutAtClear)
	}
	if err := errors.Join(m1.halt(), m2.halt()); err != nil {
		return err
	}

	s.enter(ctx, domain.PhaseDriveToExit)
	ok, err = sensor.WaitStable(ctx, exit.Triggered, true, t.policy(t.ExitTimeout))
	if err != nil {
		return fmt.Errorf("feed: waiting for exit sensor: %w", err)
	}
	if !ok {
		return s.fail(ctx, haltAll, domain.PhaseTimeoutAtExit)
	}
	if err := m3.halt(); err != nil {
		return err
	}

	s.enter(ctx, domain.PhaseDone)
	return nil
}

// fail halts every motor before reporting the timeout.
func (s *Sequencer) fail(ctx context.Context, haltAll func() error, phase domain.FeedPhase) error {
	if err := haltAll(); err != nil {
		s.logger.Error("Failed to halt motors after timeout", "phase", phase, "err", err)
	}
	s.enter(ctx, phase)
	s.logger.Warn("Feed timed out", "phase", phase)
	return &domain.FeedTimeoutError{Phase: phase}
}

func (s *Sequencer) enter(ctx context.Context, phase domain.FeedPhase) {
	s.setPhase(phase)
	s.logger.Debug("Feed phase", "phase", phase, "cycle_id", domain.CycleIDFrom(ctx))
	if s.hooks.OnFeedPhase != nil {
		s.hooks.OnFeedPhase(ctx, &domain.PhaseEvent{
			EventBase: domain.EventBase{
				Timestamp: time.Now(),
				Type:      domain.EventFeedPhase,
				CycleID:   domain.CycleIDFrom(ctx),
			},
			Phase: phase,
		})
	}
}

func (s *Sequencer) setPhase(phase domain.FeedPhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
}

func sleep(ctx context.Context, d time.Duration) error {
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
