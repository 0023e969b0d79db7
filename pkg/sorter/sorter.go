package sorter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/cardsort/internal/logging"
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/ports"
	"github.com/aretw0/cardsort/pkg/sensor"
	"github.com/google/uuid"
)

// Feeder moves one card from the hopper to the read station.
type Feeder interface {
	Feed(ctx context.Context) error
}

// Dispenser drops the card at the read station into a bin.
type Dispenser interface {
	Dispense(ctx context.Context, bin int) error
}

// Timing holds the pauses of the worker loop.
type Timing struct {
	// RetryPause is the wait before the single feed retry.
	RetryPause time.Duration
	// CyclePause separates two cycles. Stop requests are honoured during it.
	CyclePause time.Duration
	// StopTimeout bounds how long Stop waits for the worker.
	StopTimeout time.Duration
}

// DefaultTiming returns a 2s retry pause, a 0.5s cycle pause and a 5s stop timeout.
func DefaultTiming() Timing {
	return Timing{
		RetryPause:  2 * time.Second,
		CyclePause:  500 * time.Millisecond,
		StopTimeout: 5 * time.Second,
	}
}

// Deps are the collaborators every Sorter needs.
type Deps struct {
	Feeder     Feeder
	Identifier ports.Identifier
	Dispenser  Dispenser
	Counters   ports.CounterStore
	Criteria   ports.CriteriaStore
}

func (d Deps) validate() error {
	switch {
	case d.Feeder == nil:
		return fmt.Errorf("sorter: feeder is required")
	case d.Identifier == nil:
		return fmt.Errorf("sorter: identifier is required")
	case d.Dispenser == nil:
		return fmt.Errorf("sorter: dispenser is required")
	case d.Counters == nil:
		return fmt.Errorf("sorter: counter store is required")
	case d.Criteria == nil:
		return fmt.Errorf("sorter: criteria store is required")
	}
	return nil
}

// Sorter is the sorting orchestrator.
type Sorter struct {
	deps      Deps
	artifacts ports.ArtifactStore
	archive   ports.CardArchive
	panel     []sensor.Probe
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	timing    Timing
	newID     func() string
	now       func() time.Time

	mu             sync.Mutex
	running        bool
	stopping       bool
	stop           chan struct{}
	done           chan struct{}
	cancel         context.CancelFunc
	counters       domain.Counters
	criteria       domain.CriteriaTable
	lastCard       domain.Card
	archiveEnabled bool
}

// Option configures the Sorter.
type Option func(*Sorter)

// WithArtifacts sets the store for failed captures and the last-scanned image.
func WithArtifacts(store ports.ArtifactStore) Option {
	return func(s *Sorter) {
		s.artifacts = store
	}
}

// WithArchive sets the card archive sink. Archiving starts disabled unless enabled is true.
func WithArchive(archive ports.CardArchive, enabled bool) Option {
	return func(s *Sorter) {
		s.archive = archive
		s.archiveEnabled = enabled
	}
}

// WithPanel sets the probes reported by Sensors.
func WithPanel(probes ...sensor.Probe) Option {
	return func(s *Sorter) {
		s.panel = probes
	}
}

// WithHooks registers lifecycle hooks. Repeated calls merge.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Sorter) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// WithLogger configures a logger for the Sorter.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sorter) {
		s.logger = logger
	}
}

// WithTiming overrides DefaultTiming.
func WithTiming(t Timing) Option {
	return func(s *Sorter) {
		s.timing = t
	}
}

// WithClock overrides time.Now, used for event timestamps and artifact names.
func WithClock(now func() time.Time) Option {
	return func(s *Sorter) {
		s.now = now
	}
}

// New creates a Sorter and loads the persisted counters and criteria once.
func New(ctx context.Context, deps Deps, opts ...Option) (*Sorter, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	s := &Sorter{
		deps:   deps,
		logger: logging.NewNop(),
		timing: DefaultTiming(),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	counters, err := deps.Counters.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load counters: %w", err)
	}
	criteria, err := deps.Criteria.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load criteria: %w", err)
	}
	s.counters = counters
	s.criteria = criteria.Clone()
	return s, nil
}

// Start spawns the worker. It returns false, and does nothing, if a worker is already running.
func (s *Sorter) Start() bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	stop, done := make(chan struct{}), make(chan struct{})
	s.running, s.stopping = true, false
	s.stop, s.done, s.cancel = stop, done, cancel
	s.mu.Unlock()

	s.logger.Info("Sorting started")
	s.emitRunning(ctx, true, "started")
	go s.work(ctx, stop, done)
	return true
}

// Stop asks the worker to exit after its current cycle and waits for it.
// It is a no-op when not running. A cycle in progress is never interrupted: if the worker
// has not exited within the stop timeout, ErrStopTimeout is returned and the worker still
// exits at the end of its cycle. Use Wait to join it and Halt to cut a feed short.
func (s *Sorter) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	if !s.stopping {
		s.stopping = true
		close(s.stop)
	}
	done := s.done
	s.mu.Unlock()

	timer := time.NewTimer(s.timing.StopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return domain.ErrStopTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the worker has exited or ctx is done. It returns at once when not running.
func (s *Sorter) Wait(ctx context.Context) error {
	s.mu.Lock()
	running, done := s.running, s.done
	s.mu.Unlock()
	if !running {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Halt stops the worker without waiting for the cycle boundary. A feed in progress is
// cancelled and its motors de-energized. Once a card has been fed, its identification,
// dispense and counter update still run to completion.
func (s *Sorter) Halt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if !s.stopping {
		s.stopping = true
		close(s.stop)
	}
	s.cancel()
}

// Running reports whether the worker is alive.
func (s *Sorter) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot for the control surface.
func (s *Sorter) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Status{
		Running:        s.running,
		Stopping:       s.stopping,
		Counters:       s.counters,
		LastCardURL:    s.lastCard.ImageURL,
		LastCardName:   s.lastCard.Name,
		ArchiveEnabled: s.archiveEnabled,
	}
}

// Criteria returns a copy of the active criteria table.
func (s *Sorter) Criteria() domain.CriteriaTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria.Clone()
}

// SubmitCriteria replaces the criteria used by subsequent cycles and persists them.
// The in-memory table is replaced even when persisting fails.
func (s *Sorter) SubmitCriteria(ctx context.Context, table domain.CriteriaTable) error {
	table = table.Clone()
	s.mu.Lock()
	s.criteria = table
	s.mu.Unlock()

	if err := s.deps.Criteria.Save(ctx, table); err != nil {
		err = fmt.Errorf("%w: criteria: %v", domain.ErrConfigPersist, err)
		s.logger.Error("Failed to persist criteria", "err", err)
		return err
	}
	return nil
}

// ResetMonthly zeroes the monthly counter.
func (s *Sorter) ResetMonthly(ctx context.Context) error {
	s.mu.Lock()
	s.counters.Monthly = 0
	snapshot := s.counters
	s.mu.Unlock()
	return s.persist(ctx, snapshot)
}

// ClearFailed zeroes the failed counter and removes the archived failure artifacts.
func (s *Sorter) ClearFailed(ctx context.Context) error {
	s.mu.Lock()
	s.counters.Failed = 0
	snapshot := s.counters
	s.mu.Unlock()

	if s.artifacts != nil {
		if err := s.artifacts.ClearFailed(ctx); err != nil {
			return fmt.Errorf("failed to clear failure artifacts: %w", err)
		}
	}
	return s.persist(ctx, snapshot)
}

// FailedArtifacts lists the timestamps of archived failures, newest first.
func (s *Sorter) FailedArtifacts(ctx context.Context) ([]string, error) {
	if s.artifacts == nil {
		return nil, nil
	}
	return s.artifacts.ListFailed(ctx)
}

// SetArchiveEnabled toggles writing identified cards to the archive.
func (s *Sorter) SetArchiveEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archiveEnabled = enabled
}

// RecentCards returns the latest archived cards. Without an archive it returns ErrNotFound.
func (s *Sorter) RecentCards(ctx context.Context, limit int) ([]ports.ArchivedCard, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("card archive: %w", domain.ErrNotFound)
	}
	return s.archive.Recent(ctx, limit)
}

// Sensors reads every panel probe.
func (s *Sorter) Sensors() ([]domain.SensorReading, error) {
	readings := make([]domain.SensorReading, 0, len(s.panel))
	for _, p := range s.panel {
		r, err := p.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read sensor on pin %d: %w", p.Pin, err)
		}
		readings = append(readings, r)
	}
	return readings, nil
}

// WhileStopped runs fn with the sorter held stopped. It returns ErrRunning if a worker is alive.
func (s *Sorter) WhileStopped(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return domain.ErrRunning
	}
	return fn()
}

func (s *Sorter) persist(ctx context.Context, counters domain.Counters) error {
	if err := s.deps.Counters.Save(ctx, counters); err != nil {
		err = fmt.Errorf("%w: counters: %v", domain.ErrConfigPersist, err)
		s.logger.Error("Failed to persist counters", "err", err)
		return err
	}
	return nil
}

func (s *Sorter) emitRunning(ctx context.Context, running bool, reason string) {
	if s.hooks.OnRunningChange == nil {
		return
	}
	s.hooks.OnRunningChange(ctx, &domain.RunningEvent{
		EventBase: domain.EventBase{Timestamp: s.now(), Type: domain.EventRunningChange},
		Running:   running,
		Reason:    reason,
	})
}
