package feed_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/cardsort/pkg/adapters/memory"
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	entryPin = 8
	exitPin  = 14
)

var testMotors = feed.Motors{
	Entry:     []int{19, 26, 4, 17},
	Pinch:     []int{27, 22, 10, 9},
	Transport: []int{11, 7, 5, 6},
}

func fastTiming() feed.Timing {
	return feed.Timing{
		EntryTimeout: 300 * time.Millisecond,
		ClearTimeout: 300 * time.Millisecond,
		ExitTimeout:  300 * time.Millisecond,
		StableWindow: 5 * time.Millisecond,
		PollInterval: time.Millisecond,
		ExtraFeed:    30 * time.Millisecond,
		StepDelay:    time.Millisecond,
	}
}

// cardSim reacts to feed phases the way a card moving through the path would.
type cardSim struct {
	board *memory.Board

	reachEntry bool
	clearEntry bool
	reachExit  bool

	mu     sync.Mutex
	phases []domain.FeedPhase
	steps  map[domain.FeedPhase]int
	pinch  map[domain.FeedPhase]int
}

func newCardSim(board *memory.Board) *cardSim {
	return &cardSim{board: board, reachEntry: true, clearEntry: true, reachExit: true, steps: map[domain.FeedPhase]int{}, pinch: map[domain.FeedPhase]int{}}
}

func (c *cardSim) hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnFeedPhase: func(ctx context.Context, e *domain.PhaseEvent) {
			c.mu.Lock()
			c.phases = append(c.phases, e.Phase)
			c.steps[e.Phase] = c.board.StepCount(testMotors.Entry[0])
			c.pinch[e.Phase] = c.board.StepCount(testMotors.Pinch[0])
			c.mu.Unlock()

			switch e.Phase {
			case domain.PhaseDrive:
				if c.reachEntry {
					time.AfterFunc(20*time.Millisecond, func() { c.board.SetInput(entryPin, domain.High) })
				}
			case domain.PhaseReverse:
				if c.clearEntry {
					time.AfterFunc(20*time.Millisecond, func() { c.board.SetInput(entryPin, domain.Low) })
				}
			case domain.PhaseDriveToExit:
				if c.reachExit {
					time.AfterFunc(20*time.Millisecond, func() { c.board.SetInput(exitPin, domain.High) })
				}
			}
		},
	}
}

func (c *cardSim) trace() []domain.FeedPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.FeedPhase(nil), c.phases...)
}

func allPins() []int {
	pins := append([]int{}, testMotors.Entry...)
	pins = append(pins, testMotors.Pinch...)
	return append(pins, testMotors.Transport...)
}

func newSequencer(t *testing.T, board *memory.Board, sim *cardSim) *feed.Sequencer {
	t.Helper()
	seq, err := feed.New(board, testMotors, feed.Sensors{Entry: entryPin, Exit: exitPin},
		feed.WithTiming(fastTiming()),
		feed.WithHooks(sim.hooks()),
	)
	require.NoError(t, err)
	return seq
}

func TestSequencer_Feed_Success(t *testing.T) {
	board := memory.NewBoard()
	sim := newCardSim(board)
	seq := newSequencer(t, board, sim)

	err := seq.Feed(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.FeedPhase{
		domain.PhaseDrive,
		domain.PhaseSettle,
		domain.PhaseReverse,
		domain.PhaseWaitEntryClear,
		domain.PhaseDriveToExit,
		domain.PhaseDone,
	}, sim.trace())

	assert.False(t, board.Energized(allPins()...), "no coil may stay energized after a feed")
	assert.Positive(t, board.StepCount(testMotors.Entry[0]))
	assert.Positive(t, board.StepCount(testMotors.Pinch[0]))
	assert.Positive(t, board.StepCount(testMotors.Transport[0]))
	assert.Equal(t, domain.PhaseIdle, seq.Phase())
}

func TestSequencer_Feed_EntryMotorHaltsOnTrigger(t *testing.T) {
	board := memory.NewBoard()
	sim := newCardSim(board)
	seq := newSequencer(t, board, sim)

	require.NoError(t, seq.Feed(context.Background()))

	sim.mu.Lock()
	defer sim.mu.Unlock()

	// Entry motor is halted right after the trigger; at most an in-flight step lands.
	assert.LessOrEqual(t, sim.steps[domain.PhaseReverse]-sim.steps[domain.PhaseSettle], 2)
	// Pinch motor keeps stepping through the extra feed window.
	assert.Greater(t, sim.pinch[domain.PhaseReverse], sim.pinch[domain.PhaseSettle])
}

func TestSequencer_Feed_Timeouts(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*cardSim)
		phase domain.FeedPhase
		last  domain.FeedPhase
	}{
		{"entry never blocked", func(c *cardSim) { c.reachEntry = false }, domain.PhaseTimeoutAtEntry, domain.PhaseTimeoutAtEntry},
		{"entry never clears", func(c *cardSim) { c.clearEntry = false }, domain.PhaseTimeoutAtClear, domain.PhaseTimeoutAtClear},
		{"exit never blocked", func(c *cardSim) { c.reachExit = false }, domain.PhaseTimeoutAtExit, domain.PhaseTimeoutAtExit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := memory.NewBoard()
			sim := newCardSim(board)
			tt.setup(sim)
			seq := newSequencer(t, board, sim)

			err := seq.Feed(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrFeedTimeout)

			var fte *domain.FeedTimeoutError
			require.True(t, errors.As(err, &fte))
			assert.Equal(t, tt.phase, fte.Phase)

			trace := sim.trace()
			require.NotEmpty(t, trace)
			assert.Equal(t, tt.last, trace[len(trace)-1])
			assert.False(t, board.Energized(allPins()...), "timeouts must halt every motor")
		})
	}
}

func TestSequencer_Feed_ReadErrorHaltsMotors(t *testing.T) {
	board := memory.NewBoard()
	board.FailRead(entryPin, errors.New("i2c nack"))
	sim := newCardSim(board)
	seq := newSequencer(t, board, sim)

	err := seq.Feed(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrFeedTimeout)
	assert.False(t, board.Energized(allPins()...))
}

func TestSequencer_Configure(t *testing.T) {
	board := memory.NewBoard()
	seq := newSequencer(t, board, newCardSim(board))

	next := fastTiming()
	next.ExtraFeed = 5 * time.Millisecond
	require.NoError(t, seq.Configure(next))
	assert.Equal(t, 5*time.Millisecond, seq.Timing().ExtraFeed)

	bad := fastTiming()
	bad.EntryTimeout = 0
	assert.Error(t, seq.Configure(bad))
	assert.Equal(t, 5*time.Millisecond, seq.Timing().ExtraFeed, "rejected timing must not be applied")
}

func TestNew_RejectsBadMotors(t *testing.T) {
	board := memory.NewBoard()

	_, err := feed.New(board, feed.Motors{Entry: []int{1, 2, 3}, Pinch: testMotors.Pinch, Transport: testMotors.Transport}, feed.Sensors{})
	assert.Error(t, err)

	dup := testMotors
	dup.Pinch = []int{19, 22, 10, 9}
	_, err = feed.New(board, dup, feed.Sensors{})
	assert.ErrorContains(t, err, "already used")
}

func TestPattern(t *testing.T) {
	assert.Len(t, feed.FullSpeed, 8)
	assert.Len(t, feed.HalfSpeed, 16)
	assert.Equal(t, feed.FullSpeed[0], feed.HalfSpeed[1])
	assert.Equal(t, feed.FullSpeed[7], feed.FullSpeed.Reversed()[0])
}
