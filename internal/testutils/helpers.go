package testutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/cardsort/pkg/adapters/memory"
	"github.com/aretw0/cardsort/pkg/dispense"
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/feed"
)

// Pins used by SetupMachine.
const (
	EntrySensor = 8
	ExitSensor  = 14
	CardServo   = 18
)

// GatePin returns the servo pin SetupMachine assigns to bin's gate.
func GatePin(bin int) int {
	return 20 + bin
}

// Machine is a complete simulated sorter mechanism.
type Machine struct {
	Board     *memory.Board
	Feeder    *feed.Sequencer
	Dispenser *dispense.Sequencer
	Table     dispense.Table
}

// FastFeedTiming keeps feed waits in the millisecond range.
func FastFeedTiming() feed.Timing {
	return feed.Timing{
		EntryTimeout: 500 * time.Millisecond,
		ClearTimeout: 500 * time.Millisecond,
		ExitTimeout:  500 * time.Millisecond,
		StableWindow: 5 * time.Millisecond,
		PollInterval: time.Millisecond,
		ExtraFeed:    10 * time.Millisecond,
		StepDelay:    time.Millisecond,
	}
}

// SetupMachine wires real feed and dispense sequencers to a simulated board on which
// a virtual card travels between the active-low sensors. Gates open at 45 and close at 90 degrees.
// It fails the test immediately on error.
func SetupMachine(t *testing.T, hooks ...domain.LifecycleHooks) *Machine {
	t.Helper()

	board := memory.NewBoard()
	feedHooks := board.CardPath(EntrySensor, ExitSensor, true, 15*time.Millisecond)
	for _, h := range hooks {
		feedHooks = feedHooks.Merge(h)
	}

	feeder, err := feed.New(board,
		feed.Motors{
			Entry:     []int{19, 26, 4, 17},
			Pinch:     []int{27, 22, 10, 9},
			Transport: []int{11, 7, 5, 6},
		},
		feed.Sensors{Entry: EntrySensor, Exit: ExitSensor, ActiveLow: true},
		feed.WithTiming(FastFeedTiming()),
		feed.WithHooks(feedHooks),
	)
	require.NoError(t, err, "Failed to build feed sequencer")

	gates := make(map[int]dispense.Servo)
	for bin := 1; bin < domain.DefaultBin; bin++ {
		gates[bin] = dispense.Servo{Pin: GatePin(bin), OpenDegrees: 45, CloseDegrees: 90}
	}
	table, err := dispense.NewTable(gates, dispense.Servo{Pin: CardServo, OpenDegrees: 120, CloseDegrees: 60})
	require.NoError(t, err, "Failed to build dispense table")

	return &Machine{
		Board:     board,
		Feeder:    feeder,
		Dispenser: dispense.New(board, table, dispense.WithTiming(dispense.Timing{})),
		Table:     table,
	}
}
