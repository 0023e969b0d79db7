package dispense_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/cardsort/pkg/adapters/memory"
	"github.com/aretw0/cardsort/pkg/dispense"
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cardPin = 18

func testGates() map[int]dispense.Servo {
	gates := make(map[int]dispense.Servo)
	for bin := 1; bin <= 9; bin++ {
		gates[bin] = dispense.Servo{Pin: 20 + bin, OpenDegrees: float64(40 + bin), CloseDegrees: 90}
	}
	return gates
}

func testTable(t *testing.T) dispense.Table {
	t.Helper()
	table, err := dispense.NewTable(testGates(), dispense.Servo{Pin: cardPin, OpenDegrees: 120, CloseDegrees: 60})
	require.NoError(t, err)
	return table
}

func TestNewTable_Validation(t *testing.T) {
	card := dispense.Servo{Pin: cardPin, OpenDegrees: 120, CloseDegrees: 60}

	t.Run("Missing Gate", func(t *testing.T) {
		gates := testGates()
		delete(gates, 6)
		_, err := dispense.NewTable(gates, card)
		assert.ErrorIs(t, err, domain.ErrInvalidBin)
		assert.ErrorContains(t, err, "bin 6")
	})

	t.Run("Gate For Default Bin", func(t *testing.T) {
		gates := testGates()
		gates[10] = dispense.Servo{Pin: 30, OpenDegrees: 10, CloseDegrees: 20}
		_, err := dispense.NewTable(gates, card)
		assert.ErrorIs(t, err, domain.ErrInvalidBin)
	})

	t.Run("Angle Out Of Range", func(t *testing.T) {
		gates := testGates()
		gates[4] = dispense.Servo{Pin: 24, OpenDegrees: 200, CloseDegrees: 90}
		_, err := dispense.NewTable(gates, card)
		assert.ErrorContains(t, err, "gate 4")
	})

	t.Run("Bad Card Servo", func(t *testing.T) {
		_, err := dispense.NewTable(testGates(), dispense.Servo{Pin: cardPin, OpenDegrees: -5})
		assert.ErrorContains(t, err, "card servo")
	})
}

func TestPlan(t *testing.T) {
	table := testTable(t)

	t.Run("Default Bin Skips Gates", func(t *testing.T) {
		plan, err := table.Plan(10)
		require.NoError(t, err)
		assert.Equal(t, []dispense.Op{dispense.OpRelease, dispense.OpSettle, dispense.OpCapture}, ops(plan))
	})

	t.Run("Gated Bin", func(t *testing.T) {
		plan, err := table.Plan(4)
		require.NoError(t, err)
		assert.Equal(t, []dispense.Op{
			dispense.OpOpenGate, dispense.OpRelease, dispense.OpSettle, dispense.OpCapture, dispense.OpCloseGate,
		}, ops(plan))
		assert.Equal(t, 24, plan[0].Pin)
		assert.Equal(t, 44.0, plan[0].Degrees)
		assert.Equal(t, 90.0, plan[4].Degrees)
		assert.Equal(t, 120.0, plan[1].Degrees)
		assert.Equal(t, 60.0, plan[3].Degrees)
	})

	t.Run("Unknown Bin", func(t *testing.T) {
		_, err := table.Plan(11)
		assert.ErrorIs(t, err, domain.ErrInvalidBin)
		_, err = table.Plan(0)
		assert.ErrorIs(t, err, domain.ErrInvalidBin)
	})
}

func TestSequencer_Dispense(t *testing.T) {
	board := memory.NewBoard()
	seq := dispense.New(board, testTable(t), dispense.WithTiming(dispense.Timing{}))

	require.NoError(t, seq.Dispense(context.Background(), 2))

	assert.Equal(t, []memory.ServoCommand{
		{Pin: 22, Degrees: 42},
		{Pin: 22, Released: true},
		{Pin: cardPin, Degrees: 120},
		{Pin: cardPin, Released: true},
		{Pin: cardPin, Degrees: 60},
		{Pin: cardPin, Released: true},
		{Pin: 22, Degrees: 90},
		{Pin: 22, Released: true},
	}, board.ServoLog())
}

func TestSequencer_Dispense_Fault(t *testing.T) {
	board := memory.NewBoard()
	board.FailServo(cardPin, errors.New("pigpio: bad pulse width"))
	seq := dispense.New(board, testTable(t), dispense.WithTiming(dispense.Timing{}))

	err := seq.Dispense(context.Background(), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDispenseFault)
	assert.ErrorContains(t, err, "release")
}

func TestSequencer_Dispense_FaultClosesGate(t *testing.T) {
	board := memory.NewBoard()
	board.FailServo(cardPin, errors.New("servo stalled"))
	seq := dispense.New(board, testTable(t), dispense.WithTiming(dispense.Timing{}))

	err := seq.Dispense(context.Background(), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDispenseFault)
	assert.ErrorContains(t, err, "release")

	assert.Equal(t, []memory.ServoCommand{
		{Pin: 23, Degrees: 43},
		{Pin: 23, Released: true},
		{Pin: 23, Degrees: 90},
		{Pin: 23, Released: true},
	}, board.ServoLog())
}

func TestSequencer_Dispense_CancelledStillClosesGate(t *testing.T) {
	board := memory.NewBoard()
	seq := dispense.New(board, testTable(t), dispense.WithTiming(dispense.Timing{Settle: time.Minute}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Eventually(t, func() bool { return len(board.ServoLog()) == 4 }, time.Second, time.Millisecond)
		cancel()
	}()

	err := seq.Dispense(ctx, 5)
	require.ErrorIs(t, err, domain.ErrDispenseFault)
	assert.ErrorContains(t, err, "settle")

	log := board.ServoLog()
	require.NotEmpty(t, log)
	assert.Equal(t, memory.ServoCommand{Pin: 25, Released: true}, log[len(log)-1])
	assert.Equal(t, memory.ServoCommand{Pin: 25, Degrees: 90}, log[len(log)-2])
}

func ops(plan []dispense.Command) []dispense.Op {
	out := make([]dispense.Op, len(plan))
	for i, c := range plan {
		out[i] = c.Op
	}
	return out
}
