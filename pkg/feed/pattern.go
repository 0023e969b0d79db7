package feed

import "github.com/aretw0/cardsort/pkg/domain"

// Pattern is a stepper coil sequence, one row per step.
type Pattern [][]domain.Level

// FullSpeed is the 8-step half-stepping sequence.
var FullSpeed = Pattern{
	{1, 0, 0, 0},
	{1, 1, 0, 0},
	{0, 1, 0, 0},
	{0, 1, 1, 0},
	{0, 0, 1, 0},
	{0, 0, 1, 1},
	{0, 0, 0, 1},
	{1, 0, 0, 1},
}

// HalfSpeed holds every row of FullSpeed for two steps.
var HalfSpeed = FullSpeed.Stretch(2)

// Stretch repeats each row n times.
func (p Pattern) Stretch(n int) Pattern {
	out := make(Pattern, 0, len(p)*n)
	for _, row := range p {
		for i := 0; i < n; i++ {
			out = append(out, row)
		}
	}
	return out
}

// Reversed returns the rows in reverse order.
func (p Pattern) Reversed() Pattern {
	out := make(Pattern, len(p))
	for i, row := range p {
		out[len(p)-1-i] = row
	}
	return out
}
