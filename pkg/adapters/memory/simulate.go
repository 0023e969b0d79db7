package memory

import (
	"context"
	"time"

	"github.com/aretw0/cardsort/pkg/domain"
)

// CardPath returns feed hooks that move a virtual card past the entry and exit sensors,
// so a feed sequencer running on this board completes without hardware.
// Each sensor flips travel after the phase that causes it is entered.
func (b *Board) CardPath(entry, exit int, activeLow bool, travel time.Duration) domain.LifecycleHooks {
	blocked, clear := domain.High, domain.Low
	if activeLow {
		blocked, clear = domain.Low, domain.High
	}
	b.SetInput(entry, clear)
	b.SetInput(exit, clear)

	later := func(pin int, level domain.Level) {
		time.AfterFunc(travel, func() { b.SetInput(pin, level) })
	}
	return domain.LifecycleHooks{
		OnFeedPhase: func(ctx context.Context, e *domain.PhaseEvent) {
			switch e.Phase {
			case domain.PhaseDrive:
				b.SetInput(exit, clear)
				later(entry, blocked)
			case domain.PhaseReverse:
				later(entry, clear)
			case domain.PhaseDriveToExit:
				later(exit, blocked)
			}
		},
	}
}
