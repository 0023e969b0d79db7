package sensor

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultWindow is how long a level must hold before it is accepted.
	DefaultWindow = 40 * time.Millisecond

	// DefaultInterval is the polling period.
	DefaultInterval = 5 * time.Millisecond
)

// Policy parameterizes a debounced wait.
type Policy struct {
	Window   time.Duration
	Timeout  time.Duration
	Interval time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.Window <= 0 {
		p.Window = DefaultWindow
	}
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	return p
}

// LevelFunc reports whether a sensor is currently triggered.
type LevelFunc func() (bool, error)

// WaitStable polls read until it has returned target continuously for p.Window.
// It returns false when p.Timeout elapses first. Any deviation resets the accumulated time.
// A read error or a canceled context aborts the wait with an error.
func WaitStable(ctx context.Context, read LevelFunc, target bool, p Policy) (bool, error) {
	p = p.withDefaults()

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	deadline := time.Now().Add(p.Timeout)
	var stableSince time.Time

	for {
		now := time.Now()
		if !now.Before(deadline) {
			return false, nil
		}

		level, err := read()
		if err != nil {
			return false, fmt.Errorf("sensor read: %w", err)
		}

		if level == target {
			if stableSince.IsZero() {
				stableSince = now
			} else if now.Sub(stableSince) >= p.Window {
				return true, nil
			}
		} else {
			stableSince = time.Time{}
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
