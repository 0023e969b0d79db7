package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventFeedPhase       EventType = "feed_phase"
	EventCycleStart      EventType = "cycle_start"
	EventCycleEnd        EventType = "cycle_end"
	EventFeedFault       EventType = "feed_fault"
	EventIdentifyFailure EventType = "identify_failure"
	EventRunningChange   EventType = "running_change"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	CycleID   string    `json:"cycle_id,omitempty"`
}

// PhaseEvent is emitted each time the feed sequencer enters a phase.
type PhaseEvent struct {
	EventBase
	Phase FeedPhase `json:"phase"`
}

// CycleEvent describes one card-processing cycle.
type CycleEvent struct {
	EventBase
	Bin        int           `json:"bin,omitempty"`
	Identified bool          `json:"identified"`
	CardName   string        `json:"card_name,omitempty"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
	Err        string        `json:"error,omitempty"`
}

// RunningEvent reports a change of the running flag.
type RunningEvent struct {
	EventBase
	Running bool   `json:"running"`
	Reason  string `json:"reason,omitempty"`
}

// LifecycleHooks defines callbacks for sorter observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnFeedPhase       func(context.Context, *PhaseEvent)
	OnCycleStart      func(context.Context, *CycleEvent)
	OnCycleEnd        func(context.Context, *CycleEvent)
	OnFeedFault       func(context.Context, *CycleEvent)
	OnIdentifyFailure func(context.Context, *CycleEvent)
	OnRunningChange   func(context.Context, *RunningEvent)
}

// Merge returns hooks that call h first and then other for every event.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnFeedPhase:       chain(h.OnFeedPhase, other.OnFeedPhase),
		OnCycleStart:      chain(h.OnCycleStart, other.OnCycleStart),
		OnCycleEnd:        chain(h.OnCycleEnd, other.OnCycleEnd),
		OnFeedFault:       chain(h.OnFeedFault, other.OnFeedFault),
		OnIdentifyFailure: chain(h.OnIdentifyFailure, other.OnIdentifyFailure),
		OnRunningChange:   chain(h.OnRunningChange, other.OnRunningChange),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}

type cycleIDKey struct{}

// ContextWithCycleID tags ctx with the ID of the cycle being processed.
func ContextWithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, id)
}

// CycleIDFrom returns the cycle ID stored in ctx, if any.
func CycleIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey{}).(string)
	return id
}
