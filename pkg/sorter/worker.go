package sorter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/routing"
)

func (s *Sorter) work(ctx context.Context, stop <-chan struct{}, done chan struct{}) {
	reason := "stopped"
	defer func() {
		s.mu.Lock()
		s.running, s.stopping = false, false
		cancel := s.cancel
		close(done)
		s.mu.Unlock()

		cancel()
		s.logger.Info("Sorting stopped", "reason", reason)
		s.emitRunning(context.Background(), false, reason)
	}()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := s.cycle(ctx); err != nil {
			reason = "feed fault"
			if ctx.Err() != nil {
				reason = "cancelled"
			}
			return
		}

		timer := time.NewTimer(s.timing.CyclePause)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			reason = "cancelled"
			return
		case <-timer.C:
		}
	}
}

// outcome is what steps 2 to 5 of a cycle produced.
type outcome struct {
	bin        int
	identified bool
	card       domain.Card
	err        error
}

// cycle processes one card. Only a feed fault is returned; everything after the feed
// is absorbed so that one bad card never stops the machine. Once the card is at the
// read station the rest of the cycle ignores cancellation.
func (s *Sorter) cycle(ctx context.Context) error {
	id := s.newID()
	ctx = domain.ContextWithCycleID(ctx, id)
	started := s.now()

	if s.hooks.OnCycleStart != nil {
		s.hooks.OnCycleStart(ctx, s.event(domain.EventCycleStart, id))
	}

	if err := s.feed(ctx); err != nil {
		if ctx.Err() != nil {
			s.logger.Warn("Feed interrupted by halt", "cycle_id", id, "err", err)
			return err
		}
		s.logger.Error("Feed failed twice, halting", "cycle_id", id, "err", err)
		if s.hooks.OnFeedFault != nil {
			ev := s.event(domain.EventFeedFault, id)
			ev.Err = err.Error()
			s.hooks.OnFeedFault(ctx, ev)
		}
		return err
	}

	ctx = context.WithoutCancel(ctx)
	out := s.process(ctx, id)
	if out.err != nil {
		s.logger.Error("Cycle fault absorbed", "cycle_id", id, "bin", out.bin, "err", out.err)
	}

	// Counters move even for a lost cycle.
	s.mu.Lock()
	s.counters.Lifetime++
	s.counters.Monthly++
	snapshot := s.counters
	s.mu.Unlock()
	_ = s.persist(ctx, snapshot)

	if s.hooks.OnCycleEnd != nil {
		ev := s.event(domain.EventCycleEnd, id)
		ev.Bin = out.bin
		ev.Identified = out.identified
		ev.CardName = out.card.Name
		ev.Duration = s.now().Sub(started)
		if out.err != nil {
			ev.Err = out.err.Error()
		}
		s.hooks.OnCycleEnd(ctx, ev)
	}
	return nil
}

// feed runs the feed sequencer, retrying once after RetryPause.
// The retry pause is not interrupted by Stop.
func (s *Sorter) feed(ctx context.Context) error {
	err := s.deps.Feeder.Feed(ctx)
	if err == nil {
		return nil
	}
	s.logger.Warn("Feed failed, retrying", "attempt", 1, "err", err, "cycle_id", domain.CycleIDFrom(ctx))

	timer := time.NewTimer(s.timing.RetryPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return s.deps.Feeder.Feed(ctx)
}

// process runs identify, route, dispense and refresh. Panics are converted into a lost cycle.
func (s *Sorter) process(ctx context.Context, id string) (out outcome) {
	out.bin = domain.DefaultBin
	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	ident, err := s.deps.Identifier.Identify(ctx)
	if err == nil && ident.Failed() {
		err = fmt.Errorf("%w: %s", domain.ErrIdentificationFailure, ident.Failure)
	}
	if err != nil {
		s.identificationFailed(ctx, id, err)
	} else {
		out.identified = true
		out.card = ident.Card
		out.bin = s.route(ctx, id, ident.Card)
	}

	if err := s.deps.Dispenser.Dispense(ctx, out.bin); err != nil {
		out.err = err
	}

	if s.artifacts != nil {
		if err := s.artifacts.RefreshScanned(ctx); err != nil {
			s.logger.Warn("Failed to refresh last scanned image", "cycle_id", id, "err", err)
		}
	}
	return out
}

func (s *Sorter) identificationFailed(ctx context.Context, id string, cause error) {
	s.mu.Lock()
	s.counters.Failed++
	s.mu.Unlock()

	s.logger.Warn("Card not identified, routing to default bin", "cycle_id", id, "err", cause)
	if s.artifacts != nil {
		if err := s.artifacts.ArchiveFailed(ctx, s.now()); err != nil {
			s.logger.Warn("Failed to archive capture", "cycle_id", id, "err", err)
		}
	}
	if s.hooks.OnIdentifyFailure != nil {
		ev := s.event(domain.EventIdentifyFailure, id)
		ev.Bin = domain.DefaultBin
		ev.Err = cause.Error()
		s.hooks.OnIdentifyFailure(ctx, ev)
	}
}

func (s *Sorter) route(ctx context.Context, id string, card domain.Card) int {
	s.mu.Lock()
	criteria := s.criteria
	archive := s.archiveEnabled && s.archive != nil
	s.lastCard = card
	s.mu.Unlock()

	bin := routing.Route(card, criteria)
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		for _, d := range routing.Explain(card, criteria) {
			s.logger.Debug("Bin check", "cycle_id", id, "bin", d.Bin, "matched", d.Matched)
		}
	}
	s.logger.Info("Card routed", "cycle_id", id, "card", card.Name, "bin", bin)

	if archive {
		if err := s.archive.Append(ctx, id, card, bin); err != nil {
			s.logger.Warn("Failed to archive card", "cycle_id", id, "err", err)
		}
	}
	return bin
}

func (s *Sorter) event(t domain.EventType, id string) *domain.CycleEvent {
	return &domain.CycleEvent{
		EventBase: domain.EventBase{Timestamp: s.now(), Type: t, CycleID: id},
	}
}
