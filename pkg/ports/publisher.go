package ports

import (
	"context"

	"github.com/aretw0/cardsort/pkg/domain"
)

// EventPublisher forwards sorter events to external listeners.
type EventPublisher interface {
	PublishCycle(ctx context.Context, event *domain.CycleEvent) error
	PublishRunning(ctx context.Context, event *domain.RunningEvent) error
}
