// Package mqtt publishes sorter events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/cardsort/internal/logging"
	"github.com/aretw0/cardsort/pkg/domain"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// Client is the part of paho.Client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Publisher implements ports.EventPublisher.
type Publisher struct {
	client  Client
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger configures a logger for the Publisher.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithTimeout bounds how long a publish waits for the broker.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.timeout = d
	}
}

// New creates a Publisher that writes under topic.
func New(client Client, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		client:  client,
		topic:   topic,
		timeout: 5 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect dials broker and returns a connected paho client.
func Connect(broker, clientID string, timeout time.Duration) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)
	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt: timed out connecting to %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: failed to connect to %s: %w", broker, err)
	}
	return c, nil
}

// PublishCycle sends a cycle event to <topic>/cycle.
func (p *Publisher) PublishCycle(ctx context.Context, event *domain.CycleEvent) error {
	return p.publish(p.topic+"/cycle", event)
}

// PublishRunning sends a running change to <topic>/state.
func (p *Publisher) PublishRunning(ctx context.Context, event *domain.RunningEvent) error {
	return p.publish(p.topic+"/state", event)
}

func (p *Publisher) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("mqtt: failed to marshal event: %w", err)
	}
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish to %s: %w", topic, err)
	}
	return nil
}

// Hooks forwards cycle ends, feed faults and running changes. Publish errors are only logged.
func (p *Publisher) Hooks() domain.LifecycleHooks {
	cycle := func(ctx context.Context, e *domain.CycleEvent) {
		if err := p.PublishCycle(ctx, e); err != nil {
			p.logger.Warn("Failed to publish cycle event", "err", err, "cycle_id", e.CycleID)
		}
	}
	return domain.LifecycleHooks{
		OnCycleEnd:  cycle,
		OnFeedFault: cycle,
		OnRunningChange: func(ctx context.Context, e *domain.RunningEvent) {
			if err := p.PublishRunning(ctx, e); err != nil {
				p.logger.Warn("Failed to publish state", "err", err)
			}
		},
	}
}
