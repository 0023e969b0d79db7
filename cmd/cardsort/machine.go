package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/cardsort/internal/config"
	"github.com/aretw0/cardsort/pkg/adapters/memory"
	"github.com/aretw0/cardsort/pkg/adapters/pigpio"
	"github.com/aretw0/cardsort/pkg/adapters/process"
	"github.com/aretw0/cardsort/pkg/dispense"
	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/feed"
	"github.com/aretw0/cardsort/pkg/ports"
	"github.com/aretw0/cardsort/pkg/sensor"
)

// machine is the board plus the configuration that describes what is wired to it.
type machine struct {
	cfg    config.Config
	board  ports.Board
	sim    *memory.Board
	closer func() error
	logger *slog.Logger
}

func openMachine(ctx context.Context, cmd *cobra.Command, cfg config.Config, logger *slog.Logger) (*machine, error) {
	m := &machine{cfg: cfg, logger: logger, closer: func() error { return nil }}

	if simulate, _ := cmd.Flags().GetBool("simulate"); simulate {
		m.sim = memory.NewBoard()
		m.board = m.sim
		logger.Info("using simulated board")
		return m, nil
	}

	pull, err := pigpio.ParsePull(cfg.Board.Pull)
	if err != nil {
		return nil, err
	}
	b, err := pigpio.Dial(ctx, cfg.Board.Addr)
	if err != nil {
		return nil, err
	}
	if err := b.Setup(cfg.OutputPins(), cfg.InputPins(), pull); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to set up pins: %w", err)
	}
	logger.Info("connected to pigpiod", "addr", cfg.Board.Addr)
	m.board = b
	m.closer = b.Close
	return m, nil
}

func (m *machine) Close() error {
	return m.closer()
}

// feeder builds a feed sequencer. On the simulated board a virtual card
// follows the motors so the sensors change as they would on hardware.
func (m *machine) feeder(hooks domain.LifecycleHooks) (*feed.Sequencer, error) {
	if m.sim != nil {
		f := m.cfg.Feed
		hooks = m.sim.CardPath(f.EntrySensor, f.ExitSensor, f.SensorActiveLow, f.SimulatedTravel).Merge(hooks)
	}
	return feed.New(m.board, m.cfg.Motors(), m.cfg.FeedSensors(),
		feed.WithTiming(m.cfg.FeedTiming()),
		feed.WithHooks(hooks),
		feed.WithLogger(m.logger.With("component", "feed")),
	)
}

func (m *machine) dispenser() (*dispense.Sequencer, error) {
	table, err := m.cfg.DispenseTable()
	if err != nil {
		return nil, err
	}
	return dispense.New(m.board, table,
		dispense.WithTiming(m.cfg.DispenseTiming()),
		dispense.WithLogger(m.logger.With("component", "dispense")),
	), nil
}

func (m *machine) panel() []sensor.Probe {
	probes := make([]sensor.Probe, 0, len(m.cfg.Panel.Sensors))
	for _, pin := range m.cfg.Panel.Sensors {
		probes = append(probes, sensor.Probe{Board: m.board, Pin: pin, ActiveLow: m.cfg.Panel.SensorActiveLow})
	}
	return probes
}

// identifier runs the configured recognizer. The simulated machine falls back to
// a scripted recognizer when the command is not registered.
func (m *machine) identifier() (ports.Identifier, error) {
	commands, err := process.LoadCommands(m.cfg.Identify.CommandsFile)
	if err != nil {
		return nil, err
	}
	id, err := process.NewIdentifier(m.cfg.Identify.Command,
		process.WithRegistry(commands),
		process.WithBaseDir(m.cfg.Identify.BaseDir),
		process.WithLogger(m.logger.With("component", "identify")),
	)
	if err != nil {
		if m.sim != nil {
			m.logger.Warn("recognizer not registered, using scripted cards", "command", m.cfg.Identify.Command)
			return memory.NewIdentifier(simulatedCards()...), nil
		}
		return nil, err
	}
	return id, nil
}

func simulatedCards() []memory.Result {
	cards := []domain.Card{
		{Name: "Lightning Bolt", Type: "Instant", Colors: []string{"R"}, CMC: 1, SetCode: "M10"},
		{Name: "Counterspell", Type: "Instant", Colors: []string{"U"}, CMC: 2, SetCode: "7ED"},
		{Name: "Sol Ring", Type: "Artifact", CMC: 1, SetCode: "C21"},
	}
	var results []memory.Result
	for round := 0; round < 4; round++ {
		for _, c := range cards {
			results = append(results, memory.Result{Identification: domain.Identification{Card: c}})
		}
		if round == 0 {
			results = append(results, memory.Result{Identification: domain.Identification{Failure: "no card detected"}})
		}
	}
	return results
}
