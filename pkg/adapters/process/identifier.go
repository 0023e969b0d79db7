// Package process identifies cards by running an allow-listed recognizer command.
//
// The command is expected to capture the card, recognize it and print one JSON object on
// stdout, either a card record or {"error": "..."}. Only commands registered by name can run;
// the name comes from configuration, never from request input.
package process

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/aretw0/cardsort/internal/logging"
	"github.com/aretw0/cardsort/pkg/domain"
)

// DefaultTimeout bounds a recognizer run when the command sets none.
const DefaultTimeout = 60 * time.Second

// Identifier implements ports.Identifier.
type Identifier struct {
	registry map[string]CommandConfig
	name     string
	baseDir  string
	logger   *slog.Logger
}

// Option configures the Identifier.
type Option func(*Identifier)

// WithRegistry adds the loaded commands to the allow-list.
func WithRegistry(commands map[string]CommandConfig) Option {
	return func(i *Identifier) {
		for name, c := range commands {
			c.Name = name
			i.registry[name] = c
		}
	}
}

// WithBaseDir sets the working directory for the recognizer.
func WithBaseDir(dir string) Option {
	return func(i *Identifier) {
		i.baseDir = dir
	}
}

// WithLogger configures a logger for the Identifier.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Identifier) {
		i.logger = logger
	}
}

// NewIdentifier creates an Identifier that runs the registered command called name.
func NewIdentifier(name string, opts ...Option) (*Identifier, error) {
	i := &Identifier{
		registry: make(map[string]CommandConfig),
		name:     name,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if _, ok := i.registry[name]; !ok {
		return nil, fmt.Errorf("recognizer command not registered: %q", name)
	}
	return i, nil
}

// Register adds a trusted command to the allow-list.
func (i *Identifier) Register(name, command string, args ...string) {
	i.registry[name] = CommandConfig{Name: name, Command: command, Args: args}
}

// Identify runs the recognizer once.
// Undecodable output returns domain.ErrIdentificationParse; a non-zero exit returns
// domain.ErrIdentificationFailure. An {"error"} result is a failed Identification, not an error.
func (i *Identifier) Identify(ctx context.Context) (domain.Identification, error) {
	c := i.registry[i.name]
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	cmd.Dir = i.baseDir
	cmd.WaitDelay = time.Second
	env := cmd.Environ()
	for k, v := range c.Environment {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	if id := domain.CycleIDFrom(ctx); id != "" {
		env = append(env, "CARDSORT_CYCLE_ID="+id)
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return domain.Identification{}, fmt.Errorf("%w: %s: %v: %s",
			domain.ErrIdentificationFailure, i.name, err, strings.TrimSpace(stderr.String()))
	}
	i.logger.Debug("Recognizer finished", "command", i.name, "duration", time.Since(started), "cycle_id", domain.CycleIDFrom(ctx))

	return Parse(stdout.Bytes())
}
