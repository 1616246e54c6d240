// Package shutdown coordinates graceful teardown of the process
// components.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Hook is one cleanup step run during shutdown.
type Hook func(ctx context.Context) error

// Coordinator runs registered hooks in priority order (lower first) when a
// termination signal arrives or shutdown is triggered programmatically.
type Coordinator struct {
	timeout time.Duration
	logger  zerolog.Logger

	mu    sync.Mutex
	hooks []namedHook

	once       sync.Once
	shutdownCh chan struct{}
}

type namedHook struct {
	name     string
	hook     Hook
	priority int
}

func New(timeout time.Duration, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		timeout:    timeout,
		logger:     logger.With().Str("component", "shutdown").Logger(),
		shutdownCh: make(chan struct{}),
	}
}

// Register adds a shutdown hook. Lower priorities run first.
func (c *Coordinator) Register(name string, priority int, hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hooks = append(c.hooks, namedHook{name: name, hook: hook, priority: priority})

	c.logger.Debug().Str("name", name).Int("priority", priority).Msg("Registered shutdown hook")
}

// Trigger starts shutdown without waiting for a signal.
func (c *Coordinator) Trigger() {
	c.once.Do(func() { close(c.shutdownCh) })
}

// Wait blocks until SIGINT/SIGTERM or Trigger, then runs every hook under
// the configured timeout.
func (c *Coordinator) Wait() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		c.logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case <-c.shutdownCh:
		c.logger.Info().Msg("Shutdown triggered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.mu.Lock()
	hooks := make([]namedHook, len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].priority < hooks[j].priority })

	for _, h := range hooks {
		c.logger.Debug().Str("name", h.name).Msg("Running shutdown hook")
		if err := h.hook(ctx); err != nil {
			c.logger.Error().Err(err).Str("name", h.name).Msg("Shutdown hook failed")
		}
	}

	c.logger.Info().Msg("Shutdown complete")
}
