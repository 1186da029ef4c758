package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"storyworld/internal/metrics"
	"storyworld/internal/reveal"
	"storyworld/internal/story"
)

// Snapshot is a View tagged with the reveal episode animating its Typing text.
type Snapshot struct {
	View
	Episode uint64 `json:"episode"`
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Interval      time.Duration
	Sink          reveal.Sink
	Logger        *zap.Logger
	RevealOptions []reveal.Option
}

// Controller owns one playthrough: the game, its current state and the reveal
// driver animating the newest history entry.
type Controller struct {
	game     *Game
	revealer *reveal.Revealer
	logger   *zap.Logger

	mu     sync.Mutex
	state  State
	closed bool
}

// NewController creates a controller at the start of game. Nothing is revealed
// until Begin is called.
func NewController(game *Game, cfg ControllerConfig) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = reveal.Sink(func(_ context.Context, _ reveal.Frame) {})
	}
	opts := append([]reveal.Option{reveal.WithLogger(logger)}, cfg.RevealOptions...)

	return &Controller{
		game:     game,
		revealer: reveal.New(cfg.Interval, sink, opts...),
		logger:   logger.Named("PlayerController").With(zap.String("storyID", game.graph.ID())),
		state:    game.Start(),
	}
}

// Game returns the loaded game.
func (c *Controller) Game() *Game { return c.game }

// Begin starts revealing the current node and returns the snapshot to render.
func (c *Controller) Begin() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revealLocked()
}

// Choose follows the i-th choice of the current node.
func (c *Controller) Choose(i int) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.game.SelectIndex(c.state, i)
	return c.applyLocked(next, err)
}

// Restart goes back to the start node and restarts the reveal.
func (c *Controller) Restart() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = c.game.Start()
	return c.revealLocked()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the current snapshot without touching the reveal.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close stops the reveal. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.revealer.Stop()
}

func (c *Controller) applyLocked(next State, err error) (Snapshot, error) {
	if err != nil {
		switch {
		case errors.Is(err, story.ErrBrokenLink):
			metrics.ChoicesTotal.WithLabelValues(metrics.ResultBroken).Inc()
			c.logger.Error("Choice points at a missing node", zap.String("node", c.state.Current), zap.Error(err))
		case errors.Is(err, story.ErrInvalidChoice):
			metrics.ChoicesTotal.WithLabelValues(metrics.ResultInvalid).Inc()
			c.logger.Warn("Invalid choice", zap.String("node", c.state.Current), zap.Error(err))
		}
		return c.snapshotLocked(), err
	}

	metrics.ChoicesTotal.WithLabelValues(metrics.ResultOK).Inc()
	c.logger.Debug("Moved to node", zap.String("from", c.state.Current), zap.String("to", next.Current))
	c.state = next
	return c.revealLocked(), nil
}

func (c *Controller) revealLocked() Snapshot {
	if !c.closed {
		c.revealer.Start(c.state.Latest())
	}
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{View: c.game.View(c.state), Episode: c.revealer.Episode()}
}
