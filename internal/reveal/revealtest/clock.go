// Package revealtest provides a hand-driven ticker for reveal tests.
package revealtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"storyworld/internal/reveal"
)

// Timeout bounds every wait in this package.
const Timeout = 2 * time.Second

// Clock hands out Tickers that only fire when a test calls Tick.
type Clock struct {
	created chan *Ticker
}

// NewClock creates a Clock.
func NewClock() *Clock {
	return &Clock{created: make(chan *Ticker, 64)}
}

// NewTicker satisfies reveal.TickerFunc.
func (c *Clock) NewTicker(d time.Duration) reveal.Ticker {
	t := &Ticker{Interval: d, ch: make(chan time.Time), stopped: make(chan struct{})}
	c.created <- t
	return t
}

// Await returns the next ticker created by the revealer.
func (c *Clock) Await(tb testing.TB) *Ticker {
	tb.Helper()
	select {
	case t := <-c.created:
		return t
	case <-time.After(Timeout):
		tb.Fatal("revealtest: no ticker was created")
		return nil
	}
}

// Ticker is a manually fired reveal.Ticker.
type Ticker struct {
	Interval time.Duration

	ch       chan time.Time
	stopOnce sync.Once
	stopped  chan struct{}
}

func (t *Ticker) C() <-chan time.Time { return t.ch }

func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

// Stopped reports whether Stop was called.
func (t *Ticker) Stopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

// Tick delivers one tick and waits until the revealer has taken it.
func (t *Ticker) Tick(tb testing.TB) {
	tb.Helper()
	select {
	case t.ch <- time.Now():
	case <-t.stopped:
		tb.Fatal("revealtest: tick on a stopped ticker")
	case <-time.After(Timeout):
		tb.Fatal("revealtest: tick was not consumed")
	}
}

// ChannelSink forwards frames into ch.
func ChannelSink(ch chan<- reveal.Frame) reveal.Sink {
	return func(ctx context.Context, f reveal.Frame) {
		select {
		case ch <- f:
		case <-ctx.Done():
		}
	}
}

// Next receives one frame from ch or fails the test.
func Next(tb testing.TB, ch <-chan reveal.Frame) reveal.Frame {
	tb.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(Timeout):
		tb.Fatal("revealtest: no frame received")
		return reveal.Frame{}
	}
}
