// Package reveal drives the typing animation: a timed reveal of a text one
// character (rune) per tick.
package reveal

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"storyworld/internal/metrics"
)

// DefaultInterval is the time between two revealed characters.
const DefaultInterval = 30 * time.Millisecond

// Frame is one step of a reveal episode.
type Frame struct {
	Episode uint64 `json:"episode"`
	Text    string `json:"text"`
	Shown   int    `json:"shown"`
	Total   int    `json:"total"`
	Done    bool   `json:"done"`
}

// Steps returns the number of ticks needed to fully reveal text.
func Steps(text string) int {
	return utf8.RuneCountInString(text)
}

// Prefix returns the first n characters of text, n clamped to [0, Steps(text)].
func Prefix(text string, n int) string {
	if n <= 0 {
		return ""
	}
	offset := 0
	for i := 0; i < n && offset < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[offset:])
		offset += size
	}
	return text[:offset]
}

// Ticker is the part of time.Ticker the revealer needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the production TickerFunc.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Sink receives frames from the reveal goroutine. It must return promptly
// once ctx is done and must not call back into the Revealer.
type Sink func(ctx context.Context, f Frame)

// Option configures a Revealer.
type Option func(*Revealer)

// WithTicker replaces the ticker source, mainly for tests.
func WithTicker(fn TickerFunc) Option {
	return func(r *Revealer) { r.newTicker = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Revealer) { r.logger = l.Named("Revealer") }
}

// Revealer runs at most one reveal episode at a time. Starting a new episode
// cancels the running one and waits for its goroutine to exit, so frames of
// two episodes never interleave.
type Revealer struct {
	interval  time.Duration
	sink      Sink
	newTicker TickerFunc
	logger    *zap.Logger

	mu      sync.Mutex
	episode uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Revealer emitting frames to sink every interval.
func New(interval time.Duration, sink Sink, opts ...Option) *Revealer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	r := &Revealer{
		interval:  interval,
		sink:      sink,
		newTicker: NewTimeTicker,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start discards any in-flight reveal and starts revealing text from zero
// characters. It returns the new episode number.
func (r *Revealer) Start(text string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()

	r.episode++
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	metrics.RevealsStartedTotal.Inc()
	r.logger.Debug("Reveal started", zap.Uint64("episode", r.episode), zap.Int("steps", Steps(text)))

	go r.run(ctx, r.episode, text, done)
	return r.episode
}

// Stop cancels the running episode, if any, and waits for it to exit.
func (r *Revealer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// Episode returns the number of the latest episode (0 before the first Start).
func (r *Revealer) Episode() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.episode
}

func (r *Revealer) stopLocked() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil
}

func (r *Revealer) run(ctx context.Context, episode uint64, text string, done chan<- struct{}) {
	defer close(done)

	total := Steps(text)
	r.sink(ctx, Frame{Episode: episode, Total: total, Done: total == 0})
	if total == 0 {
		return
	}

	ticker := r.newTicker(r.interval)
	defer ticker.Stop()

	shown, offset := 0, 0
	for shown < total {
		select {
		case <-ctx.Done():
			r.logger.Debug("Reveal cancelled", zap.Uint64("episode", episode), zap.Int("shown", shown))
			return
		case <-ticker.C():
		}

		_, size := utf8.DecodeRuneInString(text[offset:])
		offset += size
		shown++

		if ctx.Err() != nil {
			return
		}
		r.sink(ctx, Frame{
			Episode: episode,
			Text:    text[:offset],
			Shown:   shown,
			Total:   total,
			Done:    shown == total,
		})
	}
}
