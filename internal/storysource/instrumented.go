package storysource

import (
	"context"
	"errors"

	"storyworld/internal/metrics"
	"storyworld/internal/story"
)

// Instrumented counts loads of the wrapped source in Prometheus.
type Instrumented struct {
	next Source
	name string
}

var _ Source = (*Instrumented)(nil)

// WithMetrics wraps next; name becomes the "source" label.
func WithMetrics(next Source, name string) *Instrumented {
	return &Instrumented{next: next, name: name}
}

func (s *Instrumented) Get(ctx context.Context, id string) (*story.Graph, error) {
	g, err := s.next.Get(ctx, id)
	result := metrics.ResultOK
	switch {
	case err == nil:
	case errors.Is(err, story.ErrStoryNotFound):
		result = metrics.ResultNotFound
	default:
		result = metrics.ResultError
	}
	metrics.StoryLoadsTotal.WithLabelValues(s.name, result).Inc()
	return g, err
}

func (s *Instrumented) List(ctx context.Context) ([]story.Summary, error) {
	return s.next.List(ctx)
}
