// Package storysource provides the places story graphs are loaded from.
package storysource

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"storyworld/internal/story"
)

// Source supplies story graphs by identifier.
type Source interface {
	// Get returns story.ErrStoryNotFound when id is unknown and an error
	// wrapping story.ErrLoadTransport when the source itself fails.
	Get(ctx context.Context, id string) (*story.Graph, error)
	List(ctx context.Context) ([]story.Summary, error)
}

// Memory serves graphs decoded up front.
type Memory struct {
	graphs map[string]*story.Graph
}

var _ Source = (*Memory)(nil)

// NewMemory builds a Memory source. Graphs are keyed by their own ID.
func NewMemory(graphs ...*story.Graph) *Memory {
	m := &Memory{graphs: make(map[string]*story.Graph, len(graphs))}
	for _, g := range graphs {
		m.graphs[g.ID()] = g
	}
	return m
}

func newMemoryFromMap(graphs map[string]*story.Graph) *Memory {
	return &Memory{graphs: graphs}
}

func (m *Memory) Get(ctx context.Context, id string) (*story.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", story.ErrLoadTransport, err)
	}
	g, ok := m.graphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", story.ErrStoryNotFound, id)
	}
	return g, nil
}

func (m *Memory) List(ctx context.Context) ([]story.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", story.ErrLoadTransport, err)
	}
	out := make([]story.Summary, 0, len(m.graphs))
	for _, g := range m.graphs {
		out = append(out, g.Summary())
	}
	SortSummaries(out)
	return out, nil
}

// Graphs returns every graph held, sorted by id.
func (m *Memory) Graphs() []*story.Graph {
	out := make([]*story.Graph, 0, len(m.graphs))
	for _, g := range m.graphs {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b *story.Graph) int { return compareIDs(a.ID(), b.ID()) })
	return out
}

// SortSummaries orders summaries by id, numeric ids by value ("2" before "10").
func SortSummaries(s []story.Summary) {
	slices.SortFunc(s, func(a, b story.Summary) int { return compareIDs(a.ID, b.ID) })
}

func compareIDs(a, b string) int {
	if len(a) != len(b) && isDigits(a) && isDigits(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
