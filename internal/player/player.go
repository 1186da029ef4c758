// Package player is the story player state machine: it loads a story graph,
// tracks the visited path and moves along the graph as choices are made.
//
// Transitions are pure: every operation returns a new State and never
// changes the one it was given.
package player

import (
	"context"
	"fmt"

	"storyworld/internal/story"
)

// Source is what the player needs from a story source.
type Source interface {
	Get(ctx context.Context, id string) (*story.Graph, error)
}

// State is the position of one playthrough.
type State struct {
	StoryID string
	Current string
	// History holds the text of every visited node, oldest first.
	History []string
}

// Cursor is the index of the history entry being revealed.
func (s State) Cursor() int {
	return len(s.History) - 1
}

// Latest returns the newest history entry.
func (s State) Latest() string {
	if len(s.History) == 0 {
		return ""
	}
	return s.History[len(s.History)-1]
}

// Game is a loaded story. It is the Ready state of the player; holding a
// *Game means the graph is present.
type Game struct {
	graph *story.Graph
}

// Load fetches the story and returns the game together with its initial state.
func Load(ctx context.Context, src Source, storyID string) (*Game, State, error) {
	g, err := src.Get(ctx, storyID)
	if err != nil {
		return nil, State{}, fmt.Errorf("load story %q: %w", storyID, err)
	}
	game, err := NewGame(g)
	if err != nil {
		return nil, State{}, err
	}
	return game, game.Start(), nil
}

// NewGame wraps an already loaded graph.
func NewGame(g *story.Graph) (*Game, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", story.ErrStoryNotFound)
	}
	if !g.Has(story.StartNode) {
		return nil, fmt.Errorf("%w: %w: story %q has no %q node",
			story.ErrLoadTransport, story.ErrMalformedStory, g.ID(), story.StartNode)
	}
	return &Game{graph: g}, nil
}

// Graph returns the loaded graph.
func (g *Game) Graph() *story.Graph { return g.graph }

// Title returns the story title.
func (g *Game) Title() string { return g.graph.Title() }

// Start returns the state at the start node.
func (g *Game) Start() State {
	start, _ := g.graph.Node(story.StartNode)
	return State{
		StoryID: g.graph.ID(),
		Current: story.StartNode,
		History: []string{start.Content},
	}
}

// SelectChoice follows choice from s. An unknown target yields
// story.ErrBrokenLink and s is returned unchanged.
func (g *Game) SelectChoice(s State, choice story.Choice) (State, error) {
	next, ok := g.graph.Node(choice.Next)
	if !ok {
		return s, fmt.Errorf("%w: %q from node %q (%q)", story.ErrBrokenLink, choice.Next, s.Current, choice.Text)
	}

	history := make([]string, len(s.History), len(s.History)+1)
	copy(history, s.History)
	history = append(history, next.Content)

	return State{
		StoryID: s.StoryID,
		Current: choice.Next,
		History: history,
	}, nil
}

// SelectIndex follows the i-th choice (0-based) of the current node.
func (g *Game) SelectIndex(s State, i int) (State, error) {
	choices := g.Choices(s)
	if i < 0 || i >= len(choices) {
		return s, fmt.Errorf("%w: %d (node %q has %d choices)", story.ErrInvalidChoice, i, s.Current, len(choices))
	}
	return g.SelectChoice(s, choices[i])
}

// Choices returns the choices of the current node in authored order.
func (g *Game) Choices(s State) []story.Choice {
	n, ok := g.graph.Node(s.Current)
	if !ok {
		return nil
	}
	return n.Choices
}

// View is what a front end renders for a state.
type View struct {
	StoryID string         `json:"storyId"`
	Title   string         `json:"title"`
	Current string         `json:"current"`
	Past    []string       `json:"past"`
	Typing  string         `json:"typing"`
	Choices []story.Choice `json:"choices"`
	Ended   bool           `json:"ended"`
}

// View projects s: every history entry but the last is fully revealed past
// text, the last one is handed to the typing animation.
func (g *Game) View(s State) View {
	v := View{
		StoryID: s.StoryID,
		Title:   g.graph.Title(),
		Current: s.Current,
		Past:    []string{},
		Choices: g.Choices(s),
	}
	if n := len(s.History); n > 0 {
		v.Past = append(v.Past, s.History[:n-1]...)
		v.Typing = s.History[n-1]
	}
	if v.Choices == nil {
		v.Choices = []story.Choice{}
	}
	v.Ended = len(v.Choices) == 0
	return v
}
