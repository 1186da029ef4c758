// Package story holds the branching story graph and the story document format.
package story

import "slices"

// StartNode is the key every story begins at.
const StartNode = "start"

// Choice is a labelled edge to another node of the same graph.
type Choice struct {
	Text string `json:"text"`
	Next string `json:"next"`
}

// Node is a single narrative unit.
type Node struct {
	Content string   `json:"content"`
	Choices []Choice `json:"choices"`
}

// Summary is the short listing form of a story.
type Summary struct {
	ID    string `json:"id" db:"id"`
	Title string `json:"title" db:"title"`
}

// Graph is a loaded story. It is never modified after construction:
// accessors hand out copies.
type Graph struct {
	id    string
	title string
	nodes map[string]Node
}

// NewGraph copies nodes into a new Graph.
func NewGraph(id, title string, nodes map[string]Node) *Graph {
	g := &Graph{
		id:    id,
		title: title,
		nodes: make(map[string]Node, len(nodes)),
	}
	for key, n := range nodes {
		g.nodes[key] = Node{Content: n.Content, Choices: slices.Clone(n.Choices)}
	}
	return g
}

func (g *Graph) ID() string    { return g.id }
func (g *Graph) Title() string { return g.title }

// Node resolves key by exact string equality.
func (g *Graph) Node(key string) (Node, bool) {
	n, ok := g.nodes[key]
	if !ok {
		return Node{}, false
	}
	return Node{Content: n.Content, Choices: slices.Clone(n.Choices)}, true
}

// Has reports whether key names a node of the graph.
func (g *Graph) Has(key string) bool {
	_, ok := g.nodes[key]
	return ok
}

// Keys returns the node keys in sorted order.
func (g *Graph) Keys() []string {
	keys := make([]string, 0, len(g.nodes))
	for k := range g.nodes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Summary returns the listing form of the graph.
func (g *Graph) Summary() Summary {
	return Summary{ID: g.id, Title: g.title}
}
