package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of a story document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the document format from a file extension.
// Anything that is not .yaml/.yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// GraphDoc is the wire shape of one story inside a story document.
type GraphDoc struct {
	Title string             `json:"title" yaml:"title" validate:"required"`
	Nodes map[string]NodeDoc `json:"nodes" yaml:"nodes" validate:"required,min=1,dive"`
}

// NodeDoc is the wire shape of a node.
type NodeDoc struct {
	Content string      `json:"content" yaml:"content" validate:"required"`
	Choices []ChoiceDoc `json:"choices" yaml:"choices" validate:"required,dive"`
}

// ChoiceDoc is the wire shape of a choice.
type ChoiceDoc struct {
	Text string `json:"text" yaml:"text" validate:"required"`
	Next string `json:"next" yaml:"next" validate:"required"`
}

var (
	validate = validator.New(validator.WithRequiredStructEnabled())
	// Story text is plain text; any markup a remote document carries is dropped.
	textPolicy = bluemonday.StrictPolicy()
)

// Decode parses a full story document: a mapping from story id to story.
func Decode(data []byte, format Format) (map[string]*Graph, error) {
	var doc map[string]GraphDoc
	if err := unmarshal(data, format, &doc); err != nil {
		return nil, malformed(err)
	}
	if len(doc) == 0 {
		return nil, malformed(errors.New("document contains no stories"))
	}

	ids := make([]string, 0, len(doc))
	for id := range doc {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	graphs := make(map[string]*Graph, len(doc))
	for _, id := range ids {
		g, err := doc[id].toGraph(id)
		if err != nil {
			return nil, err
		}
		graphs[id] = g
	}
	return graphs, nil
}

// DecodeGraph parses a single story (the value side of a story document).
func DecodeGraph(id string, data []byte, format Format) (*Graph, error) {
	var gd GraphDoc
	if err := unmarshal(data, format, &gd); err != nil {
		return nil, malformed(fmt.Errorf("story %q: %w", id, err))
	}
	return gd.toGraph(id)
}

// EncodeGraph renders g in the document's JSON shape.
func EncodeGraph(g *Graph) ([]byte, error) {
	return json.Marshal(docFromGraph(g))
}

// MarshalJSON renders the graph in the document's JSON shape.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(docFromGraph(g))
}

func docFromGraph(g *Graph) GraphDoc {
	gd := GraphDoc{Title: g.title, Nodes: make(map[string]NodeDoc, len(g.nodes))}
	for key, n := range g.nodes {
		nd := NodeDoc{Content: n.Content, Choices: make([]ChoiceDoc, 0, len(n.Choices))}
		for _, c := range n.Choices {
			nd.Choices = append(nd.Choices, ChoiceDoc(c))
		}
		gd.Nodes[key] = nd
	}
	return gd
}

func unmarshal(data []byte, format Format, v any) error {
	switch format {
	case FormatYAML:
		return yaml.Unmarshal(data, v)
	case FormatJSON, "":
		return json.Unmarshal(data, v)
	default:
		return fmt.Errorf("unsupported document format %q", format)
	}
}

func (gd GraphDoc) toGraph(id string) (*Graph, error) {
	gd = gd.plain()
	if err := validate.Struct(gd); err != nil {
		return nil, malformed(fmt.Errorf("story %q: %w", id, describe(err)))
	}
	if _, ok := gd.Nodes[StartNode]; !ok {
		return nil, malformed(fmt.Errorf("story %q: missing %q node", id, StartNode))
	}

	nodes := make(map[string]Node, len(gd.Nodes))
	for key, nd := range gd.Nodes {
		n := Node{Content: nd.Content, Choices: make([]Choice, 0, len(nd.Choices))}
		for _, cd := range nd.Choices {
			n.Choices = append(n.Choices, Choice(cd))
		}
		nodes[key] = n
	}
	return NewGraph(id, gd.Title, nodes), nil
}

// plain returns a copy of gd with every text field reduced to plain text,
// so that markup-only text fails validation like empty text does.
func (gd GraphDoc) plain() GraphDoc {
	out := GraphDoc{Title: plainText(gd.Title)}
	if gd.Nodes != nil {
		out.Nodes = make(map[string]NodeDoc, len(gd.Nodes))
	}
	for key, nd := range gd.Nodes {
		pn := NodeDoc{Content: plainText(nd.Content)}
		if nd.Choices != nil {
			pn.Choices = make([]ChoiceDoc, 0, len(nd.Choices))
		}
		for _, cd := range nd.Choices {
			pn.Choices = append(pn.Choices, ChoiceDoc{Text: plainText(cd.Text), Next: cd.Next})
		}
		out.Nodes[key] = pn
	}
	return out
}

// plainText strips all markup. Entities are decoded whether or not s
// contains tags.
func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
