package storysource

import (
	"embed"
	"fmt"
	"os"

	"storyworld/internal/story"
)

//go:embed data/stories.json
var dataFS embed.FS

const embeddedDocument = "data/stories.json"

// Embedded returns the stories compiled into the binary.
func Embedded() (*Memory, error) {
	data, err := dataFS.ReadFile(embeddedDocument)
	if err != nil {
		return nil, fmt.Errorf("%w: read embedded stories: %w", story.ErrLoadTransport, err)
	}
	graphs, err := story.Decode(data, story.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("embedded stories: %w", err)
	}
	return newMemoryFromMap(graphs), nil
}

// LoadFile reads a JSON or YAML story document from disk.
func LoadFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", story.ErrLoadTransport, path, err)
	}
	graphs, err := story.Decode(data, story.FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return newMemoryFromMap(graphs), nil
}
