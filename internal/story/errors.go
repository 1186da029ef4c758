package story

import (
	"errors"
	"fmt"
)

var (
	// ErrStoryNotFound: the requested identifier has no story graph.
	ErrStoryNotFound = errors.New("story not found")
	// ErrBrokenLink: a choice points at a node key the graph does not have.
	ErrBrokenLink = errors.New("broken story link")
	// ErrLoadTransport: fetching or decoding the story source failed.
	ErrLoadTransport = errors.New("story source unavailable")
	// ErrMalformedStory: the document does not match the story schema.
	// Always returned wrapped together with ErrLoadTransport.
	ErrMalformedStory = errors.New("malformed story document")
	// ErrInvalidChoice: a choice index outside the current node's choices.
	ErrInvalidChoice = errors.New("invalid choice")
)

// malformed wraps err so that it matches both ErrMalformedStory and ErrLoadTransport.
func malformed(err error) error {
	return fmt.Errorf("%w: %w: %w", ErrLoadTransport, ErrMalformedStory, err)
}

// Kind maps an error to the short machine-readable name used by the front ends.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStoryNotFound):
		return "story_not_found"
	case errors.Is(err, ErrBrokenLink):
		return "broken_link"
	case errors.Is(err, ErrInvalidChoice):
		return "invalid_choice"
	case errors.Is(err, ErrMalformedStory):
		return "malformed_story"
	case errors.Is(err, ErrLoadTransport):
		return "load_failed"
	default:
		return "internal"
	}
}
