package storysource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"storyworld/internal/story"
)

// maxDocumentSize caps how much of a remote story document is read.
const maxDocumentSize = 8 << 20

// HTTP fetches the whole story document from a URL on every call,
// the way a browser client fetches a static storyData.json.
type HTTP struct {
	url    string
	format story.Format
	client *http.Client
	logger *zap.Logger
}

var _ Source = (*HTTP)(nil)

// NewHTTP creates a source reading the document at url.
func NewHTTP(url string, timeout time.Duration, logger *zap.Logger) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		url:    url,
		format: story.FormatFromPath(url),
		client: &http.Client{Timeout: timeout},
		logger: logger.Named("HTTPStorySource"),
	}
}

func (s *HTTP) Get(ctx context.Context, id string) (*story.Graph, error) {
	graphs, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	g, ok := graphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", story.ErrStoryNotFound, id)
	}
	return g, nil
}

func (s *HTTP) List(ctx context.Context) ([]story.Summary, error) {
	graphs, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return newMemoryFromMap(graphs).List(ctx)
}

func (s *HTTP) fetch(ctx context.Context) (map[string]*story.Graph, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", story.ErrLoadTransport, err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("Story document fetch failed", zap.String("url", s.url), zap.Error(err))
		return nil, fmt.Errorf("%w: fetch %s: %w", story.ErrLoadTransport, s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("Story document fetch returned unexpected status",
			zap.String("url", s.url),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: fetch %s: unexpected status %d", story.ErrLoadTransport, s.url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", story.ErrLoadTransport, s.url, err)
	}

	graphs, err := story.Decode(data, s.format)
	if err != nil {
		s.logger.Error("Story document is malformed", zap.String("url", s.url), zap.Error(err))
		return nil, err
	}
	return graphs, nil
}
