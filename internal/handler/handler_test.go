package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storyworld/internal/config"
	"storyworld/internal/handler"
	"storyworld/internal/middleware"
	"storyworld/internal/session"
	"storyworld/internal/story"
	"storyworld/internal/storysource"
	"storyworld/internal/web"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type failingSource struct{}

func (failingSource) Get(context.Context, string) (*story.Graph, error) {
	return nil, fmt.Errorf("fetch: %w: connection refused", story.ErrLoadTransport)
}

func (failingSource) List(context.Context) ([]story.Summary, error) {
	return nil, fmt.Errorf("fetch: %w: connection refused", story.ErrLoadTransport)
}

func doorSource() storysource.Source {
	return storysource.NewMemory(story.NewGraph("door", "The Door", map[string]story.Node{
		"start": {Content: "A door.", Choices: []story.Choice{{Text: "Open it", Next: "room"}}},
		"room":  {Content: "A room.", Choices: []story.Choice{}},
	}))
}

func newRouter(t *testing.T, src storysource.Source, limiter gin.HandlerFunc) *gin.Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	renderer, err := web.NewRenderer(logger)
	require.NoError(t, err)

	sessions := session.NewManager(session.Config{Interval: time.Millisecond}, logger)
	t.Cleanup(sessions.Shutdown)

	router := gin.New()
	router.Use(middleware.GinZapLogger(logger))
	router.HTMLRender = renderer
	handler.New(src, sessions, logger).RegisterRoutes(router, limiter)
	return router
}

func do(router http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPages(t *testing.T) {
	router := newRouter(t, doorSource(), nil)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		contains   []string
	}{
		{"home", "/", http.StatusOK, []string{"Welcome to the world of Stories", "The Door", `href="/game/door"`, web.Copyright}},
		{"home signed in", "/?username=alice", http.StatusOK, []string{"Welcome, alice!", "Sign out"}},
		{"login form", "/login", http.StatusOK, []string{"Log in", `action="/login"`}},
		{"signup form", "/signup", http.StatusOK, []string{"Sign up", `action="/signup"`}},
		{"dashboard", "/mainpage?username=bob", http.StatusOK, []string{"Welcome, bob!", "Welcome to your dashboard, bob"}},
		{"game", "/game/door?username=bob", http.StatusOK, []string{"The Door", `data-story-id="door"`, "Open it"}},
		{"unknown story", "/game/999", http.StatusNotFound, []string{"This story does not exist."}},
		{"unknown route", "/nowhere", http.StatusNotFound, []string{"Page not found."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			for _, s := range tt.contains {
				assert.Contains(t, rec.Body.String(), s)
			}
		})
	}
}

func TestGamePage_OpeningParagraphIsTypedBySocket(t *testing.T) {
	router := newRouter(t, doorSource(), nil)
	rec := do(router, http.MethodGet, "/game/door", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "A door.")
}

func TestDashboard_RequiresUsername(t *testing.T) {
	router := newRouter(t, doorSource(), nil)
	for _, target := range []string{"/mainpage", "/mainpage?username=%20%20"} {
		rec := do(router, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusFound, rec.Code, target)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	}
}

func TestLogin(t *testing.T) {
	router := newRouter(t, doorSource(), nil)

	for _, route := range []string{"/login", "/signup"} {
		t.Run(route, func(t *testing.T) {
			for _, name := range []string{"", "   "} {
				rec := do(router, http.MethodPost, route, url.Values{"username": {name}})
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Contains(t, rec.Body.String(), "Please enter a valid username.")
			}

			rec := do(router, http.MethodPost, route, url.Values{"username": {"  Jane Doe "}, "password": {"x"}})
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/mainpage?username=Jane+Doe", rec.Header().Get("Location"))
		})
	}
}

func TestSourceUnavailable(t *testing.T) {
	router := newRouter(t, failingSource{}, nil)

	for _, target := range []string{"/", "/mainpage?username=bob", "/game/door"} {
		rec := do(router, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "could not be loaded")
	}

	rec := do(router, http.MethodGet, "/api/stories", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var apiErr handler.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "load_failed", apiErr.Kind)
}

func TestAPI(t *testing.T) {
	router := newRouter(t, doorSource(), nil)

	t.Run("list", func(t *testing.T) {
		rec := do(router, http.MethodGet, "/api/stories", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got []story.Summary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, []story.Summary{{ID: "door", Title: "The Door"}}, got)
	})

	t.Run("get", func(t *testing.T) {
		rec := do(router, http.MethodGet, "/api/stories/door", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		g, err := story.DecodeGraph("door", rec.Body.Bytes(), story.FormatJSON)
		require.NoError(t, err)
		assert.Equal(t, "The Door", g.Title())
		assert.Equal(t, []string{"room", "start"}, g.Keys())
	})

	t.Run("not found", func(t *testing.T) {
		rec := do(router, http.MethodGet, "/api/stories/999", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		var apiErr handler.APIError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
		assert.Equal(t, "story_not_found", apiErr.Kind)
	})
}

func TestHealth(t *testing.T) {
	router := newRouter(t, doorSource(), nil)
	rec := do(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = do(router, http.MethodGet, "/static/style.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	limiter := handler.NewRateLimiter(config.RateLimitConfig{Limit: 2, Window: time.Minute}, nil, zaptest.NewLogger(t))
	require.NotNil(t, limiter)
	router := newRouter(t, doorSource(), limiter)

	form := url.Values{"username": {"alice"}}
	assert.Equal(t, http.StatusSeeOther, do(router, http.MethodPost, "/login", form).Code)
	assert.Equal(t, http.StatusSeeOther, do(router, http.MethodPost, "/login", form).Code)

	rec := do(router, http.MethodPost, "/login", form)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var apiErr handler.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "rate_limited", apiErr.Kind)

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/login", nil).Code, "only the guarded routes are limited")
}

func TestRateLimiter_Disabled(t *testing.T) {
	assert.Nil(t, handler.NewRateLimiter(config.RateLimitConfig{}, nil, zaptest.NewLogger(t)))
}

func TestPlaySocket(t *testing.T) {
	srv := httptest.NewServer(newRouter(t, doorSource(), nil))
	t.Cleanup(srv.Close)
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	dial := func(path string) *websocket.Conn {
		conn, resp, err := websocket.DefaultDialer.Dial(base+path, nil)
		require.NoError(t, err)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		t.Cleanup(func() { _ = conn.Close() })
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		return conn
	}

	t.Run("known story", func(t *testing.T) {
		conn := dial("/ws/play/door?username=alice")
		var msg session.Message
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, session.MessageState, msg.Type)
		assert.Equal(t, "A door.", msg.State.Typing)
		assert.Equal(t, uint64(1), msg.State.Episode)
	})

	t.Run("unknown story", func(t *testing.T) {
		conn := dial("/ws/play/999")
		var msg session.Message
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, session.MessageError, msg.Type)
		assert.Equal(t, "story_not_found", msg.Error.Kind)
	})
}
