package session

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storyworld/internal/events"
	"storyworld/internal/metrics"
	"storyworld/internal/player"
	"storyworld/internal/reveal"
	"storyworld/internal/story"
)

// Config configures the sessions a Manager creates.
type Config struct {
	Interval       time.Duration
	AllowedOrigins []string
	Publisher      events.Publisher
	// RevealOptions are passed to every session's reveal driver.
	RevealOptions []reveal.Option
}

// Manager keeps the registry of open play sessions.
type Manager struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewManager creates an empty Manager.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = reveal.DefaultInterval
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NopPublisher{}
	}
	m := &Manager{
		cfg:      cfg,
		logger:   logger.Named("SessionManager"),
		sessions: make(map[string]*Session),
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     m.checkOrigin,
	}
	return m
}

// Upgrade switches the request to the websocket protocol.
func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return m.upgrader.Upgrade(w, r, nil)
}

// Open starts a session playing game on conn and begins revealing the start node.
func (m *Manager) Open(conn *websocket.Conn, game *player.Game, username string) *Session {
	id := uuid.NewString()
	storyID := game.Graph().ID()
	s := &Session{
		ID:        id,
		Username:  username,
		conn:      conn,
		storyID:   storyID,
		publisher: m.cfg.Publisher,
		logger: m.logger.With(
			zap.String("sessionID", id),
			zap.String("storyID", storyID),
		),
		send:    make(chan Message, sendBuffer),
		outbox:  make(chan events.Event, outboxBuffer),
		gate:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		onClose: m.unregister,
	}
	s.ctrl = player.NewController(game, player.ControllerConfig{
		Interval:      m.cfg.Interval,
		Sink:          s.frameSink,
		Logger:        s.logger,
		RevealOptions: m.cfg.RevealOptions,
	})

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	metrics.PlaySessionsActive.Inc()
	s.logger.Info("Play session opened", zap.String("username", username))

	s.ordered(func() { s.sendState(s.ctrl.Begin()) })
	s.publish(events.TypeStoryStarted, nil)

	m.wg.Add(3)
	go func() {
		defer m.wg.Done()
		s.publishPump()
	}()
	go func() {
		defer m.wg.Done()
		s.writePump()
	}()
	go func() {
		defer m.wg.Done()
		s.readPump()
	}()
	return s
}

// Reject reports a story that could not be loaded and closes conn.
func (m *Manager) Reject(conn *websocket.Conn, err error) {
	defer conn.Close()

	kind := story.Kind(err)
	m.logger.Warn("Rejecting play session", zap.String("kind", kind), zap.Error(err))

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if werr := conn.WriteJSON(Message{
		Type:  MessageError,
		Error: &ErrorBody{Kind: kind, Message: err.Error()},
	}); werr != nil {
		m.logger.Debug("Failed to send rejection", zap.Error(werr))
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, kind))
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every session and waits for their pumps to exit.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.RUnlock()

	for _, s := range open {
		s.Close()
	}
	m.wg.Wait()
	m.logger.Info("All play sessions closed", zap.Int("count", len(open)))
}

func (m *Manager) unregister(s *Session) {
	m.mu.Lock()
	_, ok := m.sessions[s.ID]
	delete(m.sessions, s.ID)
	m.mu.Unlock()
	if ok {
		metrics.PlaySessionsActive.Dec()
	}
}

// checkOrigin allows same-host requests, requests without an Origin header
// and the configured origins.
func (m *Manager) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if slices.Contains(m.cfg.AllowedOrigins, "*") || slices.Contains(m.cfg.AllowedOrigins, origin) {
		return true
	}
	m.logger.Warn("Rejected websocket origin", zap.String("origin", origin))
	return false
}
