// Package session runs interactive play sessions over websocket connections.
//
// Each session owns a player.Controller. Commands from the browser are read
// on the read pump; state snapshots and reveal frames go out through the
// write pump, the only goroutine writing to the connection.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storyworld/internal/events"
	"storyworld/internal/player"
	"storyworld/internal/reveal"
	"storyworld/internal/story"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
	outboxBuffer   = 64
)

// Message types sent to the browser.
const (
	MessageState = "state"
	MessageFrame = "frame"
	MessageError = "error"
)

// Command types accepted from the browser.
const (
	CommandChoose  = "choose"
	CommandRestart = "restart"
)

// KindInvalidCommand is reported for commands the session cannot parse.
const KindInvalidCommand = "invalid_command"

// Command is an inbound message.
type Command struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// Message is an outbound message. Exactly one of State, Frame and Error is
// set, except for errors, which carry the unchanged state as well.
type Message struct {
	Type  string           `json:"type"`
	State *player.Snapshot `json:"state,omitempty"`
	Frame *reveal.Frame    `json:"frame,omitempty"`
	Error *ErrorBody       `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Session is one browser playing one story.
type Session struct {
	ID       string
	Username string

	conn      *websocket.Conn
	ctrl      *player.Controller
	storyID   string
	publisher events.Publisher
	logger    *zap.Logger

	send   chan Message
	outbox chan events.Event
	// gate orders frames after the state message of their episode.
	gate      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	onClose   func(*Session)
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close ends the session: the reveal is stopped and the write pump sends a
// close frame and closes the connection.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.ctrl.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
		s.logger.Info("Play session closed")
	})
}

func (s *Session) frameSink(ctx context.Context, f reveal.Frame) {
	select {
	case s.gate <- struct{}{}:
	case <-ctx.Done():
		return
	case <-s.done:
		return
	}
	defer func() { <-s.gate }()

	select {
	case s.send <- Message{Type: MessageFrame, Frame: &f}:
	case <-ctx.Done():
	case <-s.done:
	}
}

// ordered runs fn while no frame can be queued. A reveal started by fn
// emits its frames only after the messages fn queued.
func (s *Session) ordered(fn func()) {
	s.gate <- struct{}{}
	defer func() { <-s.gate }()
	fn()
}

func (s *Session) enqueue(msg Message) {
	select {
	case s.send <- msg:
	case <-s.done:
	}
}

func (s *Session) sendState(snap player.Snapshot) {
	s.enqueue(Message{Type: MessageState, State: &snap})
}

func (s *Session) sendError(kind string, err error, snap player.Snapshot) {
	s.enqueue(Message{
		Type:  MessageError,
		State: &snap,
		Error: &ErrorBody{Kind: kind, Message: err.Error()},
	})
}

func (s *Session) readPump() {
	defer func() {
		// readPump is the only producer once the session runs.
		close(s.outbox)
		s.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			s.logger.Warn("Undecodable command", zap.ByteString("message", raw), zap.Error(err))
			s.sendError(KindInvalidCommand, err, s.ctrl.Snapshot())
			continue
		}
		s.handle(cmd)
	}
}

func (s *Session) handle(cmd Command) {
	switch cmd.Type {
	case CommandChoose:
		before := s.ctrl.State()
		choices := s.ctrl.Game().Choices(before)
		var (
			snap player.Snapshot
			err  error
		)
		s.ordered(func() {
			snap, err = s.ctrl.Choose(cmd.Index)
			if err == nil {
				s.sendState(snap)
			}
		})
		if err != nil {
			s.sendError(story.Kind(err), err, snap)
			s.publish(events.TypeStoryError, func(e *events.Event) {
				e.Node = before.Current
				e.ErrorKind = story.Kind(err)
			})
			return
		}
		s.publish(events.TypeChoiceSelected, func(e *events.Event) {
			e.Node = snap.Current
			e.Choice = choices[cmd.Index].Text
		})
		if snap.Ended {
			s.publish(events.TypeStoryEnded, func(e *events.Event) { e.Node = snap.Current })
		}

	case CommandRestart:
		s.ordered(func() { s.sendState(s.ctrl.Restart()) })
		s.publish(events.TypeStoryStarted, nil)

	default:
		s.logger.Warn("Unknown command", zap.String("type", cmd.Type))
		s.sendError(KindInvalidCommand, errUnknownCommand(cmd.Type), s.ctrl.Snapshot())
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
		s.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Warn("Failed to write message", zap.String("type", msg.Type), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Warn("Failed to send ping", zap.Error(err))
				return
			}

		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// publish queues a play event for publishPump. Events are dropped when the
// outbox is full.
func (s *Session) publish(t events.Type, fill func(*events.Event)) {
	e := events.New(t, s.storyID)
	e.SessionID = s.ID
	e.Username = s.Username
	if fill != nil {
		fill(&e)
	}
	select {
	case s.outbox <- e:
	default:
		s.logger.Warn("Play event outbox full, dropping event", zap.String("type", string(t)))
	}
}

// publishPump hands queued events to the publisher until the outbox is closed
// and drained.
func (s *Session) publishPump() {
	for e := range s.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.Warn("Failed to publish play event", zap.String("type", string(e.Type)), zap.Error(err))
		}
		cancel()
	}
}

type errUnknownCommand string

func (e errUnknownCommand) Error() string { return "unknown command " + string(e) }
