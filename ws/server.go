// Package ws pushes council progress events to WebSocket clients.
package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Tom-dlhy/local-llm-consensus-engine/council"
	"github.com/Tom-dlhy/local-llm-consensus-engine/domain"
	"github.com/Tom-dlhy/local-llm-consensus-engine/store"
)

const (
	writeTimeout   = 10 * time.Second
	pingInterval   = 30 * time.Second
	readTimeout    = 60 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// connection is one WebSocket client watching a session. send carries frames
// to writePump and is closed only by forward, the single goroutine that sends
// on it; done tells forward the connection was unregistered.
type connection struct {
	id        string
	sessionID string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
}

// Server upgrades WebSocket connections and forwards each session's progress
// events to its watchers. A slow client that fills its send buffer is
// disconnected rather than allowed to stall the workflow.
type Server struct {
	svc      *council.Service
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*connection
}

// NewServer creates the WebSocket server.
func NewServer(svc *council.Service) *Server {
	return &Server{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(map[string]*connection),
	}
}

// HandleSession handles GET /ws/council/:session_id. The client receives the
// current session snapshot immediately, then every progress event until the
// session reaches a terminal stage or the client disconnects.
func (s *Server) HandleSession(c echo.Context) error {
	sessionID := c.Param("session_id")

	snapshot, err := s.svc.GetSession(c.Request().Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get session"})
	}

	// Subscribe before reading the snapshot a second time so no transition
	// can fall between snapshot and stream.
	events, cancel := s.svc.Subscribe(sessionID)

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		cancel()
		log.Printf("WARN: websocket upgrade failed: %v", err)
		return err
	}

	conn := &connection{
		id:        uuid.New().String(),
		sessionID: sessionID,
		ws:        ws,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
	s.register(conn)
	log.Printf("INFO: websocket client %s watching session %s", conn.id, sessionID)

	if snapshot, err = s.svc.GetSession(c.Request().Context(), sessionID); err == nil {
		s.enqueue(conn, domain.SnapshotEvent(snapshot, time.Now().UnixMilli()))
	}

	go s.forward(conn, events)
	go s.writePump(conn, cancel)
	go s.readPump(conn)
	return nil
}

// ConnectionCount reports the number of connected clients.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func (s *Server) register(conn *connection) {
	s.mu.Lock()
	s.conns[conn.id] = conn
	s.mu.Unlock()
}

func (s *Server) unregister(conn *connection) {
	s.mu.Lock()
	if _, ok := s.conns[conn.id]; ok {
		delete(s.conns, conn.id)
		close(conn.done)
	}
	s.mu.Unlock()
}

// forward copies broker events into the connection's send buffer. It ends
// when the client goes away, the broker drops the subscriber, or a terminal
// event goes out. Being the only sender on conn.send, it alone closes the
// channel, which is what tells writePump to deliver the close frame.
func (s *Server) forward(conn *connection, events <-chan domain.ProgressEvent) {
	defer close(conn.send)

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if !s.enqueue(conn, event) {
				return
			}
			if event.Stage.Terminal() {
				return
			}
		case <-conn.done:
			return
		}
	}
}

func (s *Server) enqueue(conn *connection, event domain.ProgressEvent) bool {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ERROR: failed to encode progress event: %v", err)
		return true
	}

	select {
	case conn.send <- data:
		return true
	default:
		log.Printf("WARN: websocket client %s send buffer full, dropping connection", conn.id)
		s.unregister(conn)
		return false
	}
}

func (s *Server) writePump(conn *connection, cancel func()) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		cancel()
		conn.ws.Close()
	}()

	for {
		select {
		case message, ok := <-conn.send:
			conn.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				conn.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection. Clients send nothing meaningful; reading is
// what surfaces close frames and keeps pong handling alive.
func (s *Server) readPump(conn *connection) {
	defer func() {
		s.unregister(conn)
		conn.ws.Close()
	}()

	conn.ws.SetReadLimit(maxMessageSize)
	conn.ws.SetReadDeadline(time.Now().Add(readTimeout))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: websocket client %s read error: %v", conn.id, err)
			}
			return
		}
	}
}
