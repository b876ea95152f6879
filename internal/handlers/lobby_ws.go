// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/planpoker/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	wsSubprotocol  = "lobby"
	wsConnPrefix   = "ws-"
	wsOutBuffer    = 32
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// clientMessage is one request frame: {"event": "lobby:join", "id": 7, "data": {...}}.
// Frames without an id get no acknowledgement.
type clientMessage struct {
	Event string          `json:"event"`
	ID    *int64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// serverMessage is an acknowledgement ("ack" with the request id) or a pushed event.
type serverMessage struct {
	Event string      `json:"event"`
	ID    *int64      `json:"id,omitempty"`
	Data  interface{} `json:"data"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// WSHub tracks room membership of raw WebSocket connections.
type WSHub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*wsConn]struct{}
	logger *logrus.Logger
}

func NewWSHub(logger *logrus.Logger) *WSHub {
	return &WSHub{
		rooms:  make(map[string]map[*wsConn]struct{}),
		logger: logger,
	}
}

// BroadcastToRoom encodes the event once and queues it on every member.
func (h *WSHub) BroadcastToRoom(room, event string, payload interface{}) {
	data, err := json.Marshal(serverMessage{Event: event, Data: payload})
	if err != nil {
		h.logger.WithFields(logrus.Fields{"event": event, "room": room}).Errorf("failed to marshal broadcast: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		c.enqueue(data)
	}
}

func (h *WSHub) join(c *wsConn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*wsConn]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

func (h *WSHub) leaveRoom(c *wsConn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// leave drops c from every room.
func (h *WSHub) leave(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// roomSize is used by tests.
func (h *WSHub) roomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// wsConn is one raw WebSocket client. Outgoing frames go through OutChan so a
// slow reader never blocks a broadcast.
type wsConn struct {
	id      string
	hub     *WSHub
	OutChan chan []byte
	cancel  context.CancelFunc
	logger  *logrus.Logger

	closeOnce sync.Once
	slow      atomic.Bool
}

func (c *wsConn) ID() string        { return c.id }
func (c *wsConn) Join(room string)  { c.hub.join(c, room) }
func (c *wsConn) Leave(room string) { c.hub.leaveRoom(c, room) }

func (c *wsConn) Emit(event string, payload interface{}) {
	c.send(serverMessage{Event: event, Data: payload})
}

func (c *wsConn) send(msg serverMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"conn_id": c.id, "event": msg.Event}).Errorf("failed to marshal message: %v", err)
		return
	}
	c.enqueue(data)
}

// enqueue never blocks. A client whose queue is full is disconnected.
func (c *wsConn) enqueue(data []byte) {
	select {
	case c.OutChan <- data:
	default:
		c.closeOnce.Do(func() {
			c.slow.Store(true)
			c.logger.WithFields(logrus.Fields{"conn_id": c.id}).Warn("outbound queue full, dropping connection")
			c.cancel()
		})
	}
}

// LobbyWSHandler serves the lobby protocol over a plain WebSocket using JSON
// envelopes instead of Socket.IO framing.
func LobbyWSHandler(logger *logrus.Logger, api *LobbyAPI, hub *WSHub, checkOrigin func(origin string) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r.Header.Get("Origin")) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{wsSubprotocol},
			// Origin was checked above against the configured allow list.
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != wsSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := &wsConn{
			id:      wsConnPrefix + uuid.NewString(),
			hub:     hub,
			OutChan: make(chan []byte, wsOutBuffer),
			cancel:  cancel,
			logger:  logger,
		}
		remote := clientIP(r.Header, r.RemoteAddr)
		log := logger.WithFields(logrus.Fields{"conn_id": conn.id, "remote": remote})
		log.Info("websocket connected")

		go writePump(ctx, c, conn, logger)
		readPump(ctx, c, conn, api, remote, logger)

		hub.leave(conn)
		api.Disconnect(conn.id)
		log.Info("websocket disconnected")
	}
}

// readPump handles requests one at a time until the connection ends.
func readPump(ctx context.Context, c *websocket.Conn, conn *wsConn, api *LobbyAPI, remoteIP string, logger *logrus.Logger) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				logger.WithFields(logrus.Fields{"conn_id": conn.id}).Debugf("read error: %v (CloseStatus: %d)", err, status)
			}
			return
		}
		if typ != websocket.MessageText {
			logger.WithFields(logrus.Fields{"conn_id": conn.id}).Debugf("ignoring non-text message type %d", typ)
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			conn.send(serverMessage{Event: "error", Data: errorPayload{Message: "Invalid JSON format"}})
			continue
		}

		ack := api.Dispatch(conn, msg.Event, msg.Data, remoteIP)
		if msg.ID != nil {
			conn.send(serverMessage{Event: "ack", ID: msg.ID, Data: ack})
		}
		if msg.Event == models.EventCreate {
			api.MirrorCreated(conn, ack)
		}
	}
}

// writePump drains OutChan and keeps the connection alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *wsConn, logger *logrus.Logger) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if conn.slow.Load() {
				_ = c.Close(SlowConsumerError, "client too slow")
			}
			return
		case data := <-conn.OutChan:
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.WithFields(logrus.Fields{"conn_id": conn.id}).Debugf("write failed: %v", err)
				conn.cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithFields(logrus.Fields{"conn_id": conn.id}).Debugf("ping failed, assuming disconnect: %v", err)
				conn.cancel()
				return
			}
		}
	}
}
