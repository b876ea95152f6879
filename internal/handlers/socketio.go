// internal/handlers/socketio.go
package handlers

import (
	"context"
	"net/http"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/jason-s-yu/planpoker/internal/models"
	"github.com/sirupsen/logrus"
)

// socketIONamespace is the only namespace the lobby protocol uses.
const socketIONamespace = "/"

// sioConnPrefix keeps Socket.IO session ids apart from raw WebSocket ids in the registry.
const sioConnPrefix = "sio-"

// NewSocketIOServer builds the Socket.IO server with polling and websocket
// transports. checkOrigin gates both.
//
// The server speaks Engine.IO v3, which is socket.io-client 2.x. Newer clients
// should use the JSON protocol on /lobby/ws instead.
func NewSocketIOServer(checkOrigin func(origin string) bool) *socketio.Server {
	check := func(r *http.Request) bool {
		return checkOrigin(r.Header.Get("Origin"))
	}
	return socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&polling.Transport{CheckOrigin: check},
			&websocket.Transport{CheckOrigin: check},
		},
	})
}

// roomSender is the broadcasting half of *socketio.Server.
type roomSender interface {
	BroadcastToRoom(namespace, room, event string, args ...interface{}) bool
}

// DefaultRoomQueue is the broadcast queue depth used for a non-positive size.
const DefaultRoomQueue = 256

type roomMessage struct {
	room    string
	event   string
	payload interface{}
}

// SocketIORooms broadcasts through a Socket.IO server. Emitting to a polling
// client can wait on that client's next poll, so broadcasts are queued and
// sent in order from Run; BroadcastToRoom itself never blocks.
type SocketIORooms struct {
	io     roomSender
	queue  chan roomMessage
	logger *logrus.Logger
}

func NewSocketIORooms(io *socketio.Server, buffer int, logger *logrus.Logger) *SocketIORooms {
	return newSocketIORooms(io, buffer, logger)
}

func newSocketIORooms(io roomSender, buffer int, logger *logrus.Logger) *SocketIORooms {
	if buffer <= 0 {
		buffer = DefaultRoomQueue
	}
	return &SocketIORooms{io: io, queue: make(chan roomMessage, buffer), logger: logger}
}

// BroadcastToRoom queues the event. It is dropped and logged when the queue is full.
func (r *SocketIORooms) BroadcastToRoom(room, event string, payload interface{}) {
	select {
	case r.queue <- roomMessage{room: room, event: event, payload: payload}:
	default:
		r.logger.WithFields(logrus.Fields{"room": room, "event": event}).Warn("socket.io broadcast queue full, dropping event")
	}
}

// Run delivers queued broadcasts until ctx is done.
func (r *SocketIORooms) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-r.queue:
			r.io.BroadcastToRoom(socketIONamespace, msg.room, msg.event, msg.payload)
		}
	}
}

// sioConn adapts a Socket.IO connection to lobby.Conn.
type sioConn struct {
	s socketio.Conn
}

func (c sioConn) ID() string                             { return sioConnPrefix + c.s.ID() }
func (c sioConn) Join(room string)                       { c.s.Join(room) }
func (c sioConn) Leave(room string)                      { c.s.Leave(room) }
func (c sioConn) Emit(event string, payload interface{}) { c.s.Emit(event, payload) }

// MountSocketIO registers the lobby events on io. The returned value of each
// event handler is sent back as the Socket.IO acknowledgement.
func MountSocketIO(io *socketio.Server, api *LobbyAPI, logger *logrus.Logger) {
	io.OnConnect(socketIONamespace, func(s socketio.Conn) error {
		logger.WithFields(logrus.Fields{"sid": s.ID(), "remote": remoteOf(s)}).Debug("socket connected")
		return nil
	})

	io.OnEvent(socketIONamespace, models.EventCreate, func(s socketio.Conn, req models.CreateRequest) Ack {
		req.RemoteIP = clientIP(s.RemoteHeader(), remoteOf(s))
		conn := sioConn{s}
		ack := api.Create(conn, req)
		// The library writes the ack only after we return, so here the mirror goes out first.
		api.MirrorCreated(conn, ack)
		return ack
	})
	io.OnEvent(socketIONamespace, models.EventJoin, func(s socketio.Conn, req models.JoinRequest) Ack {
		return api.Join(sioConn{s}, req)
	})
	io.OnEvent(socketIONamespace, models.EventExists, func(s socketio.Conn, req models.LobbyRequest) Ack {
		return api.Exists(req)
	})
	io.OnEvent(socketIONamespace, models.EventVote, func(s socketio.Conn, req models.VoteRequest) Ack {
		return api.Vote(sioConn{s}, req)
	})
	io.OnEvent(socketIONamespace, models.EventReveal, func(s socketio.Conn, req models.LobbyRequest) Ack {
		return api.Reveal(sioConn{s}, req)
	})
	io.OnEvent(socketIONamespace, models.EventReset, func(s socketio.Conn, req models.LobbyRequest) Ack {
		return api.Reset(sioConn{s}, req)
	})
	io.OnEvent(socketIONamespace, models.EventSync, func(s socketio.Conn, req models.SyncRequest) Ack {
		return api.Sync(sioConn{s}, req)
	})

	io.OnError(socketIONamespace, func(s socketio.Conn, e error) {
		fields := logrus.Fields{}
		if s != nil {
			fields["sid"] = s.ID()
		}
		logger.WithFields(fields).Warnf("socket error: %v", e)
	})
	io.OnDisconnect(socketIONamespace, func(s socketio.Conn, reason string) {
		api.Disconnect(sioConn{s}.ID())
		logger.WithFields(logrus.Fields{"sid": s.ID(), "reason": reason}).Debug("socket disconnected")
	})
}

func remoteOf(s socketio.Conn) string {
	if addr := s.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
