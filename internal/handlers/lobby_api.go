// internal/handlers/lobby_api.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/planpoker/internal/lobby"
	"github.com/jason-s-yu/planpoker/internal/models"
	"github.com/sirupsen/logrus"
)

// requestTimeout bounds the backend work of a single request.
const requestTimeout = 10 * time.Second

// LobbyAPI turns transport requests into Manager calls and Manager results into
// acknowledgements. Both the Socket.IO and the raw WebSocket transport use it.
type LobbyAPI struct {
	mgr    *lobby.Manager
	logger *logrus.Logger
}

// clientConn is a lobby.Conn that can also push events to its own client.
type clientConn interface {
	lobby.Conn
	Emit(event string, payload interface{})
}

func NewLobbyAPI(mgr *lobby.Manager, logger *logrus.Logger) *LobbyAPI {
	return &LobbyAPI{mgr: mgr, logger: logger}
}

func (a *LobbyAPI) Create(conn lobby.Conn, req models.CreateRequest) Ack {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	snap, err := a.mgr.Create(ctx, conn, req)
	if err != nil {
		return errAck(a.logger, models.EventCreate, err)
	}
	return okAck(snap)
}

// MirrorCreated sends a successful create result to the creator as a
// lobby:created event. Transports call it once the ack is on its way.
func (a *LobbyAPI) MirrorCreated(conn clientConn, ack Ack) {
	if !ack.OK || ack.LobbySnapshot == nil {
		return
	}
	conn.Emit(models.EventCreated, ack.LobbySnapshot)
}

func (a *LobbyAPI) Join(conn lobby.Conn, req models.JoinRequest) Ack {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	snap, err := a.mgr.Join(ctx, conn, req)
	if err != nil {
		return errAck(a.logger, models.EventJoin, err)
	}
	return okAck(snap)
}

func (a *LobbyAPI) Exists(req models.LobbyRequest) Ack {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return Ack{OK: a.mgr.Exists(ctx, req)}
}

func (a *LobbyAPI) Vote(conn lobby.Conn, req models.VoteRequest) Ack {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := a.mgr.Vote(ctx, conn, req); err != nil {
		return errAck(a.logger, models.EventVote, err)
	}
	return okAck(nil)
}

func (a *LobbyAPI) Reveal(conn lobby.Conn, req models.LobbyRequest) Ack {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := a.mgr.Reveal(ctx, conn, req); err != nil {
		return errAck(a.logger, models.EventReveal, err)
	}
	return okAck(nil)
}

func (a *LobbyAPI) Reset(conn lobby.Conn, req models.LobbyRequest) Ack {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := a.mgr.Reset(ctx, conn, req); err != nil {
		return errAck(a.logger, models.EventReset, err)
	}
	return okAck(nil)
}

func (a *LobbyAPI) Sync(conn lobby.Conn, req models.SyncRequest) Ack {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	snap, err := a.mgr.Sync(ctx, conn, req)
	if err != nil {
		return errAck(a.logger, models.EventSync, err)
	}
	return okAck(snap)
}

// Disconnect releases whatever conn was bound to.
func (a *LobbyAPI) Disconnect(connID string) {
	a.mgr.Disconnect(connID)
}

// Dispatch decodes data according to event and runs the matching request.
// remoteIP is only used by create.
func (a *LobbyAPI) Dispatch(conn lobby.Conn, event string, data json.RawMessage, remoteIP string) Ack {
	switch event {
	case models.EventCreate:
		var req models.CreateRequest
		if err := decode(data, &req); err != nil {
			return a.badPayload(event, err)
		}
		req.RemoteIP = remoteIP
		return a.Create(conn, req)
	case models.EventJoin:
		var req models.JoinRequest
		if err := decode(data, &req); err != nil {
			return a.badPayload(event, err)
		}
		return a.Join(conn, req)
	case models.EventExists:
		var req models.LobbyRequest
		if err := decode(data, &req); err != nil {
			return Ack{OK: false}
		}
		return a.Exists(req)
	case models.EventVote:
		var req models.VoteRequest
		if err := decode(data, &req); err != nil {
			return a.badPayload(event, err)
		}
		return a.Vote(conn, req)
	case models.EventReveal:
		var req models.LobbyRequest
		if err := decode(data, &req); err != nil {
			return a.badPayload(event, err)
		}
		return a.Reveal(conn, req)
	case models.EventReset:
		var req models.LobbyRequest
		if err := decode(data, &req); err != nil {
			return a.badPayload(event, err)
		}
		return a.Reset(conn, req)
	case models.EventSync:
		var req models.SyncRequest
		if err := decode(data, &req); err != nil {
			return a.badPayload(event, err)
		}
		return a.Sync(conn, req)
	default:
		return Ack{Error: fmt.Sprintf("Unknown event: %s", event)}
	}
}

func (a *LobbyAPI) badPayload(event string, err error) Ack {
	a.logger.WithFields(logrus.Fields{"event": event}).Debugf("malformed payload: %v", err)
	return Ack{Error: "Invalid payload"}
}

// decode treats an absent payload as an empty object.
func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
