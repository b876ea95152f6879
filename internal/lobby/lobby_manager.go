// internal/lobby/lobby_manager.go
package lobby

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/planpoker/internal/events"
	"github.com/jason-s-yu/planpoker/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const expireTimeout = 5 * time.Second

// Conn is one client transport connection as the manager sees it.
type Conn interface {
	ID() string
	// Join adds the connection to a broadcast room.
	Join(room string)
	// Leave removes the connection from a broadcast room.
	Leave(room string)
}

// Broadcaster delivers an event to every connection in a room. The manager
// calls it with its lock held, so implementations must not block on clients.
type Broadcaster interface {
	BroadcastToRoom(room, event string, payload interface{})
}

// Broadcasters fans a room event out to several transports.
type Broadcasters []Broadcaster

func (bs Broadcasters) BroadcastToRoom(room, event string, payload interface{}) {
	for _, b := range bs {
		b.BroadcastToRoom(room, event, payload)
	}
}

// Publisher receives internal notifications; see events.Bus.
type Publisher interface {
	Publish(ev events.Event)
}

// CaptchaVerifier decides whether a lobby may be created.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) bool
}

// Options configures a Manager. Store and Rooms are required.
type Options struct {
	Store       *LobbyStore
	Rooms       Broadcaster
	Events      Publisher
	Captcha     CaptchaVerifier
	Clock       clockwork.Clock
	GracePeriod time.Duration
	Logger      *logrus.Logger
}

// Manager owns all live lobby state: the lobby cache (through the store), the
// connection registry and the removal timers. Every handler runs its state
// mutation and broadcasts under mu, then persists outside of it.
type Manager struct {
	mu       sync.Mutex
	store    *LobbyStore
	registry *Registry
	removals *RemovalScheduler

	rooms   Broadcaster
	events  Publisher
	captcha CaptchaVerifier
	logger  *logrus.Logger
}

// NewManager wires a Manager. It installs itself as the store's OnRestore hook.
func NewManager(opts Options) *Manager {
	m := &Manager{
		store:    opts.Store,
		registry: NewRegistry(),
		rooms:    opts.Rooms,
		events:   opts.Events,
		captcha:  opts.Captcha,
		logger:   opts.Logger,
	}
	if m.logger == nil {
		m.logger = logrus.StandardLogger()
	}
	m.removals = NewRemovalScheduler(opts.Clock, opts.GracePeriod, m.expire)
	m.store.OnRestore = m.onRestore
	return m
}

// Close stops pending removal timers. Lobbies stay in the durable store.
func (m *Manager) Close() {
	m.removals.Stop()
}

// Create makes a new lobby with the caller as admin host and binds conn to it.
// The transport mirrors the returned snapshot to the creator as lobby:created.
func (m *Manager) Create(ctx context.Context, conn Conn, req models.CreateRequest) (*models.LobbySnapshot, error) {
	if m.captcha != nil && !m.captcha.Verify(ctx, req.CaptchaToken, req.RemoteIP) {
		m.logger.WithFields(logrus.Fields{"conn_id": conn.ID()}).Info("lobby create rejected by captcha")
		return nil, ErrCaptchaFailed
	}

	m.mu.Lock()
	id := GenerateLobbyID(func(candidate string) bool {
		_, taken := m.store.Cached(candidate)
		return taken
	})
	hostID := GenerateClientID()
	lob := New(id, hostID, req.Name)
	m.store.Put(lob)
	m.removals.Cancel(id)
	m.bind(conn, id, hostID)
	snap := lob.Snapshot(hostID)
	stored := lob.Stored()
	m.mu.Unlock()

	m.store.Save(ctx, stored)
	m.publish(events.LobbyCreated, id)

	m.logger.WithFields(logrus.Fields{"lobby_id": id, "client_id": hostID, "conn_id": conn.ID()}).Info("lobby created")
	return snap, nil
}

// Join adds the caller to a lobby, or re-attaches a returning participant when
// req.ClientID is already a member. Only genuinely new participants are announced.
func (m *Manager) Join(ctx context.Context, conn Conn, req models.JoinRequest) (*models.LobbySnapshot, error) {
	var (
		snap  *models.LobbySnapshot
		added bool
	)
	err := m.mutate(ctx, req.LobbyID, func(lob *Lobby) (bool, error) {
		var clientID string
		clientID, added = lob.Join(req.Name, req.ClientID, GenerateClientID)

		m.removals.Cancel(lob.ID)
		m.bind(conn, lob.ID, clientID)
		snap = lob.Snapshot(clientID)

		if added {
			m.rooms.BroadcastToRoom(lob.ID, models.EventParticipantJoined, models.ParticipantJoinedEvent{
				LobbyID:  lob.ID,
				ClientID: clientID,
				Name:     lob.Participants[clientID].Name,
			})
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if added {
		m.publish(events.LobbyJoined, snap.LobbyID)
	}
	m.logger.WithFields(logrus.Fields{
		"lobby_id":  snap.LobbyID,
		"client_id": snap.ClientID,
		"conn_id":   conn.ID(),
		"rejoin":    !added,
	}).Info("lobby joined")
	return snap, nil
}

// Vote records the card of the participant bound to conn.
func (m *Manager) Vote(ctx context.Context, conn Conn, req models.VoteRequest) error {
	return m.mutate(ctx, req.LobbyID, func(lob *Lobby) (bool, error) {
		b, ok := m.registry.Lookup(conn.ID())
		if !ok || b.LobbyID != lob.ID {
			return false, ErrNotParticipant
		}
		if err := lob.Vote(b.ClientID, req.Card); err != nil {
			return false, err
		}
		m.rooms.BroadcastToRoom(lob.ID, models.EventVoted, models.VotedEvent{
			LobbyID:  lob.ID,
			ClientID: b.ClientID,
			Card:     req.Card,
		})
		return true, nil
	})
}

// Reveal exposes all votes. A repeated reveal succeeds without broadcasting.
func (m *Manager) Reveal(ctx context.Context, conn Conn, req models.LobbyRequest) error {
	return m.mutate(ctx, req.LobbyID, func(lob *Lobby) (bool, error) {
		err := lob.Reveal(m.hostCaller(conn, lob))
		if errors.Is(err, ErrAlreadyRevealed) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		m.rooms.BroadcastToRoom(lob.ID, models.EventRevealed, models.RevealedEvent{
			LobbyID:      lob.ID,
			Participants: lob.ParticipantList(),
		})
		return true, nil
	})
}

// Reset clears all votes and hides them.
func (m *Manager) Reset(ctx context.Context, conn Conn, req models.LobbyRequest) error {
	return m.mutate(ctx, req.LobbyID, func(lob *Lobby) (bool, error) {
		if err := lob.Reset(m.hostCaller(conn, lob)); err != nil {
			return false, err
		}
		m.rooms.BroadcastToRoom(lob.ID, models.EventResetDone, models.ResetEvent{LobbyID: lob.ID})
		return true, nil
	})
}

// Sync re-attaches conn to a lobby after a transport reconnect and returns the
// current state. The connection is bound only if req.ClientID is a participant.
func (m *Manager) Sync(ctx context.Context, conn Conn, req models.SyncRequest) (*models.LobbySnapshot, error) {
	var snap *models.LobbySnapshot
	err := m.mutate(ctx, req.LobbyID, func(lob *Lobby) (bool, error) {
		if req.ClientID != "" && lob.HasParticipant(req.ClientID) {
			m.removals.Cancel(lob.ID)
			m.bind(conn, lob.ID, req.ClientID)
		} else {
			conn.Join(lob.ID)
		}
		snap = lob.Snapshot("")
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Exists reports whether the lobby is live in memory or recoverable from storage.
func (m *Manager) Exists(ctx context.Context, req models.LobbyRequest) bool {
	if req.LobbyID == "" {
		return false
	}
	_, ok := m.store.Load(ctx, req.LobbyID)
	return ok
}

// Disconnect forgets connID. If it was the lobby's last connection, the removal
// timer is armed.
func (m *Manager) Disconnect(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.registry.Unbind(connID)
	if !ok {
		return
	}
	m.logger.WithFields(logrus.Fields{"lobby_id": b.LobbyID, "client_id": b.ClientID, "conn_id": connID}).Debug("connection unbound")
	if !m.registry.HasLobby(b.LobbyID) {
		m.logger.WithFields(logrus.Fields{"lobby_id": b.LobbyID}).Info("last connection gone, scheduling lobby removal")
		m.removals.Arm(b.LobbyID)
	}
}

// mutate loads the lobby (possibly from the backend), runs fn under the manager
// lock and saves the resulting snapshot when fn asks for it.
func (m *Manager) mutate(ctx context.Context, lobbyID string, fn func(lob *Lobby) (persist bool, err error)) error {
	if lobbyID == "" {
		return ErrMissingLobbyID
	}
	if _, ok := m.store.Load(ctx, lobbyID); !ok {
		return ErrLobbyNotFound
	}

	m.mu.Lock()
	lob, ok := m.store.Cached(lobbyID)
	if !ok {
		// Expired between the load and the lock.
		m.mu.Unlock()
		return ErrLobbyNotFound
	}
	persist, err := fn(lob)
	var stored models.StoredLobby
	if err == nil && persist {
		stored = lob.Stored()
	}
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if persist {
		m.store.Save(ctx, stored)
	}
	return nil
}

// bind records conn -> (lobbyID, clientID) and moves it into the lobby's room.
// A connection bound elsewhere leaves its old room. Must hold mu.
func (m *Manager) bind(conn Conn, lobbyID, clientID string) {
	prev := m.registry.Bind(conn.ID(), Binding{LobbyID: lobbyID, ClientID: clientID})
	conn.Join(lobbyID)
	if prev == "" {
		return
	}
	conn.Leave(prev)
	if !m.registry.HasLobby(prev) {
		m.removals.Arm(prev)
	}
}

// hostCaller returns the client id bound to conn for lob, or "" if conn is not
// bound to this lobby. Must hold mu.
func (m *Manager) hostCaller(conn Conn, lob *Lobby) string {
	b, ok := m.registry.Lookup(conn.ID())
	if !ok || b.LobbyID != lob.ID {
		return ""
	}
	return b.ClientID
}

func (m *Manager) publish(kind events.Kind, lobbyID string) {
	if m.events == nil {
		return
	}
	m.events.Publish(events.Event{Kind: kind, LobbyID: lobbyID, Timestamp: time.Now()})
}

// expire runs when a removal timer fires. Presence is checked again here, so a
// client that came back during the grace window keeps the lobby alive.
func (m *Manager) expire(lobbyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registry.HasLobby(lobbyID) || m.removals.Pending(lobbyID) {
		return
	}

	// Held across the backend delete so a join cannot slip in between.
	ctx, cancel := context.WithTimeout(context.Background(), expireTimeout)
	defer cancel()
	m.store.Delete(ctx, lobbyID)
	m.logger.WithFields(logrus.Fields{"lobby_id": lobbyID}).Info("lobby removed after grace period")
}

// onRestore arms removal for a lobby pulled back from storage with nobody on it.
func (m *Manager) onRestore(lobbyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.registry.HasLobby(lobbyID) {
		m.removals.Arm(lobbyID)
	}
}
