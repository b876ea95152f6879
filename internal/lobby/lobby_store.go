// internal/lobby/lobby_store.go
package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/planpoker/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	// KeyPrefix namespaces lobby snapshots in the backing store.
	KeyPrefix = "lobby:"

	// DefaultTTL is refreshed on every save so idle lobbies expire on their own.
	DefaultTTL = 24 * time.Hour
)

// Key returns the backing-store key of a lobby.
func Key(id string) string {
	return KeyPrefix + id
}

// Durable is the backing key-value store. Get returns a nil slice and no error
// for a missing key.
type Durable interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// LobbyStore keeps hot lobbies in memory and mirrors every write to a Durable
// backend. The in-memory copy is authoritative while present.
type LobbyStore struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby

	durable Durable
	ttl     time.Duration
	fetches singleflight.Group
	logger  *logrus.Logger

	// OnRestore is called (outside any store lock) after a lobby is pulled from
	// the durable backend into memory.
	OnRestore func(id string)
}

// NewLobbyStore returns an empty store. A nil durable keeps everything in memory.
func NewLobbyStore(durable Durable, ttl time.Duration, logger *logrus.Logger) *LobbyStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LobbyStore{
		lobbies: make(map[string]*Lobby),
		durable: durable,
		ttl:     ttl,
		logger:  logger,
	}
}

// Put places lob in the in-memory cache, replacing any previous entry.
func (s *LobbyStore) Put(lob *Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lobbies[lob.ID] = lob
}

// Cached returns the in-memory lobby without touching the backend.
func (s *LobbyStore) Cached(id string) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lob, ok := s.lobbies[id]
	return lob, ok
}

// Len reports how many lobbies are in memory.
func (s *LobbyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lobbies)
}

// Save writes the snapshot to the backend and refreshes its TTL.
// The error is returned for callers that care; it is already logged.
func (s *LobbyStore) Save(ctx context.Context, stored models.StoredLobby) error {
	if s.durable == nil {
		return nil
	}
	data, err := json.Marshal(stored)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"lobby_id": stored.ID}).Errorf("lobby encode failed: %v", err)
		return fmt.Errorf("failed to marshal lobby %s: %w", stored.ID, err)
	}
	if err := s.durable.Set(ctx, Key(stored.ID), data, s.ttl); err != nil {
		s.logger.WithFields(logrus.Fields{"lobby_id": stored.ID}).Warnf("lobby save failed: %v", err)
		return fmt.Errorf("failed to save lobby %s: %w", stored.ID, err)
	}
	return nil
}

// Load returns the lobby from memory, or fetches, decodes and caches it from
// the backend. Backend failures and malformed data read as "not found".
func (s *LobbyStore) Load(ctx context.Context, id string) (*Lobby, bool) {
	if lob, ok := s.Cached(id); ok {
		return lob, true
	}
	if s.durable == nil {
		return nil, false
	}

	v, _, _ := s.fetches.Do(id, func() (interface{}, error) {
		return s.fetch(ctx, id), nil
	})
	lob, _ := v.(*Lobby)
	if lob == nil {
		return nil, false
	}

	s.mu.Lock()
	existing, ok := s.lobbies[id]
	if !ok {
		s.lobbies[id] = lob
	}
	s.mu.Unlock()
	if ok {
		// Someone created or restored it while we were fetching.
		return existing, true
	}

	if s.OnRestore != nil {
		s.OnRestore(id)
	}
	return lob, true
}

func (s *LobbyStore) fetch(ctx context.Context, id string) *Lobby {
	log := s.logger.WithFields(logrus.Fields{"lobby_id": id})

	raw, err := s.durable.Get(ctx, Key(id))
	if err != nil {
		log.Warnf("lobby load failed: %v", err)
		return nil
	}
	if raw == nil {
		return nil
	}

	var stored models.StoredLobby
	if err := json.Unmarshal(raw, &stored); err != nil {
		log.Warnf("discarding malformed stored lobby: %v", err)
		return nil
	}
	lob := FromStored(stored)
	if lob.ID != id || !lob.HasParticipant(lob.HostID) {
		log.Warn("discarding stored lobby with inconsistent id or host")
		return nil
	}
	for _, p := range stored.Participants {
		if p.Vote != nil && !p.Vote.Valid() {
			log.WithFields(logrus.Fields{"client_id": p.ClientID}).Warnf("discarding stored lobby with off-deck vote %q", string(*p.Vote))
			return nil
		}
	}
	return lob
}

// Delete drops the lobby from memory and from the backend.
func (s *LobbyStore) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.lobbies, id)
	s.mu.Unlock()

	if s.durable == nil {
		return
	}
	if err := s.durable.Del(ctx, Key(id)); err != nil {
		s.logger.WithFields(logrus.Fields{"lobby_id": id}).Warnf("lobby delete failed: %v", err)
	}
}
