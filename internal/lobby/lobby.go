// internal/lobby/lobby.go
package lobby

import (
	"strings"

	"github.com/jason-s-yu/planpoker/internal/models"
)

// DefaultName is used when a participant joins without a usable display name.
const DefaultName = "Anonymous"

// Lobby is the authoritative in-memory state of one voting session.
//
// A Lobby does no locking of its own. The Manager serializes every access, so
// methods here are plain state transitions that can be unit tested directly.
type Lobby struct {
	ID         string
	HostID     string
	IsRevealed bool

	// Participants maps clientID -> participant. The host is never removed.
	Participants map[string]*models.ParticipantInfo

	// order keeps join order so snapshots list participants deterministically.
	order []string
}

// NormalizeName trims name and falls back to DefaultName when nothing is left.
func NormalizeName(name string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return DefaultName
}

// New creates a lobby whose only participant is the admin host.
func New(id, hostID, hostName string) *Lobby {
	lob := &Lobby{
		ID:           id,
		HostID:       hostID,
		Participants: make(map[string]*models.ParticipantInfo),
	}
	lob.add(&models.ParticipantInfo{
		ClientID: hostID,
		Name:     NormalizeName(hostName),
		IsAdmin:  true,
	})
	return lob
}

func (lob *Lobby) add(p *models.ParticipantInfo) {
	if _, exists := lob.Participants[p.ClientID]; !exists {
		lob.order = append(lob.order, p.ClientID)
	}
	lob.Participants[p.ClientID] = p
}

// HasParticipant reports whether clientID is a member of the lobby.
func (lob *Lobby) HasParticipant(clientID string) bool {
	_, ok := lob.Participants[clientID]
	return ok
}

// Join adds a participant or renames a returning one.
//
// If existingID names a current participant, that participant's name is updated
// in place and added is false. Otherwise newID supplies a fresh id and a non-admin
// participant is appended.
func (lob *Lobby) Join(name, existingID string, newID func() string) (clientID string, added bool) {
	displayName := NormalizeName(name)
	if existingID != "" {
		if p, ok := lob.Participants[existingID]; ok {
			p.Name = displayName
			return existingID, false
		}
	}

	clientID = newID()
	lob.add(&models.ParticipantInfo{
		ClientID: clientID,
		Name:     displayName,
	})
	return clientID, true
}

// Vote sets (or with a nil card, clears) the vote of clientID. Votes may change
// after reveal.
func (lob *Lobby) Vote(clientID string, card *models.Card) error {
	p, ok := lob.Participants[clientID]
	if !ok {
		return ErrNotParticipant
	}
	if card != nil && !card.Valid() {
		return ErrInvalidCard
	}
	if card == nil {
		p.Vote = nil
		return nil
	}
	c := *card
	p.Vote = &c
	return nil
}

// Reveal exposes all votes. Only the host may reveal; revealing twice returns
// ErrAlreadyRevealed, which callers treat as success without side effects.
func (lob *Lobby) Reveal(clientID string) error {
	if clientID == "" || clientID != lob.HostID {
		return ErrNotHostReveal
	}
	if lob.IsRevealed {
		return ErrAlreadyRevealed
	}
	lob.IsRevealed = true
	return nil
}

// Reset clears every vote and hides them again. Only the host may reset.
func (lob *Lobby) Reset(clientID string) error {
	if clientID == "" || clientID != lob.HostID {
		return ErrNotHostReset
	}
	for _, p := range lob.Participants {
		p.Vote = nil
	}
	lob.IsRevealed = false
	return nil
}

// ParticipantList copies the participants in join order.
func (lob *Lobby) ParticipantList() []models.ParticipantInfo {
	list := make([]models.ParticipantInfo, 0, len(lob.order))
	for _, id := range lob.order {
		p, ok := lob.Participants[id]
		if !ok {
			continue
		}
		cp := *p
		if p.Vote != nil {
			v := *p.Vote
			cp.Vote = &v
		}
		list = append(list, cp)
	}
	return list
}

// Stored returns a deep copy suitable for serialization outside the manager lock.
func (lob *Lobby) Stored() models.StoredLobby {
	return models.StoredLobby{
		ID:           lob.ID,
		HostID:       lob.HostID,
		Participants: lob.ParticipantList(),
		IsRevealed:   lob.IsRevealed,
	}
}

// Snapshot builds the acknowledgement body for clientID (empty for sync).
func (lob *Lobby) Snapshot(clientID string) *models.LobbySnapshot {
	return &models.LobbySnapshot{
		LobbyID:      lob.ID,
		HostID:       lob.HostID,
		ClientID:     clientID,
		Participants: lob.ParticipantList(),
		IsRevealed:   lob.IsRevealed,
	}
}

// FromStored rebuilds a Lobby from its stored form. Duplicate client ids keep the last entry.
func FromStored(stored models.StoredLobby) *Lobby {
	lob := &Lobby{
		ID:           stored.ID,
		HostID:       stored.HostID,
		IsRevealed:   stored.IsRevealed,
		Participants: make(map[string]*models.ParticipantInfo, len(stored.Participants)),
	}
	for i := range stored.Participants {
		p := stored.Participants[i]
		lob.add(&p)
	}
	return lob
}
