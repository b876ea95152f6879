// internal/models/lobby.go
package models

// StoredLobby is the serializable projection of a lobby. It is the value kept in
// Redis under "lobby:<id>" and the body of every full-state acknowledgement.
type StoredLobby struct {
	ID           string            `json:"id"`
	HostID       string            `json:"hostId"`
	Participants []ParticipantInfo `json:"participants"`
	IsRevealed   bool              `json:"isRevealed"`
}

// LobbySnapshot is the full lobby state returned to a client after create, join and sync.
// ClientID is the caller's own participant id and is omitted for sync.
type LobbySnapshot struct {
	LobbyID      string            `json:"lobbyId"`
	HostID       string            `json:"hostId"`
	ClientID     string            `json:"clientId,omitempty"`
	Participants []ParticipantInfo `json:"participants"`
	IsRevealed   bool              `json:"isRevealed"`
}
