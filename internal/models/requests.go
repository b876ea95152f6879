// internal/models/requests.go
package models

// Client -> server event names.
const (
	EventCreate = "lobby:create"
	EventJoin   = "lobby:join"
	EventExists = "lobby:exists"
	EventVote   = "lobby:vote"
	EventReveal = "lobby:reveal"
	EventReset  = "lobby:reset"
	EventSync   = "lobby:sync"
)

// Server -> client event names.
const (
	EventCreated           = "lobby:created"
	EventParticipantJoined = "lobby:participant-joined"
	EventVoted             = "lobby:voted"
	EventRevealed          = "lobby:revealed"
	EventResetDone         = "lobby:reset"
)

type CreateRequest struct {
	Name         string `json:"name,omitempty"`
	CaptchaToken string `json:"captchaToken,omitempty"`

	// RemoteIP is filled in by the transport, never by the client.
	RemoteIP string `json:"-"`
}

type JoinRequest struct {
	LobbyID  string `json:"lobbyId"`
	Name     string `json:"name,omitempty"`
	ClientID string `json:"clientId,omitempty"`
}

// LobbyRequest is the payload of exists, reveal and reset.
type LobbyRequest struct {
	LobbyID string `json:"lobbyId"`
}

// VoteRequest carries the chosen card. A nil Card (JSON null or absent) clears the vote.
type VoteRequest struct {
	LobbyID string `json:"lobbyId"`
	Card    *Card  `json:"card"`
}

type SyncRequest struct {
	LobbyID  string `json:"lobbyId"`
	ClientID string `json:"clientId,omitempty"`
}

type ParticipantJoinedEvent struct {
	LobbyID  string `json:"lobbyId"`
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
}

// VotedEvent is broadcast after every vote; Card is null when the vote was cleared.
type VotedEvent struct {
	LobbyID  string `json:"lobbyId"`
	ClientID string `json:"clientId"`
	Card     *Card  `json:"card"`
}

type RevealedEvent struct {
	LobbyID      string            `json:"lobbyId"`
	Participants []ParticipantInfo `json:"participants"`
}

type ResetEvent struct {
	LobbyID string `json:"lobbyId"`
}
