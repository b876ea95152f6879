// internal/models/participant.go
package models

// ParticipantInfo is one member of a lobby as seen on the wire and in storage.
// Vote is nil while the participant has not picked a card.
type ParticipantInfo struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
	Vote     *Card  `json:"vote,omitempty"`
	IsAdmin  bool   `json:"isAdmin"`
}
