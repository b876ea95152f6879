// internal/lobby/ids.go
package lobby

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// lobbyIDBytes gives 12 hex characters, the same width the web client links use.
const lobbyIDBytes = 6

// newLobbyToken is swapped out in tests to force collisions.
var newLobbyToken = func() string {
	b := make([]byte, lobbyIDBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails if the OS entropy source is broken.
		panic(err)
	}
	return hex.EncodeToString(b)
}

// GenerateLobbyID returns a random hex token for which exists reports false.
// The uniqueness check only covers lobbies known to this process.
func GenerateLobbyID(exists func(id string) bool) string {
	for {
		id := newLobbyToken()
		if exists == nil || !exists(id) {
			return id
		}
	}
}

// GenerateClientID returns a random participant id. No collision check is made.
func GenerateClientID() string {
	return uuid.NewString()
}
