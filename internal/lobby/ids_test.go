package lobby

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGenerateLobbyIDFormat(t *testing.T) {
	id := GenerateLobbyID(nil)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{12}$`), id)
}

func TestGenerateLobbyIDRetriesOnCollision(t *testing.T) {
	orig := newLobbyToken
	t.Cleanup(func() { newLobbyToken = orig })

	tokens := []string{"aaaaaaaaaaaa", "aaaaaaaaaaaa", "bbbbbbbbbbbb"}
	newLobbyToken = func() string {
		tok := tokens[0]
		tokens = tokens[1:]
		return tok
	}

	taken := map[string]bool{"aaaaaaaaaaaa": true}
	id := GenerateLobbyID(func(c string) bool { return taken[c] })
	assert.Equal(t, "bbbbbbbbbbbb", id)
	assert.Empty(t, tokens)
}

func TestGenerateClientID(t *testing.T) {
	a, b := GenerateClientID(), GenerateClientID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
