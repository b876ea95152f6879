package lobby

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryBindUnbind(t *testing.T) {
	r := NewRegistry()

	assert.Empty(t, r.Bind("c1", Binding{LobbyID: "a", ClientID: "p1"}))
	assert.Empty(t, r.Bind("c2", Binding{LobbyID: "a", ClientID: "p2"}))
	assert.True(t, r.HasLobby("a"))
	assert.Equal(t, 2, r.Len())

	b, ok := r.Unbind("c1")
	assert.True(t, ok)
	assert.Equal(t, "p1", b.ClientID)
	assert.True(t, r.HasLobby("a"))

	_, ok = r.Unbind("c1")
	assert.False(t, ok, "second unbind is a no-op")

	r.Unbind("c2")
	assert.False(t, r.HasLobby("a"))
	assert.Zero(t, r.Len())
}

func TestRegistryRebindSameLobby(t *testing.T) {
	r := NewRegistry()
	r.Bind("c1", Binding{LobbyID: "a", ClientID: "p1"})
	assert.Empty(t, r.Bind("c1", Binding{LobbyID: "a", ClientID: "p9"}))

	b, _ := r.Lookup("c1")
	assert.Equal(t, "p9", b.ClientID)

	r.Unbind("c1")
	assert.False(t, r.HasLobby("a"), "rebinding must not double count")
}

func TestRegistryRebindOtherLobby(t *testing.T) {
	r := NewRegistry()
	r.Bind("c1", Binding{LobbyID: "a", ClientID: "p1"})

	prev := r.Bind("c1", Binding{LobbyID: "b", ClientID: "q1"})
	assert.Equal(t, "a", prev)
	assert.False(t, r.HasLobby("a"))
	assert.True(t, r.HasLobby("b"))
}
