// internal/lobby/registry.go
package lobby

// Binding is what a live transport connection represents.
type Binding struct {
	LobbyID  string
	ClientID string
}

// Registry maps connection ids to bindings and counts live connections per lobby.
// It is not safe for concurrent use; the Manager guards it with its own lock.
type Registry struct {
	conns   map[string]Binding
	perRoom map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		conns:   make(map[string]Binding),
		perRoom: make(map[string]int),
	}
}

// Bind associates connID with b. It returns the lobby the connection was bound to
// before, if that was a different lobby.
func (r *Registry) Bind(connID string, b Binding) (previousLobby string) {
	if old, ok := r.conns[connID]; ok {
		if old.LobbyID == b.LobbyID {
			r.conns[connID] = b
			return ""
		}
		r.release(old.LobbyID)
		previousLobby = old.LobbyID
	}
	r.conns[connID] = b
	r.perRoom[b.LobbyID]++
	return previousLobby
}

// Unbind removes the connection and returns what it was bound to.
func (r *Registry) Unbind(connID string) (Binding, bool) {
	b, ok := r.conns[connID]
	if !ok {
		return Binding{}, false
	}
	delete(r.conns, connID)
	r.release(b.LobbyID)
	return b, true
}

// Lookup returns the binding of connID.
func (r *Registry) Lookup(connID string) (Binding, bool) {
	b, ok := r.conns[connID]
	return b, ok
}

// HasLobby reports whether any connection is still bound to lobbyID.
func (r *Registry) HasLobby(lobbyID string) bool {
	return r.perRoom[lobbyID] > 0
}

// Len is the number of bound connections.
func (r *Registry) Len() int {
	return len(r.conns)
}

func (r *Registry) release(lobbyID string) {
	if r.perRoom[lobbyID] <= 1 {
		delete(r.perRoom, lobbyID)
		return
	}
	r.perRoom[lobbyID]--
}
