// internal/lobby/removal.go
package lobby

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultGracePeriod is how long a lobby may sit with no connections before removal.
const DefaultGracePeriod = 5 * time.Minute

type removalTimer struct {
	timer clockwork.Timer
}

// RemovalScheduler keeps at most one pending removal timer per lobby.
//
// Arming replaces (and stops) any earlier timer for the same lobby. When a timer
// fires, its handle is cleared first and then onExpire runs; onExpire is expected
// to re-check presence, since a client may have come back during the window.
type RemovalScheduler struct {
	mu     sync.Mutex
	timers map[string]*removalTimer

	clock    clockwork.Clock
	grace    time.Duration
	onExpire func(lobbyID string)
}

func NewRemovalScheduler(clock clockwork.Clock, grace time.Duration, onExpire func(lobbyID string)) *RemovalScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &RemovalScheduler{
		timers:   make(map[string]*removalTimer),
		clock:    clock,
		grace:    grace,
		onExpire: onExpire,
	}
}

// Arm (re)starts the grace window for lobbyID.
func (s *RemovalScheduler) Arm(lobbyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[lobbyID]; ok {
		old.timer.Stop()
	}
	rt := &removalTimer{}
	s.timers[lobbyID] = rt
	rt.timer = s.clock.AfterFunc(s.grace, func() {
		s.fire(lobbyID, rt)
	})
}

// Cancel stops the pending timer for lobbyID. Cancelling nothing is a no-op.
func (s *RemovalScheduler) Cancel(lobbyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.timers[lobbyID]
	if !ok {
		return false
	}
	rt.timer.Stop()
	delete(s.timers, lobbyID)
	return true
}

// Pending reports whether lobbyID has an armed timer.
func (s *RemovalScheduler) Pending(lobbyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[lobbyID]
	return ok
}

// Stop cancels every pending timer.
func (s *RemovalScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rt := range s.timers {
		rt.timer.Stop()
		delete(s.timers, id)
	}
}

func (s *RemovalScheduler) fire(lobbyID string, rt *removalTimer) {
	s.mu.Lock()
	if s.timers[lobbyID] != rt {
		// Replaced or cancelled after the timer had already fired.
		s.mu.Unlock()
		return
	}
	delete(s.timers, lobbyID)
	s.mu.Unlock()

	if s.onExpire != nil {
		s.onExpire(lobbyID)
	}
}
