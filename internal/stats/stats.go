// internal/stats/stats.go
package stats

import (
	"context"
	"time"

	"github.com/jason-s-yu/planpoker/internal/events"
	"github.com/sirupsen/logrus"
)

// Counter keys in the backing store.
const (
	KeyTotalLobbies = "stats:total_lobbies"
	KeyTotalJoins   = "stats:total_joins"
)

// Counter increments a named integer.
type Counter interface {
	Incr(ctx context.Context, key string) error
}

// Sink turns lobby events into usage counters. Failures are logged and dropped;
// statistics never affect a protocol response.
type Sink struct {
	counter Counter
	timeout time.Duration
	logger  *logrus.Logger
}

func NewSink(counter Counter, logger *logrus.Logger) *Sink {
	return &Sink{counter: counter, timeout: 2 * time.Second, logger: logger}
}

// Register subscribes the sink to the lobby events it counts.
func (s *Sink) Register(bus *events.Bus) {
	bus.Subscribe(events.LobbyCreated, func(ctx context.Context, ev events.Event) {
		s.incr(ctx, KeyTotalLobbies, ev)
	})
	bus.Subscribe(events.LobbyJoined, func(ctx context.Context, ev events.Event) {
		s.incr(ctx, KeyTotalJoins, ev)
	})
}

func (s *Sink) incr(ctx context.Context, key string, ev events.Event) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.counter.Incr(ctx, key); err != nil {
		s.logger.WithFields(logrus.Fields{
			"key":      key,
			"lobby_id": ev.LobbyID,
		}).Warnf("stats update failed: %v", err)
	}
}
