// internal/events/bus.go
package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind names an internal notification.
type Kind string

const (
	LobbyCreated Kind = "lobby:created"
	LobbyJoined  Kind = "lobby:joined"
)

// Event is an internal notification. It never leaves the process.
type Event struct {
	Kind      Kind
	LobbyID   string
	Timestamp time.Time
}

// Handler consumes one event. Handlers run on the bus goroutine, one at a time.
type Handler func(ctx context.Context, ev Event)

// DefaultBuffer is the queue depth used when NewBus gets a non-positive size.
const DefaultBuffer = 256

// Bus is a buffered in-process queue between the lobby protocol and auxiliary
// consumers. Publish never blocks: when the queue is full the event is dropped
// and logged, so a slow or failing consumer cannot hold up a protocol response.
type Bus struct {
	queue  chan Event
	logger *logrus.Logger

	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

func NewBus(buffer int, logger *logrus.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		queue:    make(chan Event, buffer),
		logger:   logger,
		handlers: make(map[Kind][]Handler),
	}
}

// Subscribe registers h for events of kind k.
func (b *Bus) Subscribe(k Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[k] = append(b.handlers[k], h)
}

// Publish enqueues ev without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case b.queue <- ev:
	default:
		b.logger.WithFields(logrus.Fields{
			"event":    string(ev.Kind),
			"lobby_id": ev.LobbyID,
		}).Warn("event bus full, dropping event")
	}
}

// Run dispatches queued events until ctx is done.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.queue:
			b.dispatch(ctx, ev)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, ev Event) {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[ev.Kind]...)
	b.mu.RUnlock()

	for _, h := range hs {
		b.safeCall(ctx, h, ev)
	}
}

func (b *Bus) safeCall(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{"event": string(ev.Kind)}).Errorf("event handler panicked: %v", r)
		}
	}()
	h(ctx, ev)
}
