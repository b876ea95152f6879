package lobby

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expiries struct {
	mu  sync.Mutex
	ids []string
}

func (e *expiries) record(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, id)
}

func (e *expiries) get() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ids...)
}

func waitForTimers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func TestRemovalFiresAfterGrace(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var got expiries
	s := NewRemovalScheduler(clock, time.Minute, got.record)

	s.Arm("a")
	assert.True(t, s.Pending("a"))
	waitForTimers(t, clock, 1)

	clock.Advance(59 * time.Second)
	assert.Empty(t, got.get())

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return len(got.get()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"a"}, got.get())
	assert.False(t, s.Pending("a"))
}

func TestRemovalCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var got expiries
	s := NewRemovalScheduler(clock, time.Minute, got.record)

	assert.False(t, s.Cancel("a"), "cancelling nothing is a no-op")

	s.Arm("a")
	assert.True(t, s.Cancel("a"))
	assert.False(t, s.Pending("a"))

	clock.Advance(2 * time.Minute)
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, got.get())
}

func TestRemovalRearmRestartsWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var got expiries
	s := NewRemovalScheduler(clock, time.Minute, got.record)

	s.Arm("a")
	clock.Advance(40 * time.Second)
	s.Arm("a")
	waitForTimers(t, clock, 1)

	clock.Advance(40 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, got.get(), "first timer was replaced")

	clock.Advance(20 * time.Second)
	require.Eventually(t, func() bool { return len(got.get()) == 1 }, time.Second, time.Millisecond)
}

func TestRemovalStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var got expiries
	s := NewRemovalScheduler(clock, time.Minute, got.record)

	s.Arm("a")
	s.Arm("b")
	s.Stop()
	assert.False(t, s.Pending("a"))
	assert.False(t, s.Pending("b"))

	clock.Advance(time.Hour)
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, got.get())
}

func TestRemovalDefaults(t *testing.T) {
	s := NewRemovalScheduler(nil, 0, nil)
	assert.Equal(t, DefaultGracePeriod, s.grace)
	assert.NotNil(t, s.clock)
}
