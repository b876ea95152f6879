package cache

import (
	"context"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb), mr
}

func TestStoreGetMissingKey(t *testing.T) {
	s, _ := newTestStore(t)
	data, err := s.Get(context.Background(), "lobby:nope")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestStoreSetGetWithTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "lobby:abc", []byte(`{"id":"abc"}`), time.Hour))
	data, err := s.Get(ctx, "lobby:abc")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"abc"}`, string(data))
	assert.Equal(t, time.Hour, mr.TTL("lobby:abc"))

	mr.FastForward(2 * time.Hour)
	data, err = s.Get(ctx, "lobby:abc")
	require.NoError(t, err)
	assert.Nil(t, data, "key should have expired")
}

func TestStoreDel(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "lobby:abc", []byte("x"), 0))
	require.NoError(t, s.Del(ctx, "lobby:abc"))
	assert.False(t, mr.Exists("lobby:abc"))

	// Deleting a missing key is fine.
	require.NoError(t, s.Del(ctx, "lobby:abc"))
}

func TestStoreIncr(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Incr(ctx, "stats:total_lobbies"))
	require.NoError(t, s.Incr(ctx, "stats:total_lobbies"))
	v, err := mr.Get("stats:total_lobbies")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestStoreErrorsWhenBackendDown(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	_, err := s.Get(context.Background(), "lobby:abc")
	assert.Error(t, err)
	assert.Error(t, s.Incr(context.Background(), "stats:total_joins"))
}

func TestConnectUnreachableStillReturnsClient(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rdb := Connect(context.Background(), Options{Host: "127.0.0.1", Port: 1}, logger)
	require.NotNil(t, rdb)
	_ = rdb.Close()
}

func TestConnectPingsMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rdb := Connect(context.Background(), Options{Host: mr.Host(), Port: port}, logger)
	defer rdb.Close()
	require.NoError(t, rdb.Ping(context.Background()).Err())
}
