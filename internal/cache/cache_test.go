package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketLens/internal/metrics"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestMemory_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory()
	m.now = clock.now

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), 0))

	v, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	clock.t = clock.t.Add(2 * time.Minute)
	_, ok, _ = m.Get(ctx, "a")
	assert.False(t, ok)

	_, ok, _ = m.Get(ctx, "b")
	assert.True(t, ok, "zero ttl never expires")
}

func TestMemory_Purge(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := NewMemory()
	m.now = clock.now

	_ = m.Set(ctx, "x", []byte("x"), time.Second)
	_ = m.Set(ctx, "y", []byte("y"), time.Hour)
	clock.t = clock.t.Add(time.Minute)

	n, err := m.Purge(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	src := []byte("abc")
	_ = m.Set(ctx, "k", src, 0)
	src[0] = 'z'

	v, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(v))
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	type payload struct {
		Ticker string  `json:"ticker"`
		Price  float64 `json:"price"`
	}

	require.NoError(t, SetJSON(ctx, m, "p", payload{"SPY", 512.5}, time.Minute))

	var got payload
	ok, err := GetJSON(ctx, m, "p", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, payload{"SPY", 512.5}, got)

	ok, err = GetJSON(ctx, m, "missing", &got)
	assert.NoError(t, err)
	assert.False(t, ok)

	_ = m.Set(ctx, "bad", []byte("{"), 0)
	_, err = GetJSON(ctx, m, "bad", &got)
	assert.Error(t, err)
}

func TestInstrumented_CountsResults(t *testing.T) {
	ctx := context.Background()
	reg := metrics.New()
	c := WithMetrics(NewMemory(), "series", reg)

	_ = c.Set(ctx, "k", []byte("v"), 0)
	_, _, _ = c.Get(ctx, "k")
	_, _, _ = c.Get(ctx, "nope")

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheRequests.WithLabelValues("series", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheRequests.WithLabelValues("series", "miss")))
}

func TestRedis_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisWithClient(db, "ml:")
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		mock.ExpectGet("ml:SPY").SetVal("payload")
		v, ok, err := c.Get(ctx, "SPY")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "payload", string(v))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss", func(t *testing.T) {
		mock.ExpectGet("ml:QQQ").RedisNil()
		v, ok, err := c.Get(ctx, "QQQ")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error", func(t *testing.T) {
		mock.ExpectGet("ml:ERR").SetErr(redis.TxFailedErr)
		_, _, err := c.Get(ctx, "ERR")
		assert.True(t, errors.Is(err, redis.TxFailedErr))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedis_SetDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisWithClient(db, "ml:")
	ctx := context.Background()
	value := []byte("payload")

	mock.ExpectSet("ml:SPY", value, time.Minute).SetVal("OK")
	require.NoError(t, c.Set(ctx, "SPY", value, time.Minute))

	mock.ExpectDel("ml:SPY").SetVal(1)
	require.NoError(t, c.Delete(ctx, "SPY"))

	mock.ExpectSet("ml:BAD", value, time.Minute).SetErr(redis.TxFailedErr)
	assert.Error(t, c.Set(ctx, "BAD", value, time.Minute))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_RoundTripAndPurge(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer s.Close()

	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s.now = clock.now

	require.NoError(t, s.Set(ctx, "short", []byte("s"), time.Minute))
	require.NoError(t, s.Set(ctx, "long", []byte("l"), time.Hour))
	require.NoError(t, s.Set(ctx, "long", []byte("l2"), time.Hour))

	v, ok, err := s.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "l2", string(v))

	clock.t = clock.t.Add(10 * time.Minute)
	_, ok, err = s.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, s.Delete(ctx, "long"))
	_, ok, _ = s.Get(ctx, "long")
	assert.False(t, ok)
}
