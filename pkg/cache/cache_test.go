package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilBalanceCacheIsInert(t *testing.T) {
	c := NewBalanceCache(nil, time.Minute)
	require.Nil(t, c)

	ctx := context.Background()
	assert.NoError(t, c.Set(ctx, "u1", 3, decimal.NewFromInt(10)))
	_, ok := c.Get(ctx, "u1")
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx, "u1"))
}

func TestNilLockerGrants(t *testing.T) {
	l := NewLocker(nil)
	release, ok, err := l.Acquire(context.Background(), "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestBalanceKey(t *testing.T) {
	assert.Equal(t, "balance:user:abc", balanceKey("abc"))
}

func TestBalanceEntryEncoding(t *testing.T) {
	raw := encodeEntry(7, decimal.RequireFromString("12.5"))
	assert.Equal(t, "7:12.50", raw)

	v, b, ok := decodeEntry(raw)
	require.True(t, ok)
	assert.Equal(t, int64(7), v)
	assert.True(t, b.Equal(decimal.RequireFromString("12.5")))

	for _, bad := range []string{"", "12.50", "x:1", "3:abc"} {
		_, _, ok := decodeEntry(bad)
		assert.False(t, ok, bad)
	}
}

func TestOnlyLaterVersionsReplaceCachedBalance(t *testing.T) {
	cached := encodeEntry(5, decimal.NewFromInt(40))
	assert.False(t, supersedes(cached, 4), "reader holding an older row")
	assert.False(t, supersedes(cached, 5))
	assert.True(t, supersedes(cached, 6))
	assert.True(t, supersedes("garbage", 1))
}
