package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// BalanceCache is a read-through cache of wallet balances. The store stays
// authoritative. Entries carry the wallet version they were read at and an
// entry is only replaced by one with a higher version, so a reader that
// loaded an old row cannot overwrite what a later commit stored.
// A nil *BalanceCache is valid and caches nothing.
type BalanceCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewBalanceCache(rdb redis.UniversalClient, ttl time.Duration) *BalanceCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &BalanceCache{rdb: rdb, ttl: ttl}
}

func balanceKey(userID string) string {
	return fmt.Sprintf("balance:user:%s", userID)
}

// setIfNewer applies supersedes atomically. ARGV: version, entry, ttl in ms.
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local v = tonumber(string.match(cur, '^(%d+):'))
	if v and v >= tonumber(ARGV[1]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func encodeEntry(version int64, balance decimal.Decimal) string {
	return strconv.FormatInt(version, 10) + ":" + balance.StringFixed(2)
}

func decodeEntry(raw string) (int64, decimal.Decimal, bool) {
	v, b, ok := strings.Cut(raw, ":")
	if !ok {
		return 0, decimal.Zero, false
	}
	version, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, decimal.Zero, false
	}
	balance, err := decimal.NewFromString(b)
	if err != nil {
		return 0, decimal.Zero, false
	}
	return version, balance, true
}

// supersedes reports whether an entry at version may replace cached.
func supersedes(cached string, version int64) bool {
	v, _, ok := decodeEntry(cached)
	return !ok || version > v
}

func (c *BalanceCache) Get(ctx context.Context, userID string) (decimal.Decimal, bool) {
	if c == nil {
		return decimal.Zero, false
	}
	raw, err := c.rdb.Get(ctx, balanceKey(userID)).Result()
	if err != nil {
		return decimal.Zero, false
	}
	_, balance, ok := decodeEntry(raw)
	return balance, ok
}

// Set stores balance as of the given wallet version. It is a no-op when the
// cache already holds the same or a later version.
func (c *BalanceCache) Set(ctx context.Context, userID string, version int64, balance decimal.Decimal) error {
	if c == nil {
		return nil
	}
	return setIfNewer.Run(ctx, c.rdb, []string{balanceKey(userID)},
		version, encodeEntry(version, balance), c.ttl.Milliseconds()).Err()
}

func (c *BalanceCache) Invalidate(ctx context.Context, userID string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, balanceKey(userID)).Err()
}
