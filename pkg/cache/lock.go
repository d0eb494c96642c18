package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out short-lived cross-instance locks so only one replica
// runs a scheduled sweep at a time. A nil *Locker grants every lock.
type Locker struct {
	rdb redis.UniversalClient
}

func NewLocker(rdb redis.UniversalClient) *Locker {
	if rdb == nil {
		return nil
	}
	return &Locker{rdb: rdb}
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Acquire returns ok=false when another holder owns key. The returned
// release func is always safe to call.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	if l == nil {
		return func() {}, true, nil
	}
	token := uuid.NewString()
	ok, err = l.rdb.SetNX(ctx, "lock:"+key, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		releaseScript.Run(context.Background(), l.rdb, []string{"lock:" + key}, token)
	}, true, nil
}
