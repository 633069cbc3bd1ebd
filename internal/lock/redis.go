package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis holds keys with SET NX and a TTL so a crashed holder cannot
// block a campaign forever. Release only deletes a key it still owns.
type Redis struct {
	Client redis.UniversalClient
	TTL    time.Duration
	Prefix string
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{Client: client, TTL: ttl, Prefix: "mailout:lock:"}
}

func (r *Redis) Acquire(ctx context.Context, key string) (Lease, error) {
	full := r.Prefix + key
	token := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, full, token, r.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", full, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &redisLease{client: r.Client, key: full, token: token}, nil
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}
