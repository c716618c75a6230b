package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const onlineKey = "riseup:presence"

// RedisStore keeps presence in a sorted set scored by last-seen unix time.
// Entries older than the retention window are trimmed on every write.
type RedisStore struct {
	client    *redis.Client
	key       string
	retention time.Duration
}

func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		key:       onlineKey,
		retention: retention,
	}
}

// NewRedisClient dials Redis and pings it once so a bad address fails at startup.
func NewRedisClient(ctx context.Context, addr string, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return client, nil
}

func (store *RedisStore) Touch(ctx context.Context, userID string, at time.Time) error {
	pipe := store.client.TxPipeline()
	pipe.ZAdd(ctx, store.key, redis.Z{Score: float64(at.Unix()), Member: userID})
	pipe.ZRemRangeByScore(ctx, store.key, "-inf", "("+strconv.FormatInt(at.Add(-store.retention).Unix(), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("touching presence: %w", err)
	}
	return nil
}

// Online returns users seen at or after since, most recent first.
func (store *RedisStore) Online(ctx context.Context, since time.Time) ([]string, error) {
	ids, err := store.client.ZRevRangeByScore(ctx, store.key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.Unix(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("listing online users: %w", err)
	}
	return ids, nil
}
