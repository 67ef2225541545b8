package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ RateStore = (*RedisStore)(nil)

// RedisStore keeps rates in Redis hashes and relies on EXPIREAT for TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a RedisStore. Keys are namespaced by table.
func NewRedisStore(client *redis.Client, table string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: table,
		now:    time.Now,
	}
}

func (s *RedisStore) key(from, to string) string {
	return fmt.Sprintf("%s:{%s:%s}", s.prefix, from, to)
}

// Lookup reads the rate hash for the pair.
func (s *RedisStore) Lookup(ctx context.Context, from, to string) (RateEntry, bool, error) {
	key := s.key(from, to)
	vals, err := s.client.HMGet(ctx, key, "rate", "expires_at").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return RateEntry{}, false, nil
		}
		return RateEntry{}, false, fmt.Errorf("%w: hmget %s: %v", ErrStore, key, err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return RateEntry{}, false, nil
	}

	rateStr, ok1 := vals[0].(string)
	expStr, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return RateEntry{}, false, nil
	}
	rate, err := strconv.ParseFloat(rateStr, 64)
	if err != nil {
		return RateEntry{}, false, fmt.Errorf("%w: corrupt rate in %s: %v", ErrStore, key, err)
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return RateEntry{}, false, fmt.Errorf("%w: corrupt expires_at in %s: %v", ErrStore, key, err)
	}

	entry := RateEntry{From: from, To: to, Rate: rate, ExpiresAt: time.Unix(exp, 0).UTC()}
	if entry.Expired(s.now()) {
		return RateEntry{}, false, nil
	}
	return entry, true, nil
}

// Upsert writes the pair and its expiry in a single transaction.
func (s *RedisStore) Upsert(ctx context.Context, from, to string, rate float64, ttlHours int) error {
	key := s.key(from, to)
	expiresAt := ExpiresAt(s.now(), ttlHours)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"from_currency", from,
		"to_currency", to,
		"rate", strconv.FormatFloat(rate, 'f', -1, 64),
		"expires_at", strconv.FormatInt(expiresAt.Unix(), 10),
	)
	pipe.ExpireAt(ctx, key, expiresAt)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStore, key, err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrStore, err)
	}
	return nil
}
