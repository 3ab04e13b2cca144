package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

const (
	maxTxRetries  = 4
	txRetryPeriod = 5 * time.Millisecond
)

// RedisSnapshotStore keeps one binary snapshot record per flow under
// prefix:flowID, expiring with the configured TTL.
type RedisSnapshotStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisSnapshotStore(redisClient redis.UniversalClient, prefix string) *RedisSnapshotStore {
	if prefix == "" {
		prefix = "wfs"
	}
	return &RedisSnapshotStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisSnapshotStore) key(flowID string) string {
	return s.prefix + ":" + flowID
}

func (s *RedisSnapshotStore) Load(ctx context.Context, flowID string) (*Snapshot, error) {
	data, err := s.redis.Get(ctx, s.key(flowID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}
	return decodeSnapshot(data)
}

// Save writes snap inside a WATCH/MULTI transaction so that two writers
// racing on the same revision cannot both succeed.
func (s *RedisSnapshotStore) Save(ctx context.Context, flowID string, snap *Snapshot, ttl time.Duration) error {
	encoded, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}

	backoff := retry.WithMaxRetries(maxTxRetries, retry.NewConstant(txRetryPeriod))

	key := s.key(flowID)
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			var existing *Snapshot
			data, err := tx.Get(ctx, key).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				existing, err = decodeSnapshot(data)
				if err != nil {
					return err
				}
			}

			if err := checkRevision(existing, snap); err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, ttl)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			return retry.RetryableError(err)
		}
		return err
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return ErrRevisionConflict
	case errors.Is(err, ErrRevisionConflict), errors.Is(err, ErrSnapshotCorrupt):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}
}

func (s *RedisSnapshotStore) Delete(ctx context.Context, flowID string) error {
	n, err := s.redis.Del(ctx, s.key(flowID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}
	if n == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}
