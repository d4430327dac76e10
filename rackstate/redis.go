package rackstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix keeps the read model apart from racklock.KeyPrefix so
// FlushAll never touches migration locks.
const DefaultPrefix = "rackcore:state:"

// RedisStore keeps rack summaries under a key prefix:
//
//	<prefix>rack:<id>:meta   JSON RackMeta
//	<prefix>rack:<id>:usage  JSON Usage
//	<prefix>rack:<id>:count  item count
//	<prefix>racks            set of rack ids
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: DefaultPrefix}
}

// WithPrefix returns a store sharing the client but scoped to another prefix.
// The prefix must not cover racklock.KeyPrefix.
func (s *RedisStore) WithPrefix(prefix string) *RedisStore {
	return &RedisStore{client: s.client, prefix: prefix}
}

func (s *RedisStore) key(rackID int64, field string) string {
	return fmt.Sprintf("%srack:%d:%s", s.prefix, rackID, field)
}

func (s *RedisStore) setKey() string { return s.prefix + "racks" }

func (s *RedisStore) UpdateRackMeta(ctx context.Context, meta *RackMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(meta.RackID, "meta"), data, 0)
	pipe.SAdd(ctx, s.setKey(), meta.RackID)
	_, err = pipe.Exec(ctx)
	return err
}

// GetRackMeta returns nil, nil when the rack is not cached.
func (s *RedisStore) GetRackMeta(ctx context.Context, rackID int64) (*RackMeta, error) {
	data, err := s.client.Get(ctx, s.key(rackID, "meta")).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta RackMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *RedisStore) SetUsage(ctx context.Context, rackID int64, u *Usage, count int) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(rackID, "usage"), data, 0)
	pipe.Set(ctx, s.key(rackID, "count"), count, 0)
	_, err = pipe.Exec(ctx)
	return err
}

// GetUsage returns nil usage when nothing is cached yet.
func (s *RedisStore) GetUsage(ctx context.Context, rackID int64) (*Usage, int, error) {
	data, err := s.client.Get(ctx, s.key(rackID, "usage")).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	var u Usage
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, 0, err
	}
	count, err := s.client.Get(ctx, s.key(rackID, "count")).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, err
	}
	return &u, count, nil
}

func (s *RedisStore) GetAllRackIDs(ctx context.Context) ([]int64, error) {
	members, err := s.client.SMembers(ctx, s.setKey()).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *RedisStore) RemoveRack(ctx context.Context, rackID int64) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(rackID, "meta"), s.key(rackID, "usage"), s.key(rackID, "count"))
	pipe.SRem(ctx, s.setKey(), rackID)
	_, err := pipe.Exec(ctx)
	return err
}

// FlushAll deletes every key under the store's prefix.
func (s *RedisStore) FlushAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
