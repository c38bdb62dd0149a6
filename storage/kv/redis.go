package kv

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mothercare/core/session"
)

const RedisPrefix = "mothercare:session:"

// Redis keeps the entries of a namespace as the fields of one hash.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ session.KV = (*Redis)(nil)

func NewRedis(rdb redis.UniversalClient) *Redis {
	return &Redis{rdb: rdb, prefix: RedisPrefix}
}

func (r *Redis) key(ns string) string {
	return r.prefix + HashNamespace(ns)
}

func (r *Redis) Get(ctx context.Context, ns string, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := r.rdb.HMGet(ctx, r.key(ns), keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "reading session hash")
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

// Set writes every field inside MULTI/EXEC.
func (r *Redis) Set(ctx context.Context, ns string, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(entries)*2)
	for k, v := range entries {
		values = append(values, k, v)
	}
	key := r.key(ns)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values...)
		pipe.Persist(ctx, key)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "writing session hash")
	}
	return nil
}

// Delete removes fields, or the whole hash when no key is given.
func (r *Redis) Delete(ctx context.Context, ns string, keys ...string) error {
	var err error
	if len(keys) == 0 {
		err = r.rdb.Del(ctx, r.key(ns)).Err()
	} else {
		err = r.rdb.HDel(ctx, r.key(ns), keys...).Err()
	}
	if err != nil {
		return errors.Wrap(err, "deleting session hash")
	}
	return nil
}

// Namespaces lists the stored sessions. Redis keeps no write time, so UpdatedAt is zero.
func (r *Redis) Namespaces(ctx context.Context) ([]NamespaceSummary, error) {
	var out []NamespaceSummary
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		user, err := r.rdb.HGet(ctx, key, session.KeyUser).Result()
		summary := NamespaceSummary{Namespace: strings.TrimPrefix(key, r.prefix)}
		switch {
		case err == nil:
			summary.User = null.StringFrom(user)
		case !errors.Is(err, redis.Nil):
			return nil, errors.Wrap(err, "reading session hash")
		}
		out = append(out, summary)
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "listing sessions")
	}
	return out, nil
}

func (r *Redis) DeleteHashed(ctx context.Context, hashed string) (int64, error) {
	n, err := r.rdb.Del(ctx, r.prefix+hashed).Result()
	if err != nil {
		return 0, errors.Wrap(err, "deleting session")
	}
	return n, nil
}
