package kv

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/mothercare/core"
	"github.com/trezcool/mothercare/core/session"
	"github.com/trezcool/mothercare/storage/database"
)

// Inspector is implemented by the durable backends, for operators.
type Inspector interface {
	Namespaces(ctx context.Context) ([]NamespaceSummary, error)
	DeleteHashed(ctx context.Context, hashed string) (int64, error)
}

var (
	_ Inspector = (*SQL)(nil)
	_ Inspector = (*Redis)(nil)
)

// Open returns the session backend selected by conf.Session.Backend, and the func that releases it.
// SQL backends are migrated on open.
func Open(ctx context.Context, conf *core.Config) (session.KV, func() error, error) {
	switch backend := conf.Session.Backend; {
	case backend == "" || backend == core.SessionBackendMemory:
		return session.NewMemoryKV(), func() error { return nil }, nil

	case database.IsSQL(backend):
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, err
		}
		if err = database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return NewSQL(db), db.Close, nil

	case backend == core.SessionBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     conf.Session.RedisAddr,
			Password: conf.Session.RedisPassword,
			DB:       conf.Session.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, errors.Wrap(err, "connecting to redis")
		}
		return NewRedis(rdb), rdb.Close, nil
	}
	return nil, nil, errors.Errorf("unknown session backend %q", conf.Session.Backend)
}
