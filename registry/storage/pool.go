package storage

import (
	"github.com/mapsign/mapsign"
	"github.com/mapsign/mapsign/configuration"
	"github.com/redis/go-redis/v9"
)

// NewRedisPool returns a client for the configured redis instance. Its
// connection pool is sized from the pool section; zero values keep the
// client defaults. Stores issue every command on the client, so a
// connection is only held for the duration of one command or transaction.
func NewRedisPool(config configuration.Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:            config.Addr,
		Username:        config.Username,
		Password:        config.Password,
		DB:              config.DB,
		DialTimeout:     config.DialTimeout,
		ReadTimeout:     config.ReadTimeout,
		WriteTimeout:    config.WriteTimeout,
		PoolSize:        config.Pool.MaxActive,
		MaxIdleConns:    config.Pool.MaxIdle,
		ConnMaxIdleTime: config.Pool.IdleTimeout,
	})
}

// storeError wraps a redis error so callers can tell store failures from
// domain errors. redis.Nil must be handled before calling storeError.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	return mapsign.ErrStoreFailure{Op: op, Err: err}
}
