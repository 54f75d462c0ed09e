package checks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mapsign/mapsign/health"
	"github.com/redis/go-redis/v9"
)

// FileChecker checks the existence of a file and returns an error
// if the file exists, taking the application out of rotation.
func FileChecker(f string) health.Checker {
	return health.CheckFunc(func(context.Context) error {
		absoluteFilePath := f
		if _, err := os.Stat(absoluteFilePath); err == nil {
			return errors.New("file exists")
		}
		return nil
	})
}

// Pinger is the part of a redis client used by RedisChecker.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker sends a PING to redis and fails unless it is answered within
// timeout. A zero timeout leaves the deadline to the client.
func RedisChecker(client Pinger, timeout time.Duration) health.Checker {
	return health.CheckFunc(func(ctx context.Context) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	})
}
