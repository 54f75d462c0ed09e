package storage

import (
	"context"
	"time"

	"github.com/mapsign/mapsign"
	"github.com/mapsign/mapsign/internal/dcontext"
	"github.com/redis/go-redis/v9"
)

// templateLock is the advisory lock on one template of one owner: a field
// of the owner's lock hash, created with HSETNX and holding the creation
// time in milliseconds. The time is informational. Locks never expire, so
// an operation that dies while holding one leaves the template locked until
// the field is removed by hand.
type templateLock struct {
	client redis.UniversalClient
	key    string
	owner  string
	name   string
}

func newTemplateLock(client redis.UniversalClient, owner, name string) (*templateLock, error) {
	key, err := keyFor(templateLockHashKeySpec{owner: owner})
	if err != nil {
		return nil, err
	}

	return &templateLock{
		client: client,
		key:    key,
		owner:  owner,
		name:   name,
	}, nil
}

// acquire makes a single attempt at creating the lock field. It reports
// true only if this call created it.
func (l *templateLock) acquire(ctx context.Context) (bool, error) {
	created, err := l.client.HSetNX(ctx, l.key, l.name, time.Now().UnixMilli()).Result()
	if err != nil {
		return false, storeError("HSETNX", err)
	}
	return created, nil
}

// release deletes the lock field, reporting whether it was present.
func (l *templateLock) release(ctx context.Context) (bool, error) {
	removed, err := l.client.HDel(ctx, l.key, l.name).Result()
	if err != nil {
		return false, storeError("HDEL", err)
	}
	return removed > 0, nil
}

// lock acquires the lock or fails with ErrTemplateLocked. The returned
// unlock func releases it on a detached context; release anomalies are
// logged and never change the outcome of the locked operation.
func (l *templateLock) lock(ctx context.Context) (unlock func(), err error) {
	acquired, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, mapsign.ErrTemplateLocked{Owner: l.owner, Name: l.name}
	}

	return func() {
		ctx := dcontext.DetachedContext(ctx)
		removed, err := l.release(ctx)
		switch {
		case err != nil:
			dcontext.GetLogger(ctx).Errorf("error removing lock on template %q of user %q: %v", l.name, l.owner, err)
		case !removed:
			dcontext.GetLogger(ctx).Errorf("lock on template %q of user %q externally removed", l.name, l.owner)
		}
	}, nil
}
