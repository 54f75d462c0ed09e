package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// newTestPool starts an in-process redis and returns a client for it. Both
// are torn down with the test. The client has a single connection so that
// an operation holding one connection while asking for another stalls.
func newTestPool(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	pool := redis.NewClient(&redis.Options{
		Addr:        mr.Addr(),
		PoolSize:    1,
		PoolTimeout: time.Second,
	})
	t.Cleanup(func() {
		pool.Close()
	})

	return pool, mr
}

// hashFields lists the fields of the hash at key, none if it is absent.
func hashFields(mr *miniredis.Miniredis, key string) []string {
	fields, err := mr.HKeys(key)
	if err != nil {
		return nil
	}
	return fields
}

func newTestStores(client redis.UniversalClient) (*templateStore, *signatureStore) {
	signatures := &signatureStore{client: client}
	return &templateStore{client: client, signatures: signatures}, signatures
}

type failingSignatureService struct {
	*signatureStore
	err error
}

func (f failingSignatureService) DelCertificate(ctx context.Context, signer, id string) error {
	return f.err
}
