package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/mapsign/mapsign"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// checkTemplateStore runs the template registry contract against pool,
// which must point at an empty database.
func checkTemplateStore(t *testing.T, pool redis.UniversalClient) {
	t.Run("AddGet", func(t *testing.T) { checkTemplateAddGet(t, pool) })
	t.Run("AddTwice", func(t *testing.T) { checkTemplateAddTwice(t, pool) })
	t.Run("ConcurrentAdd", func(t *testing.T) { checkTemplateConcurrentAdd(t, pool) })
	t.Run("AddDelete", func(t *testing.T) { checkTemplateAddDelete(t, pool) })
}

// checkSignatureStore runs the signature store contract against pool,
// which must point at an empty database.
func checkSignatureStore(t *testing.T, pool redis.UniversalClient) {
	t.Run("TokenSignature", func(t *testing.T) { checkTokenSignature(t, pool) })
	t.Run("OpenSignature", func(t *testing.T) { checkOpenSignature(t, pool) })
	t.Run("TemplateCertificate", func(t *testing.T) { checkTemplateCertificate(t, pool) })
}

func testTemplate(name string) mapsign.Template {
	return mapsign.Template{
		Version: mapsign.TemplateVersion,
		Name:    name,
		Auth: map[string]any{
			"method":       "token",
			"valid_tokens": []any{"tok1", "tok2"},
			"name":         "ignored",
		},
		Layergroup: json.RawMessage(`{"layers":[{"type":"cartodb","options":{"sql":"select 1"}}]}`),
	}
}

func checkTemplateAddGet(t *testing.T, pool redis.UniversalClient) {
	ctx := context.Background()
	ts, _ := newTestStores(pool)

	tpl := testTemplate("first")
	tpl.AuthID = "caller-supplied"

	name, err := ts.Add(ctx, "alice", tpl)
	require.NoError(t, err)
	require.Equal(t, "first", name)

	authID, err := tpl.Certificate().ID()
	require.NoError(t, err)

	got, err := ts.Get(ctx, "alice", "first")
	require.NoError(t, err)
	require.Equal(t, mapsign.Template{
		Version: mapsign.TemplateVersion,
		Name:    "first",
		Auth: map[string]any{
			"method":       "token",
			"valid_tokens": []any{"tok1", "tok2"},
		},
		Layergroup: tpl.Layergroup,
		AuthID:     authID,
	}, got)

	// templates are scoped by owner
	_, err = ts.Get(ctx, "bob", "first")
	require.ErrorAs(t, err, new(mapsign.ErrTemplateUnknown))
}

func checkTemplateAddTwice(t *testing.T, pool redis.UniversalClient) {
	ctx := context.Background()
	ts, _ := newTestStores(pool)

	_, err := ts.Add(ctx, "alice", testTemplate("twice"))
	require.NoError(t, err)

	_, err = ts.Add(ctx, "alice", testTemplate("twice"))
	require.ErrorAs(t, err, new(mapsign.ErrTemplateExists))
	require.Regexp(t, "(?i)already exists", err.Error())

	// the failed add released its lock
	_, err = ts.Add(ctx, "alice", testTemplate("twice"))
	require.ErrorAs(t, err, new(mapsign.ErrTemplateExists))
}

func checkTemplateConcurrentAdd(t *testing.T, pool redis.UniversalClient) {
	ctx := context.Background()
	ts, _ := newTestStores(pool)

	const attempts = 8
	var (
		wg   sync.WaitGroup
		errs = make(chan error, attempts)
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ts.Add(ctx, "alice", testTemplate("racy"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, new(mapsign.ErrTemplateLocked)), errors.As(err, new(mapsign.ErrTemplateExists)):
		default:
			t.Fatalf("unexpected error adding template concurrently: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
}

func checkTemplateAddDelete(t *testing.T, pool redis.UniversalClient) {
	ctx := context.Background()
	ts, ss := newTestStores(pool)

	tpl := testTemplate("gone")
	_, err := ts.Add(ctx, "alice", tpl)
	require.NoError(t, err)

	stored, err := ts.Get(ctx, "alice", "gone")
	require.NoError(t, err)

	require.NoError(t, ts.Delete(ctx, "alice", "gone"))

	_, err = ts.Get(ctx, "alice", "gone")
	require.ErrorAs(t, err, new(mapsign.ErrTemplateUnknown))

	// the certificate went with the template
	err = ss.DelCertificate(ctx, "alice", stored.AuthID)
	require.ErrorAs(t, err, new(mapsign.ErrCertificateUnknown))

	err = ts.Delete(ctx, "alice", "gone")
	require.ErrorAs(t, err, new(mapsign.ErrTemplateUnknown))

	// no lock was left behind by either delete
	_, err = ts.Add(ctx, "alice", tpl)
	require.NoError(t, err)
}

func checkTokenSignature(t *testing.T, pool redis.UniversalClient) {
	ctx := context.Background()
	_, ss := newTestStores(pool)

	cert := mapsign.Certificate{
		"version":       "0.0.1",
		"layergroup_id": "map1",
		"auth": map[string]any{
			"method":       "token",
			"valid_tokens": []string{"tok1"},
		},
	}

	ok, err := ss.IsAuthorized(ctx, "alice", "map1", "tok1")
	require.NoError(t, err)
	require.False(t, ok)

	id, err := ss.AddSignature(ctx, "alice", "map1", cert)
	require.NoError(t, err)
	require.Equal(t, "f29ba82c3f7a831e13050d7f01fb3410", id)

	for credential, expected := range map[string]bool{
		"tok1": true,
		"tok2": false,
		"":     false,
	} {
		ok, err := ss.IsAuthorized(ctx, "alice", "map1", credential)
		require.NoError(t, err)
		require.Equal(t, expected, ok, "credential %q", credential)
	}

	// signatures are scoped by signer and resource
	ok, err = ss.IsAuthorized(ctx, "bob", "map1", "tok1")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = ss.IsAuthorized(ctx, "alice", "map2", "tok1")
	require.NoError(t, err)
	require.False(t, ok)

	// deleting the certificate revokes the signature
	require.NoError(t, ss.DelCertificate(ctx, "alice", id))
	ok, err = ss.IsAuthorized(ctx, "alice", "map1", "tok1")
	require.NoError(t, err)
	require.False(t, ok)
}

func checkOpenSignature(t *testing.T, pool redis.UniversalClient) {
	ctx := context.Background()
	_, ss := newTestStores(pool)

	_, err := ss.AddSignature(ctx, "alice", "open1", mapsign.Certificate{
		"version":       "0.0.1",
		"layergroup_id": "open1",
		"auth":          map[string]any{"method": "open"},
	})
	require.NoError(t, err)

	for _, credential := range []string{"", "anything"} {
		ok, err := ss.IsAuthorized(ctx, "alice", "open1", credential)
		require.NoError(t, err)
		require.True(t, ok, "credential %q", credential)
	}
}

func checkTemplateCertificate(t *testing.T, pool redis.UniversalClient) {
	ctx := context.Background()
	ts, ss := newTestStores(pool)

	tpl := testTemplate("signed")
	_, err := ts.Add(ctx, "alice", tpl)
	require.NoError(t, err)

	// a template certificate carries its descriptor at the top level
	id, err := ss.AddSignature(ctx, "alice", "instance1", tpl.Certificate())
	require.NoError(t, err)

	stored, err := ts.Get(ctx, "alice", "signed")
	require.NoError(t, err)
	require.Equal(t, stored.AuthID, id)

	ok, err := ss.IsAuthorized(ctx, "alice", "instance1", "tok2")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, ts.Delete(ctx, "alice", "signed"))

	ok, err = ss.IsAuthorized(ctx, "alice", "instance1", "tok2")
	require.NoError(t, err)
	require.False(t, ok)
}
