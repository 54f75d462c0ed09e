package storage

import (
	"context"
	"testing"

	"github.com/mapsign/mapsign"
	"github.com/stretchr/testify/require"
)

func TestSignatureStore(t *testing.T) {
	pool, _ := newTestPool(t)
	checkSignatureStore(t, pool)
}

func TestSignatureStoreAddCertificate(t *testing.T) {
	pool, mr := newTestPool(t)
	_, ss := newTestStores(pool)
	ctx := context.Background()

	cert := mapsign.Certificate{"template_id": "k", "method": "open"}
	id, err := ss.AddCertificate(ctx, "alice", cert)
	require.NoError(t, err)
	require.Equal(t, "ed08d0bcd0ca8d34222250b7c916dd2e", id)

	// adding it again is idempotent
	again, err := ss.AddCertificate(ctx, "alice", cert)
	require.NoError(t, err)
	require.Equal(t, id, again)

	members, err := mr.Members("map_crt|alice")
	require.NoError(t, err)
	require.Equal(t, []string{`{"method":"open","template_id":"k"}`}, members)

	require.NoError(t, ss.DelCertificate(ctx, "alice", id))
	require.False(t, mr.Exists("map_crt|alice"))

	err = ss.DelCertificate(ctx, "alice", id)
	require.Equal(t, mapsign.ErrCertificateUnknown{Signer: "alice", ID: id}, err)
}

func TestSignatureStoreSkipsBrokenCertificates(t *testing.T) {
	pool, mr := newTestPool(t)
	_, ss := newTestStores(pool)
	ctx := context.Background()

	good := `{"auth":{"method":"token","valid_tokens":["tok1"]}}`
	for _, member := range []string{
		`[1,2,3]`,
		`{"auth":{"method":"token","valid_tokens":[{"token":"tok1"}]}}`,
		good,
	} {
		mr.SAdd("map_crt|alice", member)
		mr.SAdd("map_sig|alice|map1", mapsign.CertificateID([]byte(member)))
	}
	// dangling reference to a certificate that was never stored
	mr.SAdd("map_sig|alice|map1", "00000000000000000000000000000000")

	ok, err := ss.IsAuthorized(ctx, "alice", "map1", "tok1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.SRem("map_crt|alice", good)

	ok, err = ss.IsAuthorized(ctx, "alice", "map1", "tok1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSignatureStoreUnknownMethod(t *testing.T) {
	pool, _ := newTestPool(t)
	_, ss := newTestStores(pool)
	ctx := context.Background()

	for resource, auth := range map[string]map[string]any{
		"nomethod": {"valid_tokens": []string{"tok1"}},
		"bogus":    {"method": "bogus", "valid_tokens": []string{"tok1"}},
	} {
		_, err := ss.AddSignature(ctx, "alice", resource, mapsign.Certificate{"auth": auth})
		require.NoError(t, err)

		ok, err := ss.IsAuthorized(ctx, "alice", resource, "tok1")
		require.NoError(t, err)
		require.False(t, ok, resource)
	}
}

func TestSignatureStoreStoreFailure(t *testing.T) {
	pool, mr := newTestPool(t)
	_, ss := newTestStores(pool)
	ctx := context.Background()

	mr.SetError("ERR simulated failure")

	_, err := ss.AddSignature(ctx, "alice", "map1", mapsign.Certificate{"auth": map[string]any{"method": "open"}})
	require.ErrorAs(t, err, new(mapsign.ErrStoreFailure))

	_, err = ss.IsAuthorized(ctx, "alice", "map1", "")
	require.ErrorAs(t, err, new(mapsign.ErrStoreFailure))
}

func TestSignatureStoreBadKeys(t *testing.T) {
	pool, mr := newTestPool(t)
	_, ss := newTestStores(pool)
	ctx := context.Background()

	_, err := ss.AddSignature(ctx, "alice", "a|b", mapsign.Certificate{})
	require.Equal(t, mapsign.ErrIdentifierInvalid{Kind: "resource", Value: "a|b"}, err)
	_, err = ss.IsAuthorized(ctx, "", "map1", "")
	require.Equal(t, mapsign.ErrIdentifierInvalid{Kind: "signer"}, err)

	require.Empty(t, mr.Keys())
}

func TestSignatureStoreDelSignatureNotImplemented(t *testing.T) {
	pool, _ := newTestPool(t)
	_, ss := newTestStores(pool)

	err := ss.DelSignature(context.Background(), "ed08d0bcd0ca8d34222250b7c916dd2e")
	require.Equal(t, mapsign.ErrNotImplemented{Operation: "certificate revocation"}, err)
}
