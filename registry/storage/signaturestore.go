package storage

import (
	"context"

	"github.com/mapsign/mapsign"
	"github.com/mapsign/mapsign/internal/dcontext"
	"github.com/redis/go-redis/v9"
)

// signatureStore keeps certificates and signatures in redis. Certificates
// of a signer live in one set as canonical JSON; their id is recomputed
// from the member itself. Each (signer, resource) pair has a set of
// certificate ids. There is no reverse index from certificates to
// signatures: a signature whose certificate has been deleted no longer
// resolves and is skipped by IsAuthorized.
type signatureStore struct {
	client redis.UniversalClient
}

var _ mapsign.SignatureService = &signatureStore{}

// NewSignatureStore returns a SignatureService backed by the redis client.
func NewSignatureStore(client redis.UniversalClient) mapsign.SignatureService {
	return &signatureStore{client: client}
}

func (ss *signatureStore) AddCertificate(ctx context.Context, signer string, cert mapsign.Certificate) (string, error) {
	dcontext.GetLogger(ctx).Debugf("(*signatureStore).AddCertificate(%q)", signer)

	key, err := keyFor(certificateSetKeySpec{signer: signer})
	if err != nil {
		return "", err
	}

	canonical, err := cert.Canonical()
	if err != nil {
		return "", err
	}

	if err := ss.client.SAdd(ctx, key, string(canonical)).Err(); err != nil {
		return "", storeError("SADD", err)
	}

	return mapsign.CertificateID(canonical), nil
}

func (ss *signatureStore) DelCertificate(ctx context.Context, signer, id string) error {
	dcontext.GetLogger(ctx).Debugf("(*signatureStore).DelCertificate(%q, %q)", signer, id)

	key, err := keyFor(certificateSetKeySpec{signer: signer})
	if err != nil {
		return err
	}

	certs, err := ss.certificates(ctx, key)
	if err != nil {
		return err
	}

	member, ok := certs[id]
	if !ok {
		return mapsign.ErrCertificateUnknown{Signer: signer, ID: id}
	}

	removed, err := ss.client.SRem(ctx, key, member).Result()
	if err != nil {
		return storeError("SREM", err)
	}
	if removed == 0 {
		// lost a race with another removal, the outcome is the same
		dcontext.GetLogger(ctx).Warnf("certificate %q of signer %q externally removed", id, signer)
	}

	return nil
}

func (ss *signatureStore) AddSignature(ctx context.Context, signer, resource string, cert mapsign.Certificate) (string, error) {
	dcontext.GetLogger(ctx).Debugf("(*signatureStore).AddSignature(%q, %q)", signer, resource)

	certKey, err := keyFor(certificateSetKeySpec{signer: signer})
	if err != nil {
		return "", err
	}
	sigKey, err := keyFor(signatureSetKeySpec{signer: signer, resource: resource})
	if err != nil {
		return "", err
	}

	canonical, err := cert.Canonical()
	if err != nil {
		return "", err
	}
	id := mapsign.CertificateID(canonical)

	// Both writes become visible together or not at all.
	if _, err := ss.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, certKey, string(canonical))
		pipe.SAdd(ctx, sigKey, id)
		return nil
	}); err != nil {
		return "", storeError("MULTI/EXEC", err)
	}

	return id, nil
}

func (ss *signatureStore) IsAuthorized(ctx context.Context, signer, resource, credential string) (bool, error) {
	logger := dcontext.GetLogger(ctx)
	logger.Debugf("(*signatureStore).IsAuthorized(%q, %q)", signer, resource)

	certKey, err := keyFor(certificateSetKeySpec{signer: signer})
	if err != nil {
		return false, err
	}
	sigKey, err := keyFor(signatureSetKeySpec{signer: signer, resource: resource})
	if err != nil {
		return false, err
	}

	ids, err := ss.client.SMembers(ctx, sigKey).Result()
	if err != nil {
		return false, storeError("SMEMBERS", err)
	}
	if len(ids) == 0 {
		return false, nil
	}

	certs, err := ss.certificates(ctx, certKey)
	if err != nil {
		return false, err
	}

	for _, id := range ids {
		member, ok := certs[id]
		if !ok {
			logger.Debugf("signature %q on %q of signer %q has no certificate", id, resource, signer)
			continue
		}

		cert, err := mapsign.ParseCertificate([]byte(member))
		if err != nil {
			logger.Errorf("unparsable certificate %q of signer %q: %v", id, signer, err)
			continue
		}

		desc, err := cert.Descriptor()
		if err != nil {
			logger.Errorf("invalid authorization descriptor in certificate %q of signer %q: %v", id, signer, err)
			continue
		}

		if desc.Accepts(credential) {
			return true, nil
		}
	}

	return false, nil
}

func (ss *signatureStore) DelSignature(ctx context.Context, id string) error {
	return mapsign.ErrNotImplemented{Operation: "certificate revocation"}
}

// certificates reads the certificate set at key, indexed by certificate id.
func (ss *signatureStore) certificates(ctx context.Context, key string) (map[string]string, error) {
	members, err := ss.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, storeError("SMEMBERS", err)
	}

	certs := make(map[string]string, len(members))
	for _, member := range members {
		certs[mapsign.CertificateID([]byte(member))] = member
	}
	return certs, nil
}
