package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mapsign/mapsign"
	"github.com/mapsign/mapsign/internal/dcontext"
	"github.com/redis/go-redis/v9"
)

// templateStore keeps the templates of each owner in a redis hash keyed by
// template name. Add and Delete run as a fixed sequence of steps under the
// template lock; the first failing step aborts the sequence, and the lock
// is released on every path. No connection is held across steps.
type templateStore struct {
	client     redis.UniversalClient
	signatures mapsign.SignatureService
}

var _ mapsign.TemplateService = &templateStore{}

// NewTemplateStore returns a TemplateService backed by the redis client. The
// certificates of templates are managed through signatures.
func NewTemplateStore(client redis.UniversalClient, signatures mapsign.SignatureService) mapsign.TemplateService {
	return &templateStore{
		client:     client,
		signatures: signatures,
	}
}

func (ts *templateStore) Add(ctx context.Context, owner string, tpl mapsign.Template) (string, error) {
	logger := dcontext.GetLogger(ctx)
	logger.Debugf("(*templateStore).Add(%q, %q)", owner, tpl.Name)

	if err := tpl.Validate(); err != nil {
		return "", err
	}
	name := tpl.Name

	key, err := keyFor(templateHashKeySpec{owner: owner})
	if err != nil {
		return "", err
	}

	lock, err := newTemplateLock(ts.client, owner, name)
	if err != nil {
		return "", err
	}
	unlock, err := lock.lock(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	exists, err := ts.client.HExists(ctx, key, name).Result()
	if err != nil {
		return "", storeError("HEXISTS", err)
	}
	if exists {
		return "", mapsign.ErrTemplateExists{Owner: owner, Name: name}
	}

	// The certificate goes in first. A failure past this point leaves an
	// orphaned certificate, which is inert since no template references it.
	authID, err := ts.signatures.AddCertificate(ctx, owner, tpl.Certificate())
	if err != nil {
		return "", err
	}

	p, err := json.Marshal(tpl.Sealed(authID))
	if err != nil {
		return "", err
	}

	added, err := ts.client.HSet(ctx, key, name, p).Result()
	if err != nil {
		return "", storeError("HSET", err)
	}
	if added == 0 {
		logger.Errorf("add of template %q of user %q overwrote an existing template: was it added without locking?", name, owner)
	}

	return name, nil
}

func (ts *templateStore) Get(ctx context.Context, owner, name string) (mapsign.Template, error) {
	dcontext.GetLogger(ctx).Debugf("(*templateStore).Get(%q, %q)", owner, name)

	key, err := keyFor(templateHashKeySpec{owner: owner})
	if err != nil {
		return mapsign.Template{}, err
	}

	return ts.get(ctx, key, owner, name)
}

func (ts *templateStore) get(ctx context.Context, key, owner, name string) (mapsign.Template, error) {
	p, err := ts.client.HGet(ctx, key, name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return mapsign.Template{}, mapsign.ErrTemplateUnknown{Owner: owner, Name: name}
		}
		return mapsign.Template{}, storeError("HGET", err)
	}

	var tpl mapsign.Template
	if err := json.Unmarshal(p, &tpl); err != nil {
		dcontext.GetLogger(ctx).Errorf("unparsable template %q of user %q: %v", name, owner, err)
		return mapsign.Template{}, mapsign.ErrTemplateUnknown{Owner: owner, Name: name}
	}

	return tpl, nil
}

func (ts *templateStore) Delete(ctx context.Context, owner, name string) error {
	logger := dcontext.GetLogger(ctx)
	logger.Debugf("(*templateStore).Delete(%q, %q)", owner, name)

	key, err := keyFor(templateHashKeySpec{owner: owner})
	if err != nil {
		return err
	}

	lock, err := newTemplateLock(ts.client, owner, name)
	if err != nil {
		return err
	}
	unlock, err := lock.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	var certErr error
	tpl, err := ts.get(ctx, key, owner, name)
	switch {
	case errors.As(err, new(mapsign.ErrTemplateUnknown)):
		exists, herr := ts.client.HExists(ctx, key, name).Result()
		if herr != nil {
			return storeError("HEXISTS", herr)
		}
		if !exists {
			return err
		}
		// present but unparsable, remove it anyway
	case err != nil:
		return err
	case tpl.AuthID == "":
		logger.Errorf("installed template %q of user %q has no auth_id reference", name, owner)
	default:
		certErr = ts.signatures.DelCertificate(ctx, owner, tpl.AuthID)
		if errors.As(certErr, new(mapsign.ErrCertificateUnknown)) {
			logger.Warnf("certificate %q of template %q of user %q was already removed", tpl.AuthID, name, owner)
			certErr = nil
		}
		if certErr != nil {
			certErr = fmt.Errorf("could not delete certificate %q associated with template %q of user %q: %w", tpl.AuthID, name, owner, certErr)
		}
	}

	// The template goes even when its certificate could not be deleted.
	removed, err := ts.client.HDel(ctx, key, name).Result()
	if err != nil {
		if certErr != nil {
			return certErr
		}
		return storeError("HDEL", err)
	}
	if removed == 0 {
		logger.Errorf("template %q of user %q externally removed", name, owner)
	}

	return certErr
}

func (ts *templateStore) Update(ctx context.Context, owner, name string, tpl mapsign.Template) error {
	return mapsign.ErrNotImplemented{Operation: "updating a template"}
}

func (ts *templateStore) List(ctx context.Context, owner string) ([]string, error) {
	return nil, mapsign.ErrNotImplemented{Operation: "listing templates"}
}
