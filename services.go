package mapsign

import (
	"context"
)

// TemplateService manages the templates of owners. Mutating operations
// hold a per (owner, name) lock for their whole duration and fail with
// ErrTemplateLocked rather than wait for it.
type TemplateService interface {
	// Add registers tpl for owner, installs its certificate and returns
	// the template name, which is the template id within the owner scope.
	Add(ctx context.Context, owner string, tpl Template) (string, error)

	// Get returns the stored template, including AuthID.
	Get(ctx context.Context, owner, name string) (Template, error)

	// Update replaces a template. Not implemented: a correct update needs
	// an atomic swap, a certificate reissue and revocation of every
	// signature issued under the old certificate.
	Update(ctx context.Context, owner, name string, tpl Template) error

	// Delete removes the template and its certificate. Removing the
	// certificate revokes every signature that referenced it.
	Delete(ctx context.Context, owner, name string) error

	// List returns the template names of owner. Not implemented.
	List(ctx context.Context, owner string) ([]string, error)
}

// SignatureService stores certificates per signer and signatures binding
// certificates to resource instances, and answers authorization checks.
type SignatureService interface {
	// AddCertificate installs cert in the signer's certificate set and
	// returns its id.
	AddCertificate(ctx context.Context, signer string, cert Certificate) (string, error)

	// DelCertificate removes the certificate with the given id from the
	// signer's certificate set.
	DelCertificate(ctx context.Context, signer, id string) error

	// AddSignature atomically installs cert and registers it as a
	// signature on resource. The certificate id is returned.
	AddSignature(ctx context.Context, signer, resource string, cert Certificate) (string, error)

	// IsAuthorized reports whether any certificate signed on resource by
	// signer accepts credential.
	IsAuthorized(ctx context.Context, signer, resource, credential string) (bool, error)

	// DelSignature revokes a certificate from the signer's set and from
	// every resource signature set that references it. Not implemented.
	DelSignature(ctx context.Context, id string) error
}
