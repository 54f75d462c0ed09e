package mapsign

import (
	"fmt"
)

// ErrTemplateVersionUnsupported is returned when a template declares a
// format version other than TemplateVersion.
type ErrTemplateVersionUnsupported struct {
	Version string
}

func (err ErrTemplateVersionUnsupported) Error() string {
	return fmt.Sprintf("unsupported template version %q", err.Version)
}

// ErrTemplateNameInvalid is returned when a template name is missing or
// does not match TemplateNameRegexp.
type ErrTemplateNameInvalid struct {
	Name string
}

func (err ErrTemplateNameInvalid) Error() string {
	if err.Name == "" {
		return "missing template name"
	}
	return fmt.Sprintf("invalid characters in template name %q", err.Name)
}

// ErrIdentifierInvalid is returned when an owner, signer or resource is
// empty or contains the "|" key separator.
type ErrIdentifierInvalid struct {
	Kind  string
	Value string
}

func (err ErrIdentifierInvalid) Error() string {
	if err.Value == "" {
		return fmt.Sprintf("missing %s", err.Kind)
	}
	return fmt.Sprintf("invalid %s %q", err.Kind, err.Value)
}

// ErrTemplateLocked is returned when another operation holds the lock on a
// template. Callers should try again later; the registry never retries.
type ErrTemplateLocked struct {
	Owner string
	Name  string
}

func (err ErrTemplateLocked) Error() string {
	return fmt.Sprintf("template %q of user %q is locked", err.Name, err.Owner)
}

// ErrTemplateExists is returned when adding a template whose name is
// already registered for the owner.
type ErrTemplateExists struct {
	Owner string
	Name  string
}

func (err ErrTemplateExists) Error() string {
	return fmt.Sprintf("template %q of user %q already exists", err.Name, err.Owner)
}

// ErrTemplateUnknown is returned when a template is absent or cannot be
// decoded.
type ErrTemplateUnknown struct {
	Owner string
	Name  string
}

func (err ErrTemplateUnknown) Error() string {
	return fmt.Sprintf("template %q of user %q not found", err.Name, err.Owner)
}

// ErrCertificateUnknown is returned when a certificate id does not resolve
// in the signer's certificate set.
type ErrCertificateUnknown struct {
	Signer string
	ID     string
}

func (err ErrCertificateUnknown) Error() string {
	return fmt.Sprintf("certificate %q of signer %q not found", err.ID, err.Signer)
}

// ErrNotImplemented is returned by operations that are part of the
// service contracts but have no semantics yet.
type ErrNotImplemented struct {
	Operation string
}

func (err ErrNotImplemented) Error() string {
	return fmt.Sprintf("%s is not implemented yet", err.Operation)
}

// ErrStoreFailure wraps an error returned by the key-value store. The
// original error is kept in the message and through Unwrap.
type ErrStoreFailure struct {
	Op  string
	Err error
}

func (err ErrStoreFailure) Error() string {
	return fmt.Sprintf("store failure on %s: %v", err.Op, err.Err)
}

func (err ErrStoreFailure) Unwrap() error {
	return err.Err
}
