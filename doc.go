// Package mapsign defines the interfaces and types of a named-resource
// access-control layer for map templates.
//
// Template
//
// A template is a named, versioned layergroup definition registered by an
// owner. Names are unique per owner. Adding or deleting a template takes an
// advisory lock on (owner, name) held in the shared store, so that
// concurrent writers on the same name never race: the loser fails
// immediately with ErrTemplateLocked.
//
// Certificate
//
// Every template carries an authorization descriptor. When a template is
// added, the descriptor, scoped with the template name, is installed as a
// certificate in the owner's certificate set. Certificates are content
// addressed: the id is a digest of their canonical JSON form.
//
// Signature
//
// A signature binds a certificate of a signer to a resource instance. A
// credential is authorized on the instance when at least one of the bound
// certificates accepts it.
package mapsign
