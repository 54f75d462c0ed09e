// Package storage contains the redis backed implementations of the
// template and signature services.
//
// Commands are issued on a shared redis client; no connection is pinned
// across the steps of an operation. Template writes are serialized per (owner, name) with an
// advisory lock kept in redis next to the templates; see keyFor for the key
// layout shared with existing deployments.
package storage
