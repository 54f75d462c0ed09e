// Package uuid generates the identifiers attached to process instances and
// requests in logs.
package uuid

import (
	"github.com/google/uuid"
)

// NewString returns a time ordered, version 7 UUID. It panics if the random
// source fails.
func NewString() string {
	return uuid.Must(uuid.NewV7()).String()
}
