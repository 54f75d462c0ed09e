package errcode

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
)

// registry holds every descriptor known to the process, indexed the ways
// the envelope codec and the tests look them up.
var registry = struct {
	sync.RWMutex
	next    ErrorCode
	byCode  map[ErrorCode]ErrorDescriptor
	byValue map[string]ErrorDescriptor
	byGroup map[string][]ErrorDescriptor
}{
	next:    1000,
	byCode:  map[ErrorCode]ErrorDescriptor{},
	byValue: map[string]ErrorDescriptor{},
	byGroup: map[string][]ErrorDescriptor{},
}

const commonGroup = "errcode"

var (
	// ErrorCodeUnknown is a generic error that can be used as a last
	// resort if there is no situation-specific error message that can be used
	ErrorCodeUnknown = Register(commonGroup, ErrorDescriptor{
		Value:   "UNKNOWN",
		Message: "unknown error",
		Description: `Generic error returned when the error does not have an
		API classification.`,
		HTTPStatusCode: http.StatusInternalServerError,
	})

	// ErrorCodeUnavailable reports that the template store cannot be
	// reached or answered with an error.
	ErrorCodeUnavailable = Register(commonGroup, ErrorDescriptor{
		Value:          "UNAVAILABLE",
		Message:        "service unavailable",
		Description:    "Returned when the backing store is not available.",
		HTTPStatusCode: http.StatusServiceUnavailable,
	})

	// ErrorCodeNotImplemented is returned for operations that are part of
	// the API but have no implementation yet.
	ErrorCodeNotImplemented = Register(commonGroup, ErrorDescriptor{
		Value:   "NOT_IMPLEMENTED",
		Message: "not implemented",
		Description: `Returned when the requested operation is known to the
		server but not implemented yet.`,
		HTTPStatusCode: http.StatusNotImplemented,
	})
)

// Register makes descriptor known under group and assigns it the next free
// ErrorCode. Registering the same Value twice panics.
func Register(group string, descriptor ErrorDescriptor) ErrorCode {
	registry.Lock()
	defer registry.Unlock()

	if _, ok := registry.byValue[descriptor.Value]; ok {
		panic(fmt.Sprintf("ErrorValue %q is already registered", descriptor.Value))
	}

	descriptor.Code = registry.next
	registry.next++

	registry.byGroup[group] = append(registry.byGroup[group], descriptor)
	registry.byCode[descriptor.Code] = descriptor
	registry.byValue[descriptor.Value] = descriptor

	return descriptor.Code
}

func byValue(a, b ErrorDescriptor) int {
	return strings.Compare(a.Value, b.Value)
}

// GetGroupNames returns the sorted names of the registered groups.
func GetGroupNames() []string {
	registry.RLock()
	defer registry.RUnlock()

	keys := make([]string, 0, len(registry.byGroup))
	for k := range registry.byGroup {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// GetErrorCodeGroup returns the descriptors of the named group, sorted by
// value.
func GetErrorCodeGroup(name string) []ErrorDescriptor {
	registry.RLock()
	desc := slices.Clone(registry.byGroup[name])
	registry.RUnlock()

	slices.SortFunc(desc, byValue)
	return desc
}

// GetErrorAllDescriptors returns every registered descriptor, irrespective
// of its group, sorted by value.
func GetErrorAllDescriptors() []ErrorDescriptor {
	var result []ErrorDescriptor
	for _, group := range GetGroupNames() {
		result = append(result, GetErrorCodeGroup(group)...)
	}
	slices.SortFunc(result, byValue)
	return result
}

func descriptorByCode(ec ErrorCode) (ErrorDescriptor, bool) {
	registry.RLock()
	defer registry.RUnlock()
	d, ok := registry.byCode[ec]
	return d, ok
}

func descriptorByValue(value string) (ErrorDescriptor, bool) {
	registry.RLock()
	defer registry.RUnlock()
	d, ok := registry.byValue[value]
	return d, ok
}
