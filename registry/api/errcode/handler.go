package errcode

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ServeJSON writes err as a JSON error envelope. The status is taken from
// the first error carrying an ErrorCode, wrapped or not, and defaults to
// 500 when there is none.
func ServeJSON(w http.ResponseWriter, err error) error {
	errs, ok := err.(Errors)
	if !ok {
		errs = Errors{err}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusOf(errs))

	return json.NewEncoder(w).Encode(errs)
}

func statusOf(errs Errors) int {
	if len(errs) > 0 {
		var coder ErrorCoder
		if errors.As(errs[0], &coder) {
			if sc := coder.ErrorCode().Descriptor().HTTPStatusCode; sc != 0 {
				return sc
			}
		}
	}
	return http.StatusInternalServerError
}
