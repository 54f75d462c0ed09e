package v1

import (
	"strings"

	"github.com/gorilla/mux"
)

// The following are definitions of the name under which all V1 routes are
// registered. These symbols can be used to look up a route based on the name.
const (
	RouteNameTemplates  = "templates"
	RouteNameTemplate   = "template"
	RouteNameAuthorized = "authorized"
)

// Router builds a gorilla router with named routes for the various API
// methods. This can be used directly by both server implementations and
// clients.
func Router() *mux.Router {
	return RouterWithPrefix("")
}

// RouterWithPrefix builds a gorilla router with a configured prefix
// on all routes.
func RouterWithPrefix(prefix string) *mux.Router {
	rootRouter := mux.NewRouter()
	router := rootRouter
	if prefix != "" {
		router = router.PathPrefix(strings.TrimSuffix(prefix, "/")).Subrouter()
	}

	router.StrictSlash(true)

	router.Path("/template").Name(RouteNameTemplates)
	router.Path("/template/{name:" + TemplateNameRegexp + "}").Name(RouteNameTemplate)
	router.Path("/authorized/{signer:" + componentRegexp + "}/{resource:" + componentRegexp + "}").Name(RouteNameAuthorized)

	return rootRouter
}

const (
	// TemplateNameRegexp matches path segments that may hold a template
	// name. The name grammar itself is checked by the template store, so
	// that malformed names get a proper error instead of a 404.
	TemplateNameRegexp = `[^/]+`

	// componentRegexp matches a signer or resource id.
	componentRegexp = `[^/|]+`
)
