package handlers

import (
	"context"

	"github.com/mapsign/mapsign/internal/dcontext"
	"github.com/mapsign/mapsign/registry/api/errcode"
)

// Context should contain the request specific context for use in across
// handlers. Resources that don't need to be shared across handlers should not
// be on this object.
type Context struct {
	// App points to the application structure that created this context.
	*App
	context.Context

	// Owner is the user the request is made on behalf of, resolved from the
	// request host.
	Owner string

	// Errors is a collection of errors encountered during the request to be
	// returned to the client API. If errors are added to the collection, the
	// handler *must not* start the response via http.ResponseWriter.
	Errors errcode.Errors
}

// Value overrides context.Context.Value to ensure that calls are routed to
// correct context.
func (ctx *Context) Value(key any) any {
	return ctx.Context.Value(key)
}

// getName returns the template name from the route variables.
func getName(ctx context.Context) string {
	return dcontext.GetStringValue(ctx, "vars.name")
}

func getSigner(ctx context.Context) string {
	return dcontext.GetStringValue(ctx, "vars.signer")
}

func getResource(ctx context.Context) string {
	return dcontext.GetStringValue(ctx, "vars.resource")
}
