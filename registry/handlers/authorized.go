package handlers

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/mapsign/mapsign/internal/dcontext"
)

// authorizedDispatcher constructs the authorization check endpoint.
func authorizedDispatcher(ctx *Context, r *http.Request) http.Handler {
	authorizedHandler := &authorizedHandler{
		Context:  ctx,
		Signer:   getSigner(ctx),
		Resource: getResource(ctx),
	}

	return handlers.MethodHandler{
		http.MethodGet: http.HandlerFunc(authorizedHandler.GetAuthorized),
	}
}

// authorizedHandler answers whether a credential grants access to a
// resource signed by a signer.
type authorizedHandler struct {
	*Context

	Signer   string
	Resource string
}

type authorizedAPIResponse struct {
	Authorized bool `json:"authorized"`
}

// GetAuthorized checks the auth_token query parameter against the
// signatures of the resource.
func (ah *authorizedHandler) GetAuthorized(w http.ResponseWriter, r *http.Request) {
	credential := r.URL.Query().Get("auth_token")

	authorized, err := ah.signatures.IsAuthorized(ah, ah.Signer, ah.Resource, credential)
	if err != nil {
		ah.Errors = append(ah.Errors, apiError(err))
		return
	}
	dcontext.GetLogger(ah).Debugf("authorized=%t", authorized)

	if err := serveJSON(w, authorizedAPIResponse{Authorized: authorized}); err != nil {
		dcontext.GetLogger(ah).Errorf("error serving authorization: %v", err)
	}
}
