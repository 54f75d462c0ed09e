package handlers

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/mapsign/mapsign"
	"github.com/mapsign/mapsign/internal/dcontext"
	v1 "github.com/mapsign/mapsign/registry/api/v1"
)

// maxTemplateSize bounds the template documents accepted on POST.
const maxTemplateSize = 1 << 20

// templatesDispatcher constructs the handler for the template collection.
func templatesDispatcher(ctx *Context, r *http.Request) http.Handler {
	templatesHandler := &templatesHandler{
		Context: ctx,
	}

	return handlers.MethodHandler{
		http.MethodPost: http.HandlerFunc(templatesHandler.PostTemplate),
		http.MethodGet:  http.HandlerFunc(templatesHandler.ListTemplates),
	}
}

// templateDispatcher constructs the handler for a single named template.
func templateDispatcher(ctx *Context, r *http.Request) http.Handler {
	templateHandler := &templateHandler{
		Context: ctx,
		Name:    getName(ctx),
	}

	return handlers.MethodHandler{
		http.MethodGet:    http.HandlerFunc(templateHandler.GetTemplate),
		http.MethodPut:    http.HandlerFunc(templateHandler.PutTemplate),
		http.MethodDelete: http.HandlerFunc(templateHandler.DeleteTemplate),
	}
}

// templatesHandler handles requests on the templates of the request owner.
type templatesHandler struct {
	*Context
}

type postTemplateResponse struct {
	TemplateID string `json:"template_id"`
}

// PostTemplate registers the template in the request body. The response
// carries the template id, qualified by the owner.
func (th *templatesHandler) PostTemplate(w http.ResponseWriter, r *http.Request) {
	dcontext.GetLogger(th).Debug("PostTemplate")

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		th.Errors = append(th.Errors, v1.ErrorCodeTemplateInvalid.WithDetail("template POST data must be of type application/json"))
		return
	}

	var tpl mapsign.Template
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTemplateSize))
	if err := dec.Decode(&tpl); err != nil {
		th.Errors = append(th.Errors, v1.ErrorCodeTemplateInvalid.WithDetail(err.Error()))
		return
	}

	name, err := th.templates.Add(th, th.Owner, tpl)
	if err != nil {
		th.Errors = append(th.Errors, apiError(err))
		return
	}

	if err := serveJSON(w, postTemplateResponse{TemplateID: th.Owner + "@" + name}); err != nil {
		dcontext.GetLogger(th).Errorf("error serving template id: %v", err)
	}
}

// ListTemplates is routed for completeness and reports that listing is not
// available.
func (th *templatesHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	if _, err := th.templates.List(th, th.Owner); err != nil {
		th.Errors = append(th.Errors, apiError(err))
		return
	}
}

// templateHandler handles requests on one template of the request owner.
type templateHandler struct {
	*Context

	Name string
}

func (th *templateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	dcontext.GetLogger(th).Debug("GetTemplate")

	tpl, err := th.templates.Get(th, th.Owner, th.Name)
	if err != nil {
		th.Errors = append(th.Errors, apiError(err))
		return
	}

	if err := serveJSON(w, tpl); err != nil {
		dcontext.GetLogger(th).Errorf("error serving template: %v", err)
	}
}

func (th *templateHandler) PutTemplate(w http.ResponseWriter, r *http.Request) {
	if err := th.templates.Update(th, th.Owner, th.Name, mapsign.Template{}); err != nil {
		th.Errors = append(th.Errors, apiError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (th *templateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	dcontext.GetLogger(th).Debug("DeleteTemplate")

	if err := th.templates.Delete(th, th.Owner, th.Name); err != nil {
		th.Errors = append(th.Errors, apiError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
