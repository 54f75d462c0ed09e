package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/docker/go-metrics"
	"github.com/gorilla/mux"
	"github.com/mapsign/mapsign"
	"github.com/mapsign/mapsign/configuration"
	"github.com/mapsign/mapsign/health"
	"github.com/mapsign/mapsign/health/checks"
	"github.com/mapsign/mapsign/internal/dcontext"
	prometheus "github.com/mapsign/mapsign/metrics"
	v1 "github.com/mapsign/mapsign/registry/api/v1"
	"github.com/mapsign/mapsign/registry/storage"
	"github.com/redis/go-redis/v9"
)

// defaultCheckInterval is the default time in between health checks
const defaultCheckInterval = 10 * time.Second

var (
	requestTimer = prometheus.HTTPNamespace.NewLabeledTimer("request", "The latency of requests by route", "route")
	errorCounter = prometheus.HTTPNamespace.NewLabeledCounter("errors", "The number of error responses by code", "code")
)

func init() {
	metrics.Register(prometheus.HTTPNamespace)
}

// App is the mapsign application object. Shared resources are placed on
// this object and are accessible from all requests. It must not be mutated
// once serving.
type App struct {
	context.Context

	Config *configuration.Configuration

	router     *mux.Router
	redis      *redis.Client
	templates  mapsign.TemplateService
	signatures mapsign.SignatureService

	// userFromHost extracts the owner of a request from its host.
	userFromHost *regexp.Regexp
}

// NewApp takes a configuration and returns a configured app, ready to serve
// requests. The app only implements ServeHTTP and can be wrapped in other
// handlers accordingly.
func NewApp(ctx context.Context, config *configuration.Configuration) (*App, error) {
	userFromHost, err := regexp.Compile(config.HTTP.UserFromHost)
	if err != nil {
		return nil, fmt.Errorf("invalid http.userfromhost: %w", err)
	}

	client := storage.NewRedisPool(config.Redis)

	app := newApp(ctx, config, client, userFromHost)
	dcontext.GetLogger(app).Infof("using redis store at %s", config.Redis.Addr)
	return app, nil
}

// newApp wires the stores and routes around an existing redis client.
func newApp(ctx context.Context, config *configuration.Configuration, client *redis.Client, userFromHost *regexp.Regexp) *App {
	app := &App{
		Context:      ctx,
		Config:       config,
		router:       v1.RouterWithPrefix(config.HTTP.Prefix),
		redis:        client,
		userFromHost: userFromHost,
	}

	signatures := storage.NewSignatureStore(client)
	app.signatures = storage.NewPrometheusSignatureService(signatures)
	app.templates = storage.NewPrometheusTemplateService(storage.NewTemplateStore(client, signatures))

	// Register the handler dispatchers.
	app.register(v1.RouteNameTemplates, templatesDispatcher, true)
	app.register(v1.RouteNameTemplate, templateDispatcher, true)
	app.register(v1.RouteNameAuthorized, authorizedDispatcher, false)

	app.router.Path("/debug/health").HandlerFunc(health.StatusHandler)

	return app
}

// Close releases the redis pool.
func (app *App) Close() error {
	return app.redis.Close()
}

// RegisterHealthChecks is an awful hack to defer health check registration
// control to callers. This should only ever be called once per registry
// process, typically in a main function. The correct way would be register
// health checks outside of app, since multiple apps may exist in the same
// process. Because the configuration and app are tightly coupled,
// implementing this properly will require a refactor. This method may panic
// if called twice in the same process.
func (app *App) RegisterHealthChecks(healthRegistries ...*health.Registry) {
	if len(healthRegistries) > 1 {
		panic("RegisterHealthChecks called with more than one registry")
	}
	healthRegistry := health.DefaultRegistry
	if len(healthRegistries) == 1 {
		healthRegistry = healthRegistries[0]
	}

	if app.Config.Health.Redis.Enabled {
		interval := app.Config.Health.Redis.Interval
		if interval == 0 {
			interval = defaultCheckInterval
		}

		updater := health.NewThresholdStatusUpdater(app.Config.Health.Redis.Threshold)
		go health.Poll(app, updater, checks.RedisChecker(app.redis, app.Config.Health.Redis.Timeout), interval)
		healthRegistry.Register("redis", updater)
	}

	for _, fileChecker := range app.Config.Health.FileCheckers {
		interval := fileChecker.Interval
		if interval == 0 {
			interval = defaultCheckInterval
		}
		dcontext.GetLogger(app).Infof("configuring file health check path=%s, interval=%d", fileChecker.File, interval/time.Second)

		updater := health.NewThresholdStatusUpdater(fileChecker.Threshold)
		go health.Poll(app, updater, checks.FileChecker(fileChecker.File), interval)
		healthRegistry.Register(fileChecker.File, updater)
	}
}

// register a handler with the application, by route name. The handler will be
// passed through the application filters and context will be constructed at
// request time. Routes acting on the templates of an owner set owned.
func (app *App) register(routeName string, dispatch dispatchFunc, owned bool) {
	app.router.GetRoute(routeName).Handler(app.dispatcher(dispatch, owned))
}

func (app *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close() // ensure that request body is always closed.

	app.router.ServeHTTP(w, r)
}

// dispatchFunc takes a context and request and returns a constructed handler
// for the route. The dispatcher will use this to dynamically create request
// specific handlers for each endpoint without creating a new router for each
// request.
type dispatchFunc func(ctx *Context, r *http.Request) http.Handler

// dispatcher returns a handler that constructs a request specific context and
// handler, using the dispatch factory function. On owned routes the owner is
// resolved from the host and mutating requests must carry its map key.
func (app *App) dispatcher(dispatch dispatchFunc, owned bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		context, w := app.context(w, r)

		defer func() {
			route := "unknown"
			if current := mux.CurrentRoute(r); current != nil {
				route = current.GetName()
			}
			requestTimer.WithValues(route).UpdateSince(start)
			dcontext.GetResponseLogger(context).Infof("response completed")
		}()

		if owned {
			owner, err := app.owner(r)
			if err != nil {
				dcontext.GetLogger(context).Errorf("error resolving owner: %v", err)
				context.Errors = append(context.Errors, v1.ErrorCodeOwnerUnknown.WithDetail(map[string]string{"host": r.Host}))
				app.serveErrors(context, w)
				return
			}
			context.Owner = owner
			context.Context = dcontext.WithOwner(context.Context, owner)

			if err := app.authorized(r, owner); err != nil {
				dcontext.GetLogger(context).Warnf("error authorizing request: %v", err)
				context.Errors = append(context.Errors, v1.ErrorCodeUnauthorized.WithDetail(map[string]string{"owner": owner}))
				app.serveErrors(context, w)
				return
			}
		}

		dispatch(context, r).ServeHTTP(w, r)

		// Automated error response handling here. Handlers return their
		// successful responses themselves.
		if context.Errors.Len() > 0 {
			app.serveErrors(context, w)
		}
	})
}

func (app *App) serveErrors(context *Context, w http.ResponseWriter) {
	for _, err := range context.Errors {
		errorCounter.WithValues(errorCodeValue(err)).Inc(1)
	}
	if err := serveErrors(w, context.Errors); err != nil {
		dcontext.GetLogger(context).Errorf("error serving error json: %v (from %v)", err, context.Errors)
	}
}

// context constructs the context object for the application. This only be
// called once per request.
func (app *App) context(w http.ResponseWriter, r *http.Request) (*Context, http.ResponseWriter) {
	ctx := dcontext.WithRequest(app, r)
	ctx, w = dcontext.WithResponseWriter(ctx, w)
	ctx = dcontext.WithVars(ctx, r)
	ctx = dcontext.WithLogger(ctx, dcontext.GetRequestLogger(ctx))
	ctx = dcontext.WithLogger(ctx, dcontext.GetLogger(ctx,
		"vars.name",
		"vars.signer",
		"vars.resource"))

	return &Context{
		App:     app,
		Context: ctx,
	}, w
}

// owner resolves the user a request is made on behalf of: the first capture
// group of userFromHost applied to the host, without port.
func (app *App) owner(r *http.Request) (string, error) {
	host, _, err := net.SplitHostPort(r.Host)
	if err != nil {
		// no port
		host = r.Host
	}

	m := app.userFromHost.FindStringSubmatch(host)
	if len(m) < 2 || m[1] == "" {
		return "", fmt.Errorf("no user in host %q", r.Host)
	}
	return m[1], nil
}

// authorized checks that a request changing the templates of owner carries
// the map key of owner in its api_key parameter. Reads are always allowed.
func (app *App) authorized(r *http.Request, owner string) error {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil
	}
	if app.Config.HTTP.Auth.Disabled {
		return nil
	}

	key, ok := app.Config.HTTP.Auth.Keys[owner]
	if !ok || key == "" {
		return fmt.Errorf("no map key configured for %q", owner)
	}
	given := r.URL.Query().Get("api_key")
	if given == "" {
		return errors.New("missing api_key")
	}
	if subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
		return fmt.Errorf("api_key does not match the map key of %q", owner)
	}
	return nil
}
