package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	logrustash "github.com/bshuster-repo/logrus-logstash-hook"
	"github.com/docker/go-metrics"
	gorhandlers "github.com/gorilla/handlers"
	"github.com/mapsign/mapsign/configuration"
	"github.com/mapsign/mapsign/health"
	"github.com/mapsign/mapsign/internal/dcontext"
	"github.com/mapsign/mapsign/registry/handlers"
	"github.com/mapsign/mapsign/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ServeCmd is a cobra command for running the server.
var ServeCmd = &cobra.Command{
	Use:   "serve <config>",
	Short: "`serve` stores and serves templates and signatures",
	Long:  "`serve` stores and serves templates and signatures.",
	Run: func(cmd *cobra.Command, args []string) {
		// setup context
		ctx := dcontext.WithVersion(dcontext.Background(), version.Version())

		config, err := resolveConfiguration(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			// nolint:errcheck
			cmd.Usage()
			os.Exit(1)
		}

		registry, err := NewRegistry(ctx, config)
		if err != nil {
			logrus.Fatalln(err)
		}

		if err = registry.ListenAndServe(); err != nil {
			logrus.Fatalln(err)
		}
	},
}

// A Registry represents a complete instance of the template and signature
// server.
type Registry struct {
	config *configuration.Configuration
	app    *handlers.App
	server *http.Server
	debug  *http.Server
	quit   chan os.Signal
}

// NewRegistry creates a new registry from a context and configuration struct.
func NewRegistry(ctx context.Context, config *configuration.Configuration) (*Registry, error) {
	var err error
	ctx, err = configureLogging(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error configuring logger: %v", err)
	}

	app, err := handlers.NewApp(ctx, config)
	if err != nil {
		return nil, err
	}
	// TODO: The global scope of the health checks means NewRegistry
	// can only be called once per process.
	app.RegisterHealthChecks()

	var handler http.Handler = app
	handler = alive("/", handler)
	handler = health.Handler(handler)
	handler = panicHandler(handler)
	if !config.Log.AccessLog.Disabled {
		switch config.Log.AccessLog.Formatter {
		case "json":
			handler = JSONLoggingHandler(os.Stdout, handler)
		case "", "combined":
			handler = gorhandlers.CombinedLoggingHandler(os.Stdout, handler)
		default:
			return nil, fmt.Errorf("unsupported access log formatter: %q", config.Log.AccessLog.Formatter)
		}
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}

	var debug *http.Server
	if config.HTTP.Debug.Addr != "" {
		debug = &http.Server{
			Addr:              config.HTTP.Debug.Addr,
			Handler:           debugHandler(config),
			ReadHeaderTimeout: 30 * time.Second,
		}
	}

	return &Registry{
		app:    app,
		config: config,
		server: server,
		debug:  debug,
		quit:   make(chan os.Signal, 1),
	}, nil
}

// debugHandler serves the health status and, when enabled, prometheus
// metrics.
func debugHandler(config *configuration.Configuration) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/health", health.StatusHandler)

	if config.HTTP.Debug.Prometheus.Enabled {
		path := config.HTTP.Debug.Prometheus.Path
		if path == "" {
			path = "/metrics"
		}
		logrus.Info("providing prometheus metrics on ", path)
		mux.Handle(path, metrics.Handler())
	}

	return mux
}

// ListenAndServe runs the registry's HTTP server. With a drain timeout
// configured, a SIGTERM or SIGINT stops accepting connections and lets
// pending requests complete within the timeout.
func (registry *Registry) ListenAndServe() error {
	config := registry.config
	defer registry.app.Close()

	ln, err := newListener(config.HTTP.Net, config.HTTP.Addr)
	if err != nil {
		return err
	}
	dcontext.GetLogger(registry.app).Infof("listening on %v", ln.Addr())

	if registry.debug != nil {
		go func() {
			logrus.Infof("debug server listening %v", registry.debug.Addr)
			if err := registry.debug.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Fatalf("error listening on debug interface: %v", err)
			}
		}()
		defer registry.debug.Close()
	}

	if config.HTTP.DrainTimeout == 0 {
		return registry.server.Serve(ln)
	}

	// setup channel to get notified on SIGTERM and interrupt signals
	signal.Notify(registry.quit, syscall.SIGTERM, os.Interrupt)
	serveErr := make(chan error, 1)

	// Start serving in goroutine and listen for stop signal in main thread
	go func() {
		serveErr <- registry.server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-registry.quit:
		dcontext.GetLogger(registry.app).Info("stopping server gracefully. Draining connections for ", config.HTTP.DrainTimeout)
		// shutdown the server with a grace period of configured timeout
		c, cancel := context.WithTimeout(context.Background(), config.HTTP.DrainTimeout)
		defer cancel()
		return registry.server.Shutdown(c)
	}
}

// newListener announces on addr. Stale unix sockets are removed first.
func newListener(network, addr string) (net.Listener, error) {
	switch network {
	case "", "tcp":
		return net.Listen("tcp", addr)
	case "unix":
		if err := os.Remove(addr); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		return net.Listen("unix", addr)
	default:
		return nil, fmt.Errorf("unknown address type %s", network)
	}
}

// configureLogging prepares the context with a logger using the
// configuration.
func configureLogging(ctx context.Context, config *configuration.Configuration) (context.Context, error) {
	logrus.SetLevel(logLevel(config.Log.Level))
	logrus.SetReportCaller(config.Log.ReportCaller)

	formatter := config.Log.Formatter
	if formatter == "" {
		formatter = "text" // default formatter
	}

	switch formatter {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:   time.RFC3339Nano,
			DisableHTMLEscape: true,
		})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	case "logstash":
		logrus.SetFormatter(logrustash.DefaultFormatter(logrus.Fields{"type": "mapsign"}))
	default:
		return ctx, fmt.Errorf("unsupported logging formatter: %q", config.Log.Formatter)
	}

	logrus.Debugf("using %q logging formatter", formatter)

	if len(config.Log.Fields) > 0 {
		// build up the static fields, if present.
		var fields []any
		for k := range config.Log.Fields {
			fields = append(fields, k)
		}

		ctx = dcontext.WithValues(ctx, config.Log.Fields)
		ctx = dcontext.WithLogger(ctx, dcontext.GetLogger(ctx, fields...))
	}

	dcontext.SetDefaultLogger(dcontext.GetLogger(ctx))
	return ctx, nil
}

func logLevel(level configuration.Loglevel) logrus.Level {
	l, err := logrus.ParseLevel(string(level))
	if err != nil {
		l = logrus.InfoLevel
		logrus.Warnf("error parsing level %q: %v, using %q", level, err, l)
	}

	return l
}

// panicHandler add an HTTP handler to web app. The handler recover the happening
// panic. logrus.Panic transmits panic message to pre-config log hooks, which is
// defined in config.yml.
func panicHandler(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logrus.Panic(fmt.Sprintf("%v", err))
			}
		}()
		handler.ServeHTTP(w, r)
	})
}

// alive simply wraps the handler with a route that always returns an http 200
// response when the path is matched. If the path is not matched, the request
// is passed to the provided handler. There is no guarantee of anything but
// that the server is up. Wrap with other handlers (such as health.Handler)
// for greater affect.
func alive(path string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == path {
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			return
		}

		handler.ServeHTTP(w, r)
	})
}
