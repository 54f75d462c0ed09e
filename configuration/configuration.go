package configuration

import (
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// Configuration is a versioned mapsign configuration, intended to be provided
// by a yaml file, and optionally modified by environment variables.
//
// Note that yaml field names should never include _ characters, since this is
// the separator used in environment variable names.
type Configuration struct {
	// Version is the version which defines the format of the rest of the configuration
	Version Version `yaml:"version"`

	// Log supports setting various parameters related to the logging
	// subsystem.
	Log Log `yaml:"log"`

	// Redis configures the store holding templates, locks, certificates and
	// signatures.
	Redis Redis `yaml:"redis,omitempty"`

	// HTTP contains configuration parameters for the http interface.
	HTTP HTTP `yaml:"http,omitempty"`

	// Health provides the configuration section for health checks.
	Health Health `yaml:"health,omitempty"`
}

// Log configures the logging subsystem.
type Log struct {
	// AccessLog configures access logging.
	AccessLog struct {
		// Disabled disables access logging.
		Disabled bool `yaml:"disabled,omitempty"`

		// Formatter is "combined" (apache combined log, the default) or
		// "json".
		Formatter string `yaml:"formatter,omitempty"`
	} `yaml:"accesslog,omitempty"`

	// Level is the granularity at which operations are logged.
	Level Loglevel `yaml:"level,omitempty"`

	// Formatter overrides the default formatter with another. Options
	// include "text", "json" and "logstash".
	Formatter string `yaml:"formatter,omitempty"`

	// Fields allows users to specify static string fields to include in
	// the logger context.
	Fields map[string]interface{} `yaml:"fields,omitempty"`

	// ReportCaller allows user to configure the log to report the caller
	ReportCaller bool `yaml:"reportcaller,omitempty"`
}

// Redis configures the redis pool.
type Redis struct {
	// Addr specifies the redis instance available to the application.
	Addr string `yaml:"addr,omitempty"`

	// Username string to use when making a connection.
	Username string `yaml:"username,omitempty"`

	// Password string to use when making a connection.
	Password string `yaml:"password,omitempty"`

	// DB specifies the database to connect to on the redis instance.
	DB int `yaml:"db,omitempty"`

	// DialTimeout is the timeout for connecting to a redis instance.
	DialTimeout time.Duration `yaml:"dialtimeout,omitempty"`

	// ReadTimeout is the timeout for reading from redis connections.
	ReadTimeout time.Duration `yaml:"readtimeout,omitempty"`

	// WriteTimeout is the timeout for writing to redis connections.
	WriteTimeout time.Duration `yaml:"writetimeout,omitempty"`

	// Pool configures the behavior of the redis connection pool.
	Pool struct {
		// MaxIdle sets the maximum number of idle connections.
		MaxIdle int `yaml:"maxidle,omitempty"`

		// MaxActive sets the maximum number of connections that should be
		// opened before blocking a connection request.
		MaxActive int `yaml:"maxactive,omitempty"`

		// IdleTimeout sets the amount time to wait before closing
		// inactive connections.
		IdleTimeout time.Duration `yaml:"idletimeout,omitempty"`
	} `yaml:"pool,omitempty"`
}

// HTTP configures the http interface.
type HTTP struct {
	// Addr specifies the bind address for the server.
	Addr string `yaml:"addr,omitempty"`

	// Net specifies the net portion of the bind address. A default empty value means tcp.
	Net string `yaml:"net,omitempty"`

	// Prefix specifies the path prefix under which routes are served.
	Prefix string `yaml:"prefix,omitempty"`

	// UserFromHost is the regular expression extracting the owner of a
	// request from its Host header. The first capture group is the owner.
	UserFromHost string `yaml:"userfromhost,omitempty"`

	// Auth configures the credentials required to create, update or
	// delete templates.
	Auth Auth `yaml:"auth,omitempty"`

	// DrainTimeout is the amount of time to wait for connections to drain
	// before shutting down when the server receives a stop signal
	DrainTimeout time.Duration `yaml:"draintimeout,omitempty"`

	// Debug configures the http debug interface, if specified. This can
	// include services such as health checks and metrics.
	Debug struct {
		// Addr specifies the bind address for the debug server.
		Addr string `yaml:"addr,omitempty"`

		// Prometheus configures the Prometheus telemetry endpoint.
		Prometheus struct {
			Enabled bool   `yaml:"enabled,omitempty"`
			Path    string `yaml:"path,omitempty"`
		} `yaml:"prometheus,omitempty"`
	} `yaml:"debug,omitempty"`
}

// Auth holds the map keys of the users allowed to manage templates.
// Mutating template requests must carry the key of their owner in the
// api_key query parameter.
type Auth struct {
	// Disabled lets any request manage templates.
	Disabled bool `yaml:"disabled,omitempty"`

	// Keys maps an owner to its map key. Owners without a key cannot
	// manage templates.
	Keys map[string]string `yaml:"keys,omitempty"`
}

// Health provides the configuration section for health checks.
type Health struct {
	// FileCheckers is a list of paths to check
	FileCheckers []FileChecker `yaml:"file,omitempty"`

	// Redis configures the health check on the redis store.
	Redis RedisHealth `yaml:"redis,omitempty"`
}

// FileChecker is a type of entry in the health section for checking files.
type FileChecker struct {
	// Interval is the duration in between checks
	Interval time.Duration `yaml:"interval,omitempty"`

	// File is the path to check
	File string `yaml:"file,omitempty"`

	// Threshold is the number of times a check must fail to trigger an
	// unhealthy state
	Threshold int `yaml:"threshold,omitempty"`
}

// RedisHealth configures the periodic PING of the redis store.
type RedisHealth struct {
	// Enabled turns on the health check for redis
	Enabled bool `yaml:"enabled,omitempty"`

	// Interval is the duration in between checks
	Interval time.Duration `yaml:"interval,omitempty"`

	// Timeout is the duration to wait before timing out the PING
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Threshold is the number of times a check must fail to trigger an
	// unhealthy state
	Threshold int `yaml:"threshold,omitempty"`
}

// v0_1Configuration is a Version 0.1 Configuration struct
// This is currently aliased to Configuration, as it is the current version
type v0_1Configuration Configuration

// UnmarshalYAML implements the yaml.Unmarshaler interface
// Unmarshals a string of the form X.Y into a Version, validating that X and Y can represent uints
func (version *Version) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var versionString string
	err := unmarshal(&versionString)
	if err != nil {
		return err
	}

	newVersion := Version(versionString)
	if _, err := newVersion.major(); err != nil {
		return err
	}

	if _, err := newVersion.minor(); err != nil {
		return err
	}

	*version = newVersion
	return nil
}

// CurrentVersion is the most recent Version that can be parsed
var CurrentVersion = MajorMinorVersion(0, 1)

// Loglevel is the level at which operations are logged
// This can be error, warn, info, or debug
type Loglevel string

// UnmarshalYAML implements the yaml.Umarshaler interface
// Unmarshals a string into a Loglevel, lowercasing the string and validating that it represents a
// valid loglevel
func (loglevel *Loglevel) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var loglevelString string
	err := unmarshal(&loglevelString)
	if err != nil {
		return err
	}

	loglevelString = strings.ToLower(loglevelString)
	switch loglevelString {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid loglevel %s Must be one of [error, warn, info, debug]", loglevelString)
	}

	*loglevel = Loglevel(loglevelString)
	return nil
}

const (
	defaultLoglevel     = Loglevel("info")
	defaultRedisAddr    = "localhost:6379"
	defaultHTTPAddr     = ":8181"
	defaultUserFromHost = `^([^.]+)\.`
	defaultMetricsPath  = "/metrics"

	defaultRedisHealthInterval  = 10 * time.Second
	defaultRedisHealthThreshold = 3
)

// Parse parses an input configuration yaml document into a Configuration struct
//
// Environment variables may be used to override configuration parameters other than version,
// following the scheme below:
// Configuration.Abc may be replaced by the value of MAPSIGN_ABC,
// Configuration.Abc.Xyz may be replaced by the value of MAPSIGN_ABC_XYZ, and so forth
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	p := NewParser("mapsign", []VersionedParseInfo{
		{
			Version: MajorMinorVersion(0, 1),
			ParseAs: reflect.TypeOf(v0_1Configuration{}),
			ConversionFunc: func(c interface{}) (interface{}, error) {
				if v0_1, ok := c.(*v0_1Configuration); ok {
					if v0_1.Log.Level == Loglevel("") {
						v0_1.Log.Level = defaultLoglevel
					}
					if v0_1.Redis.Addr == "" {
						v0_1.Redis.Addr = defaultRedisAddr
					}
					if v0_1.HTTP.Addr == "" {
						v0_1.HTTP.Addr = defaultHTTPAddr
					}
					if v0_1.HTTP.UserFromHost == "" {
						v0_1.HTTP.UserFromHost = defaultUserFromHost
					}
					if _, err := regexp.Compile(v0_1.HTTP.UserFromHost); err != nil {
						return nil, fmt.Errorf("invalid http.userfromhost: %v", err)
					}
					if v0_1.HTTP.Debug.Prometheus.Path == "" {
						v0_1.HTTP.Debug.Prometheus.Path = defaultMetricsPath
					}
					if v0_1.Health.Redis.Interval == 0 {
						v0_1.Health.Redis.Interval = defaultRedisHealthInterval
					}
					if v0_1.Health.Redis.Threshold == 0 {
						v0_1.Health.Redis.Threshold = defaultRedisHealthThreshold
					}
					return (*Configuration)(v0_1), nil
				}
				return nil, fmt.Errorf("expected *v0_1Configuration, received %#v", c)
			},
		},
	})

	config := new(Configuration)
	err = p.Parse(in, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
