package configuration

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v2"
)

// configStruct returns a canonical example configuration, which should map
// to configYamlV0_1
func configStruct() Configuration {
	config := Configuration{
		Version: "0.1",
		Log: Log{
			Level:     "info",
			Formatter: "json",
			Fields:    map[string]interface{}{"environment": "test"},
		},
		Redis: Redis{
			Addr:         "localhost:6379",
			Password:     "123456",
			DB:           1,
			DialTimeout:  10 * time.Millisecond,
			ReadTimeout:  10 * time.Millisecond,
			WriteTimeout: 10 * time.Millisecond,
		},
		HTTP: HTTP{
			Addr:         ":8181",
			UserFromHost: `^([^.]+)\.maps\.example\.com$`,
			Auth: Auth{
				Keys: map[string]string{"alice": "alicekey"},
			},
		},
		Health: Health{
			FileCheckers: []FileChecker{
				{File: "/tmp/drain", Interval: 5 * time.Second},
			},
			Redis: RedisHealth{
				Enabled:   true,
				Interval:  10 * time.Second,
				Threshold: 3,
			},
		},
	}
	config.Log.AccessLog.Formatter = "json"
	config.Redis.Pool.MaxIdle = 16
	config.Redis.Pool.MaxActive = 64
	config.Redis.Pool.IdleTimeout = 300 * time.Second
	config.HTTP.Debug.Addr = "localhost:5001"
	config.HTTP.Debug.Prometheus.Enabled = true
	config.HTTP.Debug.Prometheus.Path = "/metrics"

	return config
}

// configYamlV0_1 is a Version 0.1 yaml document representing configStruct
const configYamlV0_1 = `
version: 0.1
log:
  level: info
  formatter: json
  accesslog:
    formatter: json
  fields:
    environment: test
redis:
  addr: localhost:6379
  password: 123456
  db: 1
  dialtimeout: 10ms
  readtimeout: 10ms
  writetimeout: 10ms
  pool:
    maxidle: 16
    maxactive: 64
    idletimeout: 300s
http:
  userfromhost: ^([^.]+)\.maps\.example\.com$
  auth:
    keys:
      alice: alicekey
  debug:
    addr: localhost:5001
    prometheus:
      enabled: true
health:
  file:
    - file: /tmp/drain
      interval: 5s
  redis:
    enabled: true
`

// minimalConfigYamlV0_1 is a Version 0.1 yaml document relying on defaults
// for everything
const minimalConfigYamlV0_1 = `
version: 0.1
`

type ConfigSuite struct {
	suite.Suite
	expectedConfig *Configuration
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (suite *ConfigSuite) SetupTest() {
	config := configStruct()
	suite.expectedConfig = &config
}

// TestMarshalRoundtrip validates that configStruct can be marshaled and
// unmarshaled without changing any parameters
func (suite *ConfigSuite) TestMarshalRoundtrip() {
	configBytes, err := yaml.Marshal(suite.expectedConfig)
	suite.Require().NoError(err)
	config, err := Parse(bytes.NewReader(configBytes))
	suite.T().Log(string(configBytes))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseSimple validates that configYamlV0_1 can be parsed into a struct
// matching configStruct
func (suite *ConfigSuite) TestParseSimple() {
	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseDefaults validates that a minimal document gets the defaults
func (suite *ConfigSuite) TestParseDefaults() {
	config, err := Parse(bytes.NewReader([]byte(minimalConfigYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(Loglevel("info"), config.Log.Level)
	suite.Require().Equal("localhost:6379", config.Redis.Addr)
	suite.Require().Equal(":8181", config.HTTP.Addr)
	suite.Require().Equal(`^([^.]+)\.`, config.HTTP.UserFromHost)
	suite.Require().Equal("/metrics", config.HTTP.Debug.Prometheus.Path)
	suite.Require().False(config.Health.Redis.Enabled)
	suite.Require().Equal(10*time.Second, config.Health.Redis.Interval)
	suite.Require().Equal(3, config.Health.Redis.Threshold)
}

// TestParseWithEnvRedis validates that environment variables override the
// redis section, including nested structs.
func (suite *ConfigSuite) TestParseWithEnvRedis() {
	suite.expectedConfig.Redis.Addr = "redis.internal:6380"
	suite.expectedConfig.Redis.Pool.MaxActive = 8

	suite.T().Setenv("MAPSIGN_REDIS_ADDR", "redis.internal:6380")
	suite.T().Setenv("MAPSIGN_REDIS_POOL_MAXACTIVE", "8")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseWithDifferentEnvLoglevel validates that providing an environment variable defining the
// log level will override the value provided in the yaml document
func (suite *ConfigSuite) TestParseWithDifferentEnvLoglevel() {
	suite.expectedConfig.Log.Level = "error"

	suite.T().Setenv("MAPSIGN_LOG_LEVEL", "error")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseInvalidLoglevel validates that the parser will fail to parse a
// configuration if the loglevel is malformed
func (suite *ConfigSuite) TestParseInvalidLoglevel() {
	invalidConfigYaml := "version: 0.1\nlog:\n  level: derp\n"
	_, err := Parse(bytes.NewReader([]byte(invalidConfigYaml)))
	suite.Require().Error(err)

	suite.T().Setenv("MAPSIGN_LOG_LEVEL", "derp")

	_, err = Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().Error(err)
}

// TestParseInvalidVersion validates that the parser will fail to parse a newer configuration
// version than the CurrentVersion
func (suite *ConfigSuite) TestParseInvalidVersion() {
	suite.expectedConfig.Version = MajorMinorVersion(CurrentVersion.Major(), CurrentVersion.Minor()+1)
	configBytes, err := yaml.Marshal(suite.expectedConfig)
	suite.Require().NoError(err)
	_, err = Parse(bytes.NewReader(configBytes))
	suite.Require().Error(err)
}

// TestParseVersionNotOverridable validates that the version cannot be
// changed from the environment.
func (suite *ConfigSuite) TestParseVersionNotOverridable() {
	suite.T().Setenv("MAPSIGN_VERSION", "0.2")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseInvalidUserFromHost validates that a broken owner regexp is
// rejected at parse time.
func (suite *ConfigSuite) TestParseInvalidUserFromHost() {
	suite.T().Setenv("MAPSIGN_HTTP_USERFROMHOST", "^([a-z")

	_, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().Error(err)
}

// TestParseEnvAuthKeys validates that map keys of owners can be added and
// replaced from the environment.
func (suite *ConfigSuite) TestParseEnvAuthKeys() {
	suite.expectedConfig.HTTP.Auth.Keys["alice"] = "rotated"
	suite.expectedConfig.HTTP.Auth.Keys["bob"] = "bobkey"

	suite.T().Setenv("MAPSIGN_HTTP_AUTH_KEYS_ALICE", "rotated")
	suite.T().Setenv("MAPSIGN_HTTP_AUTH_KEYS_BOB", "bobkey")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseExtraneousVars validates that environment variables referring to
// nonexistent variables don't cause side effects.
func (suite *ConfigSuite) TestParseExtraneousVars() {
	// Environment variables which shouldn't set config items
	suite.T().Setenv("MAPSIGN_DUCKS", "quack")
	suite.T().Setenv("MAPSIGN_REDIS_ASDF", "ghjk")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseEnvVarImplicitMaps validates that environment variables can set
// values in maps that don't already exist.
func (suite *ConfigSuite) TestParseEnvVarImplicitMaps() {
	suite.expectedConfig.Log.Fields["service"] = map[string]interface{}{"name": "mapsign"}

	suite.T().Setenv("MAPSIGN_LOG_FIELDS_SERVICE_NAME", "mapsign")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseEnvSliceIndex validates that slice elements are addressed by
// index, and that the slice grows by one element at most.
func (suite *ConfigSuite) TestParseEnvSliceIndex() {
	suite.expectedConfig.Health.FileCheckers[0].Threshold = 2
	suite.expectedConfig.Health.FileCheckers = append(suite.expectedConfig.Health.FileCheckers, FileChecker{File: "/tmp/other"})

	suite.T().Setenv("MAPSIGN_HEALTH_FILECHECKERS_0_THRESHOLD", "2")
	suite.T().Setenv("MAPSIGN_HEALTH_FILECHECKERS_1_FILE", "/tmp/other")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)

	suite.T().Setenv("MAPSIGN_HEALTH_FILECHECKERS_5_FILE", "/tmp/far")
	_, err = Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().Error(err)
}

// TestParseEnvWrongTypeMap validates that incorrectly attempting to unmarshal a
// string over existing map fails.
func (suite *ConfigSuite) TestParseEnvWrongTypeMap() {
	suite.T().Setenv("MAPSIGN_LOG_FIELDS", "somestring")

	_, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().Error(err)
}

// TestParseEnvWrongTypeStruct validates that incorrectly attempting to
// unmarshal a string into a struct fails.
func (suite *ConfigSuite) TestParseEnvWrongTypeStruct() {
	suite.T().Setenv("MAPSIGN_REDIS", "somestring")

	_, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().Error(err)
}

// TestParseEnvWrongTypeSlice validates that incorrectly attempting to
// unmarshal a string into a slice fails.
func (suite *ConfigSuite) TestParseEnvWrongTypeSlice() {
	suite.T().Setenv("MAPSIGN_HEALTH_FILECHECKERS", "somestring")

	_, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().Error(err)
}

// TestParseEnvMany tests several environment variable overrides.
// The result is not checked - the goal of this test is to detect panics
// from misuse of reflection.
func (suite *ConfigSuite) TestParseEnvMany() {
	suite.T().Setenv("MAPSIGN_VERSION", "0.1")
	suite.T().Setenv("MAPSIGN_LOG_LEVEL", "debug")
	suite.T().Setenv("MAPSIGN_LOG_FORMATTER", "logstash")
	suite.T().Setenv("MAPSIGN_LOG_FIELDS", "abc: xyz")
	suite.T().Setenv("MAPSIGN_LOG_FIELDS_NESTED_KEY", "value")
	suite.T().Setenv("MAPSIGN_HTTP_DEBUG_PROMETHEUS_ENABLED", "false")
	suite.T().Setenv("MAPSIGN_HEALTH_REDIS", "enabled: false")
	suite.T().Setenv("MAPSIGN_HEALTH_REDIS_THRESHOLD", "5")

	_, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
}

func checkStructs(tt *testing.T, t reflect.Type, structsChecked map[string]struct{}) {
	tt.Helper()

	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Map || t.Kind() == reflect.Slice {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return
	}
	if _, present := structsChecked[t.String()]; present {
		// Already checked this type
		return
	}

	structsChecked[t.String()] = struct{}{}

	byUpperCase := make(map[string]int)
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)

		// Check that the yaml tag does not contain an _.
		yamlTag := sf.Tag.Get("yaml")
		if strings.Contains(yamlTag, "_") {
			tt.Fatalf("yaml field name includes _ character: %s", yamlTag)
		}
		upper := strings.ToUpper(sf.Name)
		if _, present := byUpperCase[upper]; present {
			tt.Fatalf("field name collision in configuration object: %s", sf.Name)
		}
		byUpperCase[upper] = i

		checkStructs(tt, sf.Type, structsChecked)
	}
}

// TestValidateConfigStruct makes sure that the config struct has no members
// with yaml tags that would be ambiguous to the environment variable parser.
func (suite *ConfigSuite) TestValidateConfigStruct() {
	structsChecked := make(map[string]struct{})
	checkStructs(suite.T(), reflect.TypeOf(Configuration{}), structsChecked)
}
