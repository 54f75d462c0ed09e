package configuration

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Version is a major/minor version pair of the form Major.Minor
// Major version upgrades indicate structure or type changes
// Minor version upgrades should be strictly additive
type Version string

// MajorMinorVersion constructs a Version from its Major and Minor components
func MajorMinorVersion(major, minor uint) Version {
	return Version(fmt.Sprintf("%d.%d", major, minor))
}

func (version Version) major() (uint, error) {
	majorPart := strings.Split(string(version), ".")[0]
	major, err := strconv.ParseUint(majorPart, 10, 0)
	return uint(major), err
}

// Major returns the major version portion of a Version
func (version Version) Major() uint {
	major, _ := version.major()
	return major
}

func (version Version) minor() (uint, error) {
	parts := strings.Split(string(version), ".")
	if len(parts) < 2 {
		return 0, fmt.Errorf("version %q has no minor part", string(version))
	}
	minor, err := strconv.ParseUint(parts[1], 10, 0)
	return uint(minor), err
}

// Minor returns the minor version portion of a Version
func (version Version) Minor() uint {
	minor, _ := version.minor()
	return minor
}

// VersionedParseInfo defines how a specific version of a configuration should
// be parsed into the current version
type VersionedParseInfo struct {
	// Version is the version which this parsing information relates to
	Version Version
	// ParseAs defines the type which a configuration file of this version
	// should be parsed into
	ParseAs reflect.Type
	// ConversionFunc defines a method for converting the parsed configuration
	// (of type ParseAs) into the current configuration version
	ConversionFunc func(interface{}) (interface{}, error)
}

type envVar struct {
	name  string
	value string
}

// Parser can be used to parse a configuration file and environment of a defined
// version into a unified output structure
type Parser struct {
	prefix  string
	mapping map[Version]VersionedParseInfo
	env     []envVar
}

// NewParser returns a *Parser with the given environment prefix which handles
// versioned configurations which match the given parseInfos
func NewParser(prefix string, parseInfos []VersionedParseInfo) *Parser {
	p := Parser{prefix: prefix, mapping: make(map[Version]VersionedParseInfo)}

	for _, parseInfo := range parseInfos {
		p.mapping[parseInfo.Version] = parseInfo
	}

	for _, env := range os.Environ() {
		name, value, _ := strings.Cut(env, "=")
		p.env = append(p.env, envVar{name: name, value: value})
	}

	// Parents sort before their children, so MAPSIGN_LOG is applied before
	// MAPSIGN_LOG_LEVEL.
	sort.Slice(p.env, func(i, j int) bool {
		return p.env[i].name < p.env[j].name
	})

	return &p
}

// Parse reads in the given []byte and environment and writes the resulting
// configuration into the input v
//
// Environment variables may be used to override configuration parameters other
// than version, following the scheme below:
// v.Abc may be replaced by the value of PREFIX_ABC,
// v.Abc.Xyz may be replaced by the value of PREFIX_ABC_XYZ, and so forth.
// Slice elements are addressed by index: PREFIX_ABC_0_XYZ.
func (p *Parser) Parse(in []byte, v interface{}) error {
	var versionedStruct struct {
		Version Version
	}

	if err := yaml.Unmarshal(in, &versionedStruct); err != nil {
		return err
	}

	parseInfo, ok := p.mapping[versionedStruct.Version]
	if !ok {
		return fmt.Errorf("unsupported version: %q", versionedStruct.Version)
	}

	parseAs := reflect.New(parseInfo.ParseAs)
	err := yaml.Unmarshal(in, parseAs.Interface())
	if err != nil {
		return err
	}

	envPrefix := strings.ToUpper(p.prefix) + "_"
	for _, env := range p.env {
		if !strings.HasPrefix(env.name, envPrefix) {
			continue
		}

		path := strings.Split(strings.TrimPrefix(env.name, envPrefix), "_")
		if path[0] == "VERSION" {
			// the version selects the format and cannot be overridden
			continue
		}

		if err := p.overwriteFields(parseAs, env.name, path, env.value); err != nil {
			return err
		}
	}

	c, err := parseInfo.ConversionFunc(parseAs.Interface())
	if err != nil {
		return err
	}
	reflect.ValueOf(v).Elem().Set(reflect.Indirect(reflect.ValueOf(c)))
	return nil
}

// overwriteFields replaces the value at path inside v with payload parsed as
// YAML. v must be settable.
func (p *Parser) overwriteFields(v reflect.Value, fullpath string, path []string, payload string) error {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = reflect.Indirect(v)
	}

	switch v.Kind() {
	case reflect.Struct:
		return p.overwriteStruct(v, fullpath, path, payload)
	case reflect.Map:
		return p.overwriteMap(v, fullpath, path, payload)
	case reflect.Slice:
		return p.overwriteSlice(v, fullpath, path, payload)
	case reflect.Interface:
		if v.NumMethod() == 0 {
			if !v.IsNil() {
				if inner := v.Elem(); inner.Kind() == reflect.Map {
					return p.overwriteMap(inner, fullpath, path, payload)
				}
			}
			// Interface was empty or a scalar; create an implicit map
			implicit := reflect.MakeMap(reflect.TypeOf(map[string]interface{}{}))
			v.Set(implicit)
			return p.overwriteMap(implicit, fullpath, path, payload)
		}
	}

	logrus.Warnf("ignoring environment variable %s: cannot descend into %s", fullpath, v.Kind())
	return nil
}

func (p *Parser) overwriteStruct(v reflect.Value, fullpath string, path []string, payload string) error {
	// Fields are matched case-insensitively by name.
	byUpperCase := make(map[string]int)
	for i := 0; i < v.NumField(); i++ {
		byUpperCase[strings.ToUpper(v.Type().Field(i).Name)] = i
	}

	fieldIndex, present := byUpperCase[path[0]]
	if !present {
		logrus.Warnf("ignoring unrecognized environment variable %s", fullpath)
		return nil
	}
	field := v.Field(fieldIndex)
	sf := v.Type().Field(fieldIndex)

	if len(path) == 1 {
		return setFromPayload(field, sf.Type, fullpath, payload)
	}

	// If the field is nil, reserve space for it
	switch sf.Type.Kind() {
	case reflect.Map:
		if field.IsNil() {
			field.Set(reflect.MakeMap(sf.Type))
		}
	case reflect.Ptr:
		if field.IsNil() {
			field.Set(reflect.New(sf.Type.Elem()))
		}
	}

	return p.overwriteFields(field, fullpath, path[1:], payload)
}

func (p *Parser) overwriteMap(m reflect.Value, fullpath string, path []string, payload string) error {
	if m.Type().Key().Kind() != reflect.String {
		// non-string keys unsupported
		logrus.Warnf("ignoring environment variable %s involving map with non-string keys", fullpath)
		return nil
	}

	key := reflect.ValueOf(strings.ToLower(path[0])).Convert(m.Type().Key())
	elemType := m.Type().Elem()

	// Map values are not addressable; work on a copy and store it back.
	value := reflect.New(elemType).Elem()
	if existing := m.MapIndex(key); existing.IsValid() {
		value.Set(existing)
	}

	if len(path) == 1 {
		if err := setFromPayload(value, elemType, fullpath, payload); err != nil {
			return err
		}
	} else if err := p.overwriteFields(value, fullpath, path[1:], payload); err != nil {
		return err
	}

	m.SetMapIndex(key, value)
	return nil
}

func (p *Parser) overwriteSlice(s reflect.Value, fullpath string, path []string, payload string) error {
	index, err := strconv.Atoi(path[0])
	if err != nil || index < 0 {
		logrus.Warnf("ignoring environment variable %s: %q is not a slice index", fullpath, path[0])
		return nil
	}
	if index > s.Len() {
		return fmt.Errorf("environment variable %s: index %d skips elements of a slice of length %d", fullpath, index, s.Len())
	}
	if index == s.Len() {
		s.Set(reflect.Append(s, reflect.New(s.Type().Elem()).Elem()))
	}

	elem := s.Index(index)
	if len(path) == 1 {
		return setFromPayload(elem, s.Type().Elem(), fullpath, payload)
	}
	return p.overwriteFields(elem, fullpath, path[1:], payload)
}

func setFromPayload(v reflect.Value, t reflect.Type, fullpath, payload string) error {
	fieldVal := reflect.New(t)
	if err := yaml.Unmarshal([]byte(payload), fieldVal.Interface()); err != nil {
		return fmt.Errorf("parsing environment variable %s: %w", fullpath, err)
	}
	v.Set(reflect.Indirect(fieldVal))
	return nil
}
