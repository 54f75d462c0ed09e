package mapsign

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// TemplateVersion is the only template format version accepted by the
// registry.
const TemplateVersion = "0.0.1"

// TemplateNameRegexp is the grammar a template name must match.
var TemplateNameRegexp = regexp.MustCompile(`^[A-Za-z][0-9A-Za-z_]*$`)

// Template is a named, versioned layergroup definition together with the
// authorization descriptor governing access to its instances. The JSON form
// is the persisted document format.
type Template struct {
	Version string `json:"version"`
	Name    string `json:"name"`

	// Auth describes who may access instances of the template. A copy of
	// it, scoped with the template name, becomes the template certificate.
	Auth map[string]any `json:"auth"`

	// Layergroup is the opaque resource definition. It is never
	// interpreted, only carried.
	Layergroup json.RawMessage `json:"layergroup,omitempty"`

	// AuthID references the certificate installed for this template. It is
	// assigned by the registry and overwrites any value sent by a caller.
	AuthID string `json:"auth_id,omitempty"`

	// Extra holds the members not listed above, such as "placeholders".
	// They are stored and returned byte for byte.
	Extra map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes a template document. Numbers inside auth are kept
// as json.Number so that no precision is lost, and unknown members are
// collected in Extra.
func (t *Template) UnmarshalJSON(p []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(p, &members); err != nil {
		return err
	}
	if members == nil {
		return fmt.Errorf("template is not a JSON object")
	}

	*t = Template{}
	for key, raw := range members {
		var err error
		switch key {
		case "version":
			err = json.Unmarshal(raw, &t.Version)
		case "name":
			err = json.Unmarshal(raw, &t.Name)
		case "auth":
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.UseNumber()
			err = dec.Decode(&t.Auth)
		case "layergroup":
			t.Layergroup = raw
		case "auth_id":
			err = json.Unmarshal(raw, &t.AuthID)
		default:
			if t.Extra == nil {
				t.Extra = make(map[string]json.RawMessage)
			}
			t.Extra[key] = raw
		}
		if err != nil {
			return fmt.Errorf("template member %q: %w", key, err)
		}
	}
	return nil
}

// MarshalJSON encodes the template with its Extra members alongside the
// known ones.
func (t Template) MarshalJSON() ([]byte, error) {
	members := make(map[string]any, len(t.Extra)+5)
	for key, raw := range t.Extra {
		members[key] = raw
	}

	members["version"] = t.Version
	members["name"] = t.Name
	members["auth"] = t.Auth
	if len(t.Layergroup) > 0 {
		members["layergroup"] = t.Layergroup
	}
	if t.AuthID != "" {
		members["auth_id"] = t.AuthID
	}
	return json.Marshal(members)
}

// Validate checks the template version and name, in that order.
func (t Template) Validate() error {
	if t.Version != TemplateVersion {
		return ErrTemplateVersionUnsupported{Version: t.Version}
	}

	return ValidateTemplateName(t.Name)
}

// ValidateTemplateName returns ErrTemplateNameInvalid when name is empty or
// does not match TemplateNameRegexp.
func ValidateTemplateName(name string) error {
	if name == "" || !TemplateNameRegexp.MatchString(name) {
		return ErrTemplateNameInvalid{Name: name}
	}
	return nil
}

// Certificate derives the certificate installed for the template: a copy of
// Auth with "template_id" set to the template name, so that identical auth
// descriptors on different templates still hash to different ids.
func (t Template) Certificate() Certificate {
	cert := make(Certificate, len(t.Auth)+1)
	for k, v := range t.Auth {
		cert[k] = v
	}
	cert["template_id"] = t.Name
	return cert
}

// Sealed returns the form of the template that gets persisted: AuthID set
// and the "name" entry removed from a copy of Auth.
func (t Template) Sealed(authID string) Template {
	if t.Auth != nil {
		auth := make(map[string]any, len(t.Auth))
		for k, v := range t.Auth {
			if k == "name" {
				continue
			}
			auth[k] = v
		}
		t.Auth = auth
	}

	t.AuthID = authID
	return t
}
