package mapsign

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"github.com/mitchellh/mapstructure"
)

// Authorization methods understood by AuthDescriptor.
const (
	// AuthMethodOpen grants access to anyone, with or without a credential.
	AuthMethodOpen = "open"

	// AuthMethodToken grants access to holders of one of ValidTokens.
	AuthMethodToken = "token"
)

// Certificate is a content-addressed authorization descriptor. Its id is
// the hex md5 digest of its canonical JSON serialization, so the same
// content always yields the same id and any change yields a new one.
type Certificate map[string]any

// Canonical returns the RFC 8785 serialization of the certificate. These
// bytes are what gets stored and hashed. RFC 8785 writes numbers as IEEE
// 754 doubles, so integers beyond 2^53 are rounded in the canonical form.
func (c Certificate) Canonical() ([]byte, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

// ID computes the certificate id.
func (c Certificate) ID() (string, error) {
	canonical, err := c.Canonical()
	if err != nil {
		return "", err
	}
	return CertificateID(canonical), nil
}

// CertificateID returns the id of an already serialized certificate.
func CertificateID(canonical []byte) string {
	sum := md5.Sum(canonical)
	return hex.EncodeToString(sum[:])
}

// ParseCertificate decodes a certificate. Numbers are kept as json.Number.
func ParseCertificate(p []byte) (Certificate, error) {
	var c Certificate
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("certificate is not a JSON object")
	}
	return c, nil
}

// AuthDescriptor is the decoded authorization part of a certificate.
type AuthDescriptor struct {
	Method      string   `mapstructure:"method"`
	ValidTokens []string `mapstructure:"valid_tokens"`
}

// Descriptor extracts the authorization descriptor. Signature certificates
// carry it under "auth"; template certificates are the descriptor
// themselves.
func (c Certificate) Descriptor() (AuthDescriptor, error) {
	var input any = map[string]any(c)
	if auth, ok := c["auth"].(map[string]any); ok {
		input = auth
	}

	var desc AuthDescriptor
	if err := mapstructure.WeakDecode(input, &desc); err != nil {
		return AuthDescriptor{}, err
	}
	return desc, nil
}

// Accepts reports whether the descriptor grants access to the holder of
// credential. Unknown or missing methods accept nothing.
func (d AuthDescriptor) Accepts(credential string) bool {
	switch d.Method {
	case AuthMethodOpen:
		return true
	case AuthMethodToken:
		if credential == "" {
			return false
		}
		for _, token := range d.ValidTokens {
			if token == credential {
				return true
			}
		}
	}
	return false
}
