package storage

import (
	"fmt"
	"strings"

	"github.com/mapsign/mapsign"
)

// keyFor maps key specs to the redis keys holding each collection. The
// layout is shared with existing deployments and must not change:
//
//	templateHashKeySpec:     map_tpl|<owner>                 HASH  name -> template JSON
//	templateLockHashKeySpec: map_tpl|<owner>|locks           HASH  name -> lock ctime (ms)
//	certificateSetKeySpec:   map_crt|<signer>                SET   canonical certificate JSON
//	signatureSetKeySpec:     map_sig|<signer>|<resource>     SET   certificate ids
//
// Components are joined with "|", so none of them may contain it. Template
// names cannot by grammar; owners, signers and resources are checked here.
func keyFor(spec keySpec) (string, error) {
	switch v := spec.(type) {
	case templateHashKeySpec:
		if err := checkComponent("owner", v.owner); err != nil {
			return "", err
		}
		return joinKey("map_tpl", v.owner), nil
	case templateLockHashKeySpec:
		if err := checkComponent("owner", v.owner); err != nil {
			return "", err
		}
		return joinKey("map_tpl", v.owner, "locks"), nil
	case certificateSetKeySpec:
		if err := checkComponent("signer", v.signer); err != nil {
			return "", err
		}
		return joinKey("map_crt", v.signer), nil
	case signatureSetKeySpec:
		if err := checkComponent("signer", v.signer); err != nil {
			return "", err
		}
		if err := checkComponent("resource", v.resource); err != nil {
			return "", err
		}
		return joinKey("map_sig", v.signer, v.resource), nil
	default:
		// this is a programming error
		return "", fmt.Errorf("unknown key spec type: %T", v)
	}
}

// checkComponent rejects key components that would alias another key.
func checkComponent(kind, value string) error {
	if value == "" || strings.Contains(value, keySeparator) {
		return mapsign.ErrIdentifierInvalid{Kind: kind, Value: value}
	}
	return nil
}

func joinKey(prefix string, components ...string) string {
	return prefix + keySeparator + strings.Join(components, keySeparator)
}

const keySeparator = "|"

// keySpec is a sealed interface for the key specs understood by keyFor.
type keySpec interface {
	keySpec()
}

// templateHashKeySpec identifies the hash holding the templates of an
// owner, keyed by template name.
type templateHashKeySpec struct {
	owner string
}

func (templateHashKeySpec) keySpec() {}

// templateLockHashKeySpec identifies the hash holding the template locks of
// an owner, keyed by template name. It lives in a namespace distinct from
// templateHashKeySpec.
type templateLockHashKeySpec struct {
	owner string
}

func (templateLockHashKeySpec) keySpec() {}

// certificateSetKeySpec identifies the set of certificates of a signer.
type certificateSetKeySpec struct {
	signer string
}

func (certificateSetKeySpec) keySpec() {}

// signatureSetKeySpec identifies the set of certificate ids signed by
// signer on resource.
type signatureSetKeySpec struct {
	signer   string
	resource string
}

func (signatureSetKeySpec) keySpec() {}
