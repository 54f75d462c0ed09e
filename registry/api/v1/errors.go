package v1

import (
	"net/http"

	"github.com/mapsign/mapsign/registry/api/errcode"
)

const errGroup = "mapsign.api.v1"

var (
	// ErrorCodeTemplateVersionUnsupported is returned when a template
	// declares a format version the server does not handle.
	ErrorCodeTemplateVersionUnsupported = errcode.Register(errGroup, errcode.ErrorDescriptor{
		Value:   "TEMPLATE_VERSION_UNSUPPORTED",
		Message: "unsupported template version",
		Description: `The version field of the template is not one the
		server understands. Only "0.0.1" is accepted.`,
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeTemplateNameInvalid is returned when a template name is
	// missing or contains characters outside of the name grammar.
	ErrorCodeTemplateNameInvalid = errcode.Register(errGroup, errcode.ErrorDescriptor{
		Value:   "TEMPLATE_NAME_INVALID",
		Message: "invalid template name",
		Description: `Template names start with a letter followed by letters,
		digits or underscores.`,
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeTemplateInvalid is returned when a template document cannot
	// be decoded.
	ErrorCodeTemplateInvalid = errcode.Register(errGroup, errcode.ErrorDescriptor{
		Value:          "TEMPLATE_INVALID",
		Message:        "template invalid",
		Description:    `The request body is not a JSON template document.`,
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeTemplateLocked is returned when another operation on the
	// same template is in progress.
	ErrorCodeTemplateLocked = errcode.Register(errGroup, errcode.ErrorDescriptor{
		Value:   "TEMPLATE_LOCKED",
		Message: "template is locked",
		Description: `Another operation holds the lock on the template. The
		request may be retried later.`,
		HTTPStatusCode: http.StatusConflict,
	})

	// ErrorCodeTemplateExists is returned when adding a template under a
	// name already in use by the owner.
	ErrorCodeTemplateExists = errcode.Register(errGroup, errcode.ErrorDescriptor{
		Value:          "TEMPLATE_EXISTS",
		Message:        "template already exists",
		Description:    `The owner already has a template with this name.`,
		HTTPStatusCode: http.StatusConflict,
	})

	// ErrorCodeTemplateUnknown is returned when a template is not known to
	// the server.
	ErrorCodeTemplateUnknown = errcode.Register(errGroup, errcode.ErrorDescriptor{
		Value:          "TEMPLATE_UNKNOWN",
		Message:        "template not found",
		Description:    `The owner has no template with this name.`,
		HTTPStatusCode: http.StatusNotFound,
	})

	// ErrorCodeCertificateUnknown is returned when a certificate id does not
	// resolve.
	ErrorCodeCertificateUnknown = errcode.Register(errGroup, errcode.ErrorDescriptor{
		Value:          "CERTIFICATE_UNKNOWN",
		Message:        "certificate not found",
		Description:    `The signer has no certificate with this id.`,
		HTTPStatusCode: http.StatusNotFound,
	})

	// ErrorCodeOwnerUnknown is returned when the owner of a request cannot
	// be resolved from its host.
	ErrorCodeOwnerUnknown = errcode.Register(errGroup, errcode.ErrorDescriptor{
		Value:   "OWNER_UNKNOWN",
		Message: "owner could not be resolved",
		Description: `Requests are made on behalf of the user named by the
		first label of the host. This error is returned when the host does
		not carry one.`,
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeIdentifierInvalid is returned when an owner, signer or
	// resource cannot be used to address the store.
	ErrorCodeIdentifierInvalid = errcode.Register(errGroup, errcode.ErrorDescriptor{
		Value:   "IDENTIFIER_INVALID",
		Message: "invalid identifier",
		Description: `Owners, signers and resources must be non-empty and
		must not contain the "|" character.`,
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeUnauthorized is returned when a request managing templates
	// does not carry the map key of the owner.
	ErrorCodeUnauthorized = errcode.Register(errGroup, errcode.ErrorDescriptor{
		Value:   "UNAUTHORIZED",
		Message: "authentication required",
		Description: `Creating, updating and deleting templates requires the
		map key of the owner in the api_key query parameter.`,
		HTTPStatusCode: http.StatusUnauthorized,
	})
)
