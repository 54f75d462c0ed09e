package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mapsign/mapsign"
	"github.com/mapsign/mapsign/registry/api/errcode"
	v1 "github.com/mapsign/mapsign/registry/api/v1"
)

// serveJSON marshals v and sets the content-type header to
// 'application/json'. If a different status code is required, call
// ResponseWriter.WriteHeader before this function.
func serveJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)

	if err := enc.Encode(v); err != nil {
		return err
	}

	return nil
}

// serveErrors writes errs in the errcode envelope, with the status of the
// first error.
func serveErrors(w http.ResponseWriter, errs errcode.Errors) error {
	return errcode.ServeJSON(w, errs)
}

// apiError translates an error returned by the template or signature
// services into the errcode reported to clients.
func apiError(err error) errcode.Error {
	var (
		versionErr     mapsign.ErrTemplateVersionUnsupported
		nameErr        mapsign.ErrTemplateNameInvalid
		lockedErr      mapsign.ErrTemplateLocked
		existsErr      mapsign.ErrTemplateExists
		unknownErr     mapsign.ErrTemplateUnknown
		certUnknownErr mapsign.ErrCertificateUnknown
		notImplErr     mapsign.ErrNotImplemented
		identErr       mapsign.ErrIdentifierInvalid
		storeErr       mapsign.ErrStoreFailure
		codeErr        errcode.Error
	)

	switch {
	case errors.As(err, &codeErr):
		return codeErr
	case errors.As(err, &versionErr):
		return v1.ErrorCodeTemplateVersionUnsupported.WithDetail(map[string]string{"version": versionErr.Version})
	case errors.As(err, &nameErr):
		return v1.ErrorCodeTemplateNameInvalid.WithDetail(map[string]string{"name": nameErr.Name})
	case errors.As(err, &lockedErr):
		return v1.ErrorCodeTemplateLocked.WithDetail(map[string]string{"name": lockedErr.Name})
	case errors.As(err, &existsErr):
		return v1.ErrorCodeTemplateExists.WithDetail(map[string]string{"name": existsErr.Name})
	case errors.As(err, &unknownErr):
		return v1.ErrorCodeTemplateUnknown.WithDetail(map[string]string{"name": unknownErr.Name})
	case errors.As(err, &certUnknownErr):
		return v1.ErrorCodeCertificateUnknown.WithDetail(map[string]string{"id": certUnknownErr.ID})
	case errors.As(err, &identErr):
		return v1.ErrorCodeIdentifierInvalid.WithDetail(map[string]string{identErr.Kind: identErr.Value})
	case errors.As(err, &notImplErr):
		return errcode.ErrorCodeNotImplemented.WithDetail(notImplErr.Operation)
	case errors.As(err, &storeErr):
		// the store error itself stays in the logs
		return errcode.ErrorCodeUnavailable.WithDetail(map[string]string{"op": storeErr.Op})
	default:
		return errcode.ErrorCodeUnknown.WithDetail(err.Error())
	}
}

// errorCodeValue returns the code value of err for metric labels.
func errorCodeValue(err error) string {
	var coder errcode.ErrorCoder
	if errors.As(err, &coder) {
		return coder.ErrorCode().String()
	}
	return errcode.ErrorCodeUnknown.String()
}
