package identity

import (
	"errors"
	"net/http"
)

// Error codes surfaced to clients and in adapter results.
const (
	CodeMalformedCredential = "MALFORMED_CREDENTIAL"
	CodeStaleCredential     = "STALE_DATA"
	CodeSignatureMismatch   = "SIGNATURE_MISMATCH"
	CodeMalformedUserData   = "MALFORMED_USER_DATA"
	CodeAmbiguousIdentity   = "AMBIGUOUS_IDENTITY"
	CodeAdapterTimeout      = "ADAPTER_TIMEOUT"
	CodeInternalFailure     = "INTERNAL_FAILURE"
	CodeSchemaBreach        = "SCHEMA_BREACH"
	CodeNoCredential        = "MISSING_TRANSPORT_DATA"
	CodeCancelled           = "REQUEST_CANCELLED"
)

var (
	ErrMalformedCredential = errors.New("credential could not be parsed")
	ErrStaleCredential     = errors.New("credential is outside the freshness window")
	ErrSignatureMismatch   = errors.New("credential signature is invalid")
	ErrMalformedUserData   = errors.New("credential user data is malformed")
	ErrAmbiguousIdentity   = errors.New("ambiguous identity: more than one credential header")
	ErrAdapterTimeout      = errors.New("identity adapter timed out")
	ErrInternalFailure     = errors.New("identity adapter failed")
	ErrSchemaBreach        = errors.New("identity adapter returned a malformed result")
	ErrNoCredential        = errors.New("no identity credential presented")
	ErrCancelled           = errors.New("identity verification cancelled")
)

var codeErrors = map[string]error{
	CodeMalformedCredential: ErrMalformedCredential,
	CodeStaleCredential:     ErrStaleCredential,
	CodeSignatureMismatch:   ErrSignatureMismatch,
	CodeMalformedUserData:   ErrMalformedUserData,
	CodeAmbiguousIdentity:   ErrAmbiguousIdentity,
	CodeAdapterTimeout:      ErrAdapterTimeout,
	CodeInternalFailure:     ErrInternalFailure,
	CodeSchemaBreach:        ErrSchemaBreach,
	CodeNoCredential:        ErrNoCredential,
	CodeCancelled:           ErrCancelled,
}

// Code returns the client-facing code for err, or CodeInternalFailure for
// errors outside the identity taxonomy.
func Code(err error) string {
	for code, target := range codeErrors {
		if errors.Is(err, target) {
			return code
		}
	}
	return CodeInternalFailure
}

// errorForCode maps an adapter result code back to its sentinel. Unknown or
// empty codes on a failed result mean the signature did not verify.
func errorForCode(code string) error {
	if err, ok := codeErrors[code]; ok {
		return err
	}
	return ErrSignatureMismatch
}

// HTTPStatus maps a rejection to its response status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrAmbiguousIdentity):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoCredential):
		return http.StatusForbidden
	case errors.Is(err, ErrAdapterTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}
