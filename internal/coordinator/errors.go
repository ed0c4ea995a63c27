package coordinator

import "fmt"

// ErrorKind enumerates the request failure taxonomy. Every per-request error
// maps to a structured ERRO reply; none of them terminates the processing
// loop.
type ErrorKind int

const (
	// KindValidation covers missing or malformed required fields.
	KindValidation ErrorKind = iota
	// KindConflict covers duplicate user names or channel titles.
	KindConflict
	// KindNotFound covers references to unknown channels, users or destinations.
	KindNotFound
	// KindUnauthorized covers missing, invalid or expired tokens.
	KindUnauthorized
	// KindForbidden covers acting without the required subscription.
	KindForbidden
	// KindUnknownService covers unrecognized request types.
	KindUnknownService
	// KindInternal covers persistence or relay failures while serving a
	// request. The request fails but the replica does not demote.
	KindInternal
)

// RequestError is a request failure carrying the reply message shown to the
// client.
type RequestError struct {
	Kind    ErrorKind
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

func validationf(format string, args ...any) *RequestError {
	return &RequestError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) *RequestError {
	return &RequestError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) *RequestError {
	return &RequestError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func unauthorized() *RequestError {
	// One message for every credential failure; replies never reveal which
	// part of the credential was wrong.
	return &RequestError{Kind: KindUnauthorized, Message: "Token invalido ou expirado. Faca login novamente."}
}

func forbiddenf(format string, args ...any) *RequestError {
	return &RequestError{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func unknownService(service string) *RequestError {
	return &RequestError{Kind: KindUnknownService, Message: fmt.Sprintf("Servico '%s' nao reconhecido.", service)}
}
