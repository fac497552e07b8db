package model

import (
	"errors"
	"fmt"
)

// ErrorKind groups errors by the layer that produced them.
type ErrorKind string

const (
	// KindValidation - malformed or missing intent parameters.
	KindValidation ErrorKind = "validation"
	// KindCredential - password or secret key problems.
	KindCredential ErrorKind = "credential"
	// KindProtocol - unknown intent, user rejection, broken delivery channel.
	KindProtocol ErrorKind = "protocol"
	// KindNetwork - transport failures and ledger RPC errors.
	KindNetwork ErrorKind = "network"
)

// Error is the single tagged error type shared by all layers, so callers can
// match on Kind and Code instead of string comparison.
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
	// Details carries the raw RPC error payload when available.
	Details any
}

func (e *Error) Error() string {
	return e.Message
}

// As unwraps err into *Error if possible.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	if e, ok := As(err); ok {
		return e.Kind == kind
	}
	return false
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Credentialf creates a credential error with a formatted message.
func Credentialf(format string, args ...any) *Error {
	return &Error{Kind: KindCredential, Message: fmt.Sprintf(format, args...)}
}

// Protocolf creates a protocol error with a formatted message.
func Protocolf(format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, Message: fmt.Sprintf(format, args...)}
}

// Networkf creates a network error with a formatted message.
func Networkf(format string, args ...any) *Error {
	return &Error{Kind: KindNetwork, Message: fmt.Sprintf(format, args...)}
}

// Stable user-facing errors. Codes are part of the public contract and must
// not be renumbered.
var (
	ErrGeneric = &Error{Kind: KindProtocol, Code: 0,
		Message: "Error occurred. If this error persists, please contact our support team."}
	ErrRejectedByUser = &Error{Kind: KindProtocol, Code: 1,
		Message: "Action was rejected by user"}
	ErrInvalidSecretKey = &Error{Kind: KindCredential, Code: 101,
		Message: "Invalid Stellar secret key. Please check if you copied it correctly."}
	ErrEmptySecretKey = &Error{Kind: KindCredential, Code: 102,
		Message: "Stellar secret key is required."}
	ErrInvalidPasswordFormat = &Error{Kind: KindCredential, Code: 103,
		Message: "Invalid password format. Please provide a valid password."}
	ErrInvalidPassword = &Error{Kind: KindCredential, Code: 104,
		Message: "Invalid account password. Please provide a valid password."}
	ErrEncryptedDataNotFound = &Error{Kind: KindCredential, Code: 105,
		Message: "Error decrypting account. Encrypted secret key not found."}
)

// ErrorPayload is the serialized error shape delivered to callers, both in
// cross-window messages and in HTTP responses.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// PayloadFor converts any error into the wire payload {"error":{...}}.
func PayloadFor(err error) map[string]any {
	payload := ErrorPayload{Message: ErrGeneric.Message}
	if err != nil {
		payload.Message = err.Error()
	}
	if e, ok := As(err); ok {
		payload.Code = e.Code
	}
	return map[string]any{"error": payload}
}
