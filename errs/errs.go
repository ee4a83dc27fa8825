// Package errs defines the tagged error taxonomy that every public
// operation in this module returns instead of ad-hoc error strings.
//
// Each failure kind has a stable Code. Handlers map
// Code to transport status; this package never does that mapping itself.
package errs

import "fmt"

// Code is a stable, machine-comparable error identifier.
type Code string

const (
	// Integrity.
	CodeAuthenticateJwsMissing   Code = "AuthenticateJwsMissing"
	CodeAuthorizationMissing     Code = "AuthorizationMissing"
	CodeSignatureCountInvalid    Code = "SignatureCountInvalid"
	CodePayloadSchemaInvalid     Code = "PayloadSchemaInvalid"
	CodeDescriptorCidMismatch    Code = "DescriptorCidMismatch"
	CodePayloadExtraneousProp    Code = "PayloadExtraneousProperty"
	CodePayloadPropertyNotCid    Code = "PayloadPropertyNotCid"
	CodeTimestampInvalid         Code = "TimestampInvalid"
	CodeRecordIdMismatch         Code = "RecordIdMismatch"
	CodeContextIdMismatch        Code = "ContextIdMismatch"
	CodeInitialWriteRecordId     Code = "InitialWriteRecordIdMismatch"
	CodeInitialWriteContextId    Code = "InitialWriteContextIdMismatch"
	CodeImmutableFieldChanged    Code = "ImmutableFieldChanged"
	CodeDateCreatedMismatch      Code = "DateCreatedMismatch"

	// Authentication.
	CodeAuthenticateSignerNotFound        Code = "AuthenticateSignerNotFound"
	CodeAuthenticateAlgorithmUnsupported  Code = "AuthenticateAlgorithmUnsupported"
	CodeAuthenticateSignatureInvalid      Code = "AuthenticateSignatureInvalid"

	// Canonical authorization.
	CodeAuthorizationGrantNotImplemented Code = "AuthorizationGrantNotImplemented"

	// Protocol authorization.
	CodeProtocolDefinitionNotFound   Code = "ProtocolDefinitionNotFound"
	CodeInvalidType                  Code = "InvalidType"
	CodeInvalidSchema                Code = "InvalidSchema"
	CodeIncorrectDataFormat          Code = "IncorrectDataFormat"
	CodeIncorrectProtocolPath        Code = "IncorrectProtocolPath"
	CodeMissingRuleSet               Code = "MissingRuleSet"
	CodeNotARole                     Code = "NotARole"
	CodeMissingRole                  Code = "MissingRole"
	CodeActionNotAllowed             Code = "ActionNotAllowed"
	CodeDuplicateRoleRecipientGlobal Code = "DuplicateRoleRecipientGlobal"
	CodeDuplicateRoleRecipientCtx    Code = "DuplicateRoleRecipientContext"
	CodeRoleMissingRecipient         Code = "RoleMissingRecipient"
	CodeInitialWriteAuthorMismatch   Code = "InitialWriteAuthorMismatch"
	CodeAncestorNotFound             Code = "AncestorNotFound"
	CodeAncestorCycle                Code = "AncestorCycle"

	// Grant authorization.
	CodeGrantNotFound          Code = "GrantNotFound"
	CodeGrantGrantorMismatch   Code = "GrantGrantorMismatch"
	CodeGrantGranteeMismatch   Code = "GrantGranteeMismatch"
	CodeGrantNotYetActive      Code = "GrantNotYetActive"
	CodeGrantExpired           Code = "GrantExpired"
	CodeGrantRevoked           Code = "GrantRevoked"
	CodeGrantInterfaceMismatch Code = "GrantInterfaceMismatch"
	CodeGrantMethodMismatch    Code = "GrantMethodMismatch"
	CodeGrantScopeMismatch     Code = "GrantScopeMismatch"

	// Content-addressing.
	CodeCidCodecNotSupported     Code = "CidCodecNotSupported"
	CodeCidMultihashNotSupported Code = "CidMultihashNotSupported"
	CodeCidParseError            Code = "CidParseError"
)

// Error is the concrete error type returned by every public operation.
type Error struct {
	Code Code
	// Message is a human-readable description; safe to surface to a caller.
	Message string
	// Err is the underlying cause, if any (e.g. a store I/O error).
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Code == code
	}

	return false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok { //nolint:errorlint
			*target = e

			return true
		}

		u, ok := err.(interface{ Unwrap() error }) //nolint:errorlint
		if !ok {
			return false
		}

		err = u.Unwrap()
	}

	return false
}
