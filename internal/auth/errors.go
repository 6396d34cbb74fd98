package auth

import (
	"errors"
	"fmt"
)

// Kind classifies an auth failure for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindConflict
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindTooManyRequests
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindTooManyRequests:
		return "too_many_requests"
	default:
		return "internal"
	}
}

// Client-facing messages.
const (
	MsgServerError             = "Server error"
	MsgUserExists              = "User already exists"
	MsgInvalidCredentials      = "Invalid credentials"
	MsgTwoFactorRequired       = "Two-factor authentication required"
	MsgInvalidAuthCode         = "Invalid authentication code"
	MsgTooManyAttempts         = "Too many failed attempts. Please try again later"
	MsgInvalidToken            = "Invalid or expired token"
	MsgAlreadyVerified         = "Email already verified"
	MsgUserNotFound            = "User not found"
	MsgVerificationSendFailed  = "Failed to send verification email"
	MsgResetSendFailed         = "Failed to send password reset email"
	MsgTwoFactorAlreadyEnabled = "2FA is already enabled"
	MsgTwoFactorNotEnabled     = "2FA is not enabled"
	MsgQRCodeFailed            = "Failed to generate QR code"
	MsgInvalidVerificationCode = "Invalid verification code"
	MsgInvalidPassword         = "Invalid password"
)

// Error is returned by every Service operation that fails. Message is safe
// to show to clients; Err carries the internal cause.
type Error struct {
	Kind                      Kind
	Message                   string
	Requires2FA               bool
	RequiresEmailVerification bool
	Err                       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func badRequest(message string) *Error   { return newError(KindBadRequest, message) }
func unauthorized(message string) *Error { return newError(KindUnauthorized, message) }
func notFound(message string) *Error     { return newError(KindNotFound, message) }

func invalidSecondFactor() *Error { return unauthorized(MsgInvalidAuthCode) }

// internal wraps an unexpected failure behind the generic server message.
func internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: MsgServerError, Err: fmt.Errorf("%s: %w", op, err)}
}
