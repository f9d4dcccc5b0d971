package core

import "errors"

// Code is the stable machine-readable identifier of a failure
type Code string

const (
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeChallengeInvalid    Code = "CHALLENGE_INVALID"
	CodeSignerMismatch      Code = "SIGNER_MISMATCH"
	CodeInvalidSignature    Code = "INVALID_SIGNATURE"
	CodeInvalidRefreshToken Code = "INVALID_REFRESH_TOKEN"
	CodeInvalidAccessToken  Code = "INVALID_ACCESS_TOKEN"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// Error is an authentication failure. Code and Message are safe to show to
// callers; Error() returns the internal reason, which may distinguish cases
// that share a Code and must only be logged.
type Error struct {
	Code    Code
	Message string
	reason  string
}

func (e *Error) Error() string {
	return e.reason
}

func newError(code Code, message, reason string) *Error {
	return &Error{Code: code, Message: message, reason: reason}
}

const challengeInvalidMessage = "challenge is expired or does not exist"

var (
	ErrInvalidInput        = newError(CodeInvalidInput, "invalid request", "invalid input")
	ErrRateLimited         = newError(CodeRateLimited, "too many challenge requests, try again later", "rate limited")
	ErrChallengeNotFound   = newError(CodeChallengeInvalid, challengeInvalidMessage, "challenge not found")
	ErrChallengeExpired    = newError(CodeChallengeInvalid, challengeInvalidMessage, "challenge expired")
	ErrSignerMismatch      = newError(CodeSignerMismatch, "wallet does not match the challenge", "signer mismatch")
	ErrInvalidSignature    = newError(CodeInvalidSignature, "signature is not valid for this wallet", "invalid signature")
	ErrInvalidRefreshToken = newError(CodeInvalidRefreshToken, "refresh token is invalid", "invalid refresh token")
	ErrInvalidAccessToken  = newError(CodeInvalidAccessToken, "access token is invalid", "invalid access token")
	ErrInternal            = newError(CodeInternal, "internal error", "internal error")
)

// Store-level conditions. These never leave the service layer.
var (
	ErrNonceExists      = errors.New("nonce already exists")
	ErrSessionNotFound  = errors.New("refresh session not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// AsError extracts the *Error carried by err, falling back to ErrInternal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}
