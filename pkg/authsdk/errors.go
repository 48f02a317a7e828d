package authsdk

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an AuthError so callers can pick between retry and
// correction messaging.
type ErrorKind string

const (
	KindNetwork           ErrorKind = "network"
	KindCredentials       ErrorKind = "credentials"
	KindSessionExpired    ErrorKind = "session_expired"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindNoActiveChallenge ErrorKind = "no_active_challenge"
	KindInvalidInput      ErrorKind = "invalid_input"
)

// ============================================================================
// AuthError
// ============================================================================

// AuthError is the single error type returned by the auth components. Two
// AuthErrors are equal under errors.Is when their kinds match, which lets
// callers compare against the predefined sentinels below.
type AuthError struct {
	// Kind is the error classification.
	Kind ErrorKind

	// Message is the user-facing message for this kind of failure.
	Message string

	// ServerMessage is the message supplied by the server, if any.
	ServerMessage string

	// StatusCode is the HTTP status that produced the error (0 if none).
	StatusCode int

	// Err is the underlying cause, typically a transport error.
	Err error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	msg := e.Message
	if e.ServerMessage != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.ServerMessage)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the transport cause.
func (e *AuthError) Unwrap() error { return e.Err }

// Is reports whether target is an AuthError of the same kind.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// UserMessage prefers the server's message and falls back to the generic one.
func (e *AuthError) UserMessage() string {
	if e.ServerMessage != "" {
		return e.ServerMessage
	}
	return e.Message
}

// ============================================================================
// Predefined errors
// ============================================================================

var (
	// ErrNetwork is returned when the service could not be reached or is
	// temporarily unable to answer. Retrying is reasonable.
	ErrNetwork = &AuthError{
		Kind:    KindNetwork,
		Message: "network unreachable, check your connection and try again",
	}

	// ErrCredentials is returned when the identifier, secret or one-time code
	// was rejected. The user has to correct their input.
	ErrCredentials = &AuthError{
		Kind:    KindCredentials,
		Message: "invalid credentials",
	}

	// ErrSessionExpired is returned when the refresh token was rejected or is
	// missing. The session has been cleared by the time this is returned.
	ErrSessionExpired = &AuthError{
		Kind:    KindSessionExpired,
		Message: "session expired, please sign in again",
	}

	// ErrMalformedResponse is returned when the server answered without the
	// fields the flow needs, e.g. success without a token.
	ErrMalformedResponse = &AuthError{
		Kind:    KindMalformedResponse,
		Message: "malformed response from authentication service",
	}

	// ErrNoActiveChallenge is returned when a one-time code is submitted while
	// no two-factor challenge is pending.
	ErrNoActiveChallenge = &AuthError{
		Kind:    KindNoActiveChallenge,
		Message: "no active two-factor challenge, sign in first",
	}

	// ErrInvalidInput is returned when a precondition on the caller's input
	// fails. No network call is made.
	ErrInvalidInput = &AuthError{
		Kind:    KindInvalidInput,
		Message: "invalid input",
	}
)

// newAuthError copies a sentinel so the shared values are never mutated.
func newAuthError(base *AuthError, status int, serverMsg string, cause error) *AuthError {
	return &AuthError{
		Kind:          base.Kind,
		Message:       base.Message,
		ServerMessage: serverMsg,
		StatusCode:    status,
		Err:           cause,
	}
}

func networkError(cause error) *AuthError {
	return newAuthError(ErrNetwork, 0, "", cause)
}

func malformed(detail string) *AuthError {
	return newAuthError(ErrMalformedResponse, 0, "", errors.New(detail))
}

// classifyStatus maps a non-2xx status to an error kind. 429 and 5xx are
// retryable and reported as network errors; every other 4xx is a rejection
// of what the caller sent, reported as rejected.
func classifyStatus(status int, rejected *AuthError, serverMsg string) *AuthError {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		err := newAuthError(ErrNetwork, status, serverMsg, nil)
		err.Message = "authentication service unavailable, try again shortly"
		return err
	}
	return newAuthError(rejected, status, serverMsg, nil)
}
