package protocol

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error exposes methods useful for categorizing errors.
type Error interface {
	error

	// MayHaveSucceeded returns true if the Error was triggered by a request that might have been
	// executed. For example, if the vendor backend accepted a lock request but the client stopped
	// polling before a terminal status arrived, then the client cannot tell if the vehicle locked.
	MayHaveSucceeded() bool

	// Temporary returns true if the Error might be the result of a transient condition, such as
	// rate limiting or a backend outage.
	Temporary() bool
}

type CommandError struct {
	Err               error
	PossibleSuccess   bool
	PossibleTemporary bool
}

func NewError(message string, mayHaveSucceeded bool, temporary bool) error {
	return &CommandError{Err: errors.New(message), PossibleSuccess: mayHaveSucceeded, PossibleTemporary: temporary}
}

func (e *CommandError) Error() string {
	return e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (e *CommandError) MayHaveSucceeded() bool {
	return e.PossibleSuccess
}

func (e *CommandError) Temporary() bool {
	return e.PossibleTemporary
}

// AuthErrorKind classifies why a login, refresh, or re-login failed.
type AuthErrorKind int

const (
	AuthUnknown AuthErrorKind = iota
	// AuthInvalidCredentials means the identity provider rejected the username or password.
	AuthInvalidCredentials
	// AuthConsentRequired means the account must accept updated terms or grant consent in a
	// browser before the API can be used.
	AuthConsentRequired
	// AuthAccountLocked means the identity provider locked the account, typically after too many
	// failed attempts.
	AuthAccountLocked
	// AuthUnexpectedResponseShape means a login page or token response did not look like anything
	// the client knows how to handle. This usually indicates the vendor changed its login UI.
	AuthUnexpectedResponseShape
	// AuthNetworkError means the identity provider could not be reached.
	AuthNetworkError
)

var authKindNames = map[AuthErrorKind]string{
	AuthUnknown:                 "unknown",
	AuthInvalidCredentials:      "invalid credentials",
	AuthConsentRequired:         "consent required",
	AuthAccountLocked:           "account locked",
	AuthUnexpectedResponseShape: "unexpected response shape",
	AuthNetworkError:            "network error",
}

func (k AuthErrorKind) String() string {
	if name, ok := authKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("AuthErrorKind(%d)", int(k))
}

// AuthError is returned when the client cannot obtain or renew an authenticated session.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	Err     error
}

// NewAuthError returns an AuthError of the given kind.
func NewAuthError(kind AuthErrorKind, message string, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: message, Err: cause}
}

func (e *AuthError) Error() string {
	msg := "authentication failed: " + e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches any AuthError sentinel of the same kind, so errors.Is(err, ErrInvalidCredentials)
// works regardless of the message.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func (e *AuthError) MayHaveSucceeded() bool {
	return false
}

func (e *AuthError) Temporary() bool {
	return e.Kind == AuthNetworkError
}

var (
	ErrInvalidCredentials      = &AuthError{Kind: AuthInvalidCredentials}
	ErrConsentRequired         = &AuthError{Kind: AuthConsentRequired}
	ErrAccountLocked           = &AuthError{Kind: AuthAccountLocked}
	ErrUnexpectedResponseShape = &AuthError{Kind: AuthUnexpectedResponseShape}
	ErrAuthNetwork             = &AuthError{Kind: AuthNetworkError}
)

// TransientApiError indicates an API call failed because of rate limiting, a server error, or a
// network failure, and that the client's retry budget was exhausted.
type TransientApiError struct {
	StatusCode int // Zero if no HTTP response was received.
	Endpoint   string
	Attempts   int
	Message    string
	Err        error
}

func (e *TransientApiError) Error() string {
	status := "no response"
	if e.StatusCode != 0 {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	msg := fmt.Sprintf("transient error from %s after %d attempt(s): %s", e.Endpoint, e.Attempts, status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransientApiError) Unwrap() error {
	return e.Err
}

func (e *TransientApiError) Temporary() bool {
	return true
}

func (e *TransientApiError) MayHaveSucceeded() bool {
	if e.StatusCode == 0 {
		return e.Err != nil
	}
	if e.StatusCode < 500 {
		return false
	}
	return e.StatusCode != http.StatusServiceUnavailable
}

// PermanentApiError indicates the backend rejected a request in a way that retrying cannot fix,
// such as 400, 403, or 404.
type PermanentApiError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *PermanentApiError) Error() string {
	msg := fmt.Sprintf("request to %s failed: %d %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *PermanentApiError) MayHaveSucceeded() bool {
	return false
}

func (e *PermanentApiError) Temporary() bool {
	return false
}

// ProtocolError indicates the backend returned a payload the client could not decode.
type ProtocolError struct {
	Endpoint        string
	Err             error
	PossibleSuccess bool
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed response from %s: %s", e.Endpoint, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func (e *ProtocolError) MayHaveSucceeded() bool {
	return e.PossibleSuccess
}

func (e *ProtocolError) Temporary() bool {
	return false
}

// ConflictError is returned when a command of the same kind is already in progress for a vehicle.
// The in-flight request is not affected.
type ConflictError struct {
	VIN       string
	Kind      string
	RequestID string
}

func (e *ConflictError) Error() string {
	if e.RequestID == "" {
		return fmt.Sprintf("%s command already in progress for %s", e.Kind, e.VIN)
	}
	return fmt.Sprintf("%s command already in progress for %s (request %s)", e.Kind, e.VIN, e.RequestID)
}

func (e *ConflictError) MayHaveSucceeded() bool {
	return false
}

func (e *ConflictError) Temporary() bool {
	return false
}

// CommandTimeoutError is returned when a command did not reach a terminal status before its
// deadline. The vehicle may still execute it.
type CommandTimeoutError struct {
	VIN        string
	Kind       string
	RequestID  string
	Deadline   time.Duration
	LastStatus string
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("%s command %s for %s did not complete within %s (last status: %s)",
		e.Kind, e.RequestID, e.VIN, e.Deadline, e.LastStatus)
}

func (e *CommandTimeoutError) MayHaveSucceeded() bool {
	return true
}

func (e *CommandTimeoutError) Temporary() bool {
	return false
}

// MayHaveSucceeded returns true if err indicates the request may have been executed but the client
// did not receive a confirmation.
func MayHaveSucceeded(err error) bool {
	var commErr Error
	if errors.As(err, &commErr) && commErr.MayHaveSucceeded() {
		return true
	}
	return false
}

// Temporary returns true if err indicates the request failed due to possibly transient conditions
// that do not require user action to resolve.
func Temporary(err error) bool {
	var commErr Error
	if errors.As(err, &commErr) && commErr.Temporary() {
		return true
	}
	return false
}

// ShouldRetry returns true if the client should retry the request that triggered an error.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var e Error
	if errors.As(err, &e) {
		if e.MayHaveSucceeded() {
			return false
		}
		if e.Temporary() {
			return true
		}
	}
	return false
}

// NominalError indicates the vehicle received a command, but reported that it could not execute it
// (for example, a lock request rejected because a door is open).
type NominalError struct {
	Details error
}

func (e *NominalError) Error() string {
	return e.Details.Error()
}

func (e *NominalError) Unwrap() error {
	return e.Details
}

func (e *NominalError) MayHaveSucceeded() bool {
	return MayHaveSucceeded(e.Details)
}

func (e *NominalError) Temporary() bool {
	return Temporary(e.Details)
}

func IsNominalError(err error) bool {
	if err == nil {
		return false
	}
	var nErr *NominalError
	return errors.As(err, &nErr)
}
