package avatar

import (
	"errors"
	"fmt"
)

// AuthKind classifies token acquisition failures.
type AuthKind string

const (
	AuthMissingSecret     AuthKind = "missing_secret"
	AuthRemoteRejected    AuthKind = "remote_rejected"
	AuthMalformedResponse AuthKind = "malformed_response"
)

// AuthError is a typed token acquisition failure. MissingSecret and
// MalformedResponse are permanent; RemoteRejected may be retried.
type AuthError struct {
	Kind    AuthKind
	Detail  string
	Status  int
	wrapped error
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("token acquisition failed: %s", e.Kind)
	}
	return fmt.Sprintf("token acquisition failed: %s: %s", e.Kind, e.Detail)
}

func (e *AuthError) Unwrap() error { return e.wrapped }

// Retryable reports whether another attempt can reasonably succeed.
func (e *AuthError) Retryable() bool { return e.Kind == AuthRemoteRejected }

// Session state-guard violations.
var (
	ErrEmptyUtterance     = errors.New("utterance text is empty")
	ErrAlreadyStarted     = errors.New("session already starting or active")
	ErrSessionNotActive   = errors.New("session not active")
	ErrStoppedDuringStart = errors.New("session stopped while starting")
	ErrNotResettable      = errors.New("session can only be reset from stopped or failed")
)

// SpeechError is a speak submission failure. Local guard violations carry
// ErrSessionNotActive and never reach the remote; remote rejections wrap the
// transport error so callers can decide to retry.
type SpeechError struct {
	Remote  bool
	wrapped error
}

func (e *SpeechError) Error() string {
	if e.Remote {
		return fmt.Sprintf("speak rejected by avatar service: %v", e.wrapped)
	}
	return fmt.Sprintf("speak rejected locally: %v", e.wrapped)
}

func (e *SpeechError) Unwrap() error { return e.wrapped }

func localSpeechError(err error) *SpeechError  { return &SpeechError{Remote: false, wrapped: err} }
func remoteSpeechError(err error) *SpeechError { return &SpeechError{Remote: true, wrapped: err} }
