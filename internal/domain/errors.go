package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrQuestionNotFound indicates a question id is unknown.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrUserNotFound indicates the caller has no profile yet.
	ErrUserNotFound = errors.New("user not found")
	// ErrNoPushToken is returned when a notification targets a user without a token.
	ErrNoPushToken = errors.New("user has no push token")
	// ErrNoOfflineQuestions means neither the backend nor the local cache had questions.
	ErrNoOfflineQuestions = errors.New("no questions available offline")
	// ErrNoAnswerSelected is returned when submitting without a selection.
	ErrNoAnswerSelected = errors.New("no answer selected")
	// ErrInvalidTransition is returned when a session operation does not fit the current phase.
	ErrInvalidTransition = errors.New("operation not allowed in current session phase")
	// ErrUnauthorized indicates a missing or invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError collects field-level validation failures.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, ", ")
}

// validationErr returns nil when problems is empty.
func validationErr(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// FailureKind classifies a remote call failure.
type FailureKind int

const (
	// FailureTransport means no response reached the caller.
	FailureTransport FailureKind = iota + 1
	// FailureHTTP means the server answered with a non-2xx status.
	FailureHTTP
	// FailureDomain means a 2xx response carried success=false.
	FailureDomain
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransport:
		return "transport"
	case FailureHTTP:
		return "http"
	case FailureDomain:
		return "domain"
	default:
		return "unknown"
	}
}

// RemoteError is returned by every failed backend call.
type RemoteError struct {
	Kind       FailureKind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	switch e.Kind {
	case FailureTransport:
		return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
	case FailureHTTP:
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }

// FailureKindOf returns the remote failure kind of err, or zero if err is not remote.
func FailureKindOf(err error) FailureKind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}

// ShouldFallback reports whether err justifies falling back to the local cache.
func ShouldFallback(err error) bool {
	kind := FailureKindOf(err)
	return kind == FailureTransport || kind == FailureHTTP
}

// Unreachable reports whether err means the backend could not serve the call
// at all: a transport failure or a 5xx answer. Client errors such as 400 or
// 401 do not count.
func Unreachable(err error) bool {
	var re *RemoteError
	if !errors.As(err, &re) {
		return false
	}
	switch re.Kind {
	case FailureTransport:
		return true
	case FailureHTTP:
		return re.StatusCode >= 500
	}
	return false
}
