package mircrew

import (
	"errors"
	"fmt"
)

// Kind tags an error with a stable, caller-visible category.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindNetwork        Kind = "network"
	KindParsing        Kind = "parsing"
	KindMovieNotFound  Kind = "movie_not_found"
	KindMagnetNotFound Kind = "magnet_not_found"
	KindInternal       Kind = "internal"
)

// Sentinel errors, one per kind. Match them with errors.Is.
var (
	// ErrAuthentication indicates missing or invalid credentials, a failed login
	// or a session that was lost and could not be restored
	ErrAuthentication = errors.New("authentication failed")
	// ErrNetwork indicates a transport failure (timeout, DNS, TLS, refused connection, bad status)
	ErrNetwork = errors.New("network error")
	// ErrParsing indicates the expected HTML structure was absent
	ErrParsing = errors.New("failed to parse page")
	// ErrMovieNotFound indicates the requested topic does not exist
	ErrMovieNotFound = errors.New("movie not found")
	// ErrMagnetNotFound indicates the topic exists but no magnet link could be revealed
	ErrMagnetNotFound = errors.New("magnet link not found")
	// ErrInternal is the catch-all for anything unanticipated
	ErrInternal = errors.New("internal error")
)

var sentinels = map[Kind]error{
	KindAuthentication: ErrAuthentication,
	KindNetwork:        ErrNetwork,
	KindParsing:        ErrParsing,
	KindMovieNotFound:  ErrMovieNotFound,
	KindMagnetNotFound: ErrMagnetNotFound,
	KindInternal:       ErrInternal,
}

// Error is the error type returned by every operation of this package.
type Error struct {
	Kind    Kind
	Message string
	// StatusCode is the HTTP status that produced the error, 0 if none
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// IsNotFound checks if the error is a semantic not-found outcome
func (e *Error) IsNotFound() bool {
	return e.Kind == KindMovieNotFound || e.Kind == KindMagnetNotFound || e.StatusCode == 404
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
// Foreign errors are reported as KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCodeOf returns the HTTP status carried by the first *Error in err's chain, if any
func StatusCodeOf(err error) int {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return 0
		}
		if e.StatusCode != 0 {
			return e.StatusCode
		}
		err = e.Err
	}
	return 0
}
