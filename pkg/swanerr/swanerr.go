// Package swanerr defines the error taxonomy shared by every SDK component.
//
// Every error returned from an SDK operation is, or wraps, an *Error whose
// Kind tells the caller what went wrong. The CLI uses the kind as its exit code.
package swanerr

import (
	"errors"
	"fmt"
)

type Kind int

// Keep separate to avoid skewing exit codes
const (
	KindOK Kind = iota
	KindConfiguration
	KindValidation
	KindStorageIO
	KindStorageConflict
	KindSubmission
	KindNotFound
	KindTransport
	KindAuth
	KindTimeout
	KindInternal
	KindDeploymentFailed
)

var kindNames = map[Kind]string{
	KindOK:               "ok",
	KindConfiguration:    "configuration error",
	KindValidation:       "validation error",
	KindStorageIO:        "storage i/o error",
	KindStorageConflict:  "storage conflict",
	KindSubmission:       "submission error",
	KindNotFound:         "not found",
	KindTransport:        "transport error",
	KindAuth:             "authentication error",
	KindTimeout:          "timeout",
	KindInternal:         "internal error",
	KindDeploymentFailed: "deployment failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Error struct {
	Kind Kind
	Err  error
}

func (err *Error) Error() string {
	return err.Err.Error()
}

func (err *Error) Unwrap() error {
	return err.Err
}

// Is makes errors.Is(err, &Error{Kind: k}) match on kind alone.
func (err *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Kind == err.Kind
}

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind: kind,
		Err:  fmt.Errorf(format, args...),
	}
}

// ErrorWrap tags err with kind. A nil err stays nil.
func ErrorWrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind: kind,
		Err:  err,
	}
}

// ErrorKind returns the kind of the outermost *Error in err's chain.
func ErrorKind(err error) Kind {
	if err == nil {
		return KindOK
	}
	var e *Error
	if !errors.As(err, &e) {
		return KindInternal
	}
	return e.Kind
}

// Sentinel returns a kind-only target for errors.Is.
func Sentinel(kind Kind) error {
	return &Error{Kind: kind}
}

func IsNotFound(err error) bool {
	return ErrorKind(err) == KindNotFound
}

func IsConflict(err error) bool {
	return ErrorKind(err) == KindStorageConflict
}
