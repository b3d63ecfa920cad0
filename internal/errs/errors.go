// Package errs provides the kind-tagged error type shared by all filehub
// subsystems. The store and search clients wrap their native errors into
// *errs.Error; handlers use the Is* predicates to pick an HTTP status
// without importing driver packages.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/minio/minio-go/v7"
)

// Kind categorises an error without exposing backend-specific codes.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by filehub subsystems.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is / errors.As traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error with no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error carrying the underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsInvalidInput(err error) bool { return kindOf(err) == KindInvalidInput }
func IsNotFound(err error) bool     { return kindOf(err) == KindNotFound }
func IsUnauthorized(err error) bool { return kindOf(err) == KindUnauthorized }
func IsForbidden(err error) bool    { return kindOf(err) == KindForbidden }
func IsUnavailable(err error) bool  { return kindOf(err) == KindUnavailable }

// FromMinio translates a MinIO SDK error into an *Error. Anything that is
// not a recognised S3-protocol failure is reported as unavailable so that
// callers surface it as an infrastructure fault rather than swallowing it.
func FromMinio(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(KindUnavailable, msg, err)
	}

	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return Wrap(KindNotFound, msg, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return Wrap(KindForbidden, msg, err)
		case http.StatusBadRequest:
			return Wrap(KindInvalidInput, msg, err)
		}
		switch resp.Code {
		case "NoSuchBucket", "NoSuchKey", "NotFound":
			return Wrap(KindNotFound, msg, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return Wrap(KindForbidden, msg, err)
		case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError":
			return Wrap(KindInvalidInput, msg, err)
		}
	}

	return Wrap(KindUnavailable, msg, err)
}
