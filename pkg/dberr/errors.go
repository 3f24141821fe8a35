// Package dberr holds the stable error taxonomy shared by every adapter and
// by the replicator. A caller can type-switch or errors.As against these
// kinds regardless of which adapter produced them.
package dberr

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when a document, revision, or local doc does
// not exist, or when the winning revision is a tombstone and the caller
// did not ask for it explicitly.
type NotFoundError struct{ Ref string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.Ref) }

// ConflictError is returned by single-document put/update/remove when the
// supplied _rev does not match the current winning revision.
type ConflictError struct{}

func (e *ConflictError) Error() string { return "conflict: document update conflict" }

// BadRequestError covers malformed input that fails validation before any
// state mutates.
type BadRequestError struct{ Msg string }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.Msg) }

// UnauthorizedError mirrors a remote 401.
type UnauthorizedError struct{}

func (e *UnauthorizedError) Error() string { return "unauthorized" }

// ForbiddenError mirrors a remote 403.
type ForbiddenError struct{ Msg string }

func (e *ForbiddenError) Error() string { return fmt.Sprintf("forbidden: %s", e.Msg) }

// InvalidRevError is returned when a "{pos}-{hash}" string fails to parse.
type InvalidRevError struct{ Value string }

func (e *InvalidRevError) Error() string { return fmt.Sprintf("invalid revision format: %s", e.Value) }

// MissingIDError is returned when a document carries no _id and none can
// be inferred.
type MissingIDError struct{}

func (e *MissingIDError) Error() string { return "missing document id" }

// DatabaseExistsError is returned by create-if-absent style operations.
type DatabaseExistsError struct{ Name string }

func (e *DatabaseExistsError) Error() string {
	return fmt.Sprintf("database already exists: %s", e.Name)
}

// DatabaseError wraps a lower-level storage or transport failure.
type DatabaseError struct {
	Msg   string
	Cause error
}

func (e *DatabaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("database error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("database error: %s", e.Msg)
}

func (e *DatabaseError) Unwrap() error { return e.Cause }

// IOError wraps an os/file-level failure.
type IOError struct{ Cause error }

func (e *IOError) Error() string { return fmt.Sprintf("io error: %v", e.Cause) }
func (e *IOError) Unwrap() error { return e.Cause }

// JSONError wraps an encoding/json failure.
type JSONError struct{ Cause error }

func (e *JSONError) Error() string { return fmt.Sprintf("json error: %v", e.Cause) }
func (e *JSONError) Unwrap() error { return e.Cause }

// Constructors, so callers don't have to spell out &dberr.XError{...}.

func NotFound(ref string) error              { return &NotFoundError{Ref: ref} }
func Conflict() error                        { return &ConflictError{} }
func BadRequest(msg string) error            { return &BadRequestError{Msg: msg} }
func Unauthorized() error                    { return &UnauthorizedError{} }
func Forbidden(msg string) error             { return &ForbiddenError{Msg: msg} }
func InvalidRev(value string) error          { return &InvalidRevError{Value: value} }
func MissingID() error                       { return &MissingIDError{} }
func DatabaseExists(name string) error       { return &DatabaseExistsError{Name: name} }
func Database(msg string, cause error) error { return &DatabaseError{Msg: msg, Cause: cause} }
func IO(cause error) error                   { return &IOError{Cause: cause} }
func JSON(cause error) error                 { return &JSONError{Cause: cause} }

// IsNotFound reports whether err (or something it wraps) is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := as[*NotFoundError](err)
	return ok
}

// IsConflict reports whether err (or something it wraps) is a ConflictError.
func IsConflict(err error) bool {
	_, ok := as[*ConflictError](err)
	return ok
}

// IsMissingID reports whether err (or something it wraps) is a
// MissingIDError.
func IsMissingID(err error) bool {
	_, ok := as[*MissingIDError](err)
	return ok
}

// IsUnauthorized reports whether err (or something it wraps) is an
// UnauthorizedError.
func IsUnauthorized(err error) bool {
	_, ok := as[*UnauthorizedError](err)
	return ok
}

// IsForbidden reports whether err (or something it wraps) is a
// ForbiddenError.
func IsForbidden(err error) bool {
	_, ok := as[*ForbiddenError](err)
	return ok
}

func as[T error](err error) (T, bool) {
	var target T
	if errors.As(err, &target) {
		return target, true
	}
	return target, false
}
