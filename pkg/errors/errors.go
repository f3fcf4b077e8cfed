package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error independently of its transport representation.
type Kind string

// Error kinds understood by callers of the catalog and enrollment services.
const (
	KindNotFound        Kind = "NotFound"
	KindConflict        Kind = "Conflict"
	KindDenied          Kind = "Denied"
	KindInvalidArgument Kind = "InvalidArgument"
	KindUnauthorized    Kind = "Unauthorized"
	KindForbidden       Kind = "Forbidden"
	KindInternal        Kind = "Internal"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so errors.Is matches clones of a sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(kind Kind, code string, status int, message string) *Error {
	return &Error{Kind: kind, Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error, keeping the kind of the sentinel it is derived from.
func Wrap(err error, base *Error, message string) *Error {
	if base == nil {
		base = ErrInternal
	}
	return &Error{Kind: base.Kind, Code: base.Code, Status: base.Status, Message: message, Err: err}
}

// Generic sentinels, one per kind.
var (
	ErrNotFound     = New(KindNotFound, "NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict     = New(KindConflict, "CONFLICT", http.StatusConflict, "conflict")
	ErrDenied       = New(KindDenied, "DENIED", http.StatusUnprocessableEntity, "request denied by business rule")
	ErrValidation   = New(KindInvalidArgument, "VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrUnauthorized = New(KindUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden    = New(KindForbidden, "FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrInternal     = New(KindInternal, "INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New(KindNotFound, "CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrInvalidCredentials = New(KindUnauthorized, "INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New(KindForbidden, "ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
)

// Catalog and enrollment reasons.
var (
	ErrStudentNotFound      = New(KindNotFound, "STUDENT_NOT_FOUND", http.StatusNotFound, "student not found")
	ErrCourseNotFound       = New(KindNotFound, "COURSE_NOT_FOUND", http.StatusNotFound, "course not found")
	ErrTeacherNotFound      = New(KindNotFound, "TEACHER_NOT_FOUND", http.StatusNotFound, "teacher not found")
	ErrEnrollmentNotFound   = New(KindNotFound, "ENROLLMENT_NOT_FOUND", http.StatusNotFound, "enrollment not found")
	ErrPrerequisiteNotFound = New(KindNotFound, "PREREQUISITE_NOT_FOUND", http.StatusNotFound, "prerequisite not found")

	ErrDuplicateEnrollment   = New(KindConflict, "DUPLICATE_ENROLLMENT", http.StatusConflict, "student already enrolled in course for period")
	ErrDuplicateCourseCode   = New(KindConflict, "DUPLICATE_COURSE_CODE", http.StatusConflict, "course code already exists")
	ErrDuplicatePrerequisite = New(KindConflict, "DUPLICATE_PREREQUISITE", http.StatusConflict, "course already requires this prerequisite")
	ErrPrerequisiteCycle     = New(KindConflict, "PREREQUISITE_CYCLE", http.StatusConflict, "prerequisite would create a cycle")
	ErrCourseHasDependents   = New(KindConflict, "COURSE_HAS_DEPENDENTS", http.StatusConflict, "course is a prerequisite of other courses")
	ErrCourseHasEnrollments  = New(KindConflict, "COURSE_HAS_ENROLLMENTS", http.StatusConflict, "course has active enrollments")

	ErrPrerequisitesNotMet = New(KindDenied, "PREREQUISITES_NOT_MET", http.StatusUnprocessableEntity, "student has not approved every prerequisite")
	ErrNoCapacity          = New(KindDenied, "NO_CAPACITY", http.StatusUnprocessableEntity, "course has no remaining capacity")
	ErrLimitExceeded       = New(KindDenied, "LIMIT_EXCEEDED", http.StatusUnprocessableEntity, "student reached the enrollment limit for the period")
	ErrTeacherAtCapacity   = New(KindDenied, "TEACHER_AT_CAPACITY", http.StatusUnprocessableEntity, "teacher already holds the maximum number of courses")
	ErrTeacherInactive     = New(KindDenied, "TEACHER_INACTIVE", http.StatusUnprocessableEntity, "teacher is inactive")

	ErrInvalidCourseCode = New(KindInvalidArgument, "INVALID_COURSE_CODE", http.StatusBadRequest, "course code must be 3 uppercase letters followed by 3 digits")
	ErrInvalidCredits    = New(KindInvalidArgument, "INVALID_CREDITS", http.StatusBadRequest, "credits must be between 1 and 10")
	ErrSelfPrerequisite  = New(KindInvalidArgument, "SELF_PREREQUISITE", http.StatusBadRequest, "a course cannot be its own prerequisite")
	ErrInvalidStatus     = New(KindInvalidArgument, "INVALID_STATUS", http.StatusBadRequest, "unknown enrollment status")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal, ErrInternal.Message)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
