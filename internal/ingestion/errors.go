package ingestion

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind names a failure class surfaced to callers and stored in summaries.
type ErrorKind string

// Job level kinds abort an invocation.
const (
	KindBadInput               ErrorKind = "BadInput"
	KindUnauthenticated        ErrorKind = "Unauthenticated"
	KindUnauthorized           ErrorKind = "Unauthorized"
	KindJobNotFound            ErrorKind = "JobNotFound"
	KindJobNotPending          ErrorKind = "JobNotPending"
	KindEmptyInput             ErrorKind = "EmptyInput"
	KindUnreadableFile         ErrorKind = "UnreadableFile"
	KindUnsupportedFormat      ErrorKind = "UnsupportedFormat"
	KindMissingRequiredColumns ErrorKind = "MissingRequiredColumns"
	KindInputLimitExceeded     ErrorKind = "InputLimitExceeded"
	KindDownloadFailed         ErrorKind = "DownloadFailed"
	KindInterrupted            ErrorKind = "Interrupted"
	KindInternal               ErrorKind = "Internal"
)

// Row level kinds reject a single row.
const (
	KindCompanyNotFound     ErrorKind = "CompanyNotFound"
	KindInvalidPeriodFormat ErrorKind = "InvalidPeriodFormat"
	KindInvalidNumber       ErrorKind = "InvalidNumber"
	KindOutOfRange          ErrorKind = "OutOfRange"
	KindMissingValue        ErrorKind = "MissingValue"
	KindRowWriteConflict    ErrorKind = "RowWriteConflict"
	KindColumnCountMismatch ErrorKind = "ColumnCountMismatch"
)

// ErrUnsupportedFormat is returned when an uploaded file is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// JobError aborts an import invocation.
type JobError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func newJobError(kind ErrorKind, message string, err error) *JobError {
	return &JobError{Kind: kind, Message: message, Err: err}
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind onto a response code.
func (e *JobError) HTTPStatus() int {
	switch e.Kind {
	case KindBadInput, KindEmptyInput, KindUnreadableFile, KindUnsupportedFormat,
		KindMissingRequiredColumns, KindInputLimitExceeded:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindJobNotFound:
		return http.StatusNotFound
	case KindJobNotPending:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// StatusCode returns the HTTP status for any error returned by the service.
func StatusCode(err error) int {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// KindOf extracts the job error kind, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Kind
	}
	return KindInternal
}

// RowError rejects one data row; the import continues with the next row.
type RowError struct {
	Line    int
	Kind    ErrorKind
	Column  string
	Message string
}

func (e *RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d: %s: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Line, e.Message)
}
