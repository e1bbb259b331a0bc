// Package errors classifies errors at the CLI boundary: which exit code a
// failure maps to and how it is rendered as a structured error envelope.
package errors

import (
	"errors"
	"fmt"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"

	"github.com/3leaps/gridjobs/pkg/jobdb"
)

// Stable error codes used in envelopes.
const (
	CodeStorage         = "STORAGE_ERROR"
	CodeParse           = "PARSE_ERROR"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeNotFound        = "NOT_FOUND"
	CodeExternalService = "EXTERNAL_SERVICE_UNAVAILABLE"
	CodeInternal        = "INTERNAL_ERROR"
)

// AppError is an error with a stable code attached.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewInvalidArgument reports bad user input.
func NewInvalidArgument(format string, args ...any) error {
	return &AppError{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NewNotFound reports a missing job or resource.
func NewNotFound(format string, args ...any) error {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewExternalServiceError reports an unavailable dependency.
func NewExternalServiceError(message string) error {
	return &AppError{Code: CodeExternalService, Message: message}
}

// WrapInternal attaches the internal error code to err.
func WrapInternal(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

// Code returns the stable code for err.
func Code(err error) string {
	var appErr *AppError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &appErr):
		return appErr.Code
	case errors.Is(err, jobdb.ErrStorage):
		return CodeStorage
	case errors.Is(err, jobdb.ErrParse):
		return CodeParse
	default:
		return CodeInternal
	}
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	switch Code(err) {
	case "":
		return 0
	case CodeInvalidArgument:
		return int(foundry.ExitInvalidArgument)
	case CodeNotFound:
		return int(foundry.ExitFileNotFound)
	case CodeStorage:
		return int(foundry.ExitFileWriteError)
	case CodeParse:
		return int(foundry.ExitFileReadError)
	case CodeExternalService:
		return int(foundry.ExitExternalServiceUnavailable)
	default:
		return 1
	}
}

// Envelope renders err as a structured error envelope. Storage and parse
// failures carry the affected path as context.
func Envelope(err error) *gferrors.ErrorEnvelope {
	if err == nil {
		return nil
	}
	env := gferrors.NewErrorEnvelope(Code(err), err.Error())

	details := map[string]any{}
	var serr *jobdb.StorageError
	var perr *jobdb.ParseError
	switch {
	case errors.As(err, &serr):
		details["op"] = serr.Op
		details["path"] = serr.Path
	case errors.As(err, &perr):
		details["source"] = perr.Source
	}
	if len(details) > 0 {
		if withCtx, cerr := env.WithContext(details); cerr == nil {
			env = withCtx
		}
	}
	return env
}
