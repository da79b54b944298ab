package common

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline error taxonomy
var (
	ErrNotProcurementDocument = errors.New("not a procurement document")
	ErrCollaboratorCall       = errors.New("collaborator call failed")
	ErrTimeout                = &timeoutError{}
	ErrNoValidCandidates      = errors.New("no valid candidates")
	ErrRefusal                = errors.New("model refused the request")
	ErrInvalidInput           = errors.New("invalid input")
)

// timeoutError is a CollaboratorCallFailure sub-kind: errors.Is matches both.
type timeoutError struct{}

func (*timeoutError) Error() string { return "collaborator call timed out" }

func (*timeoutError) Is(target error) bool { return target == ErrCollaboratorCall }

// Error codes carried by AppError.
const (
	CodeNotProcurement   = "NOT_A_PROCUREMENT_DOCUMENT"
	CodeCollaborator     = "COLLABORATOR_CALL_FAILURE"
	CodeTimeout          = "TIMEOUT"
	CodeNoValidCandidate = "NO_VALID_CANDIDATES"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeConfig           = "CONFIG_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NotProcurementDocument is returned when a parse stage says the document is not procurement related.
func NotProcurementDocument(stage string) error {
	return NewAppError(CodeNotProcurement, "document rejected at "+stage, ErrNotProcurementDocument)
}

// NoValidCandidates is returned when no scored id survives filtering.
func NoValidCandidates(returned int) error {
	return NewAppError(CodeNoValidCandidate,
		fmt.Sprintf("none of %d scored ids matched the candidate set", returned),
		ErrNoValidCandidates)
}

// CollaboratorFailure classifies err from the named collaborator. Deadline
// errors become Timeout, everything else CollaboratorCallFailure. Errors that
// are already classified are returned unchanged.
func CollaboratorFailure(collaborator string, err error) error {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) && (ae.Code == CodeCollaborator || ae.Code == CodeTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewAppError(CodeTimeout, collaborator, errors.Join(ErrTimeout, err))
	}
	return NewAppError(CodeCollaborator, collaborator, errors.Join(ErrCollaboratorCall, err))
}

// IsTimeout reports whether err is a Timeout failure.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

// ToStatus maps pipeline errors onto gRPC status codes.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrNotProcurementDocument), errors.Is(err, ErrNoValidCandidates):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, ErrCollaboratorCall):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
