package vectorstore

import "fmt"

// ErrorCode classifies a failed store operation.
type ErrorCode string

const (
	CodeValidation      ErrorCode = "validation_failed"
	CodeEncodeFailed    ErrorCode = "encode_failed"
	CodeDecodeFailed    ErrorCode = "decode_failed"
	CodeTransportFailed ErrorCode = "transport_failed"
	CodeTimeout         ErrorCode = "timeout"
	CodeRequestFailed   ErrorCode = "request_failed"
	CodeNotFound        ErrorCode = "not_found"
)

// OperationError is returned by every Qdrant call.
type OperationError struct {
	Code       ErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "vector store operation failed"
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	return fmt.Sprintf("vector store %s failed (code=%s status=%d): %s", e.Operation, e.Code, e.StatusCode, msg)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func opErr(op string, code ErrorCode, msg string, cause error) error {
	return &OperationError{Code: code, Operation: op, Message: msg, Cause: cause}
}
