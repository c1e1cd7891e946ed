package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    int    // HTTP status code or custom error code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

const (
	ErrInvalidToken       = 1001
	ErrAuctionNotFound    = 1002
	ErrBidTooLow          = 1003
	ErrAuctionClosed      = 1004
	ErrOwnerForbidden     = 1006
	ErrBadMessageFormat   = 1007
	ErrUnknownMessageType = 1008

	ErrInternalServer = 500
)

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ToJSON renders the error as a payload suitable for client delivery.
func (e *AppError) ToJSON() []byte {
	data, err := json.Marshal(map[string]any{
		"code":    e.Code,
		"message": e.Message,
	})
	if err != nil {
		return []byte(`{"code":500,"message":"internal server error"}`)
	}
	return data
}

// Wrapping utility
func Wrap(err error, message string) *AppError {
	return &AppError{Code: ErrInternalServer, Message: message, Err: err}
}

// Error creation utility
func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Code extracts the application error code from err, or ErrInternalServer
// when err is not an AppError.
func Code(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServer
}
