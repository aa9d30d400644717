package mailwatch_errors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConfiguration     = errors.New("configuration error")
	ErrTransport         = errors.New("queue transport error")
	ErrParse             = errors.New("malformed notification payload")
	ErrMessageIDNotFound = errors.New("message id not found in payload")
	ErrLogNotFound       = errors.New("no email log found for message id")
	ErrTrackingDisabled  = errors.New("email tracking is disabled")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
