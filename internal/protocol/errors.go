package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrSession        = errors.New("session error")
	ErrTransport      = errors.New("transport error")
	ErrParse          = errors.New("malformed envelope")
	ErrRoutingMiss    = errors.New("unknown participant")
	ErrChannelClosed  = errors.New("channel closed")
	ErrNotJoined      = errors.New("not in a session")
	ErrAlreadyJoined  = errors.New("already in a session")
	ErrInvalidFPS     = errors.New("fps must be positive")
	ErrAlreadyActive  = errors.New("broadcast loop already active")
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrDuplicateUser  = errors.New("user already in room")
	ErrUnknownCodec   = errors.New("unknown codec")
	ErrMissingUserID  = errors.New("user id is required")
	ErrUnexpectedType = errors.New("unexpected message type")
)

// Error carries the failing operation alongside one of the sentinel errors.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

// SessionError wraps cause so that errors.Is matches both ErrSession and cause.
func SessionError(op string, cause error) error {
	return &Error{Op: op, Err: fmt.Errorf("%w: %w", ErrSession, cause)}
}

// TransportError wraps cause so that errors.Is matches both ErrTransport and cause.
func TransportError(op string, cause error) error {
	return &Error{Op: op, Err: fmt.Errorf("%w: %w", ErrTransport, cause)}
}
