package gridsocket

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common conditions.
var (
	ErrClosed               = errors.New("gridsocket: client closed")
	ErrConnectionClosed     = errors.New("gridsocket: connection closed")
	ErrTransportUnsupported = errors.New("gridsocket: transport unsupported")
	ErrTimeout              = errors.New("gridsocket: request timed out")
	ErrNotConnected         = errors.New("gridsocket: not connected")
	ErrInvalidMessage       = errors.New("gridsocket: message must encode to a JSON object")
)

// ConnectionError represents a connection-level error.
type ConnectionError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("gridsocket: %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("gridsocket: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SendError represents an error while encoding or transmitting a message.
type SendError struct {
	Op        string
	RequestID string
	Err       error
}

func (e *SendError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("gridsocket: send %s %s: %v", e.Op, e.RequestID, e.Err)
	}
	return fmt.Sprintf("gridsocket: send %s: %v", e.Op, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// ServerError is returned when the server answers a call with an error reply.
type ServerError struct {
	RequestID string
	Message   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("gridsocket: server error for %s: %s", e.RequestID, e.Message)
}

// TimeoutError is returned when no reply arrives before the call deadline.
type TimeoutError struct {
	RequestID string
	After     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("gridsocket: request timeout for %s after %s", e.RequestID, e.After)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
