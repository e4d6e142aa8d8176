package gridsocket

import (
	"encoding/json"
	"errors"
	"time"
)

// Call is one request/reply exchange. It is delivered on Done exactly once,
// after Data or Error has been set.
type Call struct {
	// ID is the request id assigned when the message was transmitted.
	// It stays empty for calls that never reached the wire.
	ID string

	Message any
	Data    json.RawMessage
	Error   error
	Done    chan *Call

	timer *time.Timer
}

func newCall(msg any) *Call {
	return &Call{
		Message: msg,
		Done:    make(chan *Call, 1),
	}
}

// Decode unmarshals the reply data into v.
func (c *Call) Decode(v any) error {
	if c.Error != nil {
		return c.Error
	}
	return json.Unmarshal(c.Data, v)
}

// Outcome classifies how a call ended.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeServerError      Outcome = "server_error"
	OutcomeTimeout          Outcome = "timeout"
	OutcomeConnectionClosed Outcome = "connection_closed"
	OutcomeSendError        Outcome = "send_error"
	OutcomeClosed           Outcome = "closed"
	OutcomeUnknown          Outcome = "unknown"
)

// Outcome returns the classification of the call's terminal state.
// Only meaningful once the call has been delivered on Done.
func (c *Call) Outcome() Outcome {
	return OutcomeOf(c.Error)
}

// OutcomeOf classifies a call error.
func OutcomeOf(err error) Outcome {
	var (
		serverErr *ServerError
		sendErr   *SendError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &serverErr):
		return OutcomeServerError
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.As(err, &sendErr):
		return OutcomeSendError
	case errors.Is(err, ErrConnectionClosed):
		return OutcomeConnectionClosed
	case errors.Is(err, ErrClosed):
		return OutcomeClosed
	default:
		return OutcomeUnknown
	}
}
