package gridsocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Actions with special meaning on the wire.
const (
	// ActionError marks a call reply as failed. Its data carries the detail.
	ActionError = "error"

	// ActionData marks a broadcast whose data field holds an encoded
	// document that needs a second decode.
	ActionData = "getData"

	// Passthrough broadcast actions sent by the dashboard backend.
	ActionFullScreen  = "fullScreen"
	ActionThemeChange = "themeChange"
)

// RequestIDField is the field injected into call-discipline messages.
const RequestIDField = "requestId"

const unknownServerError = "Unknown server error"

// --- Requests (Client -> Server) ---

// Request is an outbound message. Payload must encode to a JSON object;
// ID is injected as the requestId field when set.
type Request struct {
	ID      string
	Payload any
}

// Encode returns the wire form of the request.
func (r *Request) Encode() ([]byte, error) {
	fields, err := objectFields(r.Payload)
	if err != nil {
		return nil, err
	}
	if r.ID != "" {
		id, err := json.Marshal(r.ID)
		if err != nil {
			return nil, err
		}
		fields[RequestIDField] = id
	}
	return json.Marshal(fields)
}

// MarshalJSON implements json.Marshaler.
func (r *Request) MarshalJSON() ([]byte, error) {
	return r.Encode()
}

func objectFields(v any) (map[string]json.RawMessage, error) {
	if v == nil {
		return map[string]json.RawMessage{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, ErrInvalidMessage
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return fields, nil
}

// --- Inbound (Server -> Client) ---

// Envelope is a decoded inbound message. A message is a call reply when it
// carries a requestId, and a broadcast when it carries a socketType. The
// client tries the reply view first.
type Envelope struct {
	RequestID string          `json:"requestId,omitempty"`
	Topic     string          `json:"socketType,omitempty"`
	Action    string          `json:"action,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`

	// Raw is the undecoded message as received.
	Raw json.RawMessage `json:"-"`
}

// DecodeEnvelope parses one inbound text frame. The frame must be a JSON
// object. A routing field that is not a string is treated as absent, so a
// stray socketType cannot hide a valid requestId.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: message is not an object", ErrInvalidMessage)
	}

	env := &Envelope{
		RequestID: stringField(fields, RequestIDField),
		Topic:     stringField(fields, "socketType"),
		Action:    stringField(fields, "action"),
		Data:      fields["data"],
		Raw:       append(json.RawMessage(nil), data...),
	}
	return env, nil
}

func stringField(fields map[string]json.RawMessage, key string) string {
	var s string
	if err := json.Unmarshal(fields[key], &s); err != nil {
		return ""
	}
	return s
}

// IsReply reports whether the message carries a request id.
func (e *Envelope) IsReply() bool {
	return e.RequestID != ""
}

// IsEvent reports whether the message carries a topic.
func (e *Envelope) IsEvent() bool {
	return e.Topic != ""
}

// Reply returns the call reply view of the message.
func (e *Envelope) Reply() Reply {
	return Reply{
		RequestID: e.RequestID,
		Action:    e.Action,
		Data:      e.Data,
	}
}

// Event returns the broadcast view of the message. For ActionData the data
// field is decoded a second time; every other action passes the whole
// message through.
func (e *Envelope) Event() (Event, error) {
	ev := Event{
		Topic:  e.Topic,
		Action: e.Action,
	}
	if e.Action != ActionData {
		ev.Payload = e.Raw
		return ev, nil
	}

	data := bytes.TrimSpace(e.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ev, errors.New("gridsocket: data event without payload")
	}
	if data[0] != '"' {
		ev.Payload = e.Data
		return ev, nil
	}

	var inner string
	if err := json.Unmarshal(data, &inner); err != nil {
		return ev, fmt.Errorf("gridsocket: decode data payload: %w", err)
	}
	if !json.Valid([]byte(inner)) {
		return ev, errors.New("gridsocket: data payload is not valid JSON")
	}
	ev.Payload = json.RawMessage(inner)
	return ev, nil
}

// Reply is the answer to a call.
type Reply struct {
	RequestID string
	Action    string
	Data      json.RawMessage
}

// IsError reports whether the server rejected the call.
func (r Reply) IsError() bool {
	return r.Action == ActionError
}

// Err returns a *ServerError for error replies and nil otherwise.
func (r Reply) Err() error {
	if !r.IsError() {
		return nil
	}
	return &ServerError{
		RequestID: r.RequestID,
		Message:   errorDetail(r.Data),
	}
}

func errorDetail(data json.RawMessage) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return unknownServerError
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			return unknownServerError
		}
		return s
	}
	return string(data)
}

// Event is a broadcast delivered to the handler registered for its topic.
type Event struct {
	Topic   string
	Action  string
	Payload json.RawMessage
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}
