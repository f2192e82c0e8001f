package gwproto

import (
	"encoding/json"
	"fmt"
)

// Envelope is the universal gateway message shape:
// {opcode, data, seq?, event_type?}.
type Envelope struct {
	Op        Opcode          `json:"op"`
	Data      json.RawMessage `json:"d,omitempty"`
	Seq       *int64          `json:"s,omitempty"`
	EventType *string         `json:"t,omitempty"`
}

// ReturnCodeError is raised when a server opcode needs run-loop-level
// classification (OP_RECONNECT, OP_INVALID_SESSION, or a typed-decode
// opcode mismatch).
type ReturnCodeError struct {
	Code int
}

func (e *ReturnCodeError) Error() string {
	return fmt.Sprintf("returned code: %d", e.Code)
}

// UnexpectedDataError is raised when the gateway sends something that
// parses but doesn't match protocol expectations (e.g. a non-READY
// dispatch during identify).
type UnexpectedDataError struct {
	Reason string
}

func (e *UnexpectedDataError) Error() string {
	return fmt.Sprintf("event server returned unexpected data: %s", e.Reason)
}

// Decode unmarshals env.Data into a value of type T, which must declare
// OPCODE via its Opcode() method. An opcode mismatch between env and the
// declared type is rejected with ReturnCodeError.
func Decode[T Payload](env Envelope) (T, error) {
	var zero T
	if env.Op != zero.Opcode() {
		return zero, &ReturnCodeError{Code: int(env.Op)}
	}
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return zero, fmt.Errorf("gwproto: decode opcode %s: %w", env.Op, err)
	}
	return out, nil
}

// Encode builds an Envelope around a typed payload for sending.
func Encode(p Payload) (Envelope, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, fmt.Errorf("gwproto: encode opcode %s: %w", p.Opcode(), err)
	}
	return Envelope{Op: p.Opcode(), Data: data}, nil
}
