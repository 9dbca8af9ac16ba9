package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrFrameTooLarge  = errors.New("protocol: frame too large")
	ErrUnknownMessage = errors.New("protocol: unknown message variant")
)

// Limits constrains frame encode/decode size.
type Limits struct {
	MaxFrameBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxFrameBytes: 1024}
}

// envelope is the union wire shape. Encode populates the fields for
// one variant; Decode reads whichever are present.
type envelope struct {
	Type      Type    `json:"type"`
	Timestamp float64 `json:"timestamp"`
	Action    string  `json:"action,omitempty"`
	Data      Fields  `json:"data,omitempty"`
	State     State   `json:"state,omitempty"`
	Command   string  `json:"command,omitempty"`
	Result    Result  `json:"result,omitempty"`
	Detail    string  `json:"detail,omitempty"`
	ErrorCode string  `json:"error_code,omitempty"`
	ErrorText string  `json:"message,omitempty"`
}

// Encode serializes one Message as a single newline-terminated frame.
// The frame, delimiter included, never exceeds limits.MaxFrameBytes;
// oversized payloads fail with ErrFrameTooLarge and nothing is
// emitted.
func Encode(m Message, limits Limits) ([]byte, error) {
	var env envelope
	switch v := m.(type) {
	case Command:
		env = envelope{Type: TypeCommand, Action: v.Action, Timestamp: v.Timestamp}
	case Telemetry:
		env = envelope{Type: TypeSystemData, Data: v.Fields, Timestamp: v.Timestamp}
	case Ack:
		env = envelope{Type: TypeAck, Command: v.Command, Result: v.Result, Detail: v.Detail, Timestamp: v.Timestamp}
	case Status:
		env = envelope{Type: TypeStatus, State: v.State, Detail: v.Detail, Timestamp: v.Timestamp}
	case Heartbeat:
		env = envelope{Type: TypeHeartbeat, Timestamp: v.Timestamp}
	case Fault:
		env = envelope{Type: TypeError, ErrorCode: v.Code, ErrorText: v.Detail, Timestamp: v.Timestamp}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, m)
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	if len(payload)+1 > limits.MaxFrameBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, len(payload)+1, limits.MaxFrameBytes)
	}
	return append(payload, '\n'), nil
}

// IsFrameCandidate reports whether line looks like a structured frame
// rather than free-form diagnostic text. Callers use it to decide
// whether a failed Decode is worth logging.
func IsFrameCandidate(line []byte) bool {
	trimmed := bytes.TrimSpace(line)
	return len(trimmed) >= 2 && trimmed[0] == '{' && trimmed[len(trimmed)-1] == '}'
}

// Decode parses one line into a Message. It returns false for
// anything that is not a structurally valid tagged frame: plain text,
// oversized input, malformed JSON, non-object JSON, a missing or
// unknown type tag, or missing required fields. Decode never fails
// loudly; the stream legitimately carries non-frame text.
func Decode(line []byte, limits Limits) (Message, bool) {
	trimmed := bytes.TrimSpace(line)
	if !IsFrameCandidate(trimmed) {
		return nil, false
	}
	if len(trimmed) > limits.MaxFrameBytes {
		return nil, false
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil || keys == nil {
		return nil, false
	}
	has := func(key string) bool {
		_, ok := keys[key]
		return ok
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, false
	}

	switch env.Type {
	case TypeCommand:
		if env.Action == "" || !has("timestamp") {
			return nil, false
		}
		return Command{Action: env.Action, Timestamp: env.Timestamp}, true
	case TypeSystemData:
		if !has("timestamp") {
			return nil, false
		}
		if has("data") {
			return Telemetry{Fields: env.Data, Timestamp: env.Timestamp}, true
		}
		// Legacy flattened form: metric fields at top level.
		fields, err := decodeFields(trimmed, map[string]bool{"type": true, "timestamp": true})
		if err != nil {
			return nil, false
		}
		return Telemetry{Fields: fields, Timestamp: env.Timestamp}, true
	case TypeStatus:
		switch env.State {
		case StateConnected, StateDisconnected, StateReady, StateError:
		default:
			return nil, false
		}
		if !has("timestamp") {
			return nil, false
		}
		return Status{State: env.State, Detail: env.Detail, Timestamp: env.Timestamp}, true
	case TypeAck:
		switch env.Result {
		case ResultSuccess, ResultFailed, ResultError:
		default:
			return nil, false
		}
		if env.Command == "" || !has("timestamp") {
			return nil, false
		}
		return Ack{Command: env.Command, Result: env.Result, Detail: env.Detail, Timestamp: env.Timestamp}, true
	case TypeHeartbeat:
		if !has("timestamp") {
			return nil, false
		}
		return Heartbeat{Timestamp: env.Timestamp}, true
	case TypeError:
		if env.ErrorCode == "" {
			return nil, false
		}
		return Fault{Code: env.ErrorCode, Detail: env.ErrorText, Timestamp: env.Timestamp}, true
	default:
		return nil, false
	}
}

