package protocol

import "time"

// Type is the wire discriminant carried in every frame.
type Type string

const (
	TypeCommand    Type = "command"
	TypeSystemData Type = "system_data"
	TypeStatus     Type = "status"
	TypeAck        Type = "ack"
	TypeHeartbeat  Type = "heartbeat"
	TypeError      Type = "error"
)

// Result is the outcome carried by an Ack.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailed  Result = "failed"
	ResultError   Result = "error"
)

// State is the link state carried by a Status message.
type State string

const (
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateReady        State = "ready"
	StateError        State = "error"
)

// Message is the closed set of link message variants. Instances are
// immutable once constructed.
type Message interface {
	Type() Type
}

// Command asks the peer to run a named action.
type Command struct {
	Action    string
	Timestamp float64
}

func (Command) Type() Type { return TypeCommand }

// Telemetry carries one periodic metric snapshot.
type Telemetry struct {
	Fields    Fields
	Timestamp float64
}

func (Telemetry) Type() Type { return TypeSystemData }

// Ack acknowledges a previously received Command.
type Ack struct {
	Command   string
	Result    Result
	Detail    string
	Timestamp float64
}

func (Ack) Type() Type { return TypeAck }

// Status reports a link-state change to the peer.
type Status struct {
	State     State
	Detail    string
	Timestamp float64
}

func (Status) Type() Type { return TypeStatus }

// Heartbeat is a liveness probe.
type Heartbeat struct {
	Timestamp float64
}

func (Heartbeat) Type() Type { return TypeHeartbeat }

// Fault reports a peer-visible error condition. Wire type is "error".
type Fault struct {
	Code      string
	Detail    string
	Timestamp float64
}

func (Fault) Type() Type { return TypeError }

// Now returns the current time as seconds since epoch, the timestamp
// unit used across the wire format.
func Now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
