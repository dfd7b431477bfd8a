package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

// Message type tags carried in the "type" field of every frame.
const (
	TypeRegister     = "register"
	TypeRegistered   = "registered"
	TypeHeartbeat    = "heartbeat"
	TypeHeartbeatAck = "heartbeat_ack"
	TypeUpdate       = "update"
)

// Register is sent by a peer to enter the roster. All fields besides Type
// are optional; the hub fills in defaults for missing identity fields.
type Register struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Location string `json:"location,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	Platform string `json:"platform,omitempty"`
	Arch     string `json:"arch,omitempty"`
}

// Registered acknowledges a Register, carrying the assigned (or confirmed)
// id and the current roster size.
type Registered struct {
	Type         string `json:"type"`
	ID           string `json:"id"`
	TotalClients int    `json:"totalClients"`
}

// Heartbeat is a liveness signal. ID may be empty if the peer has not yet
// received its Registered acknowledgment; the hub acks it regardless.
type Heartbeat struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// HeartbeatAck acknowledges a Heartbeat. Timestamp is the hub's clock in
// unix milliseconds. Receipt does not imply the peer is still tracked.
type HeartbeatAck struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Update is the roster broadcast pushed to every open connection.
type Update struct {
	Type    string          `json:"type"`
	Clients []ClientSummary `json:"clients"`
	Total   int             `json:"total"`
}

// ClientSummary is one roster entry as seen by observers. ConnectedAt,
// Uptime and LastSeen are unix milliseconds / millisecond durations.
// LastSeen is only populated on the HTTP query variant, never in
// broadcasts.
type ClientSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	ConnectedAt int64  `json:"connectedAt"`
	Uptime      int64  `json:"uptime"`
	LastSeen    int64  `json:"lastSeen,omitempty"`
}

// Message is the decoded form of an inbound frame. Exactly one of the
// pointer fields is set, matching the frame's type tag.
type Message struct {
	Register     *Register
	Registered   *Registered
	Heartbeat    *Heartbeat
	HeartbeatAck *HeartbeatAck
	Update       *Update

	// Raw contains the original bytes for logging.
	Raw json.RawMessage
}

// Type returns the type tag of the decoded message.
func (m *Message) Type() string {
	switch {
	case m.Register != nil:
		return TypeRegister
	case m.Registered != nil:
		return TypeRegistered
	case m.Heartbeat != nil:
		return TypeHeartbeat
	case m.HeartbeatAck != nil:
		return TypeHeartbeatAck
	case m.Update != nil:
		return TypeUpdate
	}
	return ""
}

// Parse decodes a single frame. It first probes the type tag, then decodes
// the full payload for that type. A frame that is not valid JSON or has no
// type tag yields ErrMalformed; a valid frame with an unrecognized tag
// yields ErrUnknownType.
func Parse(data []byte) (*Message, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if probe.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	msg := &Message{Raw: data}

	switch probe.Type {
	case TypeRegister:
		var reg Register
		if err := json.Unmarshal(data, &reg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		msg.Register = &reg
	case TypeRegistered:
		var ack Registered
		if err := json.Unmarshal(data, &ack); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		msg.Registered = &ack
	case TypeHeartbeat:
		var hb Heartbeat
		if err := json.Unmarshal(data, &hb); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		msg.Heartbeat = &hb
	case TypeHeartbeatAck:
		var ack HeartbeatAck
		if err := json.Unmarshal(data, &ack); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		msg.HeartbeatAck = &ack
	case TypeUpdate:
		var upd Update
		if err := json.Unmarshal(data, &upd); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		msg.Update = &upd
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, probe.Type)
	}

	return msg, nil
}

// NewRegister builds a register frame for a peer's identity.
func NewRegister(id, name, location, hostname, platform, arch string) *Register {
	return &Register{
		Type:     TypeRegister,
		ID:       id,
		Name:     name,
		Location: location,
		Hostname: hostname,
		Platform: platform,
		Arch:     arch,
	}
}

// NewRegistered builds a registration acknowledgment.
func NewRegistered(id string, total int) *Registered {
	return &Registered{Type: TypeRegistered, ID: id, TotalClients: total}
}

// NewHeartbeat builds a heartbeat frame.
func NewHeartbeat(id string) *Heartbeat {
	return &Heartbeat{Type: TypeHeartbeat, ID: id}
}

// NewHeartbeatAck builds a heartbeat acknowledgment.
func NewHeartbeatAck(timestamp int64) *HeartbeatAck {
	return &HeartbeatAck{Type: TypeHeartbeatAck, Timestamp: timestamp}
}

// NewUpdate builds a roster broadcast.
func NewUpdate(clients []ClientSummary) *Update {
	if clients == nil {
		clients = []ClientSummary{}
	}
	return &Update{Type: TypeUpdate, Clients: clients, Total: len(clients)}
}

// Marshal serializes a register frame.
func (r *Register) Marshal() ([]byte, error) { return json.Marshal(r) }

// Marshal serializes a registered acknowledgment.
func (r *Registered) Marshal() ([]byte, error) { return json.Marshal(r) }

// Marshal serializes a heartbeat frame.
func (h *Heartbeat) Marshal() ([]byte, error) { return json.Marshal(h) }

// Marshal serializes a heartbeat acknowledgment.
func (h *HeartbeatAck) Marshal() ([]byte, error) { return json.Marshal(h) }

// Marshal serializes a roster broadcast.
func (u *Update) Marshal() ([]byte, error) { return json.Marshal(u) }
