// Package event defines the realtime wire protocol: a {type, payload} envelope
// decoded into a closed set of inbound variants and encoded from a closed set
// of outbound variants.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformed      = errors.New("malformed envelope")
	ErrUnknownType    = errors.New("unknown event type")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Wire names shared by both directions.
const (
	TypeRegisterLandlord      = "register_landlord"
	TypeRegisterTenant        = "register_tenant"
	TypeJoinRoom              = "joinRoom"
	TypeLeaveRoom             = "leaveRoom"
	TypeSendMessageToRoom     = "send_message_to_room"
	TypeSendMessageToLandlord = "send_message_to_landlord"
	TypeSendMessageToTenant   = "send_message_to_tenant"
	TypeSendMessage           = "send_message"
	TypeMessageDelivered      = "message_delivered"
	TypeMarkRead              = "mark_read"
	TypeStartStream           = "start_stream"
	TypeStopStream            = "stop_stream"
	TypeJoinStream            = "join_stream"
	TypeOffer                 = "offer"
	TypeAnswer                = "answer"
	TypeICECandidate          = "ice-candidate"
	TypeChatMessage           = "chat_message"

	TypeConnected     = "connected"
	TypeRegistered    = "registered"
	TypeJoined        = "joined"
	TypeLeft          = "left"
	TypeNewMessage    = "new_message"
	TypeMessageAck    = "message_ack"
	TypeStatusUpdate  = "statusUpdate"
	TypeMessagesRead  = "messagesRead"
	TypeRoomMessage   = "room_message"
	TypeDirectMessage = "direct_message"
	TypeStreamStarted = "stream_started"
	TypeStreamStopped = "stream_stopped"
	TypeError         = "error"
)

// Inbound is an event a client may send. The set is closed: only types in
// this package implement it.
type Inbound interface {
	Type() string
	Validate() error
	inbound()
}

// Outbound is an event the server emits.
type Outbound interface {
	Type() string
	outbound()
}

type envelopeIn struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type envelopeOut struct {
	Type    string   `json:"type"`
	Payload Outbound `json:"payload"`
}

var inboundTypes = map[string]func() Inbound{
	TypeRegisterLandlord:      func() Inbound { return &RegisterLandlord{} },
	TypeRegisterTenant:        func() Inbound { return &RegisterTenant{} },
	TypeJoinRoom:              func() Inbound { return &JoinRoom{} },
	TypeLeaveRoom:             func() Inbound { return &LeaveRoom{} },
	TypeSendMessageToRoom:     func() Inbound { return &SendMessageToRoom{} },
	TypeSendMessageToLandlord: func() Inbound { return &SendMessageToLandlord{} },
	TypeSendMessageToTenant:   func() Inbound { return &SendMessageToTenant{} },
	TypeSendMessage:           func() Inbound { return &SendMessage{} },
	TypeMessageDelivered:      func() Inbound { return &MessageDelivered{} },
	TypeMarkRead:              func() Inbound { return &MarkRead{} },
	TypeStartStream:           func() Inbound { return &StartStream{} },
	TypeStopStream:            func() Inbound { return &StopStream{} },
	TypeJoinStream:            func() Inbound { return &JoinStream{} },
	TypeOffer:                 func() Inbound { return &Offer{} },
	TypeAnswer:                func() Inbound { return &Answer{} },
	TypeICECandidate:          func() Inbound { return &ICECandidate{} },
	TypeChatMessage:           func() Inbound { return &ChatMessage{} },
}

// Decode parses one frame. The returned type name is set whenever the
// envelope itself parsed, so callers can report which event failed.
func Decode(data []byte) (Inbound, string, error) {
	var env envelopeIn
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, "", fmt.Errorf("%w: missing type", ErrMalformed)
	}

	newEv, ok := inboundTypes[env.Type]
	if !ok {
		return nil, env.Type, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	ev := newEv()

	payload := bytes.TrimSpace(env.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, env.Type, fmt.Errorf("%w: %s: empty payload", ErrInvalidPayload, env.Type)
	}
	if err := json.Unmarshal(payload, ev); err != nil {
		return nil, env.Type, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Type, err)
	}
	if err := ev.Validate(); err != nil {
		return nil, env.Type, err
	}
	return ev, env.Type, nil
}

// Encode renders an outbound event as a text frame.
func Encode(ev Outbound) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("%w: nil event", ErrInvalidPayload)
	}
	return json.Marshal(envelopeOut{Type: ev.Type(), Payload: ev})
}

// MustEncode is for events built entirely from server-side values.
func MustEncode(ev Outbound) []byte {
	b, err := Encode(ev)
	if err != nil {
		panic(err)
	}
	return b
}

func invalid(typ, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, typ, fmt.Sprintf(format, args...))
}

func positive(typ, field string, v int64) error {
	if v <= 0 {
		return invalid(typ, "%s must be positive", field)
	}
	return nil
}

func present(typ, field string, raw json.RawMessage) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return invalid(typ, "%s is required", field)
	}
	return nil
}
