package event

import (
	"encoding/json"
	"strings"
)

type RegisterLandlord struct {
	LandlordID int64 `json:"landlordId"`
}

func (*RegisterLandlord) Type() string { return TypeRegisterLandlord }
func (*RegisterLandlord) inbound()     {}
func (e *RegisterLandlord) Validate() error {
	return positive(TypeRegisterLandlord, "landlordId", e.LandlordID)
}

type RegisterTenant struct {
	TenantID int64 `json:"tenantId"`
}

func (*RegisterTenant) Type() string { return TypeRegisterTenant }
func (*RegisterTenant) inbound()     {}
func (e *RegisterTenant) Validate() error {
	return positive(TypeRegisterTenant, "tenantId", e.TenantID)
}

type JoinRoom struct {
	ConversationID int64 `json:"conversationId"`
}

func (*JoinRoom) Type() string { return TypeJoinRoom }
func (*JoinRoom) inbound()     {}
func (e *JoinRoom) Validate() error {
	return positive(TypeJoinRoom, "conversationId", e.ConversationID)
}

type LeaveRoom struct {
	ConversationID int64 `json:"conversationId"`
}

func (*LeaveRoom) Type() string { return TypeLeaveRoom }
func (*LeaveRoom) inbound()     {}
func (e *LeaveRoom) Validate() error {
	return positive(TypeLeaveRoom, "conversationId", e.ConversationID)
}

// SendMessageToRoom is relayed to the conversation room as-is, nothing is persisted.
type SendMessageToRoom struct {
	ConversationID int64  `json:"conversationId"`
	Content        string `json:"content"`
	Kind           string `json:"kind,omitempty"`
}

func (*SendMessageToRoom) Type() string { return TypeSendMessageToRoom }
func (*SendMessageToRoom) inbound()     {}
func (e *SendMessageToRoom) Validate() error {
	if err := positive(TypeSendMessageToRoom, "conversationId", e.ConversationID); err != nil {
		return err
	}
	if strings.TrimSpace(e.Content) == "" {
		return invalid(TypeSendMessageToRoom, "content is required")
	}
	return nil
}

type directFields struct {
	LandlordID int64  `json:"landlordId"`
	TenantID   int64  `json:"tenantId"`
	Content    string `json:"content"`
}

func (d directFields) validate(typ string) error {
	if err := positive(typ, "landlordId", d.LandlordID); err != nil {
		return err
	}
	if err := positive(typ, "tenantId", d.TenantID); err != nil {
		return err
	}
	if strings.TrimSpace(d.Content) == "" {
		return invalid(typ, "content is required")
	}
	return nil
}

type SendMessageToLandlord struct {
	directFields
}

func (*SendMessageToLandlord) Type() string      { return TypeSendMessageToLandlord }
func (*SendMessageToLandlord) inbound()          {}
func (e *SendMessageToLandlord) Validate() error { return e.validate(TypeSendMessageToLandlord) }

type SendMessageToTenant struct {
	directFields
}

func (*SendMessageToTenant) Type() string      { return TypeSendMessageToTenant }
func (*SendMessageToTenant) inbound()          {}
func (e *SendMessageToTenant) Validate() error { return e.validate(TypeSendMessageToTenant) }

// SendMessage goes through the durable message pipeline.
type SendMessage struct {
	ConversationID int64  `json:"conversationId"`
	Body           string `json:"body"`
	Kind           string `json:"kind,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
}

func (*SendMessage) Type() string { return TypeSendMessage }
func (*SendMessage) inbound()     {}
func (e *SendMessage) Validate() error {
	if err := positive(TypeSendMessage, "conversationId", e.ConversationID); err != nil {
		return err
	}
	if strings.TrimSpace(e.Body) == "" {
		return invalid(TypeSendMessage, "body is required")
	}
	return nil
}

type MessageDelivered struct {
	MessageID int64 `json:"messageId"`
}

func (*MessageDelivered) Type() string { return TypeMessageDelivered }
func (*MessageDelivered) inbound()     {}
func (e *MessageDelivered) Validate() error {
	return positive(TypeMessageDelivered, "messageId", e.MessageID)
}

type MarkRead struct {
	ConversationID int64 `json:"conversationId"`
}

func (*MarkRead) Type() string { return TypeMarkRead }
func (*MarkRead) inbound()     {}
func (e *MarkRead) Validate() error {
	return positive(TypeMarkRead, "conversationId", e.ConversationID)
}

type StartStream struct {
	PropertyID int64           `json:"propertyId"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

func (*StartStream) Type() string { return TypeStartStream }
func (*StartStream) inbound()     {}
func (e *StartStream) Validate() error {
	return positive(TypeStartStream, "propertyId", e.PropertyID)
}

type StopStream struct {
	PropertyID int64           `json:"propertyId"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

func (*StopStream) Type() string { return TypeStopStream }
func (*StopStream) inbound()     {}
func (e *StopStream) Validate() error {
	return positive(TypeStopStream, "propertyId", e.PropertyID)
}

type JoinStream struct {
	PropertyID int64 `json:"propertyId"`
	ViewerID   int64 `json:"viewerId,omitempty"`
}

func (*JoinStream) Type() string { return TypeJoinStream }
func (*JoinStream) inbound()     {}
func (e *JoinStream) Validate() error {
	return positive(TypeJoinStream, "propertyId", e.PropertyID)
}
