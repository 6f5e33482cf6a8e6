package event

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
)

type Connected struct {
	ConnID string `json:"connId"`
}

func (*Connected) Type() string { return TypeConnected }
func (*Connected) outbound()    {}

type Registered struct {
	Role   domain.Role `json:"role"`
	UserID int64       `json:"userId"`
}

func (*Registered) Type() string { return TypeRegistered }
func (*Registered) outbound()    {}

type Joined struct {
	Room string `json:"room"`
}

func (*Joined) Type() string { return TypeJoined }
func (*Joined) outbound()    {}

type Left struct {
	Room string `json:"room"`
}

func (*Left) Type() string { return TypeLeft }
func (*Left) outbound()    {}

// NewMessage carries a persisted message to the conversation parties.
type NewMessage struct {
	MessageID      int64                `json:"messageId"`
	ConversationID int64                `json:"conversationId"`
	SenderID       int64                `json:"senderId"`
	Body           string               `json:"body"`
	Kind           domain.Kind          `json:"kind"`
	Status         domain.DeliveryState `json:"status"`
	CreatedAt      time.Time            `json:"createdAt"`
}

func (*NewMessage) Type() string { return TypeNewMessage }
func (*NewMessage) outbound()    {}

func NewMessageFrom(m *domain.Message) *NewMessage {
	return &NewMessage{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		Kind:           m.Kind,
		Status:         m.State,
		CreatedAt:      m.CreatedAt,
	}
}

// MessageAck answers send_message on the originating connection only.
type MessageAck struct {
	ClientID  string               `json:"clientId,omitempty"`
	MessageID int64                `json:"messageId"`
	Status    domain.DeliveryState `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
}

func (*MessageAck) Type() string { return TypeMessageAck }
func (*MessageAck) outbound()    {}

type StatusUpdate struct {
	MessageID      int64                `json:"messageId"`
	ConversationID int64                `json:"conversationId"`
	Status         domain.DeliveryState `json:"status"`
}

func (*StatusUpdate) Type() string { return TypeStatusUpdate }
func (*StatusUpdate) outbound()    {}

type MessagesRead struct {
	ConversationID int64   `json:"conversationId"`
	ReaderID       int64   `json:"readerId"`
	MessageIDs     []int64 `json:"messageIds"`
}

func (*MessagesRead) Type() string { return TypeMessagesRead }
func (*MessagesRead) outbound()    {}

type RoomMessage struct {
	ConversationID int64  `json:"conversationId"`
	SenderID       int64  `json:"senderId"`
	Content        string `json:"content"`
	Kind           string `json:"kind,omitempty"`
}

func (*RoomMessage) Type() string { return TypeRoomMessage }
func (*RoomMessage) outbound()    {}

type DirectMessage struct {
	Sender     string `json:"sender"`
	LandlordID int64  `json:"landlordId"`
	TenantID   int64  `json:"tenantId"`
	Content    string `json:"content"`
}

func (*DirectMessage) Type() string { return TypeDirectMessage }
func (*DirectMessage) outbound()    {}

type StreamStarted struct {
	PropertyID int64           `json:"propertyId"`
	HostID     int64           `json:"hostId,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

func (*StreamStarted) Type() string { return TypeStreamStarted }
func (*StreamStarted) outbound()    {}

type StreamStopped struct {
	PropertyID int64           `json:"propertyId"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

func (*StreamStopped) Type() string { return TypeStreamStopped }
func (*StreamStopped) outbound()    {}

// Error codes sent to clients.
const (
	CodeBadRequest       = "bad_request"
	CodeUnknownEvent     = "unknown_event"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeStoreUnavailable = "store_unavailable"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal"
)

type Error struct {
	Code    string `json:"code"`
	Event   string `json:"event,omitempty"`
	Message string `json:"error"`
}

func (*Error) Type() string { return TypeError }
func (*Error) outbound()    {}

// Signaling and live chat events travel in both directions with the same shape.

type Offer struct {
	PropertyID int64           `json:"propertyId"`
	Offer      json.RawMessage `json:"offer"`
}

func (*Offer) Type() string { return TypeOffer }
func (*Offer) inbound()     {}
func (*Offer) outbound()    {}
func (e *Offer) Validate() error {
	if err := positive(TypeOffer, "propertyId", e.PropertyID); err != nil {
		return err
	}
	return present(TypeOffer, "offer", e.Offer)
}

type Answer struct {
	PropertyID int64           `json:"propertyId"`
	Answer     json.RawMessage `json:"answer"`
}

func (*Answer) Type() string { return TypeAnswer }
func (*Answer) inbound()     {}
func (*Answer) outbound()    {}
func (e *Answer) Validate() error {
	if err := positive(TypeAnswer, "propertyId", e.PropertyID); err != nil {
		return err
	}
	return present(TypeAnswer, "answer", e.Answer)
}

type ICECandidate struct {
	PropertyID int64           `json:"propertyId"`
	Candidate  json.RawMessage `json:"candidate"`
}

func (*ICECandidate) Type() string { return TypeICECandidate }
func (*ICECandidate) inbound()     {}
func (*ICECandidate) outbound()    {}
func (e *ICECandidate) Validate() error {
	if err := positive(TypeICECandidate, "propertyId", e.PropertyID); err != nil {
		return err
	}
	return present(TypeICECandidate, "candidate", e.Candidate)
}

type ChatMessage struct {
	PropertyID int64  `json:"propertyId"`
	UserID     int64  `json:"userId"`
	Text       string `json:"text"`
}

func (*ChatMessage) Type() string { return TypeChatMessage }
func (*ChatMessage) inbound()     {}
func (*ChatMessage) outbound()    {}
func (e *ChatMessage) Validate() error {
	if err := positive(TypeChatMessage, "propertyId", e.PropertyID); err != nil {
		return err
	}
	if strings.TrimSpace(e.Text) == "" {
		return invalid(TypeChatMessage, "text is required")
	}
	return nil
}
