package http

import (
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
)

type StartChatRequest struct {
	PropertyID int64 `json:"propertyId"`
}

type ResolveRequest struct {
	LandlordID int64 `json:"landlordId"`
	TenantID   int64 `json:"tenantId"`
	PropertyID int64 `json:"propertyId"`
}

type ConversationIDResponse struct {
	ConversationID int64 `json:"conversationId"`
}

type ConversationItem struct {
	ID         int64     `json:"id"`
	LandlordID int64     `json:"landlordId"`
	TenantID   int64     `json:"tenantId"`
	PropertyID int64     `json:"propertyId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func conversationItem(c *domain.Conversation) ConversationItem {
	return ConversationItem{
		ID:         c.ID,
		LandlordID: c.LandlordID,
		TenantID:   c.TenantID,
		PropertyID: c.PropertyID,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// SendMessageRequest keeps the field names web clients already send.
type SendMessageRequest struct {
	ConversationID int64  `json:"conversationId"`
	Message        string `json:"message"`
	MessageType    string `json:"messageType"`
}

type UpdateStatusRequest struct {
	MessageID int64  `json:"messageId"`
	Status    string `json:"status"`
}

type MarkReadRequest struct {
	ConversationID int64 `json:"conversationId"`
}

type MarkReadResponse struct {
	Success bool    `json:"success"`
	Updated []int64 `json:"updated"`
}

type MessageItem struct {
	ID             int64                `json:"id"`
	ConversationID int64                `json:"conversationId"`
	SenderID       int64                `json:"senderId"`
	Body           string               `json:"body"`
	Kind           domain.Kind          `json:"kind"`
	Status         domain.DeliveryState `json:"status"`
	CreatedAt      time.Time            `json:"createdAt"`
}

func messageItem(m *domain.Message) MessageItem {
	return MessageItem{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		Kind:           m.Kind,
		Status:         m.State,
		CreatedAt:      m.CreatedAt,
	}
}

type MessagesListResponse struct {
	Items      []MessageItem `json:"items"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

type ConversationsListResponse struct {
	Items      []domain.ConversationSummary `json:"items"`
	NextCursor string                       `json:"nextCursor,omitempty"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
}
