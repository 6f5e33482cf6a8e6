package domain

import (
	"context"
	"time"
)

// MirrorEntry is the denormalised read-side copy of a Message.
type MirrorEntry struct {
	MessageID      int64         `json:"messageId"`
	ConversationID int64         `json:"conversationId"`
	PropertyID     int64         `json:"propertyId"`
	LandlordID     int64         `json:"landlordId"`
	TenantID       int64         `json:"tenantId"`
	SenderID       int64         `json:"senderId"`
	SenderName     string        `json:"name"`
	Body           string        `json:"message"`
	Kind           Kind          `json:"messageType"`
	State          DeliveryState `json:"status"`
	CreatedAt      time.Time     `json:"timestamp"`
}

func NewMirrorEntry(c *Conversation, m *Message, senderName string) MirrorEntry {
	return MirrorEntry{
		MessageID:      m.ID,
		ConversationID: c.ID,
		PropertyID:     c.PropertyID,
		LandlordID:     c.LandlordID,
		TenantID:       c.TenantID,
		SenderID:       m.SenderID,
		SenderName:     senderName,
		Body:           m.Body,
		Kind:           m.Kind,
		State:          m.State,
		CreatedAt:      m.CreatedAt,
	}
}

// ConversationSummary is one row of a party's conversation list.
type ConversationSummary struct {
	ConversationID  int64     `json:"conversationId"`
	PropertyID      int64     `json:"propertyId"`
	LandlordID      int64     `json:"landlordId"`
	TenantID        int64     `json:"tenantId"`
	Name            string    `json:"name"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageID   int64     `json:"lastMessageId"`
	LastMessageDate time.Time `json:"lastMessageDate"`
}

func (e MirrorEntry) Summary() ConversationSummary {
	return ConversationSummary{
		ConversationID:  e.ConversationID,
		PropertyID:      e.PropertyID,
		LandlordID:      e.LandlordID,
		TenantID:        e.TenantID,
		Name:            e.SenderName,
		LastMessage:     e.Body,
		LastMessageID:   e.MessageID,
		LastMessageDate: e.CreatedAt,
	}
}

// SummaryQuery selects a party's conversations, optionally narrowed to one opponent.
type SummaryQuery struct {
	Role       Role
	PartyID    int64
	OpponentID int64
	Cursor     string
	Limit      int
}

// SummaryIterator is a lazy, single-pass page of summaries, newest first.
type SummaryIterator interface {
	Next(ctx context.Context) bool
	Summary() ConversationSummary
	Err() error
	// Cursor resumes after the last summary; empty when the page was the last one.
	Cursor() string
}
