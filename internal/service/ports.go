package service

import (
	"context"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
	"github.com/Tobby-pro/New-Rental-Stack/internal/event"
	"github.com/Tobby-pro/New-Rental-Stack/internal/realtime"
)

type ConversationStore interface {
	Get(ctx context.Context, id int64) (*domain.Conversation, error)
	GetByParties(ctx context.Context, landlordID, tenantID, propertyID int64) (*domain.Conversation, error)
	LatestBetween(ctx context.Context, landlordID, tenantID int64) (*domain.Conversation, error)
	Create(ctx context.Context, landlordID, tenantID, propertyID int64) (*domain.Conversation, error)
	Touch(ctx context.Context, c *domain.Conversation) error
}

type MessageStore interface {
	Create(ctx context.Context, m *domain.Message) error
	Get(ctx context.Context, id int64) (*domain.Message, error)
	Advance(ctx context.Context, id int64, state domain.DeliveryState) (*domain.Message, bool, error)
	MarkRead(ctx context.Context, conversationID, readerID int64) ([]int64, error)
	List(ctx context.Context, conversationID int64, cursor string, limit int) ([]domain.Message, string, error)
}

// Directory reads data owned by other services.
type Directory interface {
	PropertyLandlord(ctx context.Context, propertyID int64) (int64, error)
	UserName(ctx context.Context, userID int64) (string, error)
}

type Mirror interface {
	Project(ctx context.Context, e domain.MirrorEntry) error
	SetState(ctx context.Context, messageID int64, state domain.DeliveryState) (bool, error)
	SetStates(ctx context.Context, ids []int64, state domain.DeliveryState) ([]int64, error)
	Summaries(q domain.SummaryQuery) domain.SummaryIterator
}

// Projector schedules mirror repairs after an inline mirror write failed.
type Projector interface {
	EnqueueProjection(ctx context.Context, messageID int64) error
	EnqueueStateRepair(ctx context.Context, ids []int64, state domain.DeliveryState) error
}

// Broadcaster is the fan-out side of realtime.Hub.
type Broadcaster interface {
	Broadcast(room string, ev event.Outbound, exclude realtime.Conn) int
	Deliver(room string, recipients []realtime.Identity, ev event.Outbound, exclude realtime.Conn) int
}
