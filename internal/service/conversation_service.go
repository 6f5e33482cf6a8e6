package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
	"github.com/Tobby-pro/New-Rental-Stack/internal/metrics"
)

type ConversationService struct {
	convs ConversationStore
	dir   Directory
	store storeCaller
}

func NewConversationService(convs ConversationStore, dir Directory, timeout time.Duration, m *metrics.Metrics) *ConversationService {
	return &ConversationService{convs: convs, dir: dir, store: newStoreCaller(timeout, m)}
}

// Resolve returns the conversation for the triple, creating it on first use.
// Concurrent callers all get the same row: the unique constraint decides the
// winner and losers re-read it.
func (s *ConversationService) Resolve(ctx context.Context, landlordID, tenantID, propertyID int64) (*domain.Conversation, error) {
	if landlordID <= 0 || tenantID <= 0 || propertyID <= 0 {
		return nil, fmt.Errorf("%w: landlord, tenant and property ids must be positive", domain.ErrInvalidArgument)
	}
	if landlordID == tenantID {
		return nil, fmt.Errorf("%w: landlord and tenant must differ", domain.ErrInvalidArgument)
	}

	owner, err := call(ctx, s.store, "directory.property_landlord", func(ctx context.Context) (int64, error) {
		return s.dir.PropertyLandlord(ctx, propertyID)
	})
	if err != nil {
		return nil, err
	}
	if owner != landlordID {
		// property exists but is listed by someone else
		return nil, domain.ErrPropertyNotFound
	}

	c, err := s.getByParties(ctx, landlordID, tenantID, propertyID)
	if err == nil {
		if err := exec(ctx, s.store, "conversations.touch", func(ctx context.Context) error {
			return s.convs.Touch(ctx, c)
		}); err != nil {
			slog.Warn("touch conversation", "conversation_id", c.ID, "err", err)
		}
		return c, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	c, err = call(ctx, s.store, "conversations.create", func(ctx context.Context) (*domain.Conversation, error) {
		return s.convs.Create(ctx, landlordID, tenantID, propertyID)
	})
	if errors.Is(err, domain.ErrConflict) {
		return s.getByParties(ctx, landlordID, tenantID, propertyID)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("conversation created", "conversation_id", c.ID, "landlord_id", landlordID, "tenant_id", tenantID, "property_id", propertyID)
	return c, nil
}

func (s *ConversationService) getByParties(ctx context.Context, landlordID, tenantID, propertyID int64) (*domain.Conversation, error) {
	return call(ctx, s.store, "conversations.get_by_parties", func(ctx context.Context) (*domain.Conversation, error) {
		return s.convs.GetByParties(ctx, landlordID, tenantID, propertyID)
	})
}

// StartChat resolves the tenant's conversation about a property with its landlord.
func (s *ConversationService) StartChat(ctx context.Context, tenantID, propertyID int64) (*domain.Conversation, error) {
	if tenantID <= 0 || propertyID <= 0 {
		return nil, fmt.Errorf("%w: tenant and property ids must be positive", domain.ErrInvalidArgument)
	}
	landlordID, err := s.PropertyLandlord(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, landlordID, tenantID, propertyID)
}

func (s *ConversationService) PropertyLandlord(ctx context.Context, propertyID int64) (int64, error) {
	return call(ctx, s.store, "directory.property_landlord", func(ctx context.Context) (int64, error) {
		return s.dir.PropertyLandlord(ctx, propertyID)
	})
}

// Find returns the pair's most recently active conversation.
func (s *ConversationService) Find(ctx context.Context, landlordID, tenantID int64) (*domain.Conversation, error) {
	if landlordID <= 0 || tenantID <= 0 {
		return nil, fmt.Errorf("%w: landlord and tenant ids must be positive", domain.ErrInvalidArgument)
	}
	return call(ctx, s.store, "conversations.latest_between", func(ctx context.Context) (*domain.Conversation, error) {
		return s.convs.LatestBetween(ctx, landlordID, tenantID)
	})
}

// Authorize loads the conversation and checks that userID takes part in it.
func (s *ConversationService) Authorize(ctx context.Context, conversationID, userID int64) (*domain.Conversation, error) {
	return authorize(ctx, s.store, s.convs, conversationID, userID)
}

func authorize(ctx context.Context, sc storeCaller, convs ConversationStore, conversationID, userID int64) (*domain.Conversation, error) {
	if conversationID <= 0 {
		return nil, fmt.Errorf("%w: conversation id must be positive", domain.ErrInvalidArgument)
	}
	c, err := call(ctx, sc, "conversations.get", func(ctx context.Context) (*domain.Conversation, error) {
		return convs.Get(ctx, conversationID)
	})
	if err != nil {
		return nil, err
	}
	if !c.HasParty(userID) {
		return nil, domain.ErrNotParticipant
	}
	return c, nil
}
