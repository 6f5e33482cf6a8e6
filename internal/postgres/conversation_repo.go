package postgres

import (
	"context"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	q querier
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{q: db}
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := row.Scan(&c.ID, &c.LandlordID, &c.TenantID, &c.PropertyID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepository) Get(ctx context.Context, id int64) (*domain.Conversation, error) {
	c, err := scanConversation(r.q.QueryRow(ctx, qConversationByID, id))
	if err != nil {
		return nil, mapPgError(err, domain.ErrConversationNotFound)
	}
	return c, nil
}

func (r *ConversationRepository) GetByParties(ctx context.Context, landlordID, tenantID, propertyID int64) (*domain.Conversation, error) {
	c, err := scanConversation(r.q.QueryRow(ctx, qConversationByParties, landlordID, tenantID, propertyID))
	if err != nil {
		return nil, mapPgError(err, domain.ErrConversationNotFound)
	}
	return c, nil
}

// LatestBetween returns the most recently active conversation of the pair over any property.
func (r *ConversationRepository) LatestBetween(ctx context.Context, landlordID, tenantID int64) (*domain.Conversation, error) {
	c, err := scanConversation(r.q.QueryRow(ctx, qLatestConversationBetween, landlordID, tenantID))
	if err != nil {
		return nil, mapPgError(err, domain.ErrConversationNotFound)
	}
	return c, nil
}

// Create inserts the triple. A concurrent insert of the same triple yields domain.ErrConflict.
func (r *ConversationRepository) Create(ctx context.Context, landlordID, tenantID, propertyID int64) (*domain.Conversation, error) {
	c, err := scanConversation(r.q.QueryRow(ctx, qInsertConversation, landlordID, tenantID, propertyID))
	if err != nil {
		return nil, mapPgError(err, domain.ErrPropertyNotFound)
	}
	return c, nil
}

// Touch bumps updated_at and writes the new value into c.
func (r *ConversationRepository) Touch(ctx context.Context, c *domain.Conversation) error {
	if err := r.q.QueryRow(ctx, qTouchConversation, c.ID).Scan(&c.UpdatedAt); err != nil {
		return mapPgError(err, domain.ErrConversationNotFound)
	}
	return nil
}
