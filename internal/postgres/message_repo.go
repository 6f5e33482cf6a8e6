package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	q querier
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{q: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var (
		m     domain.Message
		kind  string
		state int16
	)
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &kind, &state, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Kind = domain.ParseKind(kind)
	m.State = domain.DeliveryState(state)
	return &m, nil
}

// Create persists m and fills in its id, state and created_at.
func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) error {
	if !m.State.Valid() {
		m.State = domain.StateSent
	}
	saved, err := scanMessage(r.q.QueryRow(ctx, qInsertMessage,
		m.ConversationID, m.SenderID, m.Body, string(m.Kind), int16(m.State)))
	if err != nil {
		return mapPgError(err, domain.ErrConversationNotFound)
	}
	*m = *saved
	return nil
}

func (r *MessageRepository) Get(ctx context.Context, id int64) (*domain.Message, error) {
	m, err := scanMessage(r.q.QueryRow(ctx, qMessageByID, id))
	if err != nil {
		return nil, mapPgError(err, domain.ErrMessageNotFound)
	}
	return m, nil
}

// Advance moves the message to state if that is forward. It returns the
// current row and whether it changed.
func (r *MessageRepository) Advance(ctx context.Context, id int64, state domain.DeliveryState) (*domain.Message, bool, error) {
	if !state.Valid() {
		return nil, false, fmt.Errorf("%w: state %d", domain.ErrInvalidArgument, int16(state))
	}
	m, err := scanMessage(r.q.QueryRow(ctx, qAdvanceMessage, id, int16(state)))
	if err == nil {
		return m, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, mapPgError(err, domain.ErrMessageNotFound)
	}

	// either unknown or already at or past state
	cur, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return cur, false, nil
}

// MarkRead moves every message in the conversation not sent by readerID to
// READ and returns the ids that changed.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID int64) ([]int64, error) {
	rows, err := r.q.Query(ctx, qMarkConversationRead, conversationID, readerID)
	if err != nil {
		return nil, mapPgError(err, domain.ErrConversationNotFound)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err, domain.ErrConversationNotFound)
	}
	return ids, nil
}

// List pages the conversation history, most recent first. limit <= 0
// returns everything after the cursor in one page.
func (r *MessageRepository) List(ctx context.Context, conversationID int64, after string, limit int) ([]domain.Message, string, error) {
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", err
	}

	var (
		createdAt any
		id        any
		lim       any
	)
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}
	if limit > 0 {
		lim = limit
	}

	rows, err := r.q.Query(ctx, qListMessages, conversationID, createdAt, id, lim)
	if err != nil {
		return nil, "", mapPgError(err, domain.ErrConversationNotFound)
	}
	defer rows.Close()

	out := make([]domain.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if limit > 0 && len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}
