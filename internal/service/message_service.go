package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
	"github.com/Tobby-pro/New-Rental-Stack/internal/event"
	"github.com/Tobby-pro/New-Rental-Stack/internal/metrics"
	"github.com/Tobby-pro/New-Rental-Stack/internal/realtime"
)

const (
	MaxBodyLength     = 4000
	unknownSenderName = "Unknown User"
)

type MessageService struct {
	convs     ConversationStore
	msgs      MessageStore
	dir       Directory
	mirror    Mirror
	projector Projector
	hub       Broadcaster
	metrics   *metrics.Metrics

	ledger     storeCaller
	mirrorCall storeCaller
}

type MessageServiceDeps struct {
	Conversations ConversationStore
	Messages      MessageStore
	Directory     Directory
	Mirror        Mirror
	Projector     Projector
	Hub           Broadcaster
	Metrics       *metrics.Metrics
	StoreTimeout  time.Duration
	MirrorTimeout time.Duration
}

func NewMessageService(d MessageServiceDeps) *MessageService {
	return &MessageService{
		convs:      d.Conversations,
		msgs:       d.Messages,
		dir:        d.Directory,
		mirror:     d.Mirror,
		projector:  d.Projector,
		hub:        d.Hub,
		metrics:    d.Metrics,
		ledger:     newStoreCaller(d.StoreTimeout, d.Metrics),
		mirrorCall: newStoreCaller(d.MirrorTimeout, d.Metrics),
	}
}

type SendInput struct {
	ConversationID int64
	SenderID       int64
	Body           string
	Kind           string
	// Origin is the connection the message came from, if any; it does not
	// receive its own new_message.
	Origin realtime.Conn
}

func parties(c *domain.Conversation) []realtime.Identity {
	return []realtime.Identity{
		{Role: domain.RoleLandlord, UserID: c.LandlordID},
		{Role: domain.RoleTenant, UserID: c.TenantID},
	}
}

// Send persists a message, projects it into the mirror and pushes it to
// both parties. Reaching nobody in realtime is still a success.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*domain.Message, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, fmt.Errorf("%w: message body is empty", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return nil, fmt.Errorf("%w: message body exceeds %d characters", domain.ErrInvalidArgument, MaxBodyLength)
	}

	conv, err := authorize(ctx, s.ledger, s.convs, in.ConversationID, in.SenderID)
	if err != nil {
		return nil, err
	}

	m := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		Body:           body,
		Kind:           domain.ParseKind(in.Kind),
		State:          domain.StateSent,
	}
	if err := exec(ctx, s.ledger, "messages.create", func(ctx context.Context) error {
		return s.msgs.Create(ctx, m)
	}); err != nil {
		return nil, err
	}

	s.project(ctx, conv, m)

	n := s.hub.Deliver(conv.Room(), parties(conv), event.NewMessageFrom(m), in.Origin)
	slog.Debug("message sent", "message_id", m.ID, "conversation_id", conv.ID, "recipients", n)
	return m, nil
}

func (s *MessageService) senderName(ctx context.Context, userID int64) string {
	name, err := call(ctx, s.ledger, "directory.user_name", func(ctx context.Context) (string, error) {
		return s.dir.UserName(ctx, userID)
	})
	if err != nil || strings.TrimSpace(name) == "" {
		return unknownSenderName
	}
	return name
}

// project writes the mirror inline and falls back to a queued repair.
func (s *MessageService) project(ctx context.Context, conv *domain.Conversation, m *domain.Message) {
	entry := domain.NewMirrorEntry(conv, m, s.senderName(ctx, m.SenderID))
	err := exec(ctx, s.mirrorCall, "mirror.project", func(ctx context.Context) error {
		return s.mirror.Project(ctx, entry)
	})
	if err == nil {
		return
	}
	s.metrics.MirrorFailure("project")
	slog.Warn("mirror projection failed, scheduling repair", "message_id", m.ID, "err", err)
	if err := s.projector.EnqueueProjection(context.WithoutCancel(ctx), m.ID); err != nil {
		slog.Error("enqueue mirror projection", "message_id", m.ID, "err", err)
	}
}

// Acknowledge records a delivery or read receipt from a recipient. Receipts
// for one's own messages and receipts that would move state backwards are
// accepted and ignored.
func (s *MessageService) Acknowledge(ctx context.Context, messageID, actorID int64, state domain.DeliveryState) (*domain.Message, error) {
	if state != domain.StateDelivered && state != domain.StateRead {
		return nil, fmt.Errorf("%w: acknowledgement must be DELIVERED or READ", domain.ErrInvalidArgument)
	}
	if messageID <= 0 {
		return nil, fmt.Errorf("%w: message id must be positive", domain.ErrInvalidArgument)
	}

	m, err := call(ctx, s.ledger, "messages.get", func(ctx context.Context) (*domain.Message, error) {
		return s.msgs.Get(ctx, messageID)
	})
	if err != nil {
		return nil, err
	}
	conv, err := authorize(ctx, s.ledger, s.convs, m.ConversationID, actorID)
	if err != nil {
		return nil, err
	}
	if m.SenderID == actorID {
		return m, nil
	}

	type advanced struct {
		m       *domain.Message
		changed bool
	}
	res, err := call(ctx, s.ledger, "messages.advance", func(ctx context.Context) (advanced, error) {
		m, changed, err := s.msgs.Advance(ctx, messageID, state)
		return advanced{m, changed}, err
	})
	if err != nil {
		return nil, err
	}
	if !res.changed {
		return res.m, nil
	}

	s.mirrorState(ctx, []int64{messageID}, res.m.State)
	s.hub.Deliver(conv.Room(), parties(conv), &event.StatusUpdate{
		MessageID:      res.m.ID,
		ConversationID: conv.ID,
		Status:         res.m.State,
	}, nil)
	return res.m, nil
}

// MarkRead moves everything the other party sent in the conversation to READ.
// It returns the ids that changed; calling it again returns none.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, readerID int64) ([]int64, error) {
	conv, err := authorize(ctx, s.ledger, s.convs, conversationID, readerID)
	if err != nil {
		return nil, err
	}

	ids, err := call(ctx, s.ledger, "messages.mark_read", func(ctx context.Context) ([]int64, error) {
		return s.msgs.MarkRead(ctx, conv.ID, readerID)
	})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []int64{}, nil
	}

	s.mirrorState(ctx, ids, domain.StateRead)
	s.hub.Deliver(conv.Room(), parties(conv), &event.MessagesRead{
		ConversationID: conv.ID,
		ReaderID:       readerID,
		MessageIDs:     ids,
	}, nil)
	return ids, nil
}

// mirrorState applies a state change to the mirror. Entries the mirror never
// saw are re-projected; a failed write is retried by the worker.
func (s *MessageService) mirrorState(ctx context.Context, ids []int64, state domain.DeliveryState) {
	missing, err := call(ctx, s.mirrorCall, "mirror.set_states", func(ctx context.Context) ([]int64, error) {
		return s.mirror.SetStates(ctx, ids, state)
	})
	bg := context.WithoutCancel(ctx)
	if err != nil {
		s.metrics.MirrorFailure("state")
		slog.Warn("mirror state update failed, scheduling repair", "messages", len(ids), "state", state, "err", err)
		if err := s.projector.EnqueueStateRepair(bg, ids, state); err != nil {
			slog.Error("enqueue mirror state repair", "messages", len(ids), "err", err)
		}
		return
	}
	for _, id := range missing {
		if err := s.projector.EnqueueProjection(bg, id); err != nil {
			slog.Error("enqueue mirror projection", "message_id", id, "err", err)
		}
	}
}

// ConversationQuery lists one party's conversations.
type ConversationQuery struct {
	Party      realtime.Identity
	OpponentID int64
	Cursor     string
	Limit      int
}

// ListConversations reads the mirror, newest first. The page is lazy: rows
// are fetched as the caller iterates.
func (s *MessageService) ListConversations(ctx context.Context, q ConversationQuery) (domain.SummaryIterator, error) {
	if !q.Party.Role.Valid() || q.Party.UserID <= 0 {
		return nil, fmt.Errorf("%w: party role and id are required", domain.ErrInvalidArgument)
	}
	if q.OpponentID < 0 {
		return nil, fmt.Errorf("%w: opponent id must be positive", domain.ErrInvalidArgument)
	}
	it := s.mirror.Summaries(domain.SummaryQuery{
		Role:       q.Party.Role,
		PartyID:    q.Party.UserID,
		OpponentID: q.OpponentID,
		Cursor:     q.Cursor,
		Limit:      q.Limit,
	})
	return &summaryPage{SummaryIterator: it}, nil
}

type summaryPage struct {
	domain.SummaryIterator
}

func (p *summaryPage) Err() error { return storeErr("mirror.summaries", p.SummaryIterator.Err()) }

// ListMessages pages the ledger for a participant, newest first. limit <= 0
// returns the whole history.
func (s *MessageService) ListMessages(ctx context.Context, conversationID, viewerID int64, cursor string, limit int) ([]domain.Message, string, error) {
	conv, err := authorize(ctx, s.ledger, s.convs, conversationID, viewerID)
	if err != nil {
		return nil, "", err
	}

	type page struct {
		msgs []domain.Message
		next string
	}
	p, err := call(ctx, s.ledger, "messages.list", func(ctx context.Context) (page, error) {
		msgs, next, err := s.msgs.List(ctx, conv.ID, cursor, limit)
		return page{msgs, next}, err
	})
	if err != nil {
		return nil, "", err
	}
	return p.msgs, p.next, nil
}

// Reproject rebuilds the mirror entry of one message from the ledger.
func (s *MessageService) Reproject(ctx context.Context, messageID int64) error {
	m, err := call(ctx, s.ledger, "messages.get", func(ctx context.Context) (*domain.Message, error) {
		return s.msgs.Get(ctx, messageID)
	})
	if err != nil {
		return err
	}
	conv, err := call(ctx, s.ledger, "conversations.get", func(ctx context.Context) (*domain.Conversation, error) {
		return s.convs.Get(ctx, m.ConversationID)
	})
	if err != nil {
		return err
	}
	entry := domain.NewMirrorEntry(conv, m, s.senderName(ctx, m.SenderID))
	return exec(ctx, s.mirrorCall, "mirror.project", func(ctx context.Context) error {
		return s.mirror.Project(ctx, entry)
	})
}

// ReapplyState retries a state change on the mirror; missing entries are rebuilt.
func (s *MessageService) ReapplyState(ctx context.Context, ids []int64, state domain.DeliveryState) error {
	missing, err := call(ctx, s.mirrorCall, "mirror.set_states", func(ctx context.Context) ([]int64, error) {
		return s.mirror.SetStates(ctx, ids, state)
	})
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range missing {
		if err := s.Reproject(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
