package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/Tobby-pro/New-Rental-Stack/internal/auth"
	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
	"github.com/Tobby-pro/New-Rental-Stack/internal/realtime"
	"github.com/Tobby-pro/New-Rental-Stack/internal/service"
	httpmw "github.com/Tobby-pro/New-Rental-Stack/internal/transport/http/middleware"
	"github.com/Tobby-pro/New-Rental-Stack/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

type ConversationAPI interface {
	Resolve(ctx context.Context, landlordID, tenantID, propertyID int64) (*domain.Conversation, error)
	StartChat(ctx context.Context, tenantID, propertyID int64) (*domain.Conversation, error)
	Find(ctx context.Context, landlordID, tenantID int64) (*domain.Conversation, error)
}

type MessageAPI interface {
	Send(ctx context.Context, in service.SendInput) (*domain.Message, error)
	Acknowledge(ctx context.Context, messageID, actorID int64, state domain.DeliveryState) (*domain.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID int64) ([]int64, error)
	ListConversations(ctx context.Context, q service.ConversationQuery) (domain.SummaryIterator, error)
	ListMessages(ctx context.Context, conversationID, viewerID int64, cursor string, limit int) ([]domain.Message, string, error)
}

type StatsSource interface {
	Stats() realtime.Stats
}

type Handler struct {
	convs ConversationAPI
	msgs  MessageAPI
	stats StatsSource
}

func NewHandler(convs ConversationAPI, msgs MessageAPI, stats StatsSource) *Handler {
	return &Handler{convs: convs, msgs: msgs, stats: stats}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(v); err != nil {
		badRequest(w, r, "invalid json")
		return false
	}
	return true
}

func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := httpmw.PrincipalFromCtx(r.Context())
	if !ok {
		httputil.Error(r.Context(), w, http.StatusUnauthorized, "unauthorized", "no principal")
	}
	return p, ok
}

func queryInt(r *http.Request, name string) (int64, error) {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// POST /api/chats/start-chat
func (h *Handler) StartChat(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if !p.IsTenant() {
		forbidden(w, r, "only tenants can start a chat")
		return
	}
	var req StartChatRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.convs.StartChat(r.Context(), p.UserID, req.PropertyID)
	if err != nil {
		writeError(w, r, "handler.StartChat", err)
		return
	}
	httputil.OK(w, ConversationIDResponse{ConversationID: c.ID})
}

// POST /api/chats/resolve
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req ResolveRequest
	if !decode(w, r, &req) {
		return
	}
	if p.UserID != req.LandlordID && p.UserID != req.TenantID {
		forbidden(w, r, "caller is not a party of the conversation")
		return
	}
	c, err := h.convs.Resolve(r.Context(), req.LandlordID, req.TenantID, req.PropertyID)
	if err != nil {
		writeError(w, r, "handler.Resolve", err)
		return
	}
	httputil.OK(w, conversationItem(c))
}

// GET /api/chats?landlordId=&tenantId=
func (h *Handler) FindChat(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	landlordID, err1 := queryInt(r, "landlordId")
	tenantID, err2 := queryInt(r, "tenantId")
	if err1 != nil || err2 != nil {
		badRequest(w, r, "landlordId and tenantId must be integers")
		return
	}
	if p.UserID != landlordID && p.UserID != tenantID {
		forbidden(w, r, "caller is not a party of the conversation")
		return
	}
	c, err := h.convs.Find(r.Context(), landlordID, tenantID)
	if err != nil {
		writeError(w, r, "handler.FindChat", err)
		return
	}
	httputil.OK(w, ConversationIDResponse{ConversationID: c.ID})
}

// POST /api/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req SendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := h.msgs.Send(r.Context(), service.SendInput{
		ConversationID: req.ConversationID,
		SenderID:       p.UserID,
		Body:           req.Message,
		Kind:           req.MessageType,
	})
	if err != nil {
		writeError(w, r, "handler.SendMessage", err)
		return
	}
	httputil.Created(w, messageItem(m))
}

// POST /api/messages/update-status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !decode(w, r, &req) {
		return
	}
	state, err := domain.ParseDeliveryState(req.Status)
	if err != nil {
		writeError(w, r, "handler.UpdateStatus", err)
		return
	}
	m, err := h.msgs.Acknowledge(r.Context(), req.MessageID, p.UserID, state)
	if err != nil {
		writeError(w, r, "handler.UpdateStatus", err)
		return
	}
	httputil.OK(w, messageItem(m))
}

// POST /api/messages/mark-read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req MarkReadRequest
	if !decode(w, r, &req) {
		return
	}
	ids, err := h.msgs.MarkRead(r.Context(), req.ConversationID, p.UserID)
	if err != nil {
		writeError(w, r, "handler.MarkRead", err)
		return
	}
	httputil.OK(w, MarkReadResponse{Success: true, Updated: ids})
}

// GET /api/messages/{role}/{partyId}/conversations?opponentId=&cursor=&limit=
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	role, err := domain.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		badRequest(w, r, "role must be landlord or tenant")
		return
	}
	partyID, err := strconv.ParseInt(chi.URLParam(r, "partyId"), 10, 64)
	if err != nil {
		badRequest(w, r, "partyId must be an integer")
		return
	}
	if role != p.Role || partyID != p.UserID {
		forbidden(w, r, "cannot list another user's conversations")
		return
	}
	opponentID, err := queryInt(r, "opponentId")
	if err != nil {
		badRequest(w, r, "opponentId must be an integer")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		badRequest(w, r, "limit must be an integer")
		return
	}

	it, err := h.msgs.ListConversations(r.Context(), service.ConversationQuery{
		Party:      realtime.Identity{Role: role, UserID: partyID},
		OpponentID: opponentID,
		Cursor:     r.URL.Query().Get("cursor"),
		Limit:      int(limit),
	})
	if err != nil {
		writeError(w, r, "handler.ListConversations", err)
		return
	}
	resp := ConversationsListResponse{Items: []domain.ConversationSummary{}}
	for it.Next(r.Context()) {
		resp.Items = append(resp.Items, it.Summary())
	}
	if err := it.Err(); err != nil {
		writeError(w, r, "handler.ListConversations", err)
		return
	}
	resp.NextCursor = it.Cursor()
	httputil.OK(w, resp)
}

// GET /api/messages/conversation/{id}?cursor=&limit=
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	convID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, r, "conversation id must be an integer")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		badRequest(w, r, "limit must be an integer")
		return
	}
	msgs, next, err := h.msgs.ListMessages(r.Context(), convID, p.UserID, r.URL.Query().Get("cursor"), int(limit))
	if err != nil {
		writeError(w, r, "handler.ListMessages", err)
		return
	}
	resp := MessagesListResponse{Items: make([]MessageItem, 0, len(msgs)), NextCursor: next}
	for i := range msgs {
		resp.Items = append(resp.Items, messageItem(&msgs[i]))
	}
	httputil.OK(w, resp)
}

// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	s := h.stats.Stats()
	httputil.JSON(w, http.StatusOK, HealthResponse{Status: "ok", Connections: s.Connections, Rooms: s.Rooms})
}
