// Package ws serves the realtime event protocol over websockets.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/auth"
	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
	"github.com/Tobby-pro/New-Rental-Stack/internal/event"
	"github.com/Tobby-pro/New-Rental-Stack/internal/metrics"
	"github.com/Tobby-pro/New-Rental-Stack/internal/realtime"
	"github.com/Tobby-pro/New-Rental-Stack/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

type ConversationSvc interface {
	Authorize(ctx context.Context, conversationID, userID int64) (*domain.Conversation, error)
	PropertyLandlord(ctx context.Context, propertyID int64) (int64, error)
}

type MessageSvc interface {
	Send(ctx context.Context, in service.SendInput) (*domain.Message, error)
	Acknowledge(ctx context.Context, messageID, actorID int64, state domain.DeliveryState) (*domain.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID int64) ([]int64, error)
}

type SignalingSvc interface {
	Start(propertyID, hostID int64, metadata json.RawMessage, host realtime.Conn) int
	Stop(propertyID int64, metadata json.RawMessage, host realtime.Conn) int
	Live(propertyID int64) (service.Stream, bool)
	Offer(propertyID int64, offer json.RawMessage, sender realtime.Conn) int
	Answer(propertyID int64, answer json.RawMessage, sender realtime.Conn) int
	ICECandidate(propertyID int64, candidate json.RawMessage, sender realtime.Conn) int
	Chat(propertyID, userID int64, text string) int
}

type Config struct {
	SendBuffer      int
	PingEvery       time.Duration
	WriteWait       time.Duration
	ReadLimit       int64
	EventsPerSecond float64
	EventBurst      int
	HandlerTimeout  time.Duration
	AllowedOrigins  []string
}

func (c *Config) setDefaults() {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.PingEvery <= 0 {
		c.PingEvery = 15 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 5 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if c.EventsPerSecond <= 0 {
		c.EventsPerSecond = 20
	}
	if c.EventBurst <= 0 {
		c.EventBurst = 40
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 5 * time.Second
	}
}

type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	hub      *realtime.Hub
	verifier TokenVerifier
	convs    ConversationSvc
	msgs     MessageSvc
	sig      SignalingSvc
	metrics  *metrics.Metrics
}

func NewServer(cfg Config, hub *realtime.Hub, verifier TokenVerifier, convs ConversationSvc, msgs MessageSvc, sig SignalingSvc, m *metrics.Metrics) *Server {
	cfg.setDefaults()
	s := &Server{
		cfg:      cfg,
		hub:      hub,
		verifier: verifier,
		convs:    convs,
		msgs:     msgs,
		sig:      sig,
		metrics:  m,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func bearer(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("access_token")); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return ""
}

// HandleWS: GET /ws?access_token=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := bearer(r)
	if token == "" {
		http.Error(w, "missing access_token", http.StatusUnauthorized)
		return
	}
	principal, err := s.verifier.Verify(token)
	if err != nil {
		slog.Debug("ws auth failed", "err", err)
		http.Error(w, "invalid access_token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already answered the client
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(uuid.NewString(), conn, principal, s.cfg.SendBuffer,
		rate.NewLimiter(rate.Limit(s.cfg.EventsPerSecond), s.cfg.EventBurst))
	s.hub.Attach(c)
	log := slog.With("conn", c.id, "user_id", principal.UserID, "role", principal.Role)
	log.Info("ws connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = s.hub.Send(c, &event.Connected{ConnID: c.id})

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(c)
	}()
	s.readLoop(ctx, c)

	s.hub.Disconnect(c)
	if err := c.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Debug("ws close", "err", err)
	}
	<-done
	log.Info("ws disconnected")
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	c.conn.SetReadLimit(s.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !c.isClosed() {
				slog.Debug("ws read", "conn", c.id, "err", err)
			}
			return
		}
		if !c.limiter.Allow() {
			s.reject(c, "", event.CodeRateLimited, "too many events")
			continue
		}

		ev, typ, err := event.Decode(data)
		if err != nil {
			code := event.CodeBadRequest
			if errors.Is(err, event.ErrUnknownType) {
				code = event.CodeUnknownEvent
			}
			s.reject(c, typ, code, err.Error())
			continue
		}

		s.metrics.Event(typ)
		hctx, cancel := context.WithTimeout(ctx, s.cfg.HandlerTimeout)
		err = s.dispatch(hctx, c, ev)
		cancel()
		if err != nil {
			s.fail(c, ev.Type(), err)
		}
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.cfg.PingEvery)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			if err := c.writeFrame(msg, s.cfg.WriteWait); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteWait)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (s *Server) reject(c *wsConn, typ, code, msg string) {
	s.metrics.Rejected(code)
	_ = s.hub.Send(c, &event.Error{Code: code, Event: typ, Message: msg})
}

// fail reports a handler error to the client. The connection stays open.
func (s *Server) fail(c *wsConn, typ string, err error) {
	code, msg := errorCode(err)
	if code == event.CodeInternal || code == event.CodeStoreUnavailable {
		slog.Error("ws event failed", "conn", c.id, "type", typ, "err", err)
	}
	s.reject(c, typ, code, msg)
}

func errorCode(err error) (code, msg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return event.CodeBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return event.CodeNotFound, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return event.CodeForbidden, err.Error()
	case errors.Is(err, domain.ErrTransientStore), errors.Is(err, context.DeadlineExceeded):
		return event.CodeStoreUnavailable, "storage temporarily unavailable"
	}
	return event.CodeInternal, "internal error"
}
