package ws

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
	"github.com/Tobby-pro/New-Rental-Stack/internal/event"
	"github.com/Tobby-pro/New-Rental-Stack/internal/realtime"
	"github.com/Tobby-pro/New-Rental-Stack/internal/service"
)

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrUnauthorized}, args...)...)
}

func (s *Server) dispatch(ctx context.Context, c *wsConn, in event.Inbound) error {
	switch ev := in.(type) {
	case *event.RegisterLandlord:
		return s.register(c, domain.RoleLandlord, ev.LandlordID)
	case *event.RegisterTenant:
		return s.register(c, domain.RoleTenant, ev.TenantID)

	case *event.JoinRoom:
		if _, err := s.convs.Authorize(ctx, ev.ConversationID, c.principal.UserID); err != nil {
			return err
		}
		room := domain.ConversationRoom(ev.ConversationID)
		s.hub.Join(c, room)
		return s.hub.Send(c, &event.Joined{Room: room})

	case *event.LeaveRoom:
		room := domain.ConversationRoom(ev.ConversationID)
		s.hub.Leave(c, room)
		return s.hub.Send(c, &event.Left{Room: room})

	case *event.SendMessageToRoom:
		room := domain.ConversationRoom(ev.ConversationID)
		if !s.hub.IsMember(c, room) {
			return forbidden("join %s first", room)
		}
		s.hub.Broadcast(room, &event.RoomMessage{
			ConversationID: ev.ConversationID,
			SenderID:       c.principal.UserID,
			Content:        ev.Content,
			Kind:           string(domain.ParseKind(ev.Kind)),
		}, nil)
		return nil

	case *event.SendMessageToLandlord:
		if !c.principal.IsTenant() || c.principal.UserID != ev.TenantID {
			return forbidden("only tenant %d may send this message", ev.TenantID)
		}
		s.direct(realtime.Identity{Role: domain.RoleLandlord, UserID: ev.LandlordID}, &event.DirectMessage{
			Sender: domain.RoleTenant.Lower(), LandlordID: ev.LandlordID, TenantID: ev.TenantID, Content: ev.Content,
		})
		return nil

	case *event.SendMessageToTenant:
		if !c.principal.IsLandlord() || c.principal.UserID != ev.LandlordID {
			return forbidden("only landlord %d may send this message", ev.LandlordID)
		}
		s.direct(realtime.Identity{Role: domain.RoleTenant, UserID: ev.TenantID}, &event.DirectMessage{
			Sender: domain.RoleLandlord.Lower(), LandlordID: ev.LandlordID, TenantID: ev.TenantID, Content: ev.Content,
		})
		return nil

	case *event.SendMessage:
		m, err := s.msgs.Send(ctx, service.SendInput{
			ConversationID: ev.ConversationID,
			SenderID:       c.principal.UserID,
			Body:           ev.Body,
			Kind:           ev.Kind,
			Origin:         c,
		})
		if err != nil {
			return err
		}
		return s.hub.Send(c, &event.MessageAck{
			ClientID:  ev.ClientID,
			MessageID: m.ID,
			Status:    m.State,
			CreatedAt: m.CreatedAt,
		})

	case *event.MessageDelivered:
		_, err := s.msgs.Acknowledge(ctx, ev.MessageID, c.principal.UserID, domain.StateDelivered)
		return err

	case *event.MarkRead:
		_, err := s.msgs.MarkRead(ctx, ev.ConversationID, c.principal.UserID)
		return err

	case *event.StartStream:
		if err := s.ownsProperty(ctx, c, ev.PropertyID); err != nil {
			return err
		}
		// the host joins before going live so viewer answers reach it;
		// Start itself never touches membership
		s.hub.Join(c, domain.PropertyRoom(ev.PropertyID))
		s.sig.Start(ev.PropertyID, c.principal.UserID, ev.Metadata, c)
		return nil

	case *event.StopStream:
		if err := s.ownsProperty(ctx, c, ev.PropertyID); err != nil {
			return err
		}
		s.sig.Stop(ev.PropertyID, ev.Metadata, c)
		return nil

	case *event.JoinStream:
		room := domain.PropertyRoom(ev.PropertyID)
		s.hub.Join(c, room)
		if err := s.hub.Send(c, &event.Joined{Room: room}); err != nil {
			return err
		}
		if st, ok := s.sig.Live(ev.PropertyID); ok {
			return s.hub.Send(c, &event.StreamStarted{PropertyID: st.PropertyID, HostID: st.HostID, Metadata: st.Metadata})
		}
		return nil

	case *event.Offer:
		if err := s.inPropertyRoom(c, ev.PropertyID); err != nil {
			return err
		}
		s.sig.Offer(ev.PropertyID, ev.Offer, c)
		return nil
	case *event.Answer:
		if err := s.inPropertyRoom(c, ev.PropertyID); err != nil {
			return err
		}
		s.sig.Answer(ev.PropertyID, ev.Answer, c)
		return nil
	case *event.ICECandidate:
		if err := s.inPropertyRoom(c, ev.PropertyID); err != nil {
			return err
		}
		s.sig.ICECandidate(ev.PropertyID, ev.Candidate, c)
		return nil

	case *event.ChatMessage:
		if err := s.inPropertyRoom(c, ev.PropertyID); err != nil {
			return err
		}
		s.sig.Chat(ev.PropertyID, c.principal.UserID, ev.Text)
		return nil
	}
	return fmt.Errorf("%w: %s", event.ErrUnknownType, in.Type())
}

// register binds the connection to an identity. The claimed id must be the
// token's own.
func (s *Server) register(c *wsConn, role domain.Role, userID int64) error {
	if c.principal.Role != role || c.principal.UserID != userID {
		return forbidden("token does not belong to %s %d", role.Lower(), userID)
	}
	s.hub.Register(realtime.Identity{Role: role, UserID: userID}, c)
	return s.hub.Send(c, &event.Registered{Role: role, UserID: userID})
}

func (s *Server) direct(to realtime.Identity, ev *event.DirectMessage) {
	if !s.hub.SendTo(to, ev) {
		slog.Debug("direct message recipient offline", "to", to.String())
	}
}

func (s *Server) ownsProperty(ctx context.Context, c *wsConn, propertyID int64) error {
	if !c.principal.IsLandlord() {
		return forbidden("only landlords host streams")
	}
	owner, err := s.convs.PropertyLandlord(ctx, propertyID)
	if err != nil {
		return err
	}
	if owner != c.principal.UserID {
		return forbidden("property %d belongs to another landlord", propertyID)
	}
	return nil
}

func (s *Server) inPropertyRoom(c *wsConn, propertyID int64) error {
	if room := domain.PropertyRoom(propertyID); !s.hub.IsMember(c, room) {
		return forbidden("join %s first", room)
	}
	return nil
}
