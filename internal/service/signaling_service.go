package service

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
	"github.com/Tobby-pro/New-Rental-Stack/internal/event"
	"github.com/Tobby-pro/New-Rental-Stack/internal/realtime"
)

// SignalingService relays WebRTC negotiation between the members of a
// property room. Payloads are passed through untouched; the only state kept
// is whether each room currently has a live stream.
type SignalingService struct {
	hub Broadcaster

	mu   sync.Mutex
	live map[int64]Stream // property id -> stream
}

// Stream describes a live tour.
type Stream struct {
	PropertyID int64
	HostID     int64
	HostConn   string
	Metadata   json.RawMessage
	StartedAt  time.Time
}

func NewSignalingService(hub Broadcaster) *SignalingService {
	return &SignalingService{hub: hub, live: make(map[int64]Stream)}
}

// Start marks the property LIVE and tells the room, except the host.
// Membership is not changed.
func (s *SignalingService) Start(propertyID, hostID int64, metadata json.RawMessage, host realtime.Conn) int {
	st := Stream{PropertyID: propertyID, HostID: hostID, Metadata: metadata, StartedAt: time.Now()}
	if host != nil {
		st.HostConn = host.ID()
	}

	s.mu.Lock()
	s.live[propertyID] = st
	s.mu.Unlock()

	n := s.hub.Broadcast(domain.PropertyRoom(propertyID), &event.StreamStarted{
		PropertyID: propertyID,
		HostID:     hostID,
		Metadata:   metadata,
	}, host)
	slog.Info("stream started", "property_id", propertyID, "host_id", hostID, "viewers", n)
	return n
}

// Stop marks the property IDLE and tells the room, except the host.
func (s *SignalingService) Stop(propertyID int64, metadata json.RawMessage, host realtime.Conn) int {
	s.mu.Lock()
	delete(s.live, propertyID)
	s.mu.Unlock()

	n := s.hub.Broadcast(domain.PropertyRoom(propertyID), &event.StreamStopped{
		PropertyID: propertyID,
		Metadata:   metadata,
	}, host)
	slog.Info("stream stopped", "property_id", propertyID, "viewers", n)
	return n
}

// Live reports the current stream of a property, for viewers joining late.
func (s *SignalingService) Live(propertyID int64) (Stream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.live[propertyID]
	return st, ok
}

// HostGone stops every stream hosted on a connection that went away without
// sending stop_stream.
func (s *SignalingService) HostGone(c realtime.Conn) {
	var stopped []int64
	s.mu.Lock()
	for pid, st := range s.live {
		if st.HostConn == c.ID() {
			delete(s.live, pid)
			stopped = append(stopped, pid)
		}
	}
	s.mu.Unlock()

	for _, pid := range stopped {
		s.hub.Broadcast(domain.PropertyRoom(pid), &event.StreamStopped{PropertyID: pid}, nil)
		slog.Info("stream stopped, host disconnected", "property_id", pid, "conn", c.ID())
	}
}

func (s *SignalingService) Offer(propertyID int64, offer json.RawMessage, sender realtime.Conn) int {
	return s.hub.Broadcast(domain.PropertyRoom(propertyID), &event.Offer{PropertyID: propertyID, Offer: offer}, sender)
}

func (s *SignalingService) Answer(propertyID int64, answer json.RawMessage, sender realtime.Conn) int {
	return s.hub.Broadcast(domain.PropertyRoom(propertyID), &event.Answer{PropertyID: propertyID, Answer: answer}, sender)
}

func (s *SignalingService) ICECandidate(propertyID int64, candidate json.RawMessage, sender realtime.Conn) int {
	return s.hub.Broadcast(domain.PropertyRoom(propertyID), &event.ICECandidate{PropertyID: propertyID, Candidate: candidate}, sender)
}

// Chat is the live tour chat; the sender gets its own line back.
func (s *SignalingService) Chat(propertyID, userID int64, text string) int {
	return s.hub.Broadcast(domain.PropertyRoom(propertyID), &event.ChatMessage{
		PropertyID: propertyID,
		UserID:     userID,
		Text:       text,
	}, nil)
}
