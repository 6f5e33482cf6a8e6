package domain

import (
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindText  Kind = "TEXT"
	KindImage Kind = "IMAGE"
	KindVideo Kind = "VIDEO"
)

// ParseKind never fails: anything outside the known kinds becomes TEXT.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindText, KindImage, KindVideo:
		return k
	}
	return KindText
}

// DeliveryState is ordered: SENT < DELIVERED < READ.
type DeliveryState int16

const (
	StateSent      DeliveryState = 1
	StateDelivered DeliveryState = 2
	StateRead      DeliveryState = 3
)

func (s DeliveryState) Valid() bool { return s >= StateSent && s <= StateRead }

// Advance returns the later of s and to; the bool is true when state moved forward.
func (s DeliveryState) Advance(to DeliveryState) (DeliveryState, bool) {
	if !to.Valid() || to <= s {
		return s, false
	}
	return to, true
}

func (s DeliveryState) String() string {
	switch s {
	case StateSent:
		return "SENT"
	case StateDelivered:
		return "DELIVERED"
	case StateRead:
		return "READ"
	}
	return fmt.Sprintf("DeliveryState(%d)", int16(s))
}

func ParseDeliveryState(s string) (DeliveryState, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SENT":
		return StateSent, nil
	case "DELIVERED":
		return StateDelivered, nil
	case "READ":
		return StateRead, nil
	}
	return 0, fmt.Errorf("%w: unknown delivery state %q", ErrInvalidArgument, s)
}

func (s DeliveryState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: delivery state %d", ErrInvalidArgument, int16(s))
	}
	return []byte(s.String()), nil
}

func (s *DeliveryState) UnmarshalText(b []byte) error {
	v, err := ParseDeliveryState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type Message struct {
	ID             int64         `db:"id"`
	ConversationID int64         `db:"conversation_id"`
	SenderID       int64         `db:"sender_id"`
	Body           string        `db:"body"`
	Kind           Kind          `db:"kind"`
	State          DeliveryState `db:"state"`
	CreatedAt      time.Time     `db:"created_at"`
}
