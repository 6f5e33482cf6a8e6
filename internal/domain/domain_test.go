package domain

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
)

func TestParseKind_FallsBackToText(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"TEXT", KindText},
		{"image", KindImage},
		{" Video ", KindVideo},
		{"", KindText},
		{"AUDIO", KindText},
		{"gif", KindText},
	}
	for _, tt := range tests {
		if got := ParseKind(tt.in); got != tt.want {
			t.Errorf("ParseKind(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDeliveryState_AdvanceIsMonotonic(t *testing.T) {
	tests := []struct {
		from, to    DeliveryState
		want        DeliveryState
		wantChanged bool
	}{
		{StateSent, StateDelivered, StateDelivered, true},
		{StateSent, StateRead, StateRead, true},
		{StateDelivered, StateRead, StateRead, true},
		{StateRead, StateDelivered, StateRead, false},
		{StateRead, StateSent, StateRead, false},
		{StateDelivered, StateDelivered, StateDelivered, false},
		{StateSent, DeliveryState(9), StateSent, false},
	}
	for _, tt := range tests {
		got, changed := tt.from.Advance(tt.to)
		if got != tt.want || changed != tt.wantChanged {
			t.Errorf("%s.Advance(%s) = (%s, %v), want (%s, %v)", tt.from, tt.to, got, changed, tt.want, tt.wantChanged)
		}
	}
}

func TestDeliveryState_NeverRegressesUnderRandomInterleaving(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	acks := []DeliveryState{StateDelivered, StateRead}
	for run := 0; run < 200; run++ {
		s := StateSent
		prev := s
		for i := 0; i < 10; i++ {
			s, _ = s.Advance(acks[rng.Intn(len(acks))])
			if s < prev {
				t.Fatalf("state regressed from %s to %s", prev, s)
			}
			prev = s
		}
	}
}

func TestDeliveryState_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		S DeliveryState `json:"s"`
	}{StateDelivered})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"s":"DELIVERED"}` {
		t.Fatalf("got %s", b)
	}

	var out struct {
		S DeliveryState `json:"s"`
	}
	if err := json.Unmarshal([]byte(`{"s":"read"}`), &out); err != nil {
		t.Fatal(err)
	}
	if out.S != StateRead {
		t.Fatalf("got %s", out.S)
	}
	if err := json.Unmarshal([]byte(`{"s":"LOST"}`), &out); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestConversation_Parties(t *testing.T) {
	c := &Conversation{ID: 100, LandlordID: 1, TenantID: 2, PropertyID: 5}
	if !c.HasParty(1) || !c.HasParty(2) || c.HasParty(3) || c.HasParty(0) {
		t.Fatal("HasParty mismatch")
	}
	if r, ok := c.RoleOf(2); !ok || r != RoleTenant {
		t.Fatalf("RoleOf(2) = %s, %v", r, ok)
	}
	if c.Room() != "conversation:100" || PropertyRoom(100) != "property:100" {
		t.Fatalf("room keys: %s %s", c.Room(), PropertyRoom(100))
	}
}

func TestErrorTaxonomy(t *testing.T) {
	if !errors.Is(ErrConversationNotFound, ErrNotFound) {
		t.Error("ErrConversationNotFound must match ErrNotFound")
	}
	if !errors.Is(ErrNotParticipant, ErrUnauthorized) {
		t.Error("ErrNotParticipant must match ErrUnauthorized")
	}
	if _, err := ParseRole("owner"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseRole: %v", err)
	}
	if r, _ := ParseRole("landlord"); r.Opposite() != RoleTenant {
		t.Error("Opposite")
	}
}
