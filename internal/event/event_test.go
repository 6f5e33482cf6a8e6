package event

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
)

func TestDecode_KnownTypes(t *testing.T) {
	tests := []struct {
		raw  string
		want Inbound
	}{
		{`{"type":"register_landlord","payload":{"landlordId":1}}`, &RegisterLandlord{LandlordID: 1}},
		{`{"type":"register_tenant","payload":{"tenantId":2}}`, &RegisterTenant{TenantID: 2}},
		{`{"type":"joinRoom","payload":{"conversationId":100}}`, &JoinRoom{ConversationID: 100}},
		{`{"type":"mark_read","payload":{"conversationId":100}}`, &MarkRead{ConversationID: 100}},
		{`{"type":"join_stream","payload":{"propertyId":5,"viewerId":2}}`, &JoinStream{PropertyID: 5, ViewerID: 2}},
		{
			`{"type":"send_message_to_tenant","payload":{"landlordId":1,"tenantId":2,"content":"hi"}}`,
			&SendMessageToTenant{directFields{LandlordID: 1, TenantID: 2, Content: "hi"}},
		},
	}
	for _, tt := range tests {
		got, typ, err := Decode([]byte(tt.raw))
		if err != nil {
			t.Fatalf("Decode(%s): %v", tt.raw, err)
		}
		if typ != tt.want.Type() || got.Type() != tt.want.Type() {
			t.Fatalf("type = %s/%s, want %s", typ, got.Type(), tt.want.Type())
		}
		gb, _ := json.Marshal(got)
		wb, _ := json.Marshal(tt.want)
		if string(gb) != string(wb) {
			t.Errorf("payload = %s, want %s", gb, wb)
		}
	}
}

func TestDecode_SignalingPayloadIsOpaque(t *testing.T) {
	raw := `{"type":"offer","payload":{"propertyId":5,"offer":{"sdp":"v=0\r\no=- 1 2 IN IP4 0.0.0.0","type":"offer","x":[1,2]}}}`
	ev, _, err := Decode([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	offer, ok := ev.(*Offer)
	if !ok {
		t.Fatalf("got %T", ev)
	}

	out, err := Encode(offer)
	if err != nil {
		t.Fatal(err)
	}
	var env struct {
		Type    string `json:"type"`
		Payload struct {
			Offer json.RawMessage `json:"offer"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != TypeOffer {
		t.Fatalf("type = %s", env.Type)
	}
	if string(env.Payload.Offer) != string(offer.Offer) {
		t.Fatalf("offer payload changed: %s != %s", env.Payload.Offer, offer.Offer)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
		wantTyp string
	}{
		{"not json", `{{`, ErrMalformed, ""},
		{"no type", `{"payload":{}}`, ErrMalformed, ""},
		{"unknown", `{"type":"broadcast_frame","payload":{}}`, ErrUnknownType, "broadcast_frame"},
		{"missing payload", `{"type":"joinRoom"}`, ErrInvalidPayload, TypeJoinRoom},
		{"null payload", `{"type":"joinRoom","payload":null}`, ErrInvalidPayload, TypeJoinRoom},
		{"wrong field type", `{"type":"joinRoom","payload":{"conversationId":"abc"}}`, ErrInvalidPayload, TypeJoinRoom},
		{"zero id", `{"type":"joinRoom","payload":{"conversationId":0}}`, ErrInvalidPayload, TypeJoinRoom},
		{"blank text", `{"type":"chat_message","payload":{"propertyId":5,"text":"  "}}`, ErrInvalidPayload, TypeChatMessage},
		{"offer without sdp", `{"type":"offer","payload":{"propertyId":5}}`, ErrInvalidPayload, TypeOffer},
		{"null candidate", `{"type":"ice-candidate","payload":{"propertyId":5,"candidate":null}}`, ErrInvalidPayload, TypeICECandidate},
		{"direct without tenant", `{"type":"send_message_to_landlord","payload":{"landlordId":1,"content":"x"}}`, ErrInvalidPayload, TypeSendMessageToLandlord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, typ, err := Decode([]byte(tt.raw))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if ev != nil {
				t.Fatalf("event = %#v, want nil", ev)
			}
			if typ != tt.wantTyp {
				t.Fatalf("type = %q, want %q", typ, tt.wantTyp)
			}
		})
	}
}

func TestEncode_Envelope(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	b, err := Encode(NewMessageFrom(&domain.Message{
		ID: 9, ConversationID: 100, SenderID: 2, Body: "hello", Kind: domain.KindText,
		State: domain.StateSent, CreatedAt: ts,
	}))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"new_message","payload":{"messageId":9,"conversationId":100,"senderId":2,"body":"hello","kind":"TEXT","status":"SENT","createdAt":"2025-01-02T03:04:05Z"}}`
	if string(b) != want {
		t.Fatalf("got  %s\nwant %s", b, want)
	}

	b = MustEncode(&Error{Code: CodeBadRequest, Event: TypeJoinRoom, Message: "boom"})
	if string(b) != `{"type":"error","payload":{"code":"bad_request","event":"joinRoom","error":"boom"}}` {
		t.Fatalf("error envelope: %s", b)
	}

	if _, err := Encode(nil); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("Encode(nil) err = %v", err)
	}
}
