package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
	"github.com/Tobby-pro/New-Rental-Stack/internal/event"
	"github.com/Tobby-pro/New-Rental-Stack/internal/realtime"
)

type pipeline struct {
	svc       *MessageService
	convs     *memConversations
	msgs      *memMessages
	mirror    *fakeMirror
	projector *fakeProjector
	hub       *realtime.Hub
	conv      *domain.Conversation
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	p := &pipeline{
		convs:     newMemConversations(),
		msgs:      newMemMessages(),
		mirror:    newFakeMirror(),
		projector: &fakeProjector{},
		hub:       realtime.NewHub(nil),
	}
	p.svc = NewMessageService(MessageServiceDeps{
		Conversations: p.convs,
		Messages:      p.msgs,
		Directory:     newDirectory(),
		Mirror:        p.mirror,
		Projector:     p.projector,
		Hub:           p.hub,
		StoreTimeout:  time.Second,
		MirrorTimeout: time.Second,
	})
	c, err := NewConversationService(p.convs, newDirectory(), time.Second, nil).Resolve(context.Background(), 1, 2, 5)
	if err != nil {
		t.Fatal(err)
	}
	p.conv = c
	return p
}

func (p *pipeline) connect(id string, ident realtime.Identity, rooms ...string) *fakeConn {
	c := &fakeConn{id: id}
	p.hub.Attach(c)
	p.hub.Register(ident, c)
	for _, r := range rooms {
		p.hub.Join(c, r)
	}
	return c
}

var (
	landlord = realtime.Identity{Role: domain.RoleLandlord, UserID: 1}
	tenant   = realtime.Identity{Role: domain.RoleTenant, UserID: 2}
)

func TestSend_LandlordTenantScenario(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	room := p.conv.Room()

	l := p.connect("landlord", landlord, room)
	tn := p.connect("tenant", tenant) // registered, never joined the room

	msg, err := p.svc.Send(ctx, SendInput{ConversationID: p.conv.ID, SenderID: 2, Body: "  Is it still available?  ", Kind: "gif", Origin: tn})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Body != "Is it still available?" || msg.Kind != domain.KindText || msg.State != domain.StateSent {
		t.Fatalf("message = %+v", msg)
	}
	if got := l.typesOf(); len(got) != 1 || got[0] != event.TypeNewMessage {
		t.Fatalf("landlord events = %v", got)
	}
	if got := tn.typesOf(); len(got) != 0 {
		t.Fatalf("origin connection got its own message: %v", got)
	}

	e, ok := p.mirror.entry(msg.ID)
	if !ok || e.SenderName != "Tom Tenant" || e.PropertyID != 5 || e.LandlordID != 1 {
		t.Fatalf("mirror entry = %+v, %v", e, ok)
	}

	// landlord opens the chat
	ids, err := p.svc.MarkRead(ctx, p.conv.ID, 1)
	if err != nil || len(ids) != 1 || ids[0] != msg.ID {
		t.Fatalf("MarkRead = %v, %v", ids, err)
	}
	if p.msgs.state(msg.ID) != domain.StateRead {
		t.Fatalf("ledger state = %s", p.msgs.state(msg.ID))
	}
	if e, _ := p.mirror.entry(msg.ID); e.State != domain.StateRead {
		t.Fatalf("mirror state = %s", e.State)
	}
	evs := tn.events()
	if len(evs) != 1 || evs[0].Type != event.TypeMessagesRead {
		t.Fatalf("tenant events = %v", tn.typesOf())
	}
	var read event.MessagesRead
	if err := json.Unmarshal(evs[0].Payload, &read); err != nil || read.ReaderID != 1 || len(read.MessageIDs) != 1 {
		t.Fatalf("messagesRead payload = %+v, %v", read, err)
	}
}

func TestSend_Validation(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   SendInput
		want error
	}{
		{"empty", SendInput{ConversationID: p.conv.ID, SenderID: 2, Body: "   "}, domain.ErrInvalidArgument},
		{"too long", SendInput{ConversationID: p.conv.ID, SenderID: 2, Body: strings.Repeat("я", MaxBodyLength+1)}, domain.ErrInvalidArgument},
		{"unknown conversation", SendInput{ConversationID: 999, SenderID: 2, Body: "hi"}, domain.ErrNotFound},
		{"stranger", SendInput{ConversationID: p.conv.ID, SenderID: 3, Body: "hi"}, domain.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.svc.Send(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := p.svc.Send(ctx, SendInput{ConversationID: p.conv.ID, SenderID: 2, Body: strings.Repeat("я", MaxBodyLength)}); err != nil {
		t.Fatalf("body at the limit: %v", err)
	}
}

func TestSend_NobodyOnlineStillSucceeds(t *testing.T) {
	p := newPipeline(t)
	if _, err := p.svc.Send(context.Background(), SendInput{ConversationID: p.conv.ID, SenderID: 1, Body: "hello"}); err != nil {
		t.Fatal(err)
	}
}

func TestSend_LedgerFailureIsTransient(t *testing.T) {
	p := newPipeline(t)
	p.msgs.err = errors.New("i/o timeout")
	_, err := p.svc.Send(context.Background(), SendInput{ConversationID: p.conv.ID, SenderID: 1, Body: "hello"})
	if !errors.Is(err, domain.ErrTransientStore) {
		t.Fatalf("err = %v", err)
	}
}

func TestSend_MirrorFailureSchedulesRepair(t *testing.T) {
	p := newPipeline(t)
	p.mirror.fail = errors.New("redis down")
	ctx := context.Background()

	msg, err := p.svc.Send(ctx, SendInput{ConversationID: p.conv.ID, SenderID: 2, Body: "hi"})
	if err != nil {
		t.Fatalf("send must not fail on mirror errors: %v", err)
	}
	if len(p.projector.projections) != 1 || p.projector.projections[0] != msg.ID {
		t.Fatalf("projections = %v", p.projector.projections)
	}

	// the worker later replays it
	p.mirror.fail = nil
	if err := p.svc.Reproject(ctx, msg.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.mirror.entry(msg.ID); !ok {
		t.Fatal("reprojection did not write the mirror")
	}
}

func TestAcknowledge(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	tn := p.connect("tenant", tenant)

	msg, _ := p.svc.Send(ctx, SendInput{ConversationID: p.conv.ID, SenderID: 2, Body: "hi", Origin: tn})

	// sender acks its own message: no-op
	got, err := p.svc.Acknowledge(ctx, msg.ID, 2, domain.StateRead)
	if err != nil || got.State != domain.StateSent {
		t.Fatalf("own ack: %+v, %v", got, err)
	}

	got, err = p.svc.Acknowledge(ctx, msg.ID, 1, domain.StateDelivered)
	if err != nil || got.State != domain.StateDelivered {
		t.Fatalf("delivered: %+v, %v", got, err)
	}
	if evs := tn.typesOf(); len(evs) != 1 || evs[0] != event.TypeStatusUpdate {
		t.Fatalf("tenant events = %v", evs)
	}

	got, _ = p.svc.Acknowledge(ctx, msg.ID, 1, domain.StateRead)
	if got.State != domain.StateRead {
		t.Fatalf("read: %+v", got)
	}
	got, _ = p.svc.Acknowledge(ctx, msg.ID, 1, domain.StateDelivered)
	if got.State != domain.StateRead {
		t.Fatalf("regressed to %s", got.State)
	}
	if evs := tn.typesOf(); len(evs) != 2 {
		t.Fatalf("a no-op ack must not notify, events = %v", evs)
	}

	if _, err := p.svc.Acknowledge(ctx, msg.ID, 1, domain.StateSent); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("SENT ack: %v", err)
	}
	if _, err := p.svc.Acknowledge(ctx, msg.ID, 3, domain.StateRead); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger ack: %v", err)
	}
	if _, err := p.svc.Acknowledge(ctx, 999, 1, domain.StateRead); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown message: %v", err)
	}
}

func TestAcknowledge_AnyInterleavingEndsAtMax(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 20; run++ {
		msg, err := p.svc.Send(ctx, SendInput{ConversationID: p.conv.ID, SenderID: 2, Body: "ping"})
		if err != nil {
			t.Fatal(err)
		}
		acks := []domain.DeliveryState{domain.StateDelivered, domain.StateRead, domain.StateDelivered}
		rng.Shuffle(len(acks), func(i, j int) { acks[i], acks[j] = acks[j], acks[i] })
		for _, s := range acks {
			if _, err := p.svc.Acknowledge(ctx, msg.ID, 1, s); err != nil {
				t.Fatal(err)
			}
		}
		if st := p.msgs.state(msg.ID); st != domain.StateRead {
			t.Fatalf("ledger ended at %s after %v", st, acks)
		}
		if e, _ := p.mirror.entry(msg.ID); e.State != domain.StateRead {
			t.Fatalf("mirror ended at %s after %v", e.State, acks)
		}
	}
}

func TestMarkRead_IdempotentAndSkipsOwn(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	own, _ := p.svc.Send(ctx, SendInput{ConversationID: p.conv.ID, SenderID: 2, Body: "mine"})
	theirs, _ := p.svc.Send(ctx, SendInput{ConversationID: p.conv.ID, SenderID: 1, Body: "theirs"})

	ids, err := p.svc.MarkRead(ctx, p.conv.ID, 2)
	if err != nil || len(ids) != 1 || ids[0] != theirs.ID {
		t.Fatalf("first MarkRead = %v, %v", ids, err)
	}
	ids, err = p.svc.MarkRead(ctx, p.conv.ID, 2)
	if err != nil || len(ids) != 0 {
		t.Fatalf("second MarkRead = %v, %v", ids, err)
	}
	if p.msgs.state(own.ID) != domain.StateSent {
		t.Fatalf("own message state = %s", p.msgs.state(own.ID))
	}
}

func TestMarkRead_MirrorGapsAreReprojected(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	p.mirror.fail = errors.New("redis down")
	msg, _ := p.svc.Send(ctx, SendInput{ConversationID: p.conv.ID, SenderID: 1, Body: "hi"})
	p.mirror.fail = nil

	if _, err := p.svc.MarkRead(ctx, p.conv.ID, 2); err != nil {
		t.Fatal(err)
	}
	// once on send, once because the state change found no entry
	if n := len(p.projector.projections); n != 2 || p.projector.projections[1] != msg.ID {
		t.Fatalf("projections = %v", p.projector.projections)
	}

	if err := p.svc.ReapplyState(ctx, []int64{msg.ID}, domain.StateRead); err != nil {
		t.Fatal(err)
	}
	if e, ok := p.mirror.entry(msg.ID); !ok || e.State != domain.StateRead {
		t.Fatalf("repaired entry = %+v, %v", e, ok)
	}
}

func TestListMessages_ReproducesSentMessageOnce(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	sent, err := p.svc.Send(ctx, SendInput{ConversationID: p.conv.ID, SenderID: 2, Body: "photo", Kind: "image"})
	if err != nil {
		t.Fatal(err)
	}
	msgs, next, err := p.svc.ListMessages(ctx, p.conv.ID, 1, "", 0)
	if err != nil || next != "" {
		t.Fatalf("list: %v %q", err, next)
	}
	found := 0
	for _, m := range msgs {
		if m.ID == sent.ID {
			found++
			if m.Body != "photo" || m.Kind != domain.KindImage || m.SenderID != 2 {
				t.Fatalf("listed = %+v", m)
			}
		}
	}
	if found != 1 {
		t.Fatalf("message listed %d times", found)
	}

	if _, _, err := p.svc.ListMessages(ctx, p.conv.ID, 3, "", 0); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger list: %v", err)
	}
}

func TestListMessages_Pages(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := p.svc.Send(ctx, SendInput{ConversationID: p.conv.ID, SenderID: 1, Body: "m"}); err != nil {
			t.Fatal(err)
		}
	}
	var (
		total  int
		cursor string
	)
	for {
		page, next, err := p.svc.ListMessages(ctx, p.conv.ID, 2, cursor, 2)
		if err != nil {
			t.Fatal(err)
		}
		total += len(page)
		if next == "" {
			break
		}
		cursor = next
	}
	if total != 5 {
		t.Fatalf("paged %d messages, want 5", total)
	}
}

func TestListConversations(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	if _, err := p.svc.Send(ctx, SendInput{ConversationID: p.conv.ID, SenderID: 2, Body: "hello"}); err != nil {
		t.Fatal(err)
	}

	it, err := p.svc.ListConversations(ctx, ConversationQuery{Party: landlord})
	if err != nil {
		t.Fatal(err)
	}
	var got []domain.ConversationSummary
	for it.Next(ctx) {
		got = append(got, it.Summary())
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ConversationID != p.conv.ID || got[0].LastMessage != "hello" {
		t.Fatalf("summaries = %+v", got)
	}

	if _, err := p.svc.ListConversations(ctx, ConversationQuery{Party: realtime.Identity{Role: "OWNER", UserID: 1}}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("bad role: %v", err)
	}
}

func TestSummaryPage_WrapsMirrorErrors(t *testing.T) {
	page := &summaryPage{SummaryIterator: &sliceIterator{err: errors.New("READONLY")}}
	if !errors.Is(page.Err(), domain.ErrTransientStore) {
		t.Fatalf("err = %v", page.Err())
	}
	page = &summaryPage{SummaryIterator: &sliceIterator{err: domain.ErrInvalidArgument}}
	if !errors.Is(page.Err(), domain.ErrInvalidArgument) || errors.Is(page.Err(), domain.ErrTransientStore) {
		t.Fatalf("err = %v", page.Err())
	}
}
