package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
	"github.com/Tobby-pro/New-Rental-Stack/internal/realtime"
)

type triple struct{ l, t, p int64 }

type memConversations struct {
	mu     sync.Mutex
	byID   map[int64]*domain.Conversation
	byKey  map[triple]int64
	nextID int64

	// with a barrier set, lookups miss until that many callers reached
	// Create, and Create holds every caller until all have arrived
	barrier int32
	arrived atomic.Int32
	allIn   chan struct{}
	creates atomic.Int32
}

func (m *memConversations) raceAll(n int32) {
	m.barrier = n
	m.allIn = make(chan struct{})
}

func newMemConversations() *memConversations {
	return &memConversations{byID: map[int64]*domain.Conversation{}, byKey: map[triple]int64{}, nextID: 100}
}

func (m *memConversations) Get(_ context.Context, id int64) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memConversations) GetByParties(_ context.Context, l, t, p int64) (*domain.Conversation, error) {
	if m.barrier > 0 && m.arrived.Load() < m.barrier {
		return nil, domain.ErrConversationNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[triple{l, t, p}]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memConversations) LatestBetween(_ context.Context, l, t int64) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.Conversation
	for _, c := range m.byID {
		if c.LandlordID == l && c.TenantID == t && (best == nil || c.UpdatedAt.After(best.UpdatedAt)) {
			best = c
		}
	}
	if best == nil {
		return nil, domain.ErrConversationNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *memConversations) Create(_ context.Context, l, t, p int64) (*domain.Conversation, error) {
	m.creates.Add(1)
	if m.barrier > 0 {
		if m.arrived.Add(1) == m.barrier {
			close(m.allIn)
		}
		<-m.allIn
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byKey[triple{l, t, p}]; ok {
		return nil, domain.ErrConflict
	}
	m.nextID++
	now := time.Now()
	c := &domain.Conversation{ID: m.nextID, LandlordID: l, TenantID: t, PropertyID: p, CreatedAt: now, UpdatedAt: now}
	m.byID[c.ID] = c
	m.byKey[triple{l, t, p}] = c.ID
	cp := *c
	return &cp, nil
}

func (m *memConversations) Touch(_ context.Context, c *domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[c.ID]
	if !ok {
		return domain.ErrConversationNotFound
	}
	stored.UpdatedAt = time.Now()
	c.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m *memConversations) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memMessages struct {
	mu     sync.Mutex
	byID   map[int64]*domain.Message
	nextID int64
	base   time.Time
	err    error
}

func newMemMessages() *memMessages {
	return &memMessages{byID: map[int64]*domain.Message{}, base: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memMessages) Create(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.nextID++
	msg.ID = m.nextID
	msg.CreatedAt = m.base.Add(time.Duration(msg.ID) * time.Second)
	cp := *msg
	m.byID[msg.ID] = &cp
	return nil
}

func (m *memMessages) Get(_ context.Context, id int64) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *memMessages) Advance(_ context.Context, id int64, s domain.DeliveryState) (*domain.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok {
		return nil, false, domain.ErrMessageNotFound
	}
	next, changed := msg.State.Advance(s)
	msg.State = next
	cp := *msg
	return &cp, changed, nil
}

func (m *memMessages) MarkRead(_ context.Context, convID, reader int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []int64{}
	for _, msg := range m.byID {
		if msg.ConversationID == convID && msg.SenderID != reader && msg.State < domain.StateRead {
			msg.State = domain.StateRead
			ids = append(ids, msg.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// List uses the offset as cursor.
func (m *memMessages) List(_ context.Context, convID int64, cursor string, limit int) ([]domain.Message, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.Message
	for _, msg := range m.byID {
		if msg.ConversationID == convID {
			all = append(all, *msg)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	off := 0
	if cursor != "" {
		var err error
		if off, err = strconv.Atoi(cursor); err != nil {
			return nil, "", domain.ErrInvalidArgument
		}
	}
	if off > len(all) {
		off = len(all)
	}
	all = all[off:]
	if limit <= 0 || limit >= len(all) {
		return all, "", nil
	}
	return all[:limit], strconv.Itoa(off + limit), nil
}

func (m *memMessages) state(id int64) domain.DeliveryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].State
}

type memDirectory struct {
	landlords map[int64]int64
	names     map[int64]string
}

func (d *memDirectory) PropertyLandlord(_ context.Context, propertyID int64) (int64, error) {
	l, ok := d.landlords[propertyID]
	if !ok {
		return 0, domain.ErrPropertyNotFound
	}
	return l, nil
}

func (d *memDirectory) UserName(_ context.Context, userID int64) (string, error) {
	n, ok := d.names[userID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return n, nil
}

type fakeMirror struct {
	mu      sync.Mutex
	entries map[int64]domain.MirrorEntry
	fail    error
}

func newFakeMirror() *fakeMirror { return &fakeMirror{entries: map[int64]domain.MirrorEntry{}} }

func (f *fakeMirror) Project(_ context.Context, e domain.MirrorEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if cur, ok := f.entries[e.MessageID]; ok && cur.State > e.State {
		e.State = cur.State
	}
	f.entries[e.MessageID] = e
	return nil
}

func (f *fakeMirror) SetState(_ context.Context, id int64, s domain.DeliveryState) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return false, f.fail
	}
	e, ok := f.entries[id]
	if !ok {
		return false, domain.ErrMessageNotFound
	}
	next, changed := e.State.Advance(s)
	e.State = next
	f.entries[id] = e
	return changed, nil
}

func (f *fakeMirror) SetStates(ctx context.Context, ids []int64, s domain.DeliveryState) ([]int64, error) {
	var missing []int64
	for _, id := range ids {
		if _, err := f.SetState(ctx, id, s); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				missing = append(missing, id)
				continue
			}
			return missing, err
		}
	}
	return missing, nil
}

func (f *fakeMirror) Summaries(q domain.SummaryQuery) domain.SummaryIterator {
	f.mu.Lock()
	defer f.mu.Unlock()
	latest := map[int64]domain.MirrorEntry{}
	for _, e := range f.entries {
		party := e.TenantID
		if q.Role == domain.RoleLandlord {
			party = e.LandlordID
		}
		if party != q.PartyID {
			continue
		}
		if cur, ok := latest[e.ConversationID]; !ok || e.CreatedAt.After(cur.CreatedAt) {
			latest[e.ConversationID] = e
		}
	}
	out := make([]domain.ConversationSummary, 0, len(latest))
	for _, e := range latest {
		out = append(out, e.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageDate.After(out[j].LastMessageDate) })
	return &sliceIterator{items: out, pos: -1}
}

func (f *fakeMirror) entry(id int64) (domain.MirrorEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	return e, ok
}

type sliceIterator struct {
	items []domain.ConversationSummary
	pos   int
	err   error
}

func (s *sliceIterator) Next(context.Context) bool {
	if s.err != nil || s.pos+1 >= len(s.items) {
		return false
	}
	s.pos++
	return true
}
func (s *sliceIterator) Summary() domain.ConversationSummary { return s.items[s.pos] }
func (s *sliceIterator) Err() error                          { return s.err }
func (s *sliceIterator) Cursor() string                      { return "" }

type fakeProjector struct {
	mu          sync.Mutex
	projections []int64
	repairs     [][]int64
}

func (p *fakeProjector) EnqueueProjection(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.projections = append(p.projections, id)
	return nil
}

func (p *fakeProjector) EnqueueStateRepair(_ context.Context, ids []int64, _ domain.DeliveryState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repairs = append(p.repairs, ids)
	return nil
}

type fakeConn struct {
	id string

	mu   sync.Mutex
	msgs []json.RawMessage
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, append(json.RawMessage(nil), b...))
	return nil
}

func (c *fakeConn) Close() error { return nil }

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (c *fakeConn) events() []envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]envelope, 0, len(c.msgs))
	for _, m := range c.msgs {
		var e envelope
		_ = json.Unmarshal(m, &e)
		out = append(out, e)
	}
	return out
}

func (c *fakeConn) typesOf() []string {
	var out []string
	for _, e := range c.events() {
		out = append(out, e.Type)
	}
	return out
}

var _ realtime.Conn = (*fakeConn)(nil)
