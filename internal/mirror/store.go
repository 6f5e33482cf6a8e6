package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"

	"github.com/redis/go-redis/v9"
)

const defaultTxRetries = 5

type Store struct {
	rdb        redis.UniversalClient
	messageTTL time.Duration
	txRetries  int
}

type Option func(*Store)

// WithMessageTTL expires per-message entries; summaries and indexes never expire.
func WithMessageTTL(ttl time.Duration) Option { return func(s *Store) { s.messageTTL = ttl } }

func WithTxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.txRetries = n
		}
	}
}

func NewStore(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{rdb: rdb, txRetries: defaultTxRetries}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

// watch runs fn as an optimistic transaction over keys, retrying when a
// watched key changed underneath it.
func (s *Store) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < s.txRetries; i++ {
		err := s.rdb.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("mirror: %w after %d attempts", redis.TxFailedErr, s.txRetries)
}

func getJSON[T any](ctx context.Context, c redis.Cmdable, key string) (*T, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("mirror: decode %s: %w", key, err)
	}
	return &v, nil
}

// Project writes e and refreshes the conversation summary and indexes.
// Replaying an older projection never lowers the stored delivery state and
// never replaces a newer summary.
func (s *Store) Project(ctx context.Context, e domain.MirrorEntry) error {
	mk, sk := messageKey(e.MessageID), summaryKey(e.ConversationID)

	return s.watch(ctx, func(tx *redis.Tx) error {
		cur, err := getJSON[domain.MirrorEntry](ctx, tx, mk)
		if err != nil {
			return err
		}
		if cur != nil && cur.State > e.State {
			e.State = cur.State
		}
		sum, err := getJSON[domain.ConversationSummary](ctx, tx, sk)
		if err != nil {
			return err
		}
		newer := sum == nil ||
			e.CreatedAt.After(sum.LastMessageDate) ||
			(e.CreatedAt.Equal(sum.LastMessageDate) && e.MessageID >= sum.LastMessageID)

		entry, err := json.Marshal(e)
		if err != nil {
			return err
		}
		summary, err := json.Marshal(e.Summary())
		if err != nil {
			return err
		}

		score := float64(e.CreatedAt.UnixMilli())
		member := strconv.FormatInt(e.ConversationID, 10)
		indexes := []string{
			partyKey(domain.RoleLandlord, e.LandlordID),
			partyKey(domain.RoleTenant, e.TenantID),
			pairKey(e.LandlordID, e.TenantID),
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, mk, entry, s.messageTTL)
			if newer {
				p.Set(ctx, sk, summary, 0)
			}
			for _, k := range indexes {
				p.ZAddArgs(ctx, k, redis.ZAddArgs{GT: true, Members: []redis.Z{{Score: score, Member: member}}})
			}
			return nil
		})
		return err
	}, mk, sk)
}

// Entry returns the projected message or domain.ErrMessageNotFound.
func (s *Store) Entry(ctx context.Context, messageID int64) (*domain.MirrorEntry, error) {
	e, err := getJSON[domain.MirrorEntry](ctx, s.rdb, messageKey(messageID))
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.ErrMessageNotFound
	}
	return e, nil
}

// SetState advances the projected state of one message. It reports whether
// the entry changed; a missing entry is domain.ErrMessageNotFound.
func (s *Store) SetState(ctx context.Context, messageID int64, state domain.DeliveryState) (bool, error) {
	mk := messageKey(messageID)
	changed := false

	err := s.watch(ctx, func(tx *redis.Tx) error {
		changed = false
		cur, err := getJSON[domain.MirrorEntry](ctx, tx, mk)
		if err != nil {
			return err
		}
		if cur == nil {
			return domain.ErrMessageNotFound
		}
		next, ok := cur.State.Advance(state)
		if !ok {
			return nil
		}
		cur.State = next
		raw, err := json.Marshal(cur)
		if err != nil {
			return err
		}

		var ttl time.Duration = redis.KeepTTL
		if s.messageTTL > 0 {
			ttl = s.messageTTL
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, mk, raw, ttl)
			return nil
		})
		if err == nil {
			changed = true
		}
		return err
	}, mk)
	return changed, err
}

// SetStates applies SetState to each id and returns the ids with no entry.
func (s *Store) SetStates(ctx context.Context, ids []int64, state domain.DeliveryState) (missing []int64, err error) {
	for _, id := range ids {
		if _, err := s.SetState(ctx, id, state); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				missing = append(missing, id)
				continue
			}
			return missing, err
		}
	}
	return missing, nil
}

// Summaries opens a lazy page over a party's conversations, newest first.
func (s *Store) Summaries(q domain.SummaryQuery) domain.SummaryIterator {
	return newIterator(s.rdb, q)
}
