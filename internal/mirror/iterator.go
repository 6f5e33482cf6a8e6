package mirror

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Iterator yields one page of summaries, fetching from Redis as it goes.
// It is single-pass and stops after Limit items.
//
//	it := store.Summaries(q)
//	for it.Next(ctx) {
//		s := it.Summary()
//	}
//	if err := it.Err(); err != nil { ... }
//	next := it.Cursor()
type Iterator struct {
	rdb   redis.UniversalClient
	key   string
	limit int
	batch int64

	after  *pageCursor
	offset int64

	buf       []scored
	pos       int
	exhausted bool

	cur     scored
	emitted int
	err     error
}

type scored struct {
	summary domain.ConversationSummary
	score   int64
	member  string
}

func newIterator(rdb redis.UniversalClient, q domain.SummaryQuery) *Iterator {
	it := &Iterator{rdb: rdb, key: indexKey(q), limit: clampLimit(q.Limit)}
	// one extra row lets a full page see whether anything follows it
	it.batch = int64(it.limit) + 1

	if !q.Role.Valid() || q.PartyID <= 0 {
		it.err = domain.ErrInvalidArgument
		return it
	}
	it.after, it.err = decodeCursor(q.Cursor)
	return it
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	}
	return n
}

func (it *Iterator) Next(ctx context.Context) bool {
	for {
		if it.err != nil || it.emitted >= it.limit {
			return false
		}
		if it.pos < len(it.buf) {
			it.cur = it.buf[it.pos]
			it.pos++
			it.emitted++
			if it.emitted == it.limit {
				it.lookahead(ctx)
			}
			return true
		}
		if it.exhausted {
			return false
		}
		it.fetch(ctx)
	}
}

func (it *Iterator) Summary() domain.ConversationSummary { return it.cur.summary }

func (it *Iterator) Err() error { return it.err }

// lookahead buffers the entry after the last one emitted, if any.
func (it *Iterator) lookahead(ctx context.Context) {
	for it.pos >= len(it.buf) && !it.exhausted && it.err == nil {
		it.fetch(ctx)
	}
}

// Cursor is non-empty when the page filled up and more entries follow.
func (it *Iterator) Cursor() string {
	if it.err != nil || it.emitted < it.limit {
		return ""
	}
	if it.exhausted && it.pos >= len(it.buf) {
		return ""
	}
	return encodeCursor(pageCursor{Score: it.cur.score, Member: it.cur.member})
}

func (it *Iterator) fetch(ctx context.Context) {
	hi := "+inf"
	if it.after != nil {
		hi = strconv.FormatInt(it.after.Score, 10)
	}
	zs, err := it.rdb.ZRevRangeByScoreWithScores(ctx, it.key, &redis.ZRangeBy{
		Max:    hi,
		Min:    "-inf",
		Offset: it.offset,
		Count:  it.batch,
	}).Result()
	if err != nil {
		it.err = err
		return
	}
	it.offset += int64(len(zs))
	if int64(len(zs)) < it.batch {
		it.exhausted = true
	}

	// members sharing the cursor score come in descending member order; the
	// ones at or above the cursor member were on an earlier page
	pending := make([]scored, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		score := int64(z.Score)
		if it.after != nil && score == it.after.Score && member >= it.after.Member {
			continue
		}
		pending = append(pending, scored{score: score, member: member})
	}
	it.buf, it.pos = it.buf[:0], 0
	if len(pending) == 0 {
		return
	}

	keys := make([]string, len(pending))
	for i, p := range pending {
		id, _ := strconv.ParseInt(p.member, 10, 64)
		keys[i] = summaryKey(id)
	}
	vals, err := it.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		it.err = err
		return
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// index ahead of summary; the repair job will catch up
			continue
		}
		if err := json.Unmarshal([]byte(raw), &pending[i].summary); err != nil {
			continue
		}
		it.buf = append(it.buf, pending[i])
	}
}
