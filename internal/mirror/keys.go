package mirror

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
)

const keyPrefix = "mirror:"

func messageKey(id int64) string {
	return keyPrefix + "message:" + strconv.FormatInt(id, 10)
}

func summaryKey(conversationID int64) string {
	return keyPrefix + "conversation:" + strconv.FormatInt(conversationID, 10) + ":summary"
}

// partyKey indexes every conversation of one landlord or tenant by last activity.
func partyKey(role domain.Role, partyID int64) string {
	return fmt.Sprintf("%s%s:%d:conversations", keyPrefix, role.Lower(), partyID)
}

// pairKey narrows the index to one landlord/tenant pair.
func pairKey(landlordID, tenantID int64) string {
	return fmt.Sprintf("%slandlord:%d:tenant:%d:conversations", keyPrefix, landlordID, tenantID)
}

// indexKey picks the sorted set a query reads from.
func indexKey(q domain.SummaryQuery) string {
	if q.OpponentID <= 0 {
		return partyKey(q.Role, q.PartyID)
	}
	if q.Role == domain.RoleLandlord {
		return pairKey(q.PartyID, q.OpponentID)
	}
	return pairKey(q.OpponentID, q.PartyID)
}

var ErrInvalidCursor = fmt.Errorf("%w: invalid cursor", domain.ErrInvalidArgument)

// pageCursor is the (score, member) of the last summary handed out.
type pageCursor struct {
	Score  int64  `json:"s"`
	Member string `json:"m"`
}

func encodeCursor(c pageCursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(s string) (*pageCursor, error) {
	if s == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c pageCursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.Member == "" {
		return nil, fmt.Errorf("%w: missing member", ErrInvalidCursor)
	}
	return &c, nil
}
