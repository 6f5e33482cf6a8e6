package domain

import (
	"strconv"
	"time"
)

type Conversation struct {
	ID         int64     `db:"id"`
	LandlordID int64     `db:"landlord_id"`
	TenantID   int64     `db:"tenant_id"`
	PropertyID int64     `db:"property_id"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// HasParty reports whether userID is the landlord or the tenant.
func (c *Conversation) HasParty(userID int64) bool {
	return userID != 0 && (userID == c.LandlordID || userID == c.TenantID)
}

// RoleOf returns the role userID plays in the conversation.
func (c *Conversation) RoleOf(userID int64) (Role, bool) {
	switch userID {
	case 0:
		return "", false
	case c.LandlordID:
		return RoleLandlord, true
	case c.TenantID:
		return RoleTenant, true
	}
	return "", false
}

func (c *Conversation) Room() string { return ConversationRoom(c.ID) }

// Room keys are namespaced so a conversation and a property with the same id never share a room.
func ConversationRoom(id int64) string { return "conversation:" + strconv.FormatInt(id, 10) }

func PropertyRoom(id int64) string { return "property:" + strconv.FormatInt(id, 10) }
