package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleLandlord Role = "LANDLORD"
	RoleTenant   Role = "TENANT"
)

// ParseRole accepts any case ("landlord", "Tenant").
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleLandlord:
		return RoleLandlord, nil
	case RoleTenant:
		return RoleTenant, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, s)
}

func (r Role) Valid() bool { return r == RoleLandlord || r == RoleTenant }

// Opposite returns the other side of a conversation.
func (r Role) Opposite() Role {
	if r == RoleLandlord {
		return RoleTenant
	}
	return RoleLandlord
}

func (r Role) Lower() string { return strings.ToLower(string(r)) }
