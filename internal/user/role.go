package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role is one of the closed set of role tags the backend assigns.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// AllRoles lists every known role in canonical order.
var AllRoles = []Role{RoleAdmin, RoleUser}

var ErrUnknownRole = errors.New("unknown role")

// ParseRole accepts a role tag in any case, with an optional ROLE_ prefix.
func ParseRole(s string) (Role, error) {
	tag := strings.ToUpper(strings.TrimSpace(s))
	tag = strings.TrimPrefix(tag, "ROLE_")
	switch Role(tag) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) bit() RoleSet {
	switch r {
	case RoleAdmin:
		return 1 << 0
	case RoleUser:
		return 1 << 1
	}
	return 0
}

// RoleSet is a set of known roles. The zero value is the empty set.
type RoleSet uint8

// NewRoleSet builds a set from roles. Roles outside the enumeration are ignored.
func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= r.bit()
	}
	return s
}

// ParseRoleSet parses role tags, dropping unknown ones. It reports the tags it dropped.
func ParseRoleSet(tags ...string) (RoleSet, []string) {
	var (
		s       RoleSet
		dropped []string
	)
	for _, tag := range tags {
		for _, part := range strings.Split(tag, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			r, err := ParseRole(part)
			if err != nil {
				dropped = append(dropped, part)
				continue
			}
			s |= r.bit()
		}
	}
	return s, dropped
}

func (s RoleSet) Has(r Role) bool {
	b := r.bit()
	return b != 0 && s&b == b
}

// Intersects reports whether the two sets share at least one role.
func (s RoleSet) Intersects(other RoleSet) bool {
	return s&other != 0
}

func (s RoleSet) IsEmpty() bool {
	return s == 0
}

func (s RoleSet) Union(other RoleSet) RoleSet {
	return s | other
}

// Roles returns the members in canonical order.
func (s RoleSet) Roles() []Role {
	roles := make([]Role, 0, len(AllRoles))
	for _, r := range AllRoles {
		if s.Has(r) {
			roles = append(roles, r)
		}
	}
	return roles
}

func (s RoleSet) String() string {
	roles := s.Roles()
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Roles())
}

// UnmarshalJSON accepts either an array of tags or a single comma separated string.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return fmt.Errorf("roles must be a string or an array of strings: %w", err)
		}
		tags = []string{single}
	}
	*s, _ = ParseRoleSet(tags...)
	return nil
}
