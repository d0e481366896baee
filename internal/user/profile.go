package user

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMissingID    = errors.New("profile has no id")
	ErrMissingRoles = errors.New("profile has no known role")
)

// Profile is the authenticated user as reported by the backend.
type Profile struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	AvatarURL string  `json:"avatarUrl,omitempty"`
	Roles     RoleSet `json:"roles"`
}

// UnmarshalJSON reads roles from either "roles" or the older single "role" field.
func (p *Profile) UnmarshalJSON(data []byte) error {
	type plain Profile
	var raw struct {
		plain
		ID    json.RawMessage `json:"id"`
		Role  *RoleSet        `json:"role"`
		Name  string          `json:"name"`
		Login string          `json:"login"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := parseID(raw.ID)
	if err != nil {
		return err
	}
	*p = Profile(raw.plain)
	p.ID = id
	if raw.Role != nil {
		p.Roles = p.Roles.Union(*raw.Role)
	}
	if p.Username == "" {
		if raw.Name != "" {
			p.Username = raw.Name
		} else {
			p.Username = raw.Login
		}
	}
	return nil
}

// parseID accepts the id as a JSON string or number.
func parseID(data json.RawMessage) (string, error) {
	if len(data) == 0 || string(data) == "null" {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		err := json.Unmarshal(data, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("profile id must be a string or a number: %w", err)
	}
	return n.String(), nil
}

// Validate rejects profiles that cannot be authorized.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return ErrMissingID
	}
	if p.Roles.IsEmpty() {
		return ErrMissingRoles
	}
	return nil
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Roles.Has(RoleAdmin)
}

// DisplayName prefers the username and falls back to the email.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Username != "" {
		return p.Username
	}
	return p.Email
}

// Clone returns an independent copy. Nil stays nil.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
