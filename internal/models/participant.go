package models

import (
	"fmt"
	"time"
)

type Role int

const (
	RoleListener Role = iota
	RoleHost
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleListener:
		return "listener"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "host":
		return RoleHost, nil
	case "listener":
		return RoleListener, nil
	default:
		return RoleListener, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) MarshalText() ([]byte, error) {
	switch r {
	case RoleHost, RoleListener:
		return []byte(r.String()), nil
	default:
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type Participant struct {
	RoomID     string    `json:"room_id"`
	UserID     string    `json:"user_id"`
	Role       Role      `json:"role"`
	JoinedAt   time.Time `json:"joined_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	IsActive   bool      `json:"is_active"`
}

func (p *Participant) IsHost() bool {
	return p.IsActive && p.Role == RoleHost
}

func (p *Participant) IsStale(now time.Time, window time.Duration) bool {
	return p.IsActive && now.Sub(p.LastSeenAt) > window
}
