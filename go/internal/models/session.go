package models

import (
	"errors"
	"strings"
)

// Role defines which side of a session a client plays.
type Role string

const (
	RoleHost   Role = "HOST"
	RolePlayer Role = "PLAYER"
)

// hostParticipant is the path segment a host connects under.
const hostParticipant = "host"

var (
	ErrMissingCode        = errors.New("session code is required")
	ErrMissingParticipant = errors.New("participant name is required for players")
	ErrUnknownRole        = errors.New("unknown role")
)

// SessionIdentity identifies one participant of one session. It is created once by the
// create/join step and never mutated afterwards.
type SessionIdentity struct {
	Code            string `json:"code"`
	ParticipantName string `json:"participant_name,omitempty"`
	Role            Role   `json:"role"`
}

// NewHostIdentity returns the identity of the host of a session.
func NewHostIdentity(code string) (SessionIdentity, error) {
	id := SessionIdentity{Code: strings.TrimSpace(code), Role: RoleHost}
	return id, id.Validate()
}

// NewPlayerIdentity returns the identity of a named player in a session.
func NewPlayerIdentity(code, name string) (SessionIdentity, error) {
	id := SessionIdentity{
		Code:            strings.TrimSpace(code),
		ParticipantName: strings.TrimSpace(name),
		Role:            RolePlayer,
	}
	return id, id.Validate()
}

// ParseRole maps a user supplied role name onto a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "host":
		return RoleHost, nil
	case "player", "":
		return RolePlayer, nil
	default:
		return "", ErrUnknownRole
	}
}

// Validate checks the identity is usable for opening a push channel.
func (s SessionIdentity) Validate() error {
	if s.Code == "" {
		return ErrMissingCode
	}
	switch s.Role {
	case RoleHost:
		return nil
	case RolePlayer:
		if s.ParticipantName == "" {
			return ErrMissingParticipant
		}
		return nil
	default:
		return ErrUnknownRole
	}
}

// IsHost reports whether the identity belongs to the session host.
func (s SessionIdentity) IsHost() bool {
	return s.Role == RoleHost
}

// Participant is the name the push channel is addressed by.
func (s SessionIdentity) Participant() string {
	if s.IsHost() {
		return hostParticipant
	}
	return s.ParticipantName
}
