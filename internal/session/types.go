package session

import (
	"errors"
	"time"
)

// Role identifies who produced a conversational turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single utterance. Immutable once appended to a Context.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the liveness state of a Context.
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
)

// ErrExpiredContext reports an append to a context that has already been
// reset. This is a sequencing bug in the caller, not a recoverable state.
var ErrExpiredContext = errors.New("append to expired session context")
