package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Context holds the ordered turn history of the conversation currently in
// flight. Liveness is a pure function of stored timestamps and the
// configured trigger phrase; there is no background timer. An expired
// Context is terminal: the owner allocates a fresh one instead of reviving
// it.
type Context struct {
	mu             sync.Mutex
	id             string
	turns          []Turn
	createdAt      time.Time
	lastActivityAt time.Time
	state          State
}

func NewContext(now time.Time) *Context {
	return &Context{
		id:             uuid.NewString(),
		createdAt:      now,
		lastActivityAt: now,
		state:          StateActive,
	}
}

// ID identifies this context instance, used as provenance on records
// extracted from its turns.
func (c *Context) ID() string { return c.id }

// Append adds a turn and advances last activity to the turn's timestamp.
func (c *Context) Append(turn Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateExpired {
		return ErrExpiredContext
	}
	c.turns = append(c.turns, turn)
	c.lastActivityAt = turn.Timestamp
	return nil
}

// IsExpired reports whether the conversation has ended: either the idle
// threshold elapsed since the last turn, or the most recent user turn
// contains the trigger phrase (case-normalized containment, not equality).
func (c *Context) IsExpired(now time.Time, idleThreshold time.Duration, triggerPhrase string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateExpired {
		return true
	}
	if now.Sub(c.lastActivityAt) >= idleThreshold {
		return true
	}

	trigger := strings.ToLower(strings.TrimSpace(triggerPhrase))
	if trigger == "" {
		return false
	}
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].Role != RoleUser {
			continue
		}
		return strings.Contains(strings.ToLower(c.turns[i].Text), trigger)
	}
	return false
}

// Reset marks the context expired. Idempotent.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateExpired
}

// Snapshot returns a copy of the turn sequence in chronological order.
func (c *Context) Snapshot() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

func (c *Context) CreatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createdAt
}

func (c *Context) LastActivityAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivityAt
}

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}
