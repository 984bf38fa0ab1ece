package session

import (
	"sync"
	"time"
)

// Manager owns the current Context for each conversation and serializes
// message handling per conversation: Acquire blocks while another holder is
// in flight, so turn appends never interleave.
type Manager struct {
	mu            sync.Mutex
	conversations map[string]*conversation
	idleThreshold time.Duration
	triggerPhrase string
}

type conversation struct {
	// busy serializes message handling; cur guards the current pointer,
	// which Peek and ActiveCount read without waiting on busy.
	busy sync.Mutex

	cur     sync.Mutex
	current *Context
}

func (c *conversation) load() *Context {
	c.cur.Lock()
	defer c.cur.Unlock()
	return c.current
}

func (c *conversation) store(ctx *Context) {
	c.cur.Lock()
	c.current = ctx
	c.cur.Unlock()
}

func NewManager(idleThreshold time.Duration, triggerPhrase string) *Manager {
	if idleThreshold <= 0 {
		idleThreshold = 5 * time.Minute
	}
	return &Manager{
		conversations: make(map[string]*conversation),
		idleThreshold: idleThreshold,
		triggerPhrase: triggerPhrase,
	}
}

// Acquire returns the live Context for the conversation, replacing it when
// expired, and blocks until the caller holds the conversation exclusively.
// The returned release func must be called once handling is done. fresh
// reports that a new Context was allocated on this call.
func (m *Manager) Acquire(conversationID string, now time.Time) (ctx *Context, release func(), fresh bool) {
	m.mu.Lock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		conv = &conversation{}
		m.conversations[conversationID] = conv
	}
	m.mu.Unlock()

	conv.busy.Lock()

	current := conv.load()
	if current == nil || current.IsExpired(now, m.idleThreshold, m.triggerPhrase) {
		if current != nil {
			current.Reset()
		}
		current = NewContext(now)
		conv.store(current)
		fresh = true
	}
	return current, conv.busy.Unlock, fresh
}

// Peek returns the current Context without expiry evaluation or
// serialization, for introspection. ok is false when the conversation has
// never seen a message.
func (m *Manager) Peek(conversationID string) (*Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil, false
	}
	current := conv.load()
	if current == nil {
		return nil, false
	}
	return current, true
}

// ActiveCount reports conversations whose current context is still active.
func (m *Manager) ActiveCount(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, conv := range m.conversations {
		if current := conv.load(); current != nil && !current.IsExpired(now, m.idleThreshold, m.triggerPhrase) {
			count++
		}
	}
	return count
}

func (m *Manager) IdleThreshold() time.Duration { return m.idleThreshold }
func (m *Manager) TriggerPhrase() string        { return m.triggerPhrase }
