package session

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const idle = 5 * time.Minute

func TestContextStaysActiveWithinIdleThreshold(t *testing.T) {
	c := NewContext(t0)

	now := t0
	for i := 0; i < 5; i++ {
		if err := c.Append(Turn{Role: RoleUser, Text: "hello", Timestamp: now}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		now = now.Add(4 * time.Minute)
		if c.IsExpired(now, idle, "reset please") {
			t.Fatalf("context expired after %v gap, threshold %v", 4*time.Minute, idle)
		}
	}
}

func TestContextExpiresJustPastIdleThreshold(t *testing.T) {
	c := NewContext(t0)
	if err := c.Append(Turn{Role: RoleUser, Text: "hi", Timestamp: t0}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if c.IsExpired(t0.Add(idle-time.Second), idle, "") {
		t.Fatalf("expired before threshold")
	}
	if !c.IsExpired(t0.Add(idle+time.Second), idle, "") {
		t.Fatalf("not expired at threshold + 1s")
	}
}

func TestTriggerPhraseExpiresRegardlessOfElapsedTime(t *testing.T) {
	c := NewContext(t0)
	if err := c.Append(Turn{Role: RoleUser, Text: "Thank You so much!", Timestamp: t0}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if !c.IsExpired(t0.Add(time.Second), idle, "thank you") {
		t.Fatalf("trigger phrase did not expire context")
	}
}

func TestTriggerPhraseChecksMostRecentUserTurnOnly(t *testing.T) {
	c := NewContext(t0)
	turns := []Turn{
		{Role: RoleUser, Text: "thank you", Timestamp: t0},
		{Role: RoleAssistant, Text: "you are welcome", Timestamp: t0.Add(time.Second)},
		{Role: RoleUser, Text: "one more thing", Timestamp: t0.Add(2 * time.Second)},
	}
	for _, turn := range turns {
		if err := c.Append(turn); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	if c.IsExpired(t0.Add(3*time.Second), idle, "thank you") {
		t.Fatalf("expired on a trigger phrase that is not in the latest user turn")
	}
}

func TestAssistantTurnNeverMatchesTrigger(t *testing.T) {
	c := NewContext(t0)
	turns := []Turn{
		{Role: RoleUser, Text: "what do I say to end this?", Timestamp: t0},
		{Role: RoleAssistant, Text: "you could say thank you", Timestamp: t0.Add(time.Second)},
	}
	for _, turn := range turns {
		if err := c.Append(turn); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	if c.IsExpired(t0.Add(2*time.Second), idle, "thank you") {
		t.Fatalf("assistant turn matched the trigger phrase")
	}
}

func TestAppendToExpiredContextFails(t *testing.T) {
	c := NewContext(t0)
	c.Reset()
	c.Reset() // idempotent

	err := c.Append(Turn{Role: RoleUser, Text: "hi", Timestamp: t0})
	if !errors.Is(err, ErrExpiredContext) {
		t.Fatalf("Append() error = %v, want ErrExpiredContext", err)
	}
	if c.State() != StateExpired {
		t.Fatalf("State() = %q, want %q", c.State(), StateExpired)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c := NewContext(t0)
	if err := c.Append(Turn{Role: RoleUser, Text: "original", Timestamp: t0}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	snap := c.Snapshot()
	snap[0].Text = "mutated"

	if got := c.Snapshot()[0].Text; got != "original" {
		t.Fatalf("snapshot mutation leaked into context: %q", got)
	}
}

func TestAppendAdvancesLastActivity(t *testing.T) {
	c := NewContext(t0)
	later := t0.Add(2 * time.Minute)
	if err := c.Append(Turn{Role: RoleUser, Text: "hi", Timestamp: later}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if !c.LastActivityAt().Equal(later) {
		t.Fatalf("LastActivityAt() = %v, want %v", c.LastActivityAt(), later)
	}
}
