package memory

import "sync"

// Conversation is one user's bounded message history. The history is a
// FIFO window: appending beyond capacity evicts the oldest message
// regardless of role. The system prompt is never stored here; the
// agent supplies it fresh on every turn, so prompt updates take effect
// immediately.
//
// Two locks with distinct scopes:
//
//   - mu guards the message slice. Held only for the duration of a
//     single append/snapshot/clear, so observers never see a
//     temporarily-oversized history.
//   - turnMu serializes whole turns for this user. The agent holds it
//     across the read-complete-append sequence of one turn so that two
//     concurrent messages from the same user cannot interleave their
//     history updates. Turns for different users share nothing and run
//     fully in parallel.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	max      int

	turnMu sync.Mutex
}

// NewConversation creates an empty conversation retaining at most max
// messages. A max below 1 is clamped to 1 so Append can always hold
// the latest message.
func NewConversation(max int) *Conversation {
	if max < 1 {
		max = 1
	}
	return &Conversation{max: max}
}

// Append adds a message, evicting the oldest if the history is full.
// The eviction is atomic with the insertion.
func (c *Conversation) Append(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.messages) >= c.max {
		// Shift in place rather than reslicing so the backing array
		// doesn't grow without bound.
		copy(c.messages, c.messages[1:])
		c.messages[len(c.messages)-1] = msg
		return
	}
	c.messages = append(c.messages, msg)
}

// Snapshot returns a copy of the history in insertion order.
func (c *Conversation) Snapshot() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the current history length.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Clear empties the history. The conversation object itself survives.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// BeginTurn acquires the per-user turn lock. Blocks while another turn
// for the same user is in flight.
func (c *Conversation) BeginTurn() {
	c.turnMu.Lock()
}

// EndTurn releases the per-user turn lock.
func (c *Conversation) EndTurn() {
	c.turnMu.Unlock()
}
