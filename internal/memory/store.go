package memory

import "sync"

// Store maps user ids to their conversations. The RWMutex guards only
// the map structure (inserting or removing users); message content is
// guarded per-conversation, so appends for unrelated users never
// contend here.
type Store struct {
	mu         sync.RWMutex
	convs      map[string]*Conversation
	maxHistory int
}

// NewStore creates a store whose conversations retain at most
// maxHistory messages each.
func NewStore(maxHistory int) *Store {
	return &Store{
		convs:      make(map[string]*Conversation),
		maxHistory: maxHistory,
	}
}

// GetOrCreate returns the user's conversation, creating it on first
// contact. Concurrent first contact for the same user yields exactly
// one shared conversation: the write lock is re-checked after upgrade,
// so a racing creator adopts the winner's object instead of replacing
// it.
func (s *Store) GetOrCreate(userID string) *Conversation {
	s.mu.RLock()
	conv, ok := s.convs[userID]
	s.mu.RUnlock()
	if ok {
		return conv
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[userID]; ok {
		return conv
	}
	conv = NewConversation(s.maxHistory)
	s.convs[userID] = conv
	return conv
}

// Append records a message in the user's conversation, creating the
// conversation if needed.
func (s *Store) Append(userID string, msg Message) {
	s.GetOrCreate(userID).Append(msg)
}

// Snapshot returns a copy of the user's history, or ok=false if the
// user has never spoken.
func (s *Store) Snapshot(userID string) ([]Message, bool) {
	s.mu.RLock()
	conv, ok := s.convs[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return conv.Snapshot(), true
}

// Clear empties a user's history. A no-op for unknown users.
func (s *Store) Clear(userID string) {
	s.mu.RLock()
	conv, ok := s.convs[userID]
	s.mu.RUnlock()
	if ok {
		conv.Clear()
	}
}

// ClearAll drops every conversation.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs = make(map[string]*Conversation)
}

// Count returns the number of conversations ever created and not since
// dropped by ClearAll.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}
