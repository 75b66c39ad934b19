package memory

import (
	"fmt"
	"sync"
	"testing"
)

func TestConversation_AppendAndSnapshot(t *testing.T) {
	c := NewConversation(10)
	c.Append(Message{Role: RoleUser, Content: "hello"})
	c.Append(Message{Role: RoleAssistant, Content: "hi there"})

	got := c.Snapshot()
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].Role != RoleUser || got[0].Content != "hello" {
		t.Errorf("first message = %+v, want user/hello", got[0])
	}
	if got[1].Role != RoleAssistant || got[1].Content != "hi there" {
		t.Errorf("second message = %+v, want assistant/hi there", got[1])
	}
}

func TestConversation_EvictsOldestAtCapacity(t *testing.T) {
	c := NewConversation(2)
	c.Append(Message{Role: RoleUser, Content: "a"})
	c.Append(Message{Role: RoleAssistant, Content: "b"})
	c.Append(Message{Role: RoleUser, Content: "c"})

	got := c.Snapshot()
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].Content != "b" || got[0].Role != RoleAssistant {
		t.Errorf("oldest surviving message = %+v, want assistant/b", got[0])
	}
	if got[1].Content != "c" || got[1].Role != RoleUser {
		t.Errorf("newest message = %+v, want user/c", got[1])
	}
}

func TestConversation_NonPositiveMaxClampedToOne(t *testing.T) {
	for _, max := range []int{0, -3} {
		c := NewConversation(max)
		c.Append(Message{Role: RoleUser, Content: "first"})
		c.Append(Message{Role: RoleAssistant, Content: "second"})

		got := c.Snapshot()
		if len(got) != 1 {
			t.Fatalf("max=%d: got %d messages, want 1", max, len(got))
		}
		if got[0].Content != "second" {
			t.Errorf("max=%d: surviving message = %q, want second", max, got[0].Content)
		}
	}
}

func TestConversation_NeverExceedsMax(t *testing.T) {
	c := NewConversation(5)
	for i := 0; i < 50; i++ {
		c.Append(Message{Role: RoleUser, Content: fmt.Sprintf("msg %d", i)})
		if n := c.Len(); n > 5 {
			t.Fatalf("after append %d: len = %d, want <= 5", i, n)
		}
	}

	got := c.Snapshot()
	if got[0].Content != "msg 45" {
		t.Errorf("oldest = %q, want msg 45", got[0].Content)
	}
	if got[4].Content != "msg 49" {
		t.Errorf("newest = %q, want msg 49", got[4].Content)
	}
}

func TestConversation_SnapshotIsACopy(t *testing.T) {
	c := NewConversation(10)
	c.Append(Message{Role: RoleUser, Content: "original"})

	snap := c.Snapshot()
	snap[0].Content = "mutated"

	if got := c.Snapshot()[0].Content; got != "original" {
		t.Errorf("history was mutated through snapshot: got %q", got)
	}
}

func TestConversation_Clear(t *testing.T) {
	c := NewConversation(10)
	c.Append(Message{Role: RoleUser, Content: "x"})
	c.Clear()

	if n := c.Len(); n != 0 {
		t.Errorf("len after clear = %d, want 0", n)
	}

	// The conversation remains usable after clearing.
	c.Append(Message{Role: RoleUser, Content: "y"})
	if n := c.Len(); n != 1 {
		t.Errorf("len after re-append = %d, want 1", n)
	}
}

func TestConversation_ConcurrentAppendsStayBounded(t *testing.T) {
	c := NewConversation(8)

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Append(Message{Role: RoleUser, Content: fmt.Sprintf("g%d-%d", g, i)})
			}
		}(g)
	}
	wg.Wait()

	if n := c.Len(); n != 8 {
		t.Errorf("len after concurrent appends = %d, want 8", n)
	}
}
