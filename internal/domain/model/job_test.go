package model

import (
	"testing"
	"time"
)

func TestJob_StatusTransitions(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		j := NewJob("j1", "m", 0.7, []Message{{Role: "user", Content: "x"}}, nil)
		if j.Status != JobStatusPending {
			t.Fatalf("expected pending got %s", j.Status)
		}
		if !j.MarkStreaming() {
			t.Fatalf("pending -> streaming refused")
		}
		if !j.Complete() {
			t.Fatalf("streaming -> completed refused")
		}
		if !j.Terminal() {
			t.Fatalf("completed not terminal")
		}
	})

	t.Run("failure records message", func(t *testing.T) {
		j := NewJob("j2", "m", 0.7, []Message{{Role: "user", Content: "x"}}, nil)
		j.MarkStreaming()
		if !j.Fail("boom") {
			t.Fatalf("streaming -> failed refused")
		}
		if j.LastError != "boom" {
			t.Fatalf("expected error recorded, got %q", j.LastError)
		}
		if !j.Terminal() {
			t.Fatalf("failed not terminal")
		}
	})

	t.Run("terminal states never regress", func(t *testing.T) {
		j := NewJob("j3", "m", 0.7, []Message{{Role: "user", Content: "x"}}, nil)
		j.MarkStreaming()
		j.Complete()
		if j.MarkStreaming() || j.Complete() || j.Fail("late") {
			t.Fatalf("terminal job accepted a transition")
		}
		if j.Status != JobStatusCompleted {
			t.Fatalf("status regressed to %s", j.Status)
		}
	})

	t.Run("cannot complete without streaming", func(t *testing.T) {
		j := NewJob("j4", "m", 0.7, []Message{{Role: "user", Content: "x"}}, nil)
		if j.Complete() {
			t.Fatalf("pending -> completed must be refused")
		}
		// A pending job can still fail (cancelled before pickup).
		if !j.Fail("abandoned") {
			t.Fatalf("pending -> failed refused")
		}
	})

	t.Run("double streaming refused", func(t *testing.T) {
		j := NewJob("j5", "m", 0.7, []Message{{Role: "user", Content: "x"}}, nil)
		if !j.MarkStreaming() {
			t.Fatalf("first MarkStreaming refused")
		}
		if j.MarkStreaming() {
			t.Fatalf("second MarkStreaming accepted")
		}
	})
}

func TestChatSession_RecentMessages(t *testing.T) {
	t.Parallel()

	s := NewChatSession("c1", "t", time.Time{})
	for _, content := range []string{"1", "2", "3", "4"} {
		s.AddMessage("user", content)
	}

	recent := s.GetRecentMessages(2)
	if len(recent) != 2 || recent[0].Content != "3" || recent[1].Content != "4" {
		t.Fatalf("unexpected recent window %+v", recent)
	}
	if got := s.GetRecentMessages(10); len(got) != 4 {
		t.Fatalf("expected all messages, got %d", len(got))
	}
	if got := s.GetRecentMessages(0); len(got) != 4 {
		t.Fatalf("n=0 should return all, got %d", len(got))
	}
}
