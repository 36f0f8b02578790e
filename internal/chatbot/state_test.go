package chatbot

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wolfman30/lead-chat-agent/internal/assistant"
	"github.com/wolfman30/lead-chat-agent/internal/contact"
)

func TestStateFormMessageIndex(t *testing.T) {
	var s State
	s.AppendMessage(Message{Role: assistant.RoleAssistant, Content: "hi"})
	first := s.AppendMessage(Message{Role: assistant.RoleAssistant, Content: "form", ShowForm: true})

	if got := s.FormMessageIndex(); got != -1 {
		t.Fatalf("closed form should have no index, got %d", got)
	}
	s.OpenForm(contact.Draft{}, contact.Merger{})
	if got := s.FormMessageIndex(); got != first {
		t.Fatalf("expected %d, got %d", first, got)
	}
	second := s.AppendMessage(Message{Role: assistant.RoleAssistant, Content: "again", ShowForm: true})
	s.AppendMessage(Message{Role: assistant.RoleUser, Content: "x"})
	if got := s.FormMessageIndex(); got != second {
		t.Fatalf("form should render on the latest flagged message, got %d", got)
	}
}

func TestStateDraftGenerationGuardsMerge(t *testing.T) {
	var s State
	s.OpenForm(contact.Draft{Name: "a"}, contact.Merger{})
	gen := s.DraftGeneration

	if !s.MergeDraft(contact.Draft{Phone: "050-1234567"}, gen, contact.Merger{}) {
		t.Fatal("expected merge for current generation")
	}
	want := contact.Draft{Name: "a", Phone: "0501234567", Subject: contact.SubjectGeneral}
	if diff := cmp.Diff(want, *s.Draft); diff != "" {
		t.Fatalf("draft mismatch (-want +got):\n%s", diff)
	}

	s.ClearDraft()
	s.OpenForm(contact.Draft{}, contact.Merger{})
	if s.MergeDraft(contact.Draft{Phone: "0509999999"}, gen, contact.Merger{}) {
		t.Fatal("stale generation must not merge")
	}
	if s.Draft.Phone != "" {
		t.Fatalf("stale merge leaked phone %q", s.Draft.Phone)
	}
}

func TestStateIdleEligible(t *testing.T) {
	var s State
	s.AppendMessage(Message{Role: assistant.RoleAssistant})
	if s.IdleEligible() {
		t.Fatal("single message transcript is not eligible")
	}
	s.AppendMessage(Message{Role: assistant.RoleUser})
	if !s.IdleEligible() {
		t.Fatal("expected eligible")
	}
	s.OpenForm(contact.Draft{}, contact.Merger{})
	if s.IdleEligible() {
		t.Fatal("open form blocks the nudge")
	}
	s.ClearDraft()
	s.MarkAskedForContact()
	if s.IdleEligible() {
		t.Fatal("one-shot flag blocks the nudge")
	}
}

func TestStateBusy(t *testing.T) {
	var s State
	if err := s.BeginBusy(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.BeginBusy(); err != ErrBusy {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	s.EndBusy()
	if err := s.BeginBusy(); err != nil {
		t.Fatalf("unexpected error after EndBusy: %v", err)
	}
}

func TestStateCloneIsDeep(t *testing.T) {
	var s State
	s.AppendMessage(Message{Content: "a"})
	s.ExtendHistory("u", "a")
	s.OpenForm(contact.Draft{Name: "x"}, contact.Merger{})

	c := s.clone()
	c.Messages[0].Content = "changed"
	c.History[0].Content = "changed"
	c.Draft.Name = "changed"

	if s.Messages[0].Content != "a" || s.History[0].Content != "u" || s.Draft.Name != "x" {
		t.Fatal("clone shares memory with the original")
	}
}
